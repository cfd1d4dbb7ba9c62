package dispatch

import (
	"context"

	"github.com/ehrgate/ehrgate/internal/records"
	"github.com/ehrgate/ehrgate/internal/service"
)

// ---------------------------------------------------------------------------
// Auth operations
// ---------------------------------------------------------------------------

func (d *Dispatcher) authenticate(ctx context.Context, args Args) (interface{}, error) {
	clientID, err := args.String("client_id")
	if err != nil {
		return nil, err
	}
	secret, err := args.String("client_secret")
	if err != nil {
		return nil, err
	}
	appID, err := args.String("app_id")
	if err != nil {
		return nil, err
	}
	return d.auth.Authenticate(ctx, clientID, secret, appID)
}

func (d *Dispatcher) registerClient(ctx context.Context, args Args) (interface{}, error) {
	appID, err := args.String("app_id")
	if err != nil {
		return nil, err
	}
	appName, err := args.String("app_name")
	if err != nil {
		return nil, err
	}
	role, err := args.String("role")
	if err != nil {
		return nil, err
	}
	scopes, err := args.RequiredStrings("scopes")
	if err != nil {
		return nil, err
	}
	return d.auth.RegisterCredential(ctx, service.Registration{
		AppID:        appID,
		AppName:      appName,
		Role:         role,
		Scopes:       scopes,
		Description:  args.OptString("description"),
		ContactEmail: args.OptString("contact_email"),
	})
}

func (d *Dispatcher) validateToken(ctx context.Context, args Args) (interface{}, error) {
	token := args.OptString("access_token")
	if token == "" {
		token = BearerToken(ctx)
	}
	if token == "" {
		return nil, ErrMissingToken
	}
	v := d.auth.ValidateToken(ctx, token)
	return &v, nil
}

// ---------------------------------------------------------------------------
// Patients and providers
// ---------------------------------------------------------------------------

func (d *Dispatcher) getPatient(ctx context.Context, args Args) (interface{}, error) {
	mrn, err := args.String("mrn")
	if err != nil {
		return nil, err
	}
	return d.records.GetPatient(ctx, mrn)
}

func (d *Dispatcher) searchPatients(ctx context.Context, args Args) (interface{}, error) {
	term, err := args.String("search_term")
	if err != nil {
		return nil, err
	}
	return d.records.SearchPatients(ctx, term)
}

func (d *Dispatcher) createPatient(ctx context.Context, args Args) (interface{}, error) {
	first, err := args.String("first_name")
	if err != nil {
		return nil, err
	}
	last, err := args.String("last_name")
	if err != nil {
		return nil, err
	}
	dob, err := args.String("dob")
	if err != nil {
		return nil, err
	}
	return d.records.CreatePatient(ctx, records.NewPatient{
		FirstName: first,
		LastName:  last,
		DOB:       dob,
		Gender:    args.OptString("gender"),
		Email:     args.OptString("email"),
		Phone:     args.OptString("phone"),
	})
}

func (d *Dispatcher) getProvider(ctx context.Context, args Args) (interface{}, error) {
	npi, err := args.String("npi")
	if err != nil {
		return nil, err
	}
	return d.records.GetProvider(ctx, npi)
}

func (d *Dispatcher) searchProviders(ctx context.Context, args Args) (interface{}, error) {
	term, err := args.String("search_term")
	if err != nil {
		return nil, err
	}
	return d.records.SearchProviders(ctx, term)
}

// ---------------------------------------------------------------------------
// Appointments
// ---------------------------------------------------------------------------

func (d *Dispatcher) getAppointments(ctx context.Context, args Args) (interface{}, error) {
	mrn, err := args.String("mrn")
	if err != nil {
		return nil, err
	}
	return d.records.GetAppointments(ctx, mrn, args.OptString("status"))
}

func (d *Dispatcher) scheduleAppointment(ctx context.Context, args Args) (interface{}, error) {
	in := records.NewAppointment{Reason: args.OptString("reason")}
	var err error
	if in.MRN, err = args.String("mrn"); err != nil {
		return nil, err
	}
	if in.ProviderNPI, err = args.String("provider_npi"); err != nil {
		return nil, err
	}
	if in.Date, err = args.String("date"); err != nil {
		return nil, err
	}
	if in.Time, err = args.String("time"); err != nil {
		return nil, err
	}
	return d.records.ScheduleAppointment(ctx, in)
}

// ---------------------------------------------------------------------------
// Clinical data
// ---------------------------------------------------------------------------

func (d *Dispatcher) getMedications(ctx context.Context, args Args) (interface{}, error) {
	mrn, err := args.String("mrn")
	if err != nil {
		return nil, err
	}
	return d.records.GetMedications(ctx, mrn)
}

func (d *Dispatcher) prescribeMedication(ctx context.Context, args Args) (interface{}, error) {
	var in records.NewPrescription
	var err error
	if in.MRN, err = args.String("mrn"); err != nil {
		return nil, err
	}
	if in.MedicationName, err = args.String("medication_name"); err != nil {
		return nil, err
	}
	if in.Dosage, err = args.String("dosage"); err != nil {
		return nil, err
	}
	if in.Frequency, err = args.String("frequency"); err != nil {
		return nil, err
	}
	refills, err := args.Int("refills")
	if err != nil {
		return nil, err
	}
	if refills != nil {
		in.Refills = int(*refills)
	}
	return d.records.PrescribeMedication(ctx, in)
}

func (d *Dispatcher) getLabResults(ctx context.Context, args Args) (interface{}, error) {
	mrn, err := args.String("mrn")
	if err != nil {
		return nil, err
	}
	return d.records.GetLabResults(ctx, mrn)
}

func (d *Dispatcher) getVitalSigns(ctx context.Context, args Args) (interface{}, error) {
	mrn, err := args.String("mrn")
	if err != nil {
		return nil, err
	}
	return d.records.GetVitalSigns(ctx, mrn)
}

func (d *Dispatcher) recordVitalSigns(ctx context.Context, args Args) (interface{}, error) {
	in := records.NewVitalSigns{Notes: args.OptString("notes")}
	var err error
	if in.MRN, err = args.String("mrn"); err != nil {
		return nil, err
	}
	ints := []struct {
		key string
		dst **int64
	}{
		{"systolic_bp", &in.SystolicBP},
		{"diastolic_bp", &in.DiastolicBP},
		{"heart_rate", &in.HeartRate},
		{"respiratory_rate", &in.RespiratoryRate},
	}
	for _, f := range ints {
		if *f.dst, err = args.Int(f.key); err != nil {
			return nil, err
		}
	}
	floats := []struct {
		key string
		dst **float64
	}{
		{"temperature", &in.Temperature},
		{"oxygen_saturation", &in.OxygenSaturation},
		{"weight", &in.Weight},
		{"height", &in.Height},
	}
	for _, f := range floats {
		if *f.dst, err = args.Float(f.key); err != nil {
			return nil, err
		}
	}
	return d.records.RecordVitalSigns(ctx, in)
}

func (d *Dispatcher) getAllergies(ctx context.Context, args Args) (interface{}, error) {
	mrn, err := args.String("mrn")
	if err != nil {
		return nil, err
	}
	return d.records.GetAllergies(ctx, mrn)
}
