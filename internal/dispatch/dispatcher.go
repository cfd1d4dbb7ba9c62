package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ehrgate/ehrgate/internal/model"
	"github.com/ehrgate/ehrgate/internal/records"
	"github.com/ehrgate/ehrgate/internal/service"
	"github.com/ehrgate/ehrgate/internal/telemetry"
)

// Authenticator is the part of the auth service the dispatcher uses.
type Authenticator interface {
	RegisterCredential(ctx context.Context, reg service.Registration) (*service.RegisteredCredential, error)
	Authenticate(ctx context.Context, clientID, secret, appID string) (*service.TokenResponse, error)
	ValidateToken(ctx context.Context, token string) service.Validation
}

// Records is the set of record-access handlers.
type Records interface {
	GetPatient(ctx context.Context, mrn string) (*records.PatientResponse, error)
	SearchPatients(ctx context.Context, term string) (*records.PatientSearchResponse, error)
	CreatePatient(ctx context.Context, in records.NewPatient) (*records.CreatePatientResponse, error)
	GetAppointments(ctx context.Context, mrn, status string) (*records.AppointmentsResponse, error)
	ScheduleAppointment(ctx context.Context, in records.NewAppointment) (*records.ScheduleResponse, error)
	GetMedications(ctx context.Context, mrn string) (*records.MedicationsResponse, error)
	PrescribeMedication(ctx context.Context, in records.NewPrescription) (*records.PrescribeResponse, error)
	GetLabResults(ctx context.Context, mrn string) (*records.LabResultsResponse, error)
	GetVitalSigns(ctx context.Context, mrn string) (*records.VitalSignsResponse, error)
	RecordVitalSigns(ctx context.Context, in records.NewVitalSigns) (*records.RecordVitalsResponse, error)
	GetAllergies(ctx context.Context, mrn string) (*records.AllergiesResponse, error)
	GetProvider(ctx context.Context, npi string) (*records.ProviderResponse, error)
	SearchProviders(ctx context.Context, term string) (*records.ProviderSearchResponse, error)
}

// Options configure a Dispatcher.
type Options struct {
	// EnforceScopes requires the token to carry each operation's scope.
	// Admin and system roles are exempt.
	EnforceScopes bool
	Metrics       *telemetry.Metrics
	Logger        *slog.Logger
}

type handlerFunc func(ctx context.Context, args Args) (interface{}, error)

// Dispatcher routes operations to handlers.
type Dispatcher struct {
	auth     Authenticator
	records  Records
	opts     Options
	logger   *slog.Logger
	handlers map[Operation]handlerFunc
}

// New builds a Dispatcher with a handler bound to every operation.
func New(auth Authenticator, rec Records, opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{auth: auth, records: rec, opts: opts, logger: logger}
	d.handlers = map[Operation]handlerFunc{
		OpAuthenticate:        d.authenticate,
		OpRegisterClient:      d.registerClient,
		OpValidateToken:       d.validateToken,
		OpGetPatient:          d.getPatient,
		OpSearchPatients:      d.searchPatients,
		OpCreatePatient:       d.createPatient,
		OpGetAppointments:     d.getAppointments,
		OpScheduleAppointment: d.scheduleAppointment,
		OpGetMedications:      d.getMedications,
		OpPrescribeMedication: d.prescribeMedication,
		OpGetLabResults:       d.getLabResults,
		OpGetVitalSigns:       d.getVitalSigns,
		OpRecordVitalSigns:    d.recordVitalSigns,
		OpGetAllergies:        d.getAllergies,
		OpSearchProviders:     d.searchProviders,
		OpGetProvider:         d.getProvider,
	}
	return d
}

// DispatchName resolves name and dispatches it.
func (d *Dispatcher) DispatchName(ctx context.Context, name string, args Args) (interface{}, error) {
	op, err := ParseOperation(name)
	if err != nil {
		d.opts.Metrics.ObserveOperation("unknown", telemetry.OutcomeInvalid, 0)
		return nil, err
	}
	return d.Dispatch(ctx, op, args)
}

// Dispatch runs op. Operations that require auth have their token
// validated before the handler is reached.
func (d *Dispatcher) Dispatch(ctx context.Context, op Operation, args Args) (interface{}, error) {
	def, ok := op.Definition()
	if !ok {
		return nil, unknownOperation(op.String())
	}
	h := d.handlers[op]
	if args == nil {
		args = Args{}
	}

	start := time.Now()
	result, err := d.dispatch(ctx, def, h, args)
	d.opts.Metrics.ObserveOperation(def.Name, outcome(err), time.Since(start))

	if err != nil && IsInternal(err) {
		d.logger.Error("operation failed", "operation", def.Name, "error", err)
	}
	return result, err
}

func (d *Dispatcher) dispatch(ctx context.Context, def Definition, h handlerFunc, args Args) (interface{}, error) {
	if !def.RequiresAuth {
		return h(ctx, args)
	}

	token := args.OptString("access_token")
	if token == "" {
		token = BearerToken(ctx)
	}
	if token == "" {
		return nil, ErrMissingToken
	}

	v := d.auth.ValidateToken(ctx, token)
	if !v.Valid {
		if errors.Is(v.Err, service.ErrStorageUnavailable) {
			return nil, v.Err
		}
		return nil, unauthorized(v.Error)
	}
	if d.opts.EnforceScopes && def.Scope != "" && !allowed(v, def.Scope) {
		d.logger.Warn("scope denied", "operation", def.Name, "client_id", v.ClientID, "scope", def.Scope)
		return nil, forbidden(def.Scope)
	}

	ctx = withCaller(ctx, Caller{ClientID: v.ClientID, AppID: v.AppID, Role: v.Role, Scopes: v.Scopes})
	d.logger.Debug("operation authorized", "operation", def.Name, "client_id", v.ClientID, "role", v.Role)
	return h(ctx, args)
}

func allowed(v service.Validation, scope string) bool {
	if role, err := model.ParseRole(v.Role); err == nil && role.Privileged() {
		return true
	}
	for _, s := range v.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

func outcome(err error) string {
	switch {
	case err == nil:
		return telemetry.OutcomeSuccess
	case errors.Is(err, ErrMissingToken), errors.Is(err, ErrUnauthorized),
		errors.Is(err, service.ErrInvalidCredentials):
		return telemetry.OutcomeUnauthorized
	case errors.Is(err, ErrForbidden):
		return telemetry.OutcomeForbidden
	case records.IsUserError(err), errors.Is(err, service.ErrInvalidRegistration),
		errors.Is(err, service.ErrDuplicateClient):
		return telemetry.OutcomeInvalid
	default:
		return telemetry.OutcomeError
	}
}
