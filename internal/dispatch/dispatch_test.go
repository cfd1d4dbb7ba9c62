package dispatch_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ehrgate/ehrgate/internal/dispatch"
	"github.com/ehrgate/ehrgate/internal/dispatch/dispatchtest"
	"github.com/ehrgate/ehrgate/internal/records"
	"github.com/ehrgate/ehrgate/internal/service"
	"github.com/ehrgate/ehrgate/internal/telemetry"
)

func TestParseOperationCoversEveryDefinition(t *testing.T) {
	defs := dispatch.Definitions()
	if len(defs) != 16 {
		t.Fatalf("got %d definitions, want 16", len(defs))
	}
	seen := map[string]bool{}
	for _, d := range defs {
		if seen[d.Name] {
			t.Errorf("duplicate operation name %q", d.Name)
		}
		seen[d.Name] = true

		op, err := dispatch.ParseOperation(d.Name)
		if err != nil || op != d.Op {
			t.Errorf("ParseOperation(%q) = %v, %v", d.Name, op, err)
		}
		if op.String() != d.Name {
			t.Errorf("%v.String() = %q", op, op.String())
		}
		if d.RequiresAuth && d.Scope == "" {
			t.Errorf("%s requires auth but has no scope", d.Name)
		}
	}

	if _, err := dispatch.ParseOperation("drop_tables"); !errors.Is(err, dispatch.ErrUnknownOperation) {
		t.Errorf("unknown name err = %v", err)
	}
}

func TestInputSchema(t *testing.T) {
	def, _ := dispatch.OpRegisterClient.Definition()
	schema := def.InputSchema()

	required := schema["required"].([]string)
	if strings.Join(required, ",") != "app_id,app_name,role,scopes" {
		t.Errorf("required = %v", required)
	}
	props := schema["properties"].(map[string]interface{})
	scopes := props["scopes"].(map[string]interface{})
	if scopes["type"] != "array" || scopes["items"] == nil {
		t.Errorf("scopes schema = %v", scopes)
	}
}

func TestArgs(t *testing.T) {
	args := dispatch.Args{
		"name":    "Maria",
		"blank":   "  ",
		"whole":   float64(3),
		"frac":    2.5,
		"numstr":  "98.6",
		"jsonnum": json.Number("120"),
		"list":    []interface{}{"a", "b"},
		"badlist": []interface{}{"a", 1},
		"empty":   []interface{}{},
		"huge":    1e20,
		"neghuge": "-1e19",
	}

	if s, err := args.String("name"); err != nil || s != "Maria" {
		t.Errorf("String(name) = %q, %v", s, err)
	}
	for _, key := range []string{"blank", "missing", "whole"} {
		if _, err := args.String(key); !errors.Is(err, records.ErrInvalidArgument) {
			t.Errorf("String(%s) err = %v", key, err)
		}
	}
	if n, err := args.Int("whole"); err != nil || *n != 3 {
		t.Errorf("Int(whole) = %v, %v", n, err)
	}
	if n, err := args.Int("jsonnum"); err != nil || *n != 120 {
		t.Errorf("Int(jsonnum) = %v, %v", n, err)
	}
	if _, err := args.Int("frac"); err == nil {
		t.Error("Int(frac) should fail")
	}
	if n, err := args.Int("missing"); err != nil || n != nil {
		t.Errorf("Int(missing) = %v, %v", n, err)
	}
	if f, err := args.Float("numstr"); err != nil || *f != 98.6 {
		t.Errorf("Float(numstr) = %v, %v", f, err)
	}
	if _, err := args.Float("name"); err == nil {
		t.Error("Float(name) should fail")
	}
	if l, err := args.Strings("list"); err != nil || len(l) != 2 {
		t.Errorf("Strings(list) = %v, %v", l, err)
	}
	if _, err := args.Strings("badlist"); err == nil {
		t.Error("Strings(badlist) should fail")
	}
	for _, key := range []string{"huge", "neghuge"} {
		if n, err := args.Int(key); dispatch.Message(err) != "Parameter "+key+" must be an integer" {
			t.Errorf("Int(%s) = %v, %v", key, n, err)
		}
	}
	if _, err := args.RequiredStrings("missing"); dispatch.Message(err) != "Missing required parameter: missing" {
		t.Errorf("RequiredStrings(missing) err = %v", err)
	}
	if l, err := args.RequiredStrings("empty"); err != nil || l == nil || len(l) != 0 {
		t.Errorf("RequiredStrings(empty) = %v, %v", l, err)
	}
}

func TestRegisterClientRequiresScopes(t *testing.T) {
	env := dispatchtest.New(t, dispatch.Options{})
	ctx := context.Background()
	args := dispatch.Args{"app_id": "kiosk", "app_name": "Kiosk", "role": "patient"}

	if _, err := env.Dispatcher.DispatchName(ctx, "register_client", args); dispatch.Message(err) != "Missing required parameter: scopes" {
		t.Errorf("missing scopes message = %q", dispatch.Message(err))
	}

	args["scopes"] = []interface{}{}
	res, err := env.Dispatcher.DispatchName(ctx, "register_client", args)
	if err != nil {
		t.Fatalf("register_client with empty scopes: %v", err)
	}
	if reg := res.(*service.RegisteredCredential); reg.ClientID == "" {
		t.Errorf("registration = %+v", reg)
	}
}

func TestAuthOperationsRunWithoutToken(t *testing.T) {
	env := dispatchtest.New(t, dispatch.Options{})
	ctx := context.Background()

	res, err := env.Dispatcher.DispatchName(ctx, "register_client", dispatch.Args{
		"app_id":   "scheduler",
		"app_name": "Scheduler",
		"role":     "nurse",
		"scopes":   []interface{}{"read:patients"},
	})
	if err != nil {
		t.Fatalf("register_client: %v", err)
	}
	reg := res.(*service.RegisteredCredential)

	res, err = env.Dispatcher.DispatchName(ctx, "authenticate", dispatch.Args{
		"client_id":     reg.ClientID,
		"client_secret": reg.ClientSecret,
		"app_id":        "scheduler",
	})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	tok := res.(*service.TokenResponse)
	if tok.TokenType != "Bearer" || tok.Scope != "read:patients" {
		t.Errorf("token response = %+v", tok)
	}

	res, err = env.Dispatcher.DispatchName(ctx, "validate_token", dispatch.Args{"access_token": tok.AccessToken})
	if err != nil {
		t.Fatalf("validate_token: %v", err)
	}
	if v := res.(*service.Validation); !v.Valid || v.Role != "nurse" {
		t.Errorf("validation = %+v", v)
	}

	_, err = env.Dispatcher.DispatchName(ctx, "authenticate", dispatch.Args{
		"client_id":     reg.ClientID,
		"client_secret": "wrong",
		"app_id":        "scheduler",
	})
	if dispatch.Message(err) != "Invalid client credentials" {
		t.Errorf("bad secret message = %q", dispatch.Message(err))
	}
}

func TestValidateTokenReportsInvalid(t *testing.T) {
	env := dispatchtest.New(t, dispatch.Options{})
	res, err := env.Dispatcher.Dispatch(context.Background(), dispatch.OpValidateToken, dispatch.Args{"access_token": "garbage"})
	if err != nil {
		t.Fatalf("validate_token: %v", err)
	}
	if v := res.(*service.Validation); v.Valid || v.Error != "Invalid token" {
		t.Errorf("validation = %+v", v)
	}
}

type countingRecords struct {
	dispatch.Records
	calls int
}

func (c *countingRecords) GetPatient(ctx context.Context, mrn string) (*records.PatientResponse, error) {
	c.calls++
	return c.Records.GetPatient(ctx, mrn)
}

func TestTokenCheckedBeforeHandler(t *testing.T) {
	env := dispatchtest.New(t, dispatch.Options{})
	spy := &countingRecords{Records: env.Records}
	d := dispatch.New(env.Auth, spy, dispatch.Options{})
	ctx := context.Background()

	_, err := d.Dispatch(ctx, dispatch.OpGetPatient, dispatch.Args{"mrn": dispatchtest.PatientMRN})
	if !errors.Is(err, dispatch.ErrMissingToken) || dispatch.Message(err) != "Access token required" {
		t.Errorf("missing token err = %v", err)
	}

	_, err = d.Dispatch(ctx, dispatch.OpGetPatient, dispatch.Args{"mrn": dispatchtest.PatientMRN, "access_token": "not.a.jwt"})
	if !errors.Is(err, dispatch.ErrUnauthorized) || dispatch.Message(err) != "Invalid token: Invalid token" {
		t.Errorf("bad token err = %v (%q)", err, dispatch.Message(err))
	}
	if spy.calls != 0 {
		t.Fatalf("handler ran %d times without a valid token", spy.calls)
	}

	tok := env.Token(t, "doctor", "read:patients")
	res, err := d.Dispatch(ctx, dispatch.OpGetPatient, dispatch.Args{"mrn": dispatchtest.PatientMRN, "access_token": tok})
	if err != nil {
		t.Fatalf("get_patient: %v", err)
	}
	if spy.calls != 1 || res.(*records.PatientResponse).Patient.MRN != dispatchtest.PatientMRN {
		t.Errorf("calls = %d, res = %+v", spy.calls, res)
	}
}

func TestBearerTokenFromContext(t *testing.T) {
	env := dispatchtest.New(t, dispatch.Options{})
	tok := env.Token(t, "doctor")
	ctx := dispatch.WithBearerToken(context.Background(), tok)

	if _, err := env.Dispatcher.DispatchName(ctx, "search_providers", dispatch.Args{"search_term": "cardio"}); err != nil {
		t.Errorf("search_providers with bearer: %v", err)
	}
	if dispatch.BearerToken(context.Background()) != "" {
		t.Error("empty context should carry no token")
	}
}

func TestScopeEnforcement(t *testing.T) {
	env := dispatchtest.New(t, dispatch.Options{EnforceScopes: true})
	ctx := context.Background()
	args := func(tok string) dispatch.Args {
		return dispatch.Args{"access_token": tok, "mrn": dispatchtest.PatientMRN}
	}

	nurse := env.Token(t, "nurse", "read:patients", "read:vitals")
	if _, err := env.Dispatcher.Dispatch(ctx, dispatch.OpGetVitalSigns, args(nurse)); err != nil {
		t.Errorf("nurse get_vital_signs: %v", err)
	}
	_, err := env.Dispatcher.Dispatch(ctx, dispatch.OpPrescribeMedication, dispatch.Args{
		"access_token": nurse, "mrn": dispatchtest.PatientMRN,
		"medication_name": "Lisinopril", "dosage": "10mg", "frequency": "daily",
	})
	if !errors.Is(err, dispatch.ErrForbidden) {
		t.Errorf("nurse prescribe err = %v", err)
	}

	admin := env.Token(t, "admin")
	if _, err := env.Dispatcher.Dispatch(ctx, dispatch.OpGetAllergies, args(admin)); err != nil {
		t.Errorf("admin bypass: %v", err)
	}

	// Without enforcement any valid token reaches every handler.
	open := dispatchtest.New(t, dispatch.Options{})
	patient := open.Token(t, "patient")
	if _, err := open.Dispatcher.Dispatch(ctx, dispatch.OpGetMedications, args(patient)); err != nil {
		t.Errorf("unenforced get_medications: %v", err)
	}
}

func TestRecordOperations(t *testing.T) {
	env := dispatchtest.New(t, dispatch.Options{})
	ctx := context.Background()
	tok := env.Token(t, "doctor")
	call := func(name string, args dispatch.Args) (interface{}, error) {
		args["access_token"] = tok
		return env.Dispatcher.DispatchName(ctx, name, args)
	}

	res, err := call("schedule_appointment", dispatch.Args{
		"mrn": dispatchtest.PatientMRN, "provider_npi": dispatchtest.ProviderNPI,
		"date": "2026-06-01", "time": "10:30", "reason": "Follow-up",
	})
	if err != nil {
		t.Fatalf("schedule_appointment: %v", err)
	}
	if res.(*records.ScheduleResponse).Appointment.Department != "Cardiology" {
		t.Errorf("appointment = %+v", res)
	}
	_, err = call("schedule_appointment", dispatch.Args{
		"mrn": dispatchtest.PatientMRN, "provider_npi": dispatchtest.ProviderNPI,
		"date": "2026-06-01", "time": "10:30",
	})
	if dispatch.Message(err) != "Time slot already booked" {
		t.Errorf("double booking message = %q", dispatch.Message(err))
	}

	res, err = call("prescribe_medication", dispatch.Args{
		"mrn": dispatchtest.PatientMRN, "medication_name": "Lisinopril",
		"dosage": "10mg", "frequency": "once daily", "refills": float64(2),
	})
	if err != nil {
		t.Fatalf("prescribe_medication: %v", err)
	}
	res, _ = call("get_medications", dispatch.Args{"mrn": dispatchtest.PatientMRN})
	if meds := res.(*records.MedicationsResponse); len(meds.Medications) != 1 || meds.Medications[0].RefillsRemaining != 2 {
		t.Errorf("medications = %+v", meds)
	}

	res, err = call("record_vital_signs", dispatch.Args{
		"mrn": dispatchtest.PatientMRN, "systolic_bp": float64(120), "diastolic_bp": float64(80),
		"weight": float64(150), "height": float64(65),
	})
	if err != nil {
		t.Fatalf("record_vital_signs: %v", err)
	}
	if bmi := res.(*records.RecordVitalsResponse).BMI; bmi == nil || *bmi != 25.0 {
		t.Errorf("BMI = %v", bmi)
	}
	_, err = call("record_vital_signs", dispatch.Args{"mrn": dispatchtest.PatientMRN, "heart_rate": "fast"})
	if !errors.Is(err, records.ErrInvalidArgument) {
		t.Errorf("bad heart_rate err = %v", err)
	}

	_, err = call("get_patient", dispatch.Args{"mrn": "MRN999999"})
	if dispatch.Message(err) != "Patient with MRN MRN999999 not found" {
		t.Errorf("not found message = %q", dispatch.Message(err))
	}
	_, err = call("get_provider", dispatch.Args{})
	if dispatch.Message(err) != "Missing required parameter: npi" {
		t.Errorf("missing npi message = %q", dispatch.Message(err))
	}
}

func TestMetricsRecorded(t *testing.T) {
	m := telemetry.New("test", "none", nil)
	env := dispatchtest.New(t, dispatch.Options{Metrics: m})
	ctx := context.Background()

	env.Dispatcher.Dispatch(ctx, dispatch.OpGetPatient, dispatch.Args{"mrn": dispatchtest.PatientMRN})
	tok := env.Token(t, "doctor")
	env.Dispatcher.Dispatch(ctx, dispatch.OpGetPatient, dispatch.Args{"mrn": dispatchtest.PatientMRN, "access_token": tok})

	count, err := testutil.GatherAndCount(m.Registry(), "ehrgate_operations_total")
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if count != 2 {
		t.Errorf("operation series = %d, want 2 (success and unauthorized)", count)
	}
}

func TestMessageHidesInternalErrors(t *testing.T) {
	err := errors.New("pq: connection refused at 10.0.0.5")
	if dispatch.Message(err) != "Internal error" || !dispatch.IsInternal(err) {
		t.Errorf("Message = %q", dispatch.Message(err))
	}
	doc := dispatch.NewErrorDocument("get_patient", records.ErrSlotTaken)
	if doc.Status != "error" || doc.Tool != "get_patient" || doc.Message != "Time slot already booked" {
		t.Errorf("doc = %+v", doc)
	}
	if dispatch.IsInternal(records.ErrSlotTaken) {
		t.Error("user error reported as internal")
	}
}
