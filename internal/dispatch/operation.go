// Package dispatch maps operation names to record-access handlers and puts
// token validation in front of every handler that needs it.
package dispatch

// Operation identifies one callable operation.
type Operation int

const (
	OpAuthenticate Operation = iota + 1
	OpRegisterClient
	OpValidateToken
	OpGetPatient
	OpSearchPatients
	OpCreatePatient
	OpGetAppointments
	OpScheduleAppointment
	OpGetMedications
	OpPrescribeMedication
	OpGetLabResults
	OpGetVitalSigns
	OpRecordVitalSigns
	OpGetAllergies
	OpSearchProviders
	OpGetProvider
)

// Parameter types as they appear in input schemas.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeArray   = "array"
)

// Param describes one operation argument.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

// Definition is the static description of an operation.
type Definition struct {
	Op           Operation `json:"-"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Params       []Param   `json:"params"`
	ReadOnly     bool      `json:"read_only"`
	RequiresAuth bool      `json:"requires_auth"`
	Scope        string    `json:"scope,omitempty"`
}

func (op Operation) String() string {
	if d, ok := definitionByOp[op]; ok {
		return d.Name
	}
	return "unknown"
}

// Definition returns the static description of op.
func (op Operation) Definition() (Definition, bool) {
	d, ok := definitionByOp[op]
	return d, ok
}

// ParseOperation resolves a wire name to its Operation.
func ParseOperation(name string) (Operation, error) {
	if d, ok := definitionByName[name]; ok {
		return d.Op, nil
	}
	return 0, unknownOperation(name)
}

// Definitions returns every operation definition in declaration order.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// InputSchema renders d's parameters as a JSON Schema object.
func (d Definition) InputSchema() map[string]interface{} {
	props := make(map[string]interface{}, len(d.Params))
	required := []string{}
	for _, p := range d.Params {
		prop := map[string]interface{}{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Type == TypeArray {
			prop["items"] = map[string]interface{}{"type": TypeString}
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

var (
	definitionByOp   = map[Operation]Definition{}
	definitionByName = map[string]Definition{}
)

func init() {
	for _, d := range definitions {
		definitionByOp[d.Op] = d
		definitionByName[d.Name] = d
	}
}

var tokenParam = Param{Name: "access_token", Type: TypeString, Required: true, Description: "Bearer access token from authenticate"}

func mrnParam() Param {
	return Param{Name: "mrn", Type: TypeString, Required: true, Description: "Patient medical record number"}
}

var definitions = []Definition{
	{
		Op:          OpAuthenticate,
		Name:        "authenticate",
		Description: "Exchange client credentials for a signed access token.",
		Params: []Param{
			{Name: "client_id", Type: TypeString, Required: true, Description: "Client identifier issued at registration"},
			{Name: "client_secret", Type: TypeString, Required: true, Description: "Client secret issued at registration"},
			{Name: "app_id", Type: TypeString, Required: true, Description: "Application identifier the client was registered for"},
		},
	},
	{
		Op:          OpRegisterClient,
		Name:        "register_client",
		Description: "Register a new client application. The secret is returned once and cannot be retrieved again.",
		Params: []Param{
			{Name: "app_id", Type: TypeString, Required: true, Description: "Unique application identifier"},
			{Name: "app_name", Type: TypeString, Required: true, Description: "Human-readable application name"},
			{Name: "role", Type: TypeString, Required: true, Description: "One of doctor, nurse, patient, admin, system"},
			{Name: "scopes", Type: TypeArray, Required: true, Description: "Permission scopes granted to the client"},
			{Name: "description", Type: TypeString, Description: "Application description"},
			{Name: "contact_email", Type: TypeString, Description: "Contact email for the application owner"},
		},
	},
	{
		Op:          OpValidateToken,
		Name:        "validate_token",
		Description: "Check whether an access token is valid and report its claims.",
		ReadOnly:    true,
		Params:      []Param{{Name: "access_token", Type: TypeString, Required: true, Description: "Access token to validate"}},
	},
	{
		Op:           OpGetPatient,
		Name:         "get_patient",
		Description:  "Get demographics, address, and insurance for a patient by MRN.",
		ReadOnly:     true,
		RequiresAuth: true,
		Scope:        "read:patients",
		Params:       []Param{tokenParam, mrnParam()},
	},
	{
		Op:           OpSearchPatients,
		Name:         "search_patients",
		Description:  "Search patients by first name, last name, or MRN.",
		ReadOnly:     true,
		RequiresAuth: true,
		Scope:        "read:patients",
		Params: []Param{
			tokenParam,
			{Name: "search_term", Type: TypeString, Required: true, Description: "Case-insensitive text to match"},
		},
	},
	{
		Op:           OpCreatePatient,
		Name:         "create_patient",
		Description:  "Create a patient record and assign a new MRN.",
		RequiresAuth: true,
		Scope:        "write:patients",
		Params: []Param{
			tokenParam,
			{Name: "first_name", Type: TypeString, Required: true, Description: "Given name"},
			{Name: "last_name", Type: TypeString, Required: true, Description: "Family name"},
			{Name: "dob", Type: TypeString, Required: true, Description: "Date of birth, YYYY-MM-DD"},
			{Name: "gender", Type: TypeString, Description: "Gender"},
			{Name: "email", Type: TypeString, Description: "Email address"},
			{Name: "phone", Type: TypeString, Description: "Phone number"},
		},
	},
	{
		Op:           OpGetAppointments,
		Name:         "get_appointments",
		Description:  "List a patient's appointments, newest first.",
		ReadOnly:     true,
		RequiresAuth: true,
		Scope:        "read:appointments",
		Params: []Param{
			tokenParam,
			mrnParam(),
			{Name: "status", Type: TypeString, Description: "scheduled, completed, cancelled, or all"},
		},
	},
	{
		Op:           OpScheduleAppointment,
		Name:         "schedule_appointment",
		Description:  "Book an appointment with a provider. Fails if the provider already has that slot booked.",
		RequiresAuth: true,
		Scope:        "write:appointments",
		Params: []Param{
			tokenParam,
			mrnParam(),
			{Name: "provider_npi", Type: TypeString, Required: true, Description: "Provider NPI"},
			{Name: "date", Type: TypeString, Required: true, Description: "Appointment date, YYYY-MM-DD"},
			{Name: "time", Type: TypeString, Required: true, Description: "Appointment time, HH:MM"},
			{Name: "reason", Type: TypeString, Description: "Reason for the visit"},
		},
	},
	{
		Op:           OpGetMedications,
		Name:         "get_medications",
		Description:  "List a patient's active medications.",
		ReadOnly:     true,
		RequiresAuth: true,
		Scope:        "read:medications",
		Params:       []Param{tokenParam, mrnParam()},
	},
	{
		Op:           OpPrescribeMedication,
		Name:         "prescribe_medication",
		Description:  "Prescribe a medication to a patient.",
		RequiresAuth: true,
		Scope:        "write:medications",
		Params: []Param{
			tokenParam,
			mrnParam(),
			{Name: "medication_name", Type: TypeString, Required: true, Description: "Medication name"},
			{Name: "dosage", Type: TypeString, Required: true, Description: "Dosage, e.g. 10mg"},
			{Name: "frequency", Type: TypeString, Required: true, Description: "Frequency, e.g. once daily"},
			{Name: "refills", Type: TypeInteger, Description: "Number of refills, default 0"},
		},
	},
	{
		Op:           OpGetLabResults,
		Name:         "get_lab_results",
		Description:  "List a patient's lab results, most recently resulted first.",
		ReadOnly:     true,
		RequiresAuth: true,
		Scope:        "read:labs",
		Params:       []Param{tokenParam, mrnParam()},
	},
	{
		Op:           OpGetVitalSigns,
		Name:         "get_vital_signs",
		Description:  "Get a patient's ten most recent vital sign readings.",
		ReadOnly:     true,
		RequiresAuth: true,
		Scope:        "read:vitals",
		Params:       []Param{tokenParam, mrnParam()},
	},
	{
		Op:           OpRecordVitalSigns,
		Name:         "record_vital_signs",
		Description:  "Record a vital sign reading. BMI is computed when weight and height are both given.",
		RequiresAuth: true,
		Scope:        "write:vitals",
		Params: []Param{
			tokenParam,
			mrnParam(),
			{Name: "systolic_bp", Type: TypeInteger, Description: "Systolic blood pressure, mmHg"},
			{Name: "diastolic_bp", Type: TypeInteger, Description: "Diastolic blood pressure, mmHg"},
			{Name: "heart_rate", Type: TypeInteger, Description: "Heart rate, bpm"},
			{Name: "temperature", Type: TypeNumber, Description: "Body temperature, °F"},
			{Name: "respiratory_rate", Type: TypeInteger, Description: "Breaths per minute"},
			{Name: "oxygen_saturation", Type: TypeNumber, Description: "SpO2 percentage"},
			{Name: "weight", Type: TypeNumber, Description: "Weight in pounds"},
			{Name: "height", Type: TypeNumber, Description: "Height in inches"},
			{Name: "notes", Type: TypeString, Description: "Free-text notes"},
		},
	},
	{
		Op:           OpGetAllergies,
		Name:         "get_allergies",
		Description:  "List a patient's active allergies.",
		ReadOnly:     true,
		RequiresAuth: true,
		Scope:        "read:allergies",
		Params:       []Param{tokenParam, mrnParam()},
	},
	{
		Op:           OpSearchProviders,
		Name:         "search_providers",
		Description:  "Search providers by name or specialty.",
		ReadOnly:     true,
		RequiresAuth: true,
		Scope:        "read:providers",
		Params: []Param{
			tokenParam,
			{Name: "search_term", Type: TypeString, Required: true, Description: "Case-insensitive text to match"},
		},
	},
	{
		Op:           OpGetProvider,
		Name:         "get_provider",
		Description:  "Get a provider's details by NPI.",
		ReadOnly:     true,
		RequiresAuth: true,
		Scope:        "read:providers",
		Params: []Param{
			tokenParam,
			{Name: "npi", Type: TypeString, Required: true, Description: "Provider NPI"},
		},
	},
}
