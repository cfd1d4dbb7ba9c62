package model

import "time"

// Appointment statuses.
const (
	AppointmentScheduled = "scheduled"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
)

// StatusActive marks medications and allergies that are currently in effect.
const StatusActive = "active"

// Appointment is a scheduled visit between a patient and a provider.
// ProviderName is populated by joined reads only.
type Appointment struct {
	ID              int64     `json:"id" db:"id" yaml:"-"`
	AppointmentID   string    `json:"appointment_id" db:"appointment_id" yaml:"appointment_id"`
	PatientID       int64     `json:"patient_id" db:"patient_id" yaml:"-"`
	ProviderID      int64     `json:"provider_id" db:"provider_id" yaml:"-"`
	Date            string    `json:"date" db:"appt_date" yaml:"date"` // YYYY-MM-DD
	Time            string    `json:"time" db:"appt_time" yaml:"time"` // HH:MM
	DurationMinutes int       `json:"duration_minutes" db:"duration_minutes" yaml:"duration_minutes"`
	Type            string    `json:"type" db:"appointment_type" yaml:"type"`
	Department      string    `json:"department" db:"department" yaml:"department"`
	Location        string    `json:"location" db:"location" yaml:"location"`
	Status          string    `json:"status" db:"status" yaml:"status"`
	Reason          string    `json:"reason" db:"reason" yaml:"reason"`
	Notes           string    `json:"notes" db:"notes" yaml:"notes"`
	CreatedAt       time.Time `json:"created_at" db:"created_at" yaml:"-"`
	ProviderName    string    `json:"provider,omitempty" db:"provider_name" yaml:"-"`
}

// Medication is a prescription issued to a patient.
type Medication struct {
	ID               int64     `json:"id" db:"id" yaml:"-"`
	MedicationID     string    `json:"medication_id" db:"medication_id" yaml:"medication_id"`
	PatientID        int64     `json:"patient_id" db:"patient_id" yaml:"-"`
	Name             string    `json:"name" db:"name" yaml:"name"`
	Dosage           string    `json:"dosage" db:"dosage" yaml:"dosage"`
	Frequency        string    `json:"frequency" db:"frequency" yaml:"frequency"`
	Route            string    `json:"route" db:"route" yaml:"route"`
	PrescribedDate   string    `json:"prescribed_date" db:"prescribed_date" yaml:"prescribed_date"`
	Prescriber       string    `json:"prescriber" db:"prescriber" yaml:"prescriber"`
	Status           string    `json:"status" db:"status" yaml:"status"`
	RefillsRemaining int       `json:"refills_remaining" db:"refills_remaining" yaml:"refills_remaining"`
	Notes            string    `json:"notes" db:"notes" yaml:"notes"`
	CreatedAt        time.Time `json:"created_at" db:"created_at" yaml:"-"`
}

// Allergy is a recorded allergen and the patient's reaction to it.
type Allergy struct {
	ID        int64     `json:"id" db:"id" yaml:"-"`
	PatientID int64     `json:"patient_id" db:"patient_id" yaml:"-"`
	Allergen  string    `json:"allergen" db:"allergen" yaml:"allergen"`
	Reaction  string    `json:"reaction" db:"reaction" yaml:"reaction"`
	Severity  string    `json:"severity" db:"severity" yaml:"severity"` // mild, moderate, severe
	OnsetDate *string   `json:"onset_date" db:"onset_date" yaml:"onset_date"`
	Status    string    `json:"status" db:"status" yaml:"status"`
	Notes     string    `json:"notes" db:"notes" yaml:"notes"`
	CreatedAt time.Time `json:"created_at" db:"created_at" yaml:"-"`
}

// LabResult is one ordered laboratory test. ResultsJSON holds the raw
// analyte list as a JSON array.
type LabResult struct {
	ID            int64     `json:"id" db:"id" yaml:"-"`
	OrderID       string    `json:"order_id" db:"order_id" yaml:"order_id"`
	PatientID     int64     `json:"patient_id" db:"patient_id" yaml:"-"`
	TestName      string    `json:"test_name" db:"test_name" yaml:"test_name"`
	OrderedDate   string    `json:"ordered_date" db:"ordered_date" yaml:"ordered_date"`
	CollectedDate *string   `json:"collected_date" db:"collected_date" yaml:"collected_date"`
	ResultedDate  *string   `json:"resulted_date" db:"resulted_date" yaml:"resulted_date"`
	Status        string    `json:"status" db:"status" yaml:"status"` // pending, in_progress, final
	OrderedBy     string    `json:"ordered_by" db:"ordered_by" yaml:"ordered_by"`
	ResultsJSON   string    `json:"-" db:"results_json" yaml:"-"`
	CreatedAt     time.Time `json:"created_at" db:"created_at" yaml:"-"`
}

// VitalSign is one set of vitals taken at RecordedAt. Every measurement is
// optional. Weight is in pounds and height in inches.
type VitalSign struct {
	ID               int64     `json:"id" db:"id" yaml:"-"`
	PatientID        int64     `json:"patient_id" db:"patient_id" yaml:"-"`
	RecordedAt       time.Time `json:"recorded_date" db:"recorded_at" yaml:"recorded_at"`
	SystolicBP       *int64    `json:"systolic_bp" db:"systolic_bp" yaml:"systolic_bp"`
	DiastolicBP      *int64    `json:"diastolic_bp" db:"diastolic_bp" yaml:"diastolic_bp"`
	HeartRate        *int64    `json:"heart_rate" db:"heart_rate" yaml:"heart_rate"`
	Temperature      *float64  `json:"temperature" db:"temperature" yaml:"temperature"`
	RespiratoryRate  *int64    `json:"respiratory_rate" db:"respiratory_rate" yaml:"respiratory_rate"`
	OxygenSaturation *float64  `json:"oxygen_saturation" db:"oxygen_saturation" yaml:"oxygen_saturation"`
	Weight           *float64  `json:"weight" db:"weight" yaml:"weight"`
	Height           *float64  `json:"height" db:"height" yaml:"height"`
	BMI              *float64  `json:"bmi" db:"bmi" yaml:"bmi"`
	RecordedBy       string    `json:"recorded_by" db:"recorded_by" yaml:"recorded_by"`
	Notes            string    `json:"notes" db:"notes" yaml:"notes"`
}
