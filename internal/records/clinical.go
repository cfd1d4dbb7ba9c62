package records

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ehrgate/ehrgate/internal/model"
)

// Defaults applied to prescriptions and vitals entered through the gateway.
const (
	DefaultRoute      = "Oral"
	DefaultPrescriber = "Current Provider"
	DefaultRecorder   = "Current User"
)

// ---------------------------------------------------------------------------
// Medications
// ---------------------------------------------------------------------------

// MedicationView is one active prescription.
type MedicationView struct {
	MedicationID     string `json:"medication_id"`
	Name             string `json:"name"`
	Dosage           string `json:"dosage"`
	Frequency        string `json:"frequency"`
	Route            string `json:"route"`
	PrescribedDate   string `json:"prescribed_date"`
	Prescriber       string `json:"prescriber"`
	RefillsRemaining int    `json:"refills_remaining"`
}

// MedicationsResponse is returned by GetMedications.
type MedicationsResponse struct {
	Status      string           `json:"status"`
	MRN         string           `json:"mrn"`
	Medications []MedicationView `json:"medications"`
}

// NewPrescription holds the arguments of PrescribeMedication.
type NewPrescription struct {
	MRN            string
	MedicationName string
	Dosage         string
	Frequency      string
	Refills        int
}

// PrescribedMedication is the short view returned after prescribing.
type PrescribedMedication struct {
	MedicationID string `json:"medication_id"`
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	Frequency    string `json:"frequency"`
}

// PrescribeResponse is returned by PrescribeMedication.
type PrescribeResponse struct {
	Status     string               `json:"status"`
	Message    string               `json:"message"`
	Medication PrescribedMedication `json:"medication"`
}

// GetMedications lists a patient's active medications.
func (s *Service) GetMedications(ctx context.Context, mrn string) (*MedicationsResponse, error) {
	p, err := s.patient(ctx, mrn)
	if err != nil {
		return nil, err
	}
	meds, err := s.store.ListActiveMedications(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	views := make([]MedicationView, 0, len(meds))
	for _, m := range meds {
		views = append(views, MedicationView{
			MedicationID:     m.MedicationID,
			Name:             m.Name,
			Dosage:           m.Dosage,
			Frequency:        m.Frequency,
			Route:            m.Route,
			PrescribedDate:   m.PrescribedDate,
			Prescriber:       m.Prescriber,
			RefillsRemaining: m.RefillsRemaining,
		})
	}
	return &MedicationsResponse{Status: model.StatusSuccess, MRN: p.MRN, Medications: views}, nil
}

// PrescribeMedication records an active oral prescription dated today.
func (s *Service) PrescribeMedication(ctx context.Context, in NewPrescription) (*PrescribeResponse, error) {
	p, err := s.patient(ctx, in.MRN)
	if err != nil {
		return nil, err
	}
	name, err := required("medication_name", in.MedicationName)
	if err != nil {
		return nil, err
	}
	dosage, err := required("dosage", in.Dosage)
	if err != nil {
		return nil, err
	}
	freq, err := required("frequency", in.Frequency)
	if err != nil {
		return nil, err
	}
	if in.Refills < 0 {
		return nil, invalid("refills must not be negative")
	}

	m := &model.Medication{
		PatientID:        p.ID,
		Name:             name,
		Dosage:           dosage,
		Frequency:        freq,
		Route:            DefaultRoute,
		PrescribedDate:   s.today(),
		Prescriber:       DefaultPrescriber,
		Status:           model.StatusActive,
		RefillsRemaining: in.Refills,
	}
	err = s.withID("MED", func(id string) error {
		m.MedicationID = id
		return s.store.CreateMedication(ctx, m)
	})
	if err != nil {
		return nil, fmt.Errorf("prescribe medication: %w", err)
	}

	s.logger.Info("medication prescribed", "medication_id", m.MedicationID, "mrn", p.MRN)
	return &PrescribeResponse{
		Status:  model.StatusSuccess,
		Message: "Medication prescribed successfully",
		Medication: PrescribedMedication{
			MedicationID: m.MedicationID,
			Name:         m.Name,
			Dosage:       m.Dosage,
			Frequency:    m.Frequency,
		},
	}, nil
}

// ---------------------------------------------------------------------------
// Lab results
// ---------------------------------------------------------------------------

// LabResultView is one lab order with its decoded analytes.
type LabResultView struct {
	OrderID      string          `json:"order_id"`
	TestName     string          `json:"test_name"`
	OrderedDate  string          `json:"ordered_date"`
	ResultedDate *string         `json:"resulted_date"`
	Status       string          `json:"status"`
	Results      json.RawMessage `json:"results"`
}

// LabResultsResponse is returned by GetLabResults.
type LabResultsResponse struct {
	Status     string          `json:"status"`
	MRN        string          `json:"mrn"`
	LabResults []LabResultView `json:"lab_results"`
}

// GetLabResults lists a patient's lab orders, most recently resulted first.
func (s *Service) GetLabResults(ctx context.Context, mrn string) (*LabResultsResponse, error) {
	p, err := s.patient(ctx, mrn)
	if err != nil {
		return nil, err
	}
	labs, err := s.store.ListLabResults(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	views := make([]LabResultView, 0, len(labs))
	for _, l := range labs {
		views = append(views, LabResultView{
			OrderID:      l.OrderID,
			TestName:     l.TestName,
			OrderedDate:  l.OrderedDate,
			ResultedDate: l.ResultedDate,
			Status:       l.Status,
			Results:      decodeResults(l.ResultsJSON),
		})
	}
	return &LabResultsResponse{Status: model.StatusSuccess, MRN: p.MRN, LabResults: views}, nil
}

// decodeResults returns the stored analyte list, or an empty list when the
// column is blank or not valid JSON.
func decodeResults(raw string) json.RawMessage {
	raw = strings.TrimSpace(raw)
	if raw == "" || !json.Valid([]byte(raw)) {
		return json.RawMessage("[]")
	}
	return json.RawMessage(raw)
}

// ---------------------------------------------------------------------------
// Vital signs
// ---------------------------------------------------------------------------

// VitalSignView is one set of vitals.
type VitalSignView struct {
	RecordedDate     string   `json:"recorded_date"`
	BloodPressure    *string  `json:"blood_pressure"`
	HeartRate        *int64   `json:"heart_rate"`
	Temperature      *float64 `json:"temperature"`
	RespiratoryRate  *int64   `json:"respiratory_rate"`
	OxygenSaturation *float64 `json:"oxygen_saturation"`
	Weight           *float64 `json:"weight"`
	Height           *float64 `json:"height"`
	BMI              *float64 `json:"bmi"`
	RecordedBy       string   `json:"recorded_by"`
}

// VitalSignsResponse is returned by GetVitalSigns.
type VitalSignsResponse struct {
	Status     string          `json:"status"`
	MRN        string          `json:"mrn"`
	VitalSigns []VitalSignView `json:"vital_signs"`
}

// NewVitalSigns holds the arguments of RecordVitalSigns. Every measurement
// is optional. Weight is in pounds and height in inches.
type NewVitalSigns struct {
	MRN              string
	SystolicBP       *int64
	DiastolicBP      *int64
	HeartRate        *int64
	Temperature      *float64
	RespiratoryRate  *int64
	OxygenSaturation *float64
	Weight           *float64
	Height           *float64
	Notes            string
}

// RecordVitalsResponse is returned by RecordVitalSigns.
type RecordVitalsResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	BMI     *float64 `json:"bmi,omitempty"`
}

// GetVitalSigns returns the patient's VitalSignsLimit most recent vitals.
func (s *Service) GetVitalSigns(ctx context.Context, mrn string) (*VitalSignsResponse, error) {
	p, err := s.patient(ctx, mrn)
	if err != nil {
		return nil, err
	}
	vitals, err := s.store.ListVitalSigns(ctx, p.ID, VitalSignsLimit)
	if err != nil {
		return nil, err
	}

	views := make([]VitalSignView, 0, len(vitals))
	for _, v := range vitals {
		views = append(views, VitalSignView{
			RecordedDate:     v.RecordedAt.Format(time.RFC3339),
			BloodPressure:    bloodPressure(v.SystolicBP, v.DiastolicBP),
			HeartRate:        v.HeartRate,
			Temperature:      v.Temperature,
			RespiratoryRate:  v.RespiratoryRate,
			OxygenSaturation: v.OxygenSaturation,
			Weight:           v.Weight,
			Height:           v.Height,
			BMI:              v.BMI,
			RecordedBy:       v.RecordedBy,
		})
	}
	return &VitalSignsResponse{Status: model.StatusSuccess, MRN: p.MRN, VitalSigns: views}, nil
}

func bloodPressure(systolic, diastolic *int64) *string {
	if systolic == nil || diastolic == nil {
		return nil
	}
	bp := fmt.Sprintf("%d/%d", *systolic, *diastolic)
	return &bp
}

// RecordVitalSigns stores a new set of vitals taken now. BMI is derived
// when both weight and height are given.
func (s *Service) RecordVitalSigns(ctx context.Context, in NewVitalSigns) (*RecordVitalsResponse, error) {
	p, err := s.patient(ctx, in.MRN)
	if err != nil {
		return nil, err
	}
	for name, v := range map[string]*float64{"weight": in.Weight, "height": in.Height, "temperature": in.Temperature} {
		if v != nil && *v <= 0 {
			return nil, invalid("%s must be positive", name)
		}
	}

	v := &model.VitalSign{
		PatientID:        p.ID,
		RecordedAt:       s.now(),
		SystolicBP:       in.SystolicBP,
		DiastolicBP:      in.DiastolicBP,
		HeartRate:        in.HeartRate,
		Temperature:      in.Temperature,
		RespiratoryRate:  in.RespiratoryRate,
		OxygenSaturation: in.OxygenSaturation,
		Weight:           in.Weight,
		Height:           in.Height,
		RecordedBy:       DefaultRecorder,
		Notes:            strings.TrimSpace(in.Notes),
	}
	if in.Weight != nil && in.Height != nil {
		bmi := BMI(*in.Weight, *in.Height)
		v.BMI = &bmi
	}
	if err := s.store.CreateVitalSign(ctx, v); err != nil {
		return nil, fmt.Errorf("record vital signs: %w", err)
	}

	return &RecordVitalsResponse{
		Status:  model.StatusSuccess,
		Message: "Vital signs recorded successfully",
		BMI:     v.BMI,
	}, nil
}

// BMI computes body-mass index from pounds and inches, rounded to one
// decimal place.
func BMI(weightLbs, heightIn float64) float64 {
	heightM := heightIn * 0.0254
	weightKg := weightLbs * 0.453592
	return math.Round(weightKg/(heightM*heightM)*10) / 10
}

// ---------------------------------------------------------------------------
// Allergies
// ---------------------------------------------------------------------------

// AllergyView is one active allergy.
type AllergyView struct {
	Allergen  string  `json:"allergen"`
	Reaction  string  `json:"reaction"`
	Severity  string  `json:"severity"`
	OnsetDate *string `json:"onset_date"`
}

// AllergiesResponse is returned by GetAllergies.
type AllergiesResponse struct {
	Status    string        `json:"status"`
	MRN       string        `json:"mrn"`
	Allergies []AllergyView `json:"allergies"`
}

// GetAllergies lists a patient's active allergies.
func (s *Service) GetAllergies(ctx context.Context, mrn string) (*AllergiesResponse, error) {
	p, err := s.patient(ctx, mrn)
	if err != nil {
		return nil, err
	}
	allergies, err := s.store.ListActiveAllergies(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	views := make([]AllergyView, 0, len(allergies))
	for _, a := range allergies {
		views = append(views, AllergyView{
			Allergen:  a.Allergen,
			Reaction:  a.Reaction,
			Severity:  a.Severity,
			OnsetDate: a.OnsetDate,
		})
	}
	return &AllergiesResponse{Status: model.StatusSuccess, MRN: p.MRN, Allergies: views}, nil
}
