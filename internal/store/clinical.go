package store

import (
	"context"
	"fmt"

	"github.com/ehrgate/ehrgate/internal/model"
)

// ---------------------------------------------------------------------------
// Medications
// ---------------------------------------------------------------------------

const medicationColumns = `id, medication_id, patient_id, name, dosage, frequency, route,
	prescribed_date, prescriber, status, refills_remaining, notes, created_at`

// ListActiveMedications returns a patient's active prescriptions, most
// recently prescribed first.
func (s *Store) ListActiveMedications(ctx context.Context, patientID int64) ([]model.Medication, error) {
	meds := []model.Medication{}
	err := s.sel(ctx, &meds, `SELECT `+medicationColumns+` FROM medications
		WHERE patient_id = ? AND status = ?
		ORDER BY prescribed_date DESC, id DESC`, patientID, model.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	return meds, nil
}

// CreateMedication inserts a prescription.
func (s *Store) CreateMedication(ctx context.Context, m *model.Medication) error {
	m.CreatedAt = s.timestamp()
	id, err := s.insert(ctx, `INSERT INTO medications (medication_id, patient_id, name, dosage,
		frequency, route, prescribed_date, prescriber, status, refills_remaining, notes, created_at)
		VALUES (:medication_id, :patient_id, :name, :dosage, :frequency, :route, :prescribed_date,
		:prescriber, :status, :refills_remaining, :notes, :created_at)`, m)
	if err != nil {
		return s.wrap("create medication", err)
	}
	m.ID = id
	return nil
}

// ---------------------------------------------------------------------------
// Allergies
// ---------------------------------------------------------------------------

const allergyColumns = `id, patient_id, allergen, reaction, severity, onset_date, status, notes, created_at`

// ListActiveAllergies returns a patient's active allergies.
func (s *Store) ListActiveAllergies(ctx context.Context, patientID int64) ([]model.Allergy, error) {
	allergies := []model.Allergy{}
	err := s.sel(ctx, &allergies, `SELECT `+allergyColumns+` FROM allergies
		WHERE patient_id = ? AND status = ?
		ORDER BY allergen, id`, patientID, model.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("list allergies: %w", err)
	}
	return allergies, nil
}

// CreateAllergy inserts an allergy record.
func (s *Store) CreateAllergy(ctx context.Context, a *model.Allergy) error {
	a.CreatedAt = s.timestamp()
	id, err := s.insert(ctx, `INSERT INTO allergies (patient_id, allergen, reaction, severity,
		onset_date, status, notes, created_at)
		VALUES (:patient_id, :allergen, :reaction, :severity, :onset_date, :status, :notes, :created_at)`, a)
	if err != nil {
		return s.wrap("create allergy", err)
	}
	a.ID = id
	return nil
}

// ---------------------------------------------------------------------------
// Lab results
// ---------------------------------------------------------------------------

const labColumns = `id, order_id, patient_id, test_name, ordered_date, collected_date,
	resulted_date, status, ordered_by, results_json, created_at`

// ListLabResults returns a patient's lab orders, most recently resulted
// first. Orders without a result date sort last.
func (s *Store) ListLabResults(ctx context.Context, patientID int64) ([]model.LabResult, error) {
	labs := []model.LabResult{}
	err := s.sel(ctx, &labs, `SELECT `+labColumns+` FROM lab_results
		WHERE patient_id = ?
		ORDER BY CASE WHEN resulted_date IS NULL THEN 1 ELSE 0 END, resulted_date DESC, ordered_date DESC, id DESC`,
		patientID)
	if err != nil {
		return nil, fmt.Errorf("list lab results: %w", err)
	}
	return labs, nil
}

// CreateLabResult inserts a lab order. An empty ResultsJSON is stored as "[]".
func (s *Store) CreateLabResult(ctx context.Context, l *model.LabResult) error {
	l.CreatedAt = s.timestamp()
	if l.ResultsJSON == "" {
		l.ResultsJSON = "[]"
	}
	id, err := s.insert(ctx, `INSERT INTO lab_results (order_id, patient_id, test_name, ordered_date,
		collected_date, resulted_date, status, ordered_by, results_json, created_at)
		VALUES (:order_id, :patient_id, :test_name, :ordered_date, :collected_date, :resulted_date,
		:status, :ordered_by, :results_json, :created_at)`, l)
	if err != nil {
		return s.wrap("create lab result", err)
	}
	l.ID = id
	return nil
}

// ---------------------------------------------------------------------------
// Vital signs
// ---------------------------------------------------------------------------

const vitalColumns = `id, patient_id, recorded_at, systolic_bp, diastolic_bp, heart_rate,
	temperature, respiratory_rate, oxygen_saturation, weight, height, bmi, recorded_by, notes`

// ListVitalSigns returns up to limit of a patient's most recent vitals.
func (s *Store) ListVitalSigns(ctx context.Context, patientID int64, limit int) ([]model.VitalSign, error) {
	vitals := []model.VitalSign{}
	err := s.sel(ctx, &vitals, `SELECT `+vitalColumns+` FROM vital_signs
		WHERE patient_id = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list vital signs: %w", err)
	}
	return vitals, nil
}

// CreateVitalSign inserts a set of vitals. A zero RecordedAt is set to now.
func (s *Store) CreateVitalSign(ctx context.Context, v *model.VitalSign) error {
	if v.RecordedAt.IsZero() {
		v.RecordedAt = s.timestamp()
	} else {
		v.RecordedAt = v.RecordedAt.UTC()
	}
	id, err := s.insert(ctx, `INSERT INTO vital_signs (patient_id, recorded_at, systolic_bp, diastolic_bp,
		heart_rate, temperature, respiratory_rate, oxygen_saturation, weight, height, bmi,
		recorded_by, notes)
		VALUES (:patient_id, :recorded_at, :systolic_bp, :diastolic_bp, :heart_rate, :temperature,
		:respiratory_rate, :oxygen_saturation, :weight, :height, :bmi, :recorded_by, :notes)`, v)
	if err != nil {
		return s.wrap("create vital sign", err)
	}
	v.ID = id
	return nil
}
