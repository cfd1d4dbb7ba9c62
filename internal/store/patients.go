package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/ehrgate/ehrgate/internal/model"
)

// ---------------------------------------------------------------------------
// Patients
// ---------------------------------------------------------------------------

const patientColumns = `id, mrn, first_name, last_name, dob, gender, ssn, email, phone,
	street, city, state, zip_code, insurance_provider, policy_number, group_number,
	emergency_contact_name, emergency_contact_relationship, emergency_contact_phone,
	created_at, updated_at`

// GetPatientByMRN looks a patient up by medical record number.
func (s *Store) GetPatientByMRN(ctx context.Context, mrn string) (*model.Patient, error) {
	var p model.Patient
	if err := s.get(ctx, &p, `SELECT `+patientColumns+` FROM patients WHERE mrn = ?`, mrn); err != nil {
		return nil, s.wrap("get patient", err)
	}
	return &p, nil
}

// SearchPatients matches query case-insensitively against first name, last
// name, and MRN, returning at most limit rows.
func (s *Store) SearchPatients(ctx context.Context, query string, limit int) ([]model.Patient, error) {
	like := "%" + strings.ToLower(query) + "%"
	patients := []model.Patient{}
	err := s.sel(ctx, &patients, `SELECT `+patientColumns+` FROM patients
		WHERE LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(mrn) LIKE ?
		ORDER BY last_name, first_name, id
		LIMIT ?`, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("search patients: %w", err)
	}
	return patients, nil
}

// CreatePatient inserts a patient and sets its ID and timestamps.
func (s *Store) CreatePatient(ctx context.Context, p *model.Patient) error {
	now := s.timestamp()
	p.CreatedAt, p.UpdatedAt = now, now

	id, err := s.insert(ctx, `INSERT INTO patients (mrn, first_name, last_name, dob, gender, ssn,
		email, phone, street, city, state, zip_code, insurance_provider, policy_number, group_number,
		emergency_contact_name, emergency_contact_relationship, emergency_contact_phone,
		created_at, updated_at)
		VALUES (:mrn, :first_name, :last_name, :dob, :gender, :ssn, :email, :phone, :street, :city,
		:state, :zip_code, :insurance_provider, :policy_number, :group_number,
		:emergency_contact_name, :emergency_contact_relationship, :emergency_contact_phone,
		:created_at, :updated_at)`, p)
	if err != nil {
		return s.wrap("create patient", err)
	}
	p.ID = id
	return nil
}

// ---------------------------------------------------------------------------
// Providers
// ---------------------------------------------------------------------------

const providerColumns = `id, npi, name, specialty, department, phone, email,
	accepting_new_patients, created_at`

// GetProviderByNPI looks a provider up by National Provider Identifier.
func (s *Store) GetProviderByNPI(ctx context.Context, npi string) (*model.Provider, error) {
	var p model.Provider
	if err := s.get(ctx, &p, `SELECT `+providerColumns+` FROM providers WHERE npi = ?`, npi); err != nil {
		return nil, s.wrap("get provider", err)
	}
	return &p, nil
}

// SearchProviders matches query case-insensitively against name and
// specialty, returning at most limit rows.
func (s *Store) SearchProviders(ctx context.Context, query string, limit int) ([]model.Provider, error) {
	like := "%" + strings.ToLower(query) + "%"
	providers := []model.Provider{}
	err := s.sel(ctx, &providers, `SELECT `+providerColumns+` FROM providers
		WHERE LOWER(name) LIKE ? OR LOWER(specialty) LIKE ?
		ORDER BY name, id
		LIMIT ?`, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("search providers: %w", err)
	}
	return providers, nil
}

// CreateProvider inserts a provider and sets its ID and CreatedAt.
func (s *Store) CreateProvider(ctx context.Context, p *model.Provider) error {
	p.CreatedAt = s.timestamp()
	id, err := s.insert(ctx, `INSERT INTO providers (npi, name, specialty, department, phone, email,
		accepting_new_patients, created_at)
		VALUES (:npi, :name, :specialty, :department, :phone, :email,
		:accepting_new_patients, :created_at)`, p)
	if err != nil {
		return s.wrap("create provider", err)
	}
	p.ID = id
	return nil
}
