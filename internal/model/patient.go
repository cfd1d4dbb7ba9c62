package model

import "time"

// Patient is a person receiving care, identified by a medical record number
// (MRN). The SSN is persisted for matching but never serialized.
type Patient struct {
	ID                           int64     `json:"id" db:"id" yaml:"-"`
	MRN                          string    `json:"mrn" db:"mrn" yaml:"mrn"`
	FirstName                    string    `json:"first_name" db:"first_name" yaml:"first_name"`
	LastName                     string    `json:"last_name" db:"last_name" yaml:"last_name"`
	DOB                          string    `json:"dob" db:"dob" yaml:"dob"` // YYYY-MM-DD
	Gender                       string    `json:"gender" db:"gender" yaml:"gender"`
	SSN                          string    `json:"-" db:"ssn" yaml:"ssn"`
	Email                        string    `json:"email" db:"email" yaml:"email"`
	Phone                        string    `json:"phone" db:"phone" yaml:"phone"`
	Street                       string    `json:"street" db:"street" yaml:"street"`
	City                         string    `json:"city" db:"city" yaml:"city"`
	State                        string    `json:"state" db:"state" yaml:"state"`
	ZipCode                      string    `json:"zip_code" db:"zip_code" yaml:"zip_code"`
	InsuranceProvider            string    `json:"insurance_provider" db:"insurance_provider" yaml:"insurance_provider"`
	PolicyNumber                 string    `json:"policy_number" db:"policy_number" yaml:"policy_number"`
	GroupNumber                  string    `json:"group_number" db:"group_number" yaml:"group_number"`
	EmergencyContactName         string    `json:"emergency_contact_name" db:"emergency_contact_name" yaml:"emergency_contact_name"`
	EmergencyContactRelationship string    `json:"emergency_contact_relationship" db:"emergency_contact_relationship" yaml:"emergency_contact_relationship"`
	EmergencyContactPhone        string    `json:"emergency_contact_phone" db:"emergency_contact_phone" yaml:"emergency_contact_phone"`
	CreatedAt                    time.Time `json:"created_at" db:"created_at" yaml:"-"`
	UpdatedAt                    time.Time `json:"updated_at" db:"updated_at" yaml:"-"`
}

// FullName returns "First Last".
func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Provider is a clinician identified by a National Provider Identifier (NPI).
type Provider struct {
	ID                   int64     `json:"id" db:"id" yaml:"-"`
	NPI                  string    `json:"npi" db:"npi" yaml:"npi"`
	Name                 string    `json:"name" db:"name" yaml:"name"`
	Specialty            string    `json:"specialty" db:"specialty" yaml:"specialty"`
	Department           string    `json:"department" db:"department" yaml:"department"`
	Phone                string    `json:"phone" db:"phone" yaml:"phone"`
	Email                string    `json:"email" db:"email" yaml:"email"`
	AcceptingNewPatients bool      `json:"accepting_new_patients" db:"accepting_new_patients" yaml:"accepting_new_patients"`
	CreatedAt            time.Time `json:"created_at" db:"created_at" yaml:"-"`
}
