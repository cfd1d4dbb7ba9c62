package records

import (
	"context"
	"fmt"
	"strings"

	"github.com/ehrgate/ehrgate/internal/model"
)

// Address is the postal address block of a patient document.
type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// Insurance is the coverage block of a patient document.
type Insurance struct {
	Provider     string `json:"provider"`
	PolicyNumber string `json:"policy_number"`
	GroupNumber  string `json:"group_number,omitempty"`
}

// PatientDetail is the full patient view. The SSN is never included.
type PatientDetail struct {
	MRN       string     `json:"mrn"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	DOB       string     `json:"dob"`
	Gender    string     `json:"gender"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	Address   Address    `json:"address"`
	Insurance *Insurance `json:"insurance"`
}

// PatientResponse is returned by GetPatient.
type PatientResponse struct {
	Status  string        `json:"status"`
	Patient PatientDetail `json:"patient"`
}

// PatientSummary is one search hit.
type PatientSummary struct {
	MRN   string `json:"mrn"`
	Name  string `json:"name"`
	DOB   string `json:"dob"`
	Email string `json:"email"`
}

// PatientSearchResponse is returned by SearchPatients.
type PatientSearchResponse struct {
	Status   string           `json:"status"`
	Count    int              `json:"count"`
	Patients []PatientSummary `json:"patients"`
}

// NewPatient holds the arguments of CreatePatient.
type NewPatient struct {
	FirstName string
	LastName  string
	DOB       string
	Gender    string
	Email     string
	Phone     string
}

// CreatedPatient is the short patient view returned after creation.
type CreatedPatient struct {
	MRN       string `json:"mrn"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	DOB       string `json:"dob"`
}

// CreatePatientResponse is returned by CreatePatient.
type CreatePatientResponse struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Patient CreatedPatient `json:"patient"`
}

// GetPatient returns the patient with the given MRN.
func (s *Service) GetPatient(ctx context.Context, mrn string) (*PatientResponse, error) {
	p, err := s.patient(ctx, mrn)
	if err != nil {
		return nil, err
	}

	detail := PatientDetail{
		MRN:       p.MRN,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		DOB:       p.DOB,
		Gender:    p.Gender,
		Email:     p.Email,
		Phone:     p.Phone,
		Address: Address{
			Street: p.Street,
			City:   p.City,
			State:  p.State,
			Zip:    p.ZipCode,
		},
	}
	if p.InsuranceProvider != "" {
		detail.Insurance = &Insurance{
			Provider:     p.InsuranceProvider,
			PolicyNumber: p.PolicyNumber,
			GroupNumber:  p.GroupNumber,
		}
	}
	return &PatientResponse{Status: model.StatusSuccess, Patient: detail}, nil
}

// SearchPatients finds up to PatientSearchLimit patients whose first name,
// last name, or MRN contains term, ignoring case.
func (s *Service) SearchPatients(ctx context.Context, term string) (*PatientSearchResponse, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, invalid("search_term is required")
	}
	patients, err := s.store.SearchPatients(ctx, term, PatientSearchLimit)
	if err != nil {
		return nil, err
	}

	hits := make([]PatientSummary, 0, len(patients))
	for _, p := range patients {
		hits = append(hits, PatientSummary{
			MRN:   p.MRN,
			Name:  p.FullName(),
			DOB:   p.DOB,
			Email: p.Email,
		})
	}
	return &PatientSearchResponse{Status: model.StatusSuccess, Count: len(hits), Patients: hits}, nil
}

// CreatePatient registers a new patient under a generated MRN.
func (s *Service) CreatePatient(ctx context.Context, in NewPatient) (*CreatePatientResponse, error) {
	first, err := required("first_name", in.FirstName)
	if err != nil {
		return nil, err
	}
	last, err := required("last_name", in.LastName)
	if err != nil {
		return nil, err
	}
	dob, err := parseDate("dob", in.DOB)
	if err != nil {
		return nil, err
	}

	p := &model.Patient{
		FirstName: first,
		LastName:  last,
		DOB:       dob,
		Gender:    strings.TrimSpace(in.Gender),
		Email:     strings.TrimSpace(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
	}
	err = s.withID("MRN", func(id string) error {
		p.MRN = id
		return s.store.CreatePatient(ctx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}

	s.logger.Info("patient created", "mrn", p.MRN)
	return &CreatePatientResponse{
		Status:  model.StatusSuccess,
		Message: "Patient created successfully",
		Patient: CreatedPatient{MRN: p.MRN, FirstName: p.FirstName, LastName: p.LastName, DOB: p.DOB},
	}, nil
}

// ---------------------------------------------------------------------------
// Providers
// ---------------------------------------------------------------------------

// ProviderDetail is the full provider view.
type ProviderDetail struct {
	NPI                  string `json:"npi"`
	Name                 string `json:"name"`
	Specialty            string `json:"specialty"`
	Department           string `json:"department"`
	Phone                string `json:"phone"`
	Email                string `json:"email"`
	AcceptingNewPatients bool   `json:"accepting_new_patients"`
}

// ProviderResponse is returned by GetProvider.
type ProviderResponse struct {
	Status   string         `json:"status"`
	Provider ProviderDetail `json:"provider"`
}

// ProviderSummary is one provider search hit.
type ProviderSummary struct {
	NPI       string `json:"npi"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

// ProviderSearchResponse is returned by SearchProviders.
type ProviderSearchResponse struct {
	Status    string            `json:"status"`
	Count     int               `json:"count"`
	Providers []ProviderSummary `json:"providers"`
}

// GetProvider returns the provider with the given NPI.
func (s *Service) GetProvider(ctx context.Context, npi string) (*ProviderResponse, error) {
	p, err := s.provider(ctx, npi)
	if err != nil {
		return nil, err
	}
	return &ProviderResponse{
		Status: model.StatusSuccess,
		Provider: ProviderDetail{
			NPI:                  p.NPI,
			Name:                 p.Name,
			Specialty:            p.Specialty,
			Department:           p.Department,
			Phone:                p.Phone,
			Email:                p.Email,
			AcceptingNewPatients: p.AcceptingNewPatients,
		},
	}, nil
}

// SearchProviders finds up to ProviderSearchLimit providers whose name or
// specialty contains term, ignoring case.
func (s *Service) SearchProviders(ctx context.Context, term string) (*ProviderSearchResponse, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, invalid("search_term is required")
	}
	providers, err := s.store.SearchProviders(ctx, term, ProviderSearchLimit)
	if err != nil {
		return nil, err
	}

	hits := make([]ProviderSummary, 0, len(providers))
	for _, p := range providers {
		hits = append(hits, ProviderSummary{
			NPI:       p.NPI,
			Name:      p.Name,
			Specialty: p.Specialty,
			Phone:     p.Phone,
			Email:     p.Email,
		})
	}
	return &ProviderSearchResponse{Status: model.StatusSuccess, Count: len(hits), Providers: hits}, nil
}
