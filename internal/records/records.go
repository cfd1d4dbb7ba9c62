// Package records implements the clinical record handlers behind the
// gateway's operations. Each handler validates its arguments, performs one
// bounded read or one insert, and reshapes the rows into a response document.
package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehrgate/ehrgate/internal/model"
	"github.com/ehrgate/ehrgate/internal/store"
)

// Result limits.
const (
	PatientSearchLimit  = 10
	ProviderSearchLimit = 20
	VitalSignsLimit     = 10
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"

	// generated ids are retried this many times on a uniqueness collision
	idAttempts = 3
)

// Store is the storage the record handlers need.
type Store interface {
	GetPatientByMRN(ctx context.Context, mrn string) (*model.Patient, error)
	SearchPatients(ctx context.Context, query string, limit int) ([]model.Patient, error)
	CreatePatient(ctx context.Context, p *model.Patient) error

	GetProviderByNPI(ctx context.Context, npi string) (*model.Provider, error)
	SearchProviders(ctx context.Context, query string, limit int) ([]model.Provider, error)

	ListAppointments(ctx context.Context, patientID int64, status string) ([]model.Appointment, error)
	CreateAppointment(ctx context.Context, a *model.Appointment) error

	ListActiveMedications(ctx context.Context, patientID int64) ([]model.Medication, error)
	CreateMedication(ctx context.Context, m *model.Medication) error

	ListActiveAllergies(ctx context.Context, patientID int64) ([]model.Allergy, error)
	ListLabResults(ctx context.Context, patientID int64) ([]model.LabResult, error)

	ListVitalSigns(ctx context.Context, patientID int64, limit int) ([]model.VitalSign, error)
	CreateVitalSign(ctx context.Context, v *model.VitalSign) error
}

// Service runs the record handlers against a Store.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
	newID  func(prefix string) string
}

// NewService creates a record Service.
func NewService(st Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		logger: logger,
		now:    time.Now,
		newID:  NewRecordID,
	}
}

// NewRecordID returns prefix followed by six uppercase hex characters drawn
// from a random UUID, e.g. "MRN3FA91C".
func NewRecordID(prefix string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + strings.ToUpper(hex[:6])
}

// withID calls create with fresh ids until it stops reporting a duplicate.
func (s *Service) withID(prefix string, create func(id string) error) error {
	var err error
	for i := 0; i < idAttempts; i++ {
		if err = create(s.newID(prefix)); !errors.Is(err, store.ErrDuplicate) {
			return err
		}
		s.logger.Debug("generated id collided, retrying", "prefix", prefix)
	}
	return err
}

// patient resolves mrn, mapping a missing row to the not-found message.
func (s *Service) patient(ctx context.Context, mrn string) (*model.Patient, error) {
	mrn = strings.TrimSpace(mrn)
	if mrn == "" {
		return nil, invalid("mrn is required")
	}
	p, err := s.store.GetPatientByMRN(ctx, mrn)
	if errors.Is(err, store.ErrNotFound) {
		return nil, patientNotFound(mrn)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup patient: %w", err)
	}
	return p, nil
}

func (s *Service) provider(ctx context.Context, npi string) (*model.Provider, error) {
	npi = strings.TrimSpace(npi)
	if npi == "" {
		return nil, invalid("npi is required")
	}
	p, err := s.store.GetProviderByNPI(ctx, npi)
	if errors.Is(err, store.ErrNotFound) {
		return nil, providerNotFound(npi)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup provider: %w", err)
	}
	return p, nil
}

func (s *Service) today() string {
	return s.now().Format(dateLayout)
}

func required(name, value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", invalid("%s is required", name)
	}
	return v, nil
}

func parseDate(name, value string) (string, error) {
	v, err := required(name, value)
	if err != nil {
		return "", err
	}
	if _, err := time.Parse(dateLayout, v); err != nil {
		return "", invalid("%s must be a date in YYYY-MM-DD format", name)
	}
	return v, nil
}
