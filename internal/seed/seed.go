// Package seed loads demo and test records from a YAML fixtures file.
//
// Child records (appointments, medications, allergies, vitals, labs) refer
// to their patient by MRN and, for appointments, to the provider by NPI.
// Loading is idempotent for records: providers and patients that already
// exist are skipped, and so are the child records of a skipped patient.
// Client credentials are registered on every load.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ehrgate/ehrgate/internal/model"
	"github.com/ehrgate/ehrgate/internal/records"
	"github.com/ehrgate/ehrgate/internal/service"
	"github.com/ehrgate/ehrgate/internal/store"
)

// Fixtures is the top-level layout of a fixtures file.
type Fixtures struct {
	Clients      []Client         `yaml:"clients"`
	Providers    []model.Provider `yaml:"providers"`
	Patients     []model.Patient  `yaml:"patients"`
	Appointments []Appointment    `yaml:"appointments"`
	Medications  []Medication     `yaml:"medications"`
	Allergies    []Allergy        `yaml:"allergies"`
	VitalSigns   []VitalSign      `yaml:"vitals"`
	LabResults   []LabResult      `yaml:"labs"`
}

// Client describes a credential to register.
type Client struct {
	AppID        string   `yaml:"app_id"`
	AppName      string   `yaml:"app_name"`
	Role         string   `yaml:"role"`
	Scopes       []string `yaml:"scopes"`
	Description  string   `yaml:"description"`
	ContactEmail string   `yaml:"contact_email"`
}

type Appointment struct {
	PatientMRN        string `yaml:"patient_mrn"`
	ProviderNPI       string `yaml:"provider_npi"`
	model.Appointment `yaml:",inline"`
}

type Medication struct {
	PatientMRN       string `yaml:"patient_mrn"`
	model.Medication `yaml:",inline"`
}

type Allergy struct {
	PatientMRN    string `yaml:"patient_mrn"`
	model.Allergy `yaml:",inline"`
}

type VitalSign struct {
	PatientMRN      string `yaml:"patient_mrn"`
	model.VitalSign `yaml:",inline"`
}

// LabResult carries its analytes as free-form YAML, stored as JSON.
type LabResult struct {
	PatientMRN      string      `yaml:"patient_mrn"`
	Results         interface{} `yaml:"results"`
	model.LabResult `yaml:",inline"`
}

// Parse decodes fixtures from r. Unknown keys are rejected.
func Parse(r io.Reader) (*Fixtures, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f Fixtures
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return &f, nil
}

// ParseFile reads and decodes a fixtures file.
func ParseFile(path string) (*Fixtures, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixtures: %w", err)
	}
	defer fh.Close()
	return Parse(fh)
}

// Store is the subset of the record store the loader writes through.
type Store interface {
	GetPatientByMRN(ctx context.Context, mrn string) (*model.Patient, error)
	CreatePatient(ctx context.Context, p *model.Patient) error
	GetProviderByNPI(ctx context.Context, npi string) (*model.Provider, error)
	CreateProvider(ctx context.Context, p *model.Provider) error
	CreateAppointment(ctx context.Context, a *model.Appointment) error
	CreateMedication(ctx context.Context, m *model.Medication) error
	CreateAllergy(ctx context.Context, a *model.Allergy) error
	CreateLabResult(ctx context.Context, l *model.LabResult) error
	CreateVitalSign(ctx context.Context, v *model.VitalSign) error
}

// Registrar issues client credentials.
type Registrar interface {
	RegisterCredential(ctx context.Context, reg service.Registration) (*service.RegisteredCredential, error)
}

// Summary counts what a load inserted. Clients holds the registered
// credentials, the only time their secrets are available.
type Summary struct {
	Providers    int                             `json:"providers"`
	Patients     int                             `json:"patients"`
	Appointments int                             `json:"appointments"`
	Medications  int                             `json:"medications"`
	Allergies    int                             `json:"allergies"`
	VitalSigns   int                             `json:"vitals"`
	LabResults   int                             `json:"labs"`
	Skipped      int                             `json:"skipped"`
	Clients      []*service.RegisteredCredential `json:"clients,omitempty"`
}

// Loader writes fixtures into a store.
type Loader struct {
	store     Store
	registrar Registrar
	logger    *slog.Logger
}

// NewLoader returns a Loader. registrar may be nil when fixtures carry no
// clients.
func NewLoader(st Store, registrar Registrar, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{store: st, registrar: registrar, logger: logger}
}

// Load inserts f. It stops at the first failing record.
func (l *Loader) Load(ctx context.Context, f *Fixtures) (*Summary, error) {
	sum := &Summary{}

	providers := make(map[string]int64)
	for i := range f.Providers {
		p := f.Providers[i]
		existing, err := l.store.GetProviderByNPI(ctx, p.NPI)
		switch {
		case err == nil:
			providers[p.NPI] = existing.ID
			sum.Skipped++
			continue
		case !errors.Is(err, store.ErrNotFound):
			return sum, fmt.Errorf("provider %s: %w", p.NPI, err)
		}
		if err := l.store.CreateProvider(ctx, &p); err != nil {
			return sum, fmt.Errorf("provider %s: %w", p.NPI, err)
		}
		providers[p.NPI] = p.ID
		sum.Providers++
	}

	// Only patients created by this load receive child records.
	patients := make(map[string]int64)
	for i := range f.Patients {
		p := f.Patients[i]
		_, err := l.store.GetPatientByMRN(ctx, p.MRN)
		switch {
		case err == nil:
			sum.Skipped++
			continue
		case !errors.Is(err, store.ErrNotFound):
			return sum, fmt.Errorf("patient %s: %w", p.MRN, err)
		}
		if err := l.store.CreatePatient(ctx, &p); err != nil {
			return sum, fmt.Errorf("patient %s: %w", p.MRN, err)
		}
		patients[p.MRN] = p.ID
		sum.Patients++
	}

	if err := l.loadRecords(ctx, f, patients, providers, sum); err != nil {
		return sum, err
	}

	for _, c := range f.Clients {
		if l.registrar == nil {
			return sum, fmt.Errorf("client %s: no registrar configured", c.AppID)
		}
		cred, err := l.registrar.RegisterCredential(ctx, service.Registration{
			AppID:        c.AppID,
			AppName:      c.AppName,
			Role:         c.Role,
			Scopes:       c.Scopes,
			Description:  c.Description,
			ContactEmail: c.ContactEmail,
		})
		if err != nil {
			return sum, fmt.Errorf("client %s: %w", c.AppID, err)
		}
		sum.Clients = append(sum.Clients, cred)
	}

	l.logger.Info("fixtures loaded",
		"providers", sum.Providers,
		"patients", sum.Patients,
		"appointments", sum.Appointments,
		"medications", sum.Medications,
		"allergies", sum.Allergies,
		"vitals", sum.VitalSigns,
		"labs", sum.LabResults,
		"clients", len(sum.Clients),
		"skipped", sum.Skipped,
	)
	return sum, nil
}

func (l *Loader) loadRecords(ctx context.Context, f *Fixtures, patients, providers map[string]int64, sum *Summary) error {
	// owner reports the new patient id for mrn, counting a skip when the
	// patient was not created by this load.
	owner := func(mrn string) (int64, bool) {
		id, ok := patients[mrn]
		if !ok {
			sum.Skipped++
		}
		return id, ok
	}

	for _, a := range f.Appointments {
		pid, ok := owner(a.PatientMRN)
		if !ok {
			continue
		}
		prov, ok := providers[a.ProviderNPI]
		if !ok {
			return fmt.Errorf("appointment for %s: unknown provider %q", a.PatientMRN, a.ProviderNPI)
		}
		appt := a.Appointment
		appt.PatientID, appt.ProviderID = pid, prov
		if appt.AppointmentID == "" {
			appt.AppointmentID = records.NewRecordID("APT")
		}
		if appt.Status == "" {
			appt.Status = model.AppointmentScheduled
		}
		if err := l.store.CreateAppointment(ctx, &appt); err != nil {
			return fmt.Errorf("appointment %s: %w", appt.AppointmentID, err)
		}
		sum.Appointments++
	}

	for _, m := range f.Medications {
		pid, ok := owner(m.PatientMRN)
		if !ok {
			continue
		}
		med := m.Medication
		med.PatientID = pid
		if med.MedicationID == "" {
			med.MedicationID = records.NewRecordID("MED")
		}
		if med.Status == "" {
			med.Status = model.StatusActive
		}
		if err := l.store.CreateMedication(ctx, &med); err != nil {
			return fmt.Errorf("medication %s: %w", med.MedicationID, err)
		}
		sum.Medications++
	}

	for _, a := range f.Allergies {
		pid, ok := owner(a.PatientMRN)
		if !ok {
			continue
		}
		al := a.Allergy
		al.PatientID = pid
		if al.Status == "" {
			al.Status = model.StatusActive
		}
		if err := l.store.CreateAllergy(ctx, &al); err != nil {
			return fmt.Errorf("allergy %s for %s: %w", al.Allergen, a.PatientMRN, err)
		}
		sum.Allergies++
	}

	for _, v := range f.VitalSigns {
		pid, ok := owner(v.PatientMRN)
		if !ok {
			continue
		}
		vs := v.VitalSign
		vs.PatientID = pid
		if err := l.store.CreateVitalSign(ctx, &vs); err != nil {
			return fmt.Errorf("vitals for %s: %w", v.PatientMRN, err)
		}
		sum.VitalSigns++
	}

	for _, r := range f.LabResults {
		pid, ok := owner(r.PatientMRN)
		if !ok {
			continue
		}
		lab := r.LabResult
		lab.PatientID = pid
		if lab.OrderID == "" {
			lab.OrderID = records.NewRecordID("ORD")
		}
		if r.Results != nil {
			raw, err := json.Marshal(r.Results)
			if err != nil {
				return fmt.Errorf("lab %s results: %w", lab.OrderID, err)
			}
			lab.ResultsJSON = string(raw)
		}
		if err := l.store.CreateLabResult(ctx, &lab); err != nil {
			return fmt.Errorf("lab %s: %w", lab.OrderID, err)
		}
		sum.LabResults++
	}
	return nil
}

//go:embed demo.yaml
var demo []byte

// Demo returns the built-in demo fixtures.
func Demo() (*Fixtures, error) {
	return Parse(bytes.NewReader(demo))
}
