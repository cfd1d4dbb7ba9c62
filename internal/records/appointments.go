package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ehrgate/ehrgate/internal/model"
	"github.com/ehrgate/ehrgate/internal/store"
)

// Defaults applied to appointments booked through ScheduleAppointment.
const (
	DefaultAppointmentType     = "Office Visit"
	DefaultAppointmentLocation = "Main Clinic"
	DefaultAppointmentDuration = 30
)

// AppointmentView is one appointment in a listing.
type AppointmentView struct {
	AppointmentID string `json:"appointment_id"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Type          string `json:"type"`
	Provider      string `json:"provider"`
	Department    string `json:"department"`
	Location      string `json:"location"`
	Status        string `json:"status"`
	Reason        string `json:"reason"`
}

// AppointmentsResponse is returned by GetAppointments.
type AppointmentsResponse struct {
	Status       string            `json:"status"`
	MRN          string            `json:"mrn"`
	Appointments []AppointmentView `json:"appointments"`
}

// NewAppointment holds the arguments of ScheduleAppointment.
type NewAppointment struct {
	MRN         string
	ProviderNPI string
	Date        string
	Time        string
	Reason      string
}

// ScheduledAppointment is the short view returned after booking.
type ScheduledAppointment struct {
	AppointmentID string `json:"appointment_id"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Provider      string `json:"provider"`
	Department    string `json:"department"`
}

// ScheduleResponse is returned by ScheduleAppointment.
type ScheduleResponse struct {
	Status      string               `json:"status"`
	Message     string               `json:"message"`
	Appointment ScheduledAppointment `json:"appointment"`
}

// GetAppointments lists a patient's appointments, newest first. An empty
// status or "all" returns every status.
func (s *Service) GetAppointments(ctx context.Context, mrn, status string) (*AppointmentsResponse, error) {
	p, err := s.patient(ctx, mrn)
	if err != nil {
		return nil, err
	}
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "all" {
		status = ""
	}

	appts, err := s.store.ListAppointments(ctx, p.ID, status)
	if err != nil {
		return nil, err
	}

	views := make([]AppointmentView, 0, len(appts))
	for _, a := range appts {
		views = append(views, AppointmentView{
			AppointmentID: a.AppointmentID,
			Date:          a.Date,
			Time:          a.Time,
			Type:          a.Type,
			Provider:      a.ProviderName,
			Department:    a.Department,
			Location:      a.Location,
			Status:        a.Status,
			Reason:        a.Reason,
		})
	}
	return &AppointmentsResponse{Status: model.StatusSuccess, MRN: p.MRN, Appointments: views}, nil
}

// ScheduleAppointment books an office visit. A provider can hold only one
// scheduled appointment per date and time.
func (s *Service) ScheduleAppointment(ctx context.Context, in NewAppointment) (*ScheduleResponse, error) {
	p, err := s.patient(ctx, in.MRN)
	if err != nil {
		return nil, err
	}
	prov, err := s.provider(ctx, in.ProviderNPI)
	if err != nil {
		return nil, err
	}
	date, err := parseDate("date", in.Date)
	if err != nil {
		return nil, err
	}
	tm, err := required("time", in.Time)
	if err != nil {
		return nil, err
	}
	if _, err := time.Parse(timeLayout, tm); err != nil {
		return nil, invalid("time must be in HH:MM format")
	}

	a := &model.Appointment{
		PatientID:       p.ID,
		ProviderID:      prov.ID,
		Date:            date,
		Time:            tm,
		DurationMinutes: DefaultAppointmentDuration,
		Type:            DefaultAppointmentType,
		Department:      prov.Department,
		Location:        DefaultAppointmentLocation,
		Status:          model.AppointmentScheduled,
		Reason:          strings.TrimSpace(in.Reason),
	}
	err = s.withID("APT", func(id string) error {
		a.AppointmentID = id
		return s.store.CreateAppointment(ctx, a)
	})
	if errors.Is(err, store.ErrSlotTaken) {
		return nil, ErrSlotTaken
	}
	if err != nil {
		return nil, fmt.Errorf("schedule appointment: %w", err)
	}

	s.logger.Info("appointment scheduled", "appointment_id", a.AppointmentID, "mrn", p.MRN, "npi", prov.NPI)
	return &ScheduleResponse{
		Status:  model.StatusSuccess,
		Message: "Appointment scheduled successfully",
		Appointment: ScheduledAppointment{
			AppointmentID: a.AppointmentID,
			Date:          a.Date,
			Time:          a.Time,
			Provider:      prov.Name,
			Department:    a.Department,
		},
	}, nil
}
