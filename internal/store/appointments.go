package store

import (
	"context"
	"fmt"

	"github.com/ehrgate/ehrgate/internal/model"
)

// ---------------------------------------------------------------------------
// Appointments
// ---------------------------------------------------------------------------

// ListAppointments returns a patient's appointments joined with the
// provider's name, newest first. An empty status returns every status.
func (s *Store) ListAppointments(ctx context.Context, patientID int64, status string) ([]model.Appointment, error) {
	query := `SELECT a.id, a.appointment_id, a.patient_id, a.provider_id, a.appt_date, a.appt_time,
		a.duration_minutes, a.appointment_type, a.department, a.location, a.status, a.reason,
		a.notes, a.created_at, p.name AS provider_name
		FROM appointments a
		JOIN providers p ON p.id = a.provider_id
		WHERE a.patient_id = ?`
	args := []interface{}{patientID}
	if status != "" {
		query += ` AND a.status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY a.appt_date DESC, a.appt_time DESC, a.id DESC`

	appts := []model.Appointment{}
	if err := s.sel(ctx, &appts, query, args...); err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// HasScheduledAppointment reports whether providerID already has a
// scheduled appointment at date and time.
func (s *Store) HasScheduledAppointment(ctx context.Context, providerID int64, date, tm string) (bool, error) {
	var n int
	err := s.get(ctx, &n, `SELECT COUNT(*) FROM appointments
		WHERE provider_id = ? AND appt_date = ? AND appt_time = ? AND status = ?`,
		providerID, date, tm, model.AppointmentScheduled)
	if err != nil {
		return false, fmt.Errorf("check appointment slot: %w", err)
	}
	return n > 0, nil
}

// CreateAppointment inserts an appointment. When the appointment is
// scheduled, the slot check and the insert share one transaction and a
// conflicting booking fails with ErrSlotTaken.
func (s *Store) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	a.CreatedAt = s.timestamp()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if a.Status == model.AppointmentScheduled {
		var n int
		err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM appointments
			WHERE provider_id = ? AND appt_date = ? AND appt_time = ? AND status = ?`),
			a.ProviderID, a.Date, a.Time, model.AppointmentScheduled)
		if err != nil {
			return fmt.Errorf("check appointment slot: %w", err)
		}
		if n > 0 {
			return ErrSlotTaken
		}
	}

	id, err := s.insertWith(ctx, tx, `INSERT INTO appointments (appointment_id, patient_id, provider_id,
		appt_date, appt_time, duration_minutes, appointment_type, department, location, status,
		reason, notes, created_at)
		VALUES (:appointment_id, :patient_id, :provider_id, :appt_date, :appt_time, :duration_minutes,
		:appointment_type, :department, :location, :status, :reason, :notes, :created_at)`, a)
	if err != nil {
		return s.wrap("create appointment", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit appointment: %w", err)
	}
	a.ID = id
	return nil
}
