package store

import (
	"fmt"
	"strings"
)

func (s *Store) migrate() error {
	types := s.conn.ColumnTypes()
	r := strings.NewReplacer(
		"{{pk}}", types.PrimaryKey,
		"{{bool}}", types.Bool,
		"{{ts}}", types.Timestamp,
		"{{float}}", types.Float,
		"{{text}}", types.Text,
	)

	// Column defaults are avoided on TEXT and boolean columns because
	// MySQL and PostgreSQL disagree on them; inserts always set every column.
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS oauth_clients (
			id {{pk}},
			client_id VARCHAR(100) NOT NULL UNIQUE,
			client_secret_hash VARCHAR(256) NOT NULL,
			app_id VARCHAR(100) NOT NULL,
			app_name VARCHAR(200) NOT NULL,
			scopes {{text}} NOT NULL,
			role VARCHAR(20) NOT NULL,
			description {{text}} NOT NULL,
			contact_email VARCHAR(200) NOT NULL,
			is_active {{bool}} NOT NULL,
			rate_limit INTEGER NOT NULL,
			created_at {{ts}} NOT NULL,
			last_used {{ts}} NULL
		)`,

		`CREATE TABLE IF NOT EXISTS patients (
			id {{pk}},
			mrn VARCHAR(20) NOT NULL UNIQUE,
			first_name VARCHAR(100) NOT NULL,
			last_name VARCHAR(100) NOT NULL,
			dob VARCHAR(10) NOT NULL,
			gender VARCHAR(20) NOT NULL,
			ssn VARCHAR(11) NOT NULL,
			email VARCHAR(100) NOT NULL,
			phone VARCHAR(20) NOT NULL,
			street VARCHAR(200) NOT NULL,
			city VARCHAR(100) NOT NULL,
			state VARCHAR(50) NOT NULL,
			zip_code VARCHAR(10) NOT NULL,
			insurance_provider VARCHAR(100) NOT NULL,
			policy_number VARCHAR(50) NOT NULL,
			group_number VARCHAR(50) NOT NULL,
			emergency_contact_name VARCHAR(100) NOT NULL,
			emergency_contact_relationship VARCHAR(50) NOT NULL,
			emergency_contact_phone VARCHAR(20) NOT NULL,
			created_at {{ts}} NOT NULL,
			updated_at {{ts}} NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS providers (
			id {{pk}},
			npi VARCHAR(20) NOT NULL UNIQUE,
			name VARCHAR(100) NOT NULL,
			specialty VARCHAR(100) NOT NULL,
			department VARCHAR(100) NOT NULL,
			phone VARCHAR(20) NOT NULL,
			email VARCHAR(100) NOT NULL,
			accepting_new_patients {{bool}} NOT NULL,
			created_at {{ts}} NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS appointments (
			id {{pk}},
			appointment_id VARCHAR(20) NOT NULL UNIQUE,
			patient_id BIGINT NOT NULL,
			provider_id BIGINT NOT NULL,
			appt_date VARCHAR(10) NOT NULL,
			appt_time VARCHAR(10) NOT NULL,
			duration_minutes INTEGER NOT NULL,
			appointment_type VARCHAR(50) NOT NULL,
			department VARCHAR(100) NOT NULL,
			location VARCHAR(200) NOT NULL,
			status VARCHAR(20) NOT NULL,
			reason {{text}} NOT NULL,
			notes {{text}} NOT NULL,
			created_at {{ts}} NOT NULL,
			FOREIGN KEY (patient_id) REFERENCES patients(id),
			FOREIGN KEY (provider_id) REFERENCES providers(id)
		)`,

		`CREATE TABLE IF NOT EXISTS medications (
			id {{pk}},
			medication_id VARCHAR(20) NOT NULL UNIQUE,
			patient_id BIGINT NOT NULL,
			name VARCHAR(200) NOT NULL,
			dosage VARCHAR(100) NOT NULL,
			frequency VARCHAR(100) NOT NULL,
			route VARCHAR(50) NOT NULL,
			prescribed_date VARCHAR(10) NOT NULL,
			prescriber VARCHAR(100) NOT NULL,
			status VARCHAR(20) NOT NULL,
			refills_remaining INTEGER NOT NULL,
			notes {{text}} NOT NULL,
			created_at {{ts}} NOT NULL,
			FOREIGN KEY (patient_id) REFERENCES patients(id)
		)`,

		`CREATE TABLE IF NOT EXISTS allergies (
			id {{pk}},
			patient_id BIGINT NOT NULL,
			allergen VARCHAR(200) NOT NULL,
			reaction {{text}} NOT NULL,
			severity VARCHAR(20) NOT NULL,
			onset_date VARCHAR(10) NULL,
			status VARCHAR(20) NOT NULL,
			notes {{text}} NOT NULL,
			created_at {{ts}} NOT NULL,
			FOREIGN KEY (patient_id) REFERENCES patients(id)
		)`,

		`CREATE TABLE IF NOT EXISTS lab_results (
			id {{pk}},
			order_id VARCHAR(20) NOT NULL UNIQUE,
			patient_id BIGINT NOT NULL,
			test_name VARCHAR(200) NOT NULL,
			ordered_date VARCHAR(10) NOT NULL,
			collected_date VARCHAR(10) NULL,
			resulted_date VARCHAR(10) NULL,
			status VARCHAR(20) NOT NULL,
			ordered_by VARCHAR(100) NOT NULL,
			results_json {{text}} NOT NULL,
			created_at {{ts}} NOT NULL,
			FOREIGN KEY (patient_id) REFERENCES patients(id)
		)`,

		`CREATE TABLE IF NOT EXISTS vital_signs (
			id {{pk}},
			patient_id BIGINT NOT NULL,
			recorded_at {{ts}} NOT NULL,
			systolic_bp INTEGER NULL,
			diastolic_bp INTEGER NULL,
			heart_rate INTEGER NULL,
			temperature {{float}} NULL,
			respiratory_rate INTEGER NULL,
			oxygen_saturation {{float}} NULL,
			weight {{float}} NULL,
			height {{float}} NULL,
			bmi {{float}} NULL,
			recorded_by VARCHAR(100) NOT NULL,
			notes {{text}} NOT NULL,
			FOREIGN KEY (patient_id) REFERENCES patients(id)
		)`,

		s.conn.CreateIndexSQL("idx_oauth_clients_app", "oauth_clients", "client_id", "app_id"),
		s.conn.CreateIndexSQL("idx_patients_name", "patients", "last_name", "first_name"),
		s.conn.CreateIndexSQL("idx_appointments_patient", "appointments", "patient_id"),
		s.conn.CreateIndexSQL("idx_appointments_slot", "appointments", "provider_id", "appt_date", "appt_time"),
		s.conn.CreateIndexSQL("idx_medications_patient", "medications", "patient_id"),
		s.conn.CreateIndexSQL("idx_allergies_patient", "allergies", "patient_id"),
		s.conn.CreateIndexSQL("idx_lab_results_patient", "lab_results", "patient_id"),
		s.conn.CreateIndexSQL("idx_vital_signs_patient", "vital_signs", "patient_id", "recorded_at"),
	}

	for _, m := range migrations {
		stmt := r.Replace(m)
		if _, err := s.db.Exec(stmt); err != nil {
			if s.conn.IsIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}
