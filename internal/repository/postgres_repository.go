package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rongwang/vaccine-scheduler/internal/models"
)

// Repository interface defines the methods that any repository implementation must satisfy
type Repository interface {
	// Account operations
	CreatePatient(ctx context.Context, patient *models.Patient) error
	CreateCaregiver(ctx context.Context, caregiver *models.Caregiver) error
	GetPatient(ctx context.Context, username string) (*models.Patient, error)
	GetCaregiver(ctx context.Context, username string) (*models.Caregiver, error)

	// Inventory ledger operations
	GetVaccine(ctx context.Context, name string) (*models.Vaccine, error)
	ListVaccines(ctx context.Context) ([]models.Vaccine, error)
	CreateVaccine(ctx context.Context, vaccine *models.Vaccine) error
	IncreaseDoses(ctx context.Context, name string, amount int) error

	// Availability ledger operations
	PublishAvailability(ctx context.Context, caregiverUsername string, date time.Time) error
	SearchCaregivers(ctx context.Context, date time.Time) ([]string, error)

	// Appointment ledger operations
	GetAppointment(ctx context.Context, role models.Role, username string, id int64) (*models.Appointment, error)
	ListAppointments(ctx context.Context, role models.Role, username string) ([]models.Appointment, error)

	// Reservation coordinator operations; each runs as one transaction
	// spanning the availability, inventory and appointment ledgers
	ReserveAppointment(ctx context.Context, patientUsername string, date time.Time, vaccineName string) (*models.Appointment, error)
	CancelAppointment(ctx context.Context, role models.Role, username string, id int64) error
}

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// GetDB returns the underlying database connection
func (r *PostgresRepository) GetDB() *sqlx.DB {
	return r.db
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint violation
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// Account repository methods
func (r *PostgresRepository) CreatePatient(ctx context.Context, patient *models.Patient) error {
	query := `
		INSERT INTO patients (username, salt, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`

	patient.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, query,
		patient.Username, patient.Salt, patient.PasswordHash, patient.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateUsername
	}

	return err
}

func (r *PostgresRepository) CreateCaregiver(ctx context.Context, caregiver *models.Caregiver) error {
	query := `
		INSERT INTO caregivers (username, salt, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`

	caregiver.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, query,
		caregiver.Username, caregiver.Salt, caregiver.PasswordHash, caregiver.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateUsername
	}

	return err
}

func (r *PostgresRepository) GetPatient(ctx context.Context, username string) (*models.Patient, error) {
	query := `SELECT * FROM patients WHERE username = $1`

	var patient models.Patient
	err := r.db.GetContext(ctx, &patient, query, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Patient not found
		}
		return nil, err
	}

	return &patient, nil
}

func (r *PostgresRepository) GetCaregiver(ctx context.Context, username string) (*models.Caregiver, error) {
	query := `SELECT * FROM caregivers WHERE username = $1`

	var caregiver models.Caregiver
	err := r.db.GetContext(ctx, &caregiver, query, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Caregiver not found
		}
		return nil, err
	}

	return &caregiver, nil
}

// Inventory ledger methods
func (r *PostgresRepository) GetVaccine(ctx context.Context, name string) (*models.Vaccine, error) {
	query := `SELECT * FROM vaccines WHERE name = $1`

	var vaccine models.Vaccine
	err := r.db.GetContext(ctx, &vaccine, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Vaccine not found
		}
		return nil, err
	}

	return &vaccine, nil
}

func (r *PostgresRepository) ListVaccines(ctx context.Context) ([]models.Vaccine, error) {
	query := `SELECT * FROM vaccines ORDER BY name`

	var vaccines []models.Vaccine
	err := r.db.SelectContext(ctx, &vaccines, query)
	if err != nil {
		return nil, err
	}

	return vaccines, nil
}

func (r *PostgresRepository) CreateVaccine(ctx context.Context, vaccine *models.Vaccine) error {
	query := `INSERT INTO vaccines (name, doses) VALUES ($1, $2)`

	_, err := r.db.ExecContext(ctx, query, vaccine.Name, vaccine.Doses)
	if isUniqueViolation(err) {
		return ErrDuplicateVaccine
	}

	return err
}

// IncreaseDoses adds amount doses to an existing vaccine with a single
// atomic update, so concurrent additions never lose an increment.
func (r *PostgresRepository) IncreaseDoses(ctx context.Context, name string, amount int) error {
	query := `UPDATE vaccines SET doses = doses + $2 WHERE name = $1`

	res, err := r.db.ExecContext(ctx, query, name, amount)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrVaccineNotFound
	}

	return nil
}

// Availability ledger methods
func (r *PostgresRepository) PublishAvailability(ctx context.Context, caregiverUsername string, date time.Time) error {
	query := `INSERT INTO availabilities (username, time) VALUES ($1, $2)`

	_, err := r.db.ExecContext(ctx, query, caregiverUsername, date)
	if isUniqueViolation(err) {
		return ErrDuplicateSlot
	}

	return err
}

func (r *PostgresRepository) SearchCaregivers(ctx context.Context, date time.Time) ([]string, error) {
	query := `SELECT username FROM availabilities WHERE time = $1 ORDER BY username`

	var caregivers []string
	err := r.db.SelectContext(ctx, &caregivers, query, date)
	if err != nil {
		return nil, err
	}

	return caregivers, nil
}

// Appointment ledger methods
func (r *PostgresRepository) GetAppointment(
	ctx context.Context,
	role models.Role,
	username string,
	id int64,
) (*models.Appointment, error) {
	// Lookups are scoped to the acting role so a user can only see their
	// own appointments
	query := `SELECT * FROM appointments WHERE appointment_id = $1 AND p_username = $2`
	if role == models.RoleCaregiver {
		query = `SELECT * FROM appointments WHERE appointment_id = $1 AND c_username = $2`
	}

	var appointment models.Appointment
	err := r.db.GetContext(ctx, &appointment, query, id, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Appointment not found
		}
		return nil, err
	}

	return &appointment, nil
}

func (r *PostgresRepository) ListAppointments(
	ctx context.Context,
	role models.Role,
	username string,
) ([]models.Appointment, error) {
	query := `SELECT * FROM appointments WHERE p_username = $1 ORDER BY appointment_id`
	if role == models.RoleCaregiver {
		query = `SELECT * FROM appointments WHERE c_username = $1 ORDER BY appointment_id`
	}

	var appointments []models.Appointment
	err := r.db.SelectContext(ctx, &appointments, query, username)
	if err != nil {
		return nil, err
	}

	return appointments, nil
}

// Reservation coordinator methods

// ReserveAppointment books an appointment for the patient on the given date.
// The whole transition runs in one transaction: pick a caregiver, consume one
// dose, consume the caregiver's slot, assign the next appointment id and
// insert the row. Any failure rolls back every effect.
func (r *PostgresRepository) ReserveAppointment(
	ctx context.Context,
	patientUsername string,
	date time.Time,
	vaccineName string,
) (*models.Appointment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	// Pick the first available caregiver for the date (lowest username) and
	// lock the row so a concurrent booking cannot consume the same slot.
	// SKIP LOCKED keeps a booking from blocking behind a slot another
	// transaction is already consuming.
	var caregiverUsername string
	err = tx.QueryRowContext(ctx,
		`SELECT username FROM availabilities
		WHERE time = $1
		ORDER BY username
		LIMIT 1
		FOR UPDATE SKIP LOCKED`,
		date).Scan(&caregiverUsername)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// No lockable row left. Slots held by in-flight bookings are a
			// retryable conflict; a date with no offers at all is terminal.
			var offered bool
			if scanErr := tx.QueryRowContext(ctx,
				`SELECT EXISTS (SELECT 1 FROM availabilities WHERE time = $1)`,
				date).Scan(&offered); scanErr != nil {
				err = scanErr
				return nil, err
			}
			if offered {
				err = ErrSlotConflict
			} else {
				err = ErrNoCaregiverAvailable
			}
		}
		return nil, err
	}

	// Consume one dose with an atomic conditional decrement; zero rows means
	// the vaccine is unknown or out of stock
	res, err := tx.ExecContext(ctx,
		`UPDATE vaccines SET doses = doses - 1 WHERE name = $1 AND doses >= 1`,
		vaccineName)
	if err != nil {
		return nil, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		err = ErrInsufficientDoses
		return nil, err
	}

	// Consume the slot. The conditional delete re-validates existence: if a
	// concurrent transaction took the slot first, abort instead of silently
	// booking another caregiver.
	res, err = tx.ExecContext(ctx,
		`DELETE FROM availabilities WHERE username = $1 AND time = $2`,
		caregiverUsername, date)
	if err != nil {
		return nil, err
	}
	rows, err = res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		err = ErrSlotConflict
		return nil, err
	}

	// Assign the next appointment id inside the same transaction so two
	// concurrent bookings cannot claim the same id
	var appointmentID int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(appointment_id), 0) + 1 FROM appointments`).Scan(&appointmentID)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO appointments (appointment_id, vaccine_name, time, c_username, p_username)
		VALUES ($1, $2, $3, $4, $5)`,
		appointmentID, vaccineName, date, caregiverUsername, patientUsername)
	if err != nil {
		if isUniqueViolation(err) {
			// Two transactions computed the same max+1; the caller retries
			err = ErrSlotConflict
		}
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	return &models.Appointment{
		ID:                appointmentID,
		VaccineName:       vaccineName,
		Time:              date,
		CaregiverUsername: caregiverUsername,
		PatientUsername:   patientUsername,
	}, nil
}

// CancelAppointment deletes an appointment and restores the resources it
// consumed: one dose back to the vaccine and the caregiver's slot back to the
// availability ledger. Exact inverse of ReserveAppointment, in one transaction.
func (r *PostgresRepository) CancelAppointment(
	ctx context.Context,
	role models.Role,
	username string,
	id int64,
) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	// Role-scoped lookup, locked so a concurrent cancel of the same
	// appointment fails cleanly instead of restoring resources twice
	query := `SELECT * FROM appointments WHERE appointment_id = $1 AND p_username = $2 FOR UPDATE`
	if role == models.RoleCaregiver {
		query = `SELECT * FROM appointments WHERE appointment_id = $1 AND c_username = $2 FOR UPDATE`
	}

	var appointment models.Appointment
	err = tx.GetContext(ctx, &appointment, query, id, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrAppointmentNotFound
		}
		return err
	}

	// Restore the dose. The stock row must still exist: an appointment always
	// references the vaccine it consumed, so zero rows is a data-integrity
	// fault and fails the operation.
	res, err := tx.ExecContext(ctx,
		`UPDATE vaccines SET doses = doses + 1 WHERE name = $1`,
		appointment.VaccineName)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		err = errors.New("vaccine stock row missing for booked appointment")
		return err
	}

	// Restore the availability slot. The caregiver may have re-published the
	// same date after the booking consumed it; that row already represents
	// the restored availability, so the insert must not fail on it.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO availabilities (username, time) VALUES ($1, $2)
		ON CONFLICT (username, time) DO NOTHING`,
		appointment.CaregiverUsername, appointment.Time)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM appointments WHERE appointment_id = $1`,
		appointment.ID)
	if err != nil {
		return err
	}

	return tx.Commit()
}
