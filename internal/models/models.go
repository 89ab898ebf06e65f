package models

import (
	"time"
)

// Role identifies which account namespace a user belongs to. The patient and
// caregiver namespaces are disjoint: the same username may exist in both.
type Role string

const (
	RolePatient   Role = "patient"
	RoleCaregiver Role = "caregiver"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RolePatient || r == RoleCaregiver
}

// Patient represents a registered patient account
type Patient struct {
	Username     string    `db:"username" json:"username"`
	Salt         []byte    `db:"salt" json:"-"`
	PasswordHash []byte    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// Caregiver represents a registered caregiver account
type Caregiver struct {
	Username     string    `db:"username" json:"username"`
	Salt         []byte    `db:"salt" json:"-"`
	PasswordHash []byte    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// Vaccine represents a vaccine product and its remaining dose count.
// Doses never goes negative: consuming operations are conditional updates
// that fail instead of underflowing.
type Vaccine struct {
	Name  string `db:"name" json:"name"`
	Doses int    `db:"doses" json:"doses"`
}

// Availability is an existence-only slot: a row means the caregiver is free
// on that date and the slot has not yet been consumed by a booking.
type Availability struct {
	Username string    `db:"username" json:"username"`
	Time     time.Time `db:"time" json:"time"`
}

// Appointment represents a booked appointment. IDs are positive integers
// assigned monotonically (max existing + 1) inside the booking transaction.
type Appointment struct {
	ID                int64     `db:"appointment_id" json:"appointmentId"`
	VaccineName       string    `db:"vaccine_name" json:"vaccineName"`
	Time              time.Time `db:"time" json:"time"`
	CaregiverUsername string    `db:"c_username" json:"caregiverUsername"`
	PatientUsername   string    `db:"p_username" json:"patientUsername"`
}

// Schedule is the result of a schedule search: the caregivers free on a date
// (ordered by username) plus the full vaccine inventory.
type Schedule struct {
	Caregivers []string  `json:"caregivers"`
	Vaccines   []Vaccine `json:"vaccines"`
}

// AuthResult is the outcome of a successful login.
type AuthResult struct {
	Username  string `json:"username"`
	Role      Role   `json:"role"`
	Token     string `json:"token,omitempty"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
}
