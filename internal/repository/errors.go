package repository

import "errors"

// Resource errors surfaced by the ledgers and the reservation transactions.
// Callers match them with errors.Is; anything else coming out of the
// repository is a store fault.
var (
	ErrDuplicateUsername    = errors.New("username already exists")
	ErrDuplicateVaccine     = errors.New("vaccine already exists")
	ErrDuplicateSlot        = errors.New("availability slot already exists")
	ErrVaccineNotFound      = errors.New("vaccine not found")
	ErrNoCaregiverAvailable = errors.New("no caregiver available")
	ErrInsufficientDoses    = errors.New("not enough available doses")
	ErrSlotConflict         = errors.New("availability slot no longer available")
	ErrAppointmentNotFound  = errors.New("appointment not found")
)
