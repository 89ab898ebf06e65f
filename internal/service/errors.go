package service

import "errors"

// Validation and auth errors raised before any ledger is touched.
var (
	// ErrInvalidCredentials covers both unknown username and wrong password:
	// the two cases are deliberately indistinguishable to the caller so login
	// cannot be used to enumerate usernames.
	ErrInvalidCredentials = errors.New("invalid username or password")

	ErrInvalidRole     = errors.New("invalid role")
	ErrInvalidUsername = errors.New("username must not be empty")
	ErrInvalidPassword = errors.New("password must not be empty")
	ErrInvalidAmount   = errors.New("dose amount must be a non-negative integer")
	ErrInvalidDate     = errors.New("invalid date, expected mm-dd-yyyy")
)
