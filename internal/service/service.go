package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rongwang/vaccine-scheduler/internal/models"
	"github.com/rongwang/vaccine-scheduler/internal/repository"
	"golang.org/x/crypto/pbkdf2"
)

// DateLayout is the wire format for appointment dates (mm-dd-yyyy).
const DateLayout = "01-02-2006"

const (
	saltLength = 16
	hashLength = 32
	pbkdf2Iter = 100000
)

// Service defines all the business logic operations
type Service interface {
	// Accounts
	RegisterPatient(ctx context.Context, username, password string) error
	RegisterCaregiver(ctx context.Context, username, password string) error
	Login(ctx context.Context, role models.Role, username, password string) (*models.AuthResult, error)

	// Schedule and inventory
	SearchSchedule(ctx context.Context, date time.Time) (*models.Schedule, error)
	PublishAvailability(ctx context.Context, caregiverUsername string, date time.Time) error
	AddDoses(ctx context.Context, vaccineName string, amount int) error

	// Appointments
	Reserve(ctx context.Context, patientUsername string, date time.Time, vaccineName string) (*models.Appointment, error)
	Cancel(ctx context.Context, role models.Role, username string, appointmentID int64) error
	GetAppointment(ctx context.Context, role models.Role, username string, appointmentID int64) (*models.Appointment, error)
	ListAppointments(ctx context.Context, role models.Role, username string) ([]models.Appointment, error)
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo          repository.Repository
	jwtSecret     []byte
	tokenDuration time.Duration
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(repo repository.Repository, jwtSecret string) Service {
	return &DefaultService{
		repo:          repo,
		jwtSecret:     []byte(jwtSecret),
		tokenDuration: 24 * time.Hour, // 24 hours token validity
	}
}

// ParseDate parses an mm-dd-yyyy date string.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

// Account methods
func (s *DefaultService) RegisterPatient(ctx context.Context, username, password string) error {
	if err := validateAccount(username, password); err != nil {
		return err
	}

	salt, hash, err := hashPassword(password)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}

	patient := &models.Patient{
		Username:     username,
		Salt:         salt,
		PasswordHash: hash,
	}

	if err := s.repo.CreatePatient(ctx, patient); err != nil {
		return err
	}

	return nil
}

func (s *DefaultService) RegisterCaregiver(ctx context.Context, username, password string) error {
	if err := validateAccount(username, password); err != nil {
		return err
	}

	salt, hash, err := hashPassword(password)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}

	caregiver := &models.Caregiver{
		Username:     username,
		Salt:         salt,
		PasswordHash: hash,
	}

	if err := s.repo.CreateCaregiver(ctx, caregiver); err != nil {
		return err
	}

	return nil
}

func (s *DefaultService) Login(
	ctx context.Context,
	role models.Role,
	username string,
	password string,
) (*models.AuthResult, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	var salt, storedHash []byte
	switch role {
	case models.RolePatient:
		patient, err := s.repo.GetPatient(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("error getting patient: %w", err)
		}
		if patient == nil {
			return nil, ErrInvalidCredentials
		}
		salt, storedHash = patient.Salt, patient.PasswordHash
	case models.RoleCaregiver:
		caregiver, err := s.repo.GetCaregiver(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("error getting caregiver: %w", err)
		}
		if caregiver == nil {
			return nil, ErrInvalidCredentials
		}
		salt, storedHash = caregiver.Salt, caregiver.PasswordHash
	}

	// Verify password
	hash := pbkdf2.Key([]byte(password), salt, pbkdf2Iter, hashLength, sha256.New)
	if subtle.ConstantTimeCompare(hash, storedHash) != 1 {
		return nil, ErrInvalidCredentials
	}

	// Generate JWT token for API clients; the interactive CLI ignores it
	token, err := s.generateJWT(role, username)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.AuthResult{
		Username:  username,
		Role:      role,
		Token:     token,
		ExpiresIn: int(s.tokenDuration.Seconds()),
	}, nil
}

// Schedule and inventory methods
func (s *DefaultService) SearchSchedule(ctx context.Context, date time.Time) (*models.Schedule, error) {
	caregivers, err := s.repo.SearchCaregivers(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("error searching caregivers: %w", err)
	}

	vaccines, err := s.repo.ListVaccines(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing vaccines: %w", err)
	}

	return &models.Schedule{
		Caregivers: caregivers,
		Vaccines:   vaccines,
	}, nil
}

func (s *DefaultService) PublishAvailability(ctx context.Context, caregiverUsername string, date time.Time) error {
	return s.repo.PublishAvailability(ctx, caregiverUsername, date)
}

// AddDoses creates the stock row on first sight of a vaccine name, otherwise
// adds to the existing count. A concurrent first-create loses the race on the
// primary key and falls back to increasing.
func (s *DefaultService) AddDoses(ctx context.Context, vaccineName string, amount int) error {
	if amount < 0 {
		return ErrInvalidAmount
	}

	vaccine, err := s.repo.GetVaccine(ctx, vaccineName)
	if err != nil {
		return fmt.Errorf("error getting vaccine: %w", err)
	}

	if vaccine == nil {
		err := s.repo.CreateVaccine(ctx, &models.Vaccine{Name: vaccineName, Doses: amount})
		if errors.Is(err, repository.ErrDuplicateVaccine) {
			return s.repo.IncreaseDoses(ctx, vaccineName, amount)
		}
		return err
	}

	return s.repo.IncreaseDoses(ctx, vaccineName, amount)
}

// Appointment methods
func (s *DefaultService) Reserve(
	ctx context.Context,
	patientUsername string,
	date time.Time,
	vaccineName string,
) (*models.Appointment, error) {
	return s.repo.ReserveAppointment(ctx, patientUsername, date, vaccineName)
}

func (s *DefaultService) Cancel(
	ctx context.Context,
	role models.Role,
	username string,
	appointmentID int64,
) error {
	if !role.Valid() {
		return ErrInvalidRole
	}

	return s.repo.CancelAppointment(ctx, role, username, appointmentID)
}

func (s *DefaultService) GetAppointment(
	ctx context.Context,
	role models.Role,
	username string,
	appointmentID int64,
) (*models.Appointment, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	appointment, err := s.repo.GetAppointment(ctx, role, username, appointmentID)
	if err != nil {
		return nil, err
	}
	if appointment == nil {
		return nil, repository.ErrAppointmentNotFound
	}

	return appointment, nil
}

func (s *DefaultService) ListAppointments(
	ctx context.Context,
	role models.Role,
	username string,
) ([]models.Appointment, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	return s.repo.ListAppointments(ctx, role, username)
}

// Helper methods
func validateAccount(username, password string) error {
	if username == "" {
		return ErrInvalidUsername
	}
	if password == "" {
		return ErrInvalidPassword
	}
	return nil
}

// hashPassword derives a PBKDF2-SHA256 hash from the password with a fresh
// random salt. The salt is stored alongside the hash.
func hashPassword(password string) (salt, hash []byte, err error) {
	salt = make([]byte, saltLength)
	if _, err = rand.Read(salt); err != nil {
		return nil, nil, err
	}

	hash = pbkdf2.Key([]byte(password), salt, pbkdf2Iter, hashLength, sha256.New)
	return salt, hash, nil
}

func (s *DefaultService) generateJWT(role models.Role, username string) (string, error) {
	expirationTime := time.Now().Add(s.tokenDuration)

	claims := jwt.MapClaims{
		"sub":  username,
		"role": string(role),
		"exp":  expirationTime.Unix(),
		"iat":  time.Now().Unix(), // issued at
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
