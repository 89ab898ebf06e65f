package models

// Request models
type SignUpRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Role     Role   `json:"role" binding:"required,oneof=patient caregiver"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ReserveRequest struct {
	Date        string `json:"date" binding:"required"` // mm-dd-yyyy
	VaccineName string `json:"vaccineName" binding:"required"`
}

type AvailabilityRequest struct {
	Date string `json:"date" binding:"required"` // mm-dd-yyyy
}

type AddDosesRequest struct {
	Amount int `json:"amount" binding:"min=0"`
}

// Response models
type SignUpResponse struct {
	Status   string `json:"status"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

type LoginResponse struct {
	Status    string `json:"status"`
	Username  string `json:"username"`
	Role      Role   `json:"role"`
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"`
}

type ScheduleResponse struct {
	Status     string    `json:"status"`
	Date       string    `json:"date"`
	Caregivers []string  `json:"caregivers"`
	Vaccines   []Vaccine `json:"vaccines"`
}

type ReserveResponse struct {
	Status            string `json:"status"`
	AppointmentID     int64  `json:"appointmentId"`
	CaregiverUsername string `json:"caregiverUsername"`
}

type AppointmentsResponse struct {
	Status       string        `json:"status"`
	Appointments []Appointment `json:"appointments"`
}

type MessageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
