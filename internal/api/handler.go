package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rongwang/vaccine-scheduler/internal/models"
	"github.com/rongwang/vaccine-scheduler/internal/repository"
	"github.com/rongwang/vaccine-scheduler/internal/service"
)

// Handler holds the HTTP handlers for the scheduler API
type Handler struct {
	svc     service.Service
	limiter *RateLimiter
}

// NewHandler creates a new API handler
func NewHandler(svc service.Service) *Handler {
	return &Handler{
		svc:     svc,
		limiter: NewRateLimiter(5, 10),
	}
}

// SetupRoutes registers all API routes on the router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(RequestIDMiddleware())

	public := router.Group("/api")
	public.Use(h.limiter.Middleware())
	{
		public.POST("/patients", h.SignUpPatient)
		public.POST("/caregivers", h.SignUpCaregiver)
		public.POST("/login", h.Login)
	}

	authed := router.Group("/api")
	authed.Use(AuthMiddleware())
	{
		authed.GET("/schedule/:date", h.GetSchedule)
		authed.GET("/appointments", h.ListAppointments)
		authed.GET("/appointments/:id", h.GetAppointment)
		authed.DELETE("/appointments/:id", h.CancelAppointment)

		patient := authed.Group("")
		patient.Use(RequireRole(models.RolePatient))
		patient.POST("/appointments", h.Reserve)

		caregiver := authed.Group("")
		caregiver.Use(RequireRole(models.RoleCaregiver))
		caregiver.POST("/availabilities", h.PublishAvailability)
		caregiver.POST("/vaccines/:name/doses", h.AddDoses)
	}
}

// SignUpPatient handles POST /api/patients
func (h *Handler) SignUpPatient(c *gin.Context) {
	h.signUp(c, models.RolePatient)
}

// SignUpCaregiver handles POST /api/caregivers
func (h *Handler) SignUpCaregiver(c *gin.Context) {
	h.signUp(c, models.RoleCaregiver)
}

func (h *Handler) signUp(c *gin.Context, role models.Role) {
	var req models.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid signup request")
		return
	}

	var err error
	if role == models.RolePatient {
		err = h.svc.RegisterPatient(c.Request.Context(), req.Username, req.Password)
	} else {
		err = h.svc.RegisterCaregiver(c.Request.Context(), req.Username, req.Password)
	}

	if errors.Is(err, repository.ErrDuplicateUsername) {
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Status:  "error",
			Code:    "USERNAME_TAKEN",
			Message: "Username already exists",
		})
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.SignUpResponse{
		Status:   "success",
		Username: req.Username,
		Role:     role,
	})
}

// Login handles POST /api/login
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid login request")
		return
	}

	result, err := h.svc.Login(c.Request.Context(), req.Role, req.Username, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_CREDENTIALS",
			Message: "Login failed",
		})
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{
		Status:    "success",
		Username:  result.Username,
		Role:      result.Role,
		Token:     result.Token,
		ExpiresIn: result.ExpiresIn,
	})
}

// GetSchedule handles GET /api/schedule/:date
func (h *Handler) GetSchedule(c *gin.Context) {
	date, err := service.ParseDate(c.Param("date"))
	if err != nil {
		badRequest(c, "Invalid date, expected mm-dd-yyyy")
		return
	}

	schedule, err := h.svc.SearchSchedule(c.Request.Context(), date)
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ScheduleResponse{
		Status:     "success",
		Date:       c.Param("date"),
		Caregivers: schedule.Caregivers,
		Vaccines:   schedule.Vaccines,
	})
}

// Reserve handles POST /api/appointments
func (h *Handler) Reserve(c *gin.Context) {
	var req models.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid reservation request")
		return
	}

	date, err := service.ParseDate(req.Date)
	if err != nil {
		badRequest(c, "Invalid date, expected mm-dd-yyyy")
		return
	}

	patientUsername := c.MustGet("username").(string)
	appointment, err := h.svc.Reserve(c.Request.Context(), patientUsername, date, req.VaccineName)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, models.ReserveResponse{
			Status:            "success",
			AppointmentID:     appointment.ID,
			CaregiverUsername: appointment.CaregiverUsername,
		})
	case errors.Is(err, repository.ErrNoCaregiverAvailable):
		conflict(c, "NO_CAREGIVER_AVAILABLE", "No caregiver is available on this date")
	case errors.Is(err, repository.ErrInsufficientDoses):
		conflict(c, "INSUFFICIENT_DOSES", "Not enough available doses")
	case errors.Is(err, repository.ErrSlotConflict):
		conflict(c, "SLOT_CONFLICT", "Slot was taken by another booking, please retry")
	default:
		internalError(c, err)
	}
}

// GetAppointment handles GET /api/appointments/:id
func (h *Handler) GetAppointment(c *gin.Context) {
	appointmentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "Invalid appointment id")
		return
	}

	username := c.MustGet("username").(string)
	role := c.MustGet("role").(models.Role)

	appointment, err := h.svc.GetAppointment(c.Request.Context(), role, username, appointmentID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, appointment)
	case errors.Is(err, repository.ErrAppointmentNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Status:  "error",
			Code:    "APPOINTMENT_NOT_FOUND",
			Message: "Appointment not found for this " + string(role),
		})
	default:
		internalError(c, err)
	}
}

// CancelAppointment handles DELETE /api/appointments/:id
func (h *Handler) CancelAppointment(c *gin.Context) {
	appointmentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "Invalid appointment id")
		return
	}

	username := c.MustGet("username").(string)
	role := c.MustGet("role").(models.Role)

	err = h.svc.Cancel(c.Request.Context(), role, username, appointmentID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, models.MessageResponse{
			Status:  "success",
			Message: "Appointment canceled",
		})
	case errors.Is(err, repository.ErrAppointmentNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Status:  "error",
			Code:    "APPOINTMENT_NOT_FOUND",
			Message: "Appointment not found for this " + string(role),
		})
	default:
		internalError(c, err)
	}
}

// PublishAvailability handles POST /api/availabilities
func (h *Handler) PublishAvailability(c *gin.Context) {
	var req models.AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid availability request")
		return
	}

	date, err := service.ParseDate(req.Date)
	if err != nil {
		badRequest(c, "Invalid date, expected mm-dd-yyyy")
		return
	}

	caregiverUsername := c.MustGet("username").(string)
	err = h.svc.PublishAvailability(c.Request.Context(), caregiverUsername, date)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, models.MessageResponse{
			Status:  "success",
			Message: "Availability uploaded",
		})
	case errors.Is(err, repository.ErrDuplicateSlot):
		conflict(c, "DUPLICATE_SLOT", "Availability already uploaded for this date")
	default:
		internalError(c, err)
	}
}

// AddDoses handles POST /api/vaccines/:name/doses
func (h *Handler) AddDoses(c *gin.Context) {
	var req models.AddDosesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid dose amount")
		return
	}

	err := h.svc.AddDoses(c.Request.Context(), c.Param("name"), req.Amount)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, models.MessageResponse{
			Status:  "success",
			Message: "Doses updated",
		})
	case errors.Is(err, service.ErrInvalidAmount):
		badRequest(c, "Dose amount must be a non-negative integer")
	default:
		internalError(c, err)
	}
}

// ListAppointments handles GET /api/appointments
func (h *Handler) ListAppointments(c *gin.Context) {
	username := c.MustGet("username").(string)
	role := c.MustGet("role").(models.Role)

	appointments, err := h.svc.ListAppointments(c.Request.Context(), role, username)
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AppointmentsResponse{
		Status:       "success",
		Appointments: appointments,
	})
}

// Response helpers
func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Status:  "error",
		Code:    "BAD_REQUEST",
		Message: message,
	})
}

func conflict(c *gin.Context, code, message string) {
	c.JSON(http.StatusConflict, models.ErrorResponse{
		Status:  "error",
		Code:    code,
		Message: message,
	})
}

func internalError(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Status:  "error",
		Code:    "STORE_ERROR",
		Message: err.Error(),
	})
}
