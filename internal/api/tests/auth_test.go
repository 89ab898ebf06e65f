package api_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/rongwang/vaccine-scheduler/internal/api/testutils"
	"github.com/rongwang/vaccine-scheduler/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestSignup(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(t, testCtx)

	// Test case 1: Successful patient signup
	signupReq := models.SignUpRequest{
		Username: "newpatient",
		Password: "Password123",
	}

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/patients",
		signupReq,
		nil,
	)

	assert.Equal(t, http.StatusCreated, w.Code)

	// Test case 2: Duplicate username
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/patients",
		signupReq,
		nil,
	)

	assert.Equal(t, http.StatusConflict, w.Code)

	// Test case 3: Same username is free in the caregiver namespace
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/caregivers",
		signupReq,
		nil,
	)

	assert.Equal(t, http.StatusCreated, w.Code)

	// Test case 4: Invalid request (password too short)
	invalidReq := models.SignUpRequest{
		Username: "shortpw",
		Password: "abc",
	}

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/patients",
		invalidReq,
		nil,
	)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(t, testCtx)

	// Test case 1: Successful login
	loginReq := models.LoginRequest{
		Role:     models.RolePatient,
		Username: testutils.TestPatient,
		Password: testutils.TestPassword,
	}

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/login",
		loginReq,
		nil,
	)

	assert.Equal(t, http.StatusOK, w.Code)

	var response models.LoginResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.NotEmpty(t, response.Token)
	assert.Equal(t, models.RolePatient, response.Role)

	// Test case 2: Invalid credentials
	invalidLoginReq := models.LoginRequest{
		Role:     models.RolePatient,
		Username: testutils.TestPatient,
		Password: "wrongpassword",
	}

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/login",
		invalidLoginReq,
		nil,
	)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Test case 3: Unknown username fails identically
	nonExistentUserReq := models.LoginRequest{
		Role:     models.RolePatient,
		Username: "nonexistent",
		Password: testutils.TestPassword,
	}

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/login",
		nonExistentUserReq,
		nil,
	)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Test case 4: Patient credentials do not work in the caregiver namespace
	crossRoleReq := models.LoginRequest{
		Role:     models.RoleCaregiver,
		Username: testutils.TestPatient,
		Password: testutils.TestPassword,
	}

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/login",
		crossRoleReq,
		nil,
	)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRequired(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(t, testCtx)

	// No token
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/appointments",
		nil,
		nil,
	)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Garbage token
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/appointments",
		nil,
		testutils.AuthHeaders("not-a-token"),
	)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoleGates(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(t, testCtx)

	// A caregiver cannot reserve
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/appointments",
		models.ReserveRequest{Date: "03-01-2024", VaccineName: "Moderna"},
		testutils.AuthHeaders(testCtx.CaregiverToken),
	)

	assert.Equal(t, http.StatusForbidden, w.Code)

	// A patient cannot upload availability or add doses
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/availabilities",
		models.AvailabilityRequest{Date: "03-01-2024"},
		testutils.AuthHeaders(testCtx.PatientToken),
	)

	assert.Equal(t, http.StatusForbidden, w.Code)

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/vaccines/Moderna/doses",
		models.AddDosesRequest{Amount: 5},
		testutils.AuthHeaders(testCtx.PatientToken),
	)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
