package api_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/rongwang/vaccine-scheduler/internal/api/testutils"
	"github.com/rongwang/vaccine-scheduler/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDate = "03-01-2024"

func uploadAvailability(t *testing.T, testCtx *testutils.TestContext, date string) {
	t.Helper()
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/availabilities",
		models.AvailabilityRequest{Date: date},
		testutils.AuthHeaders(testCtx.CaregiverToken),
	)
	require.Equal(t, http.StatusCreated, w.Code)
}

func addDoses(t *testing.T, testCtx *testutils.TestContext, vaccine string, amount int) {
	t.Helper()
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		fmt.Sprintf("/api/vaccines/%s/doses", vaccine),
		models.AddDosesRequest{Amount: amount},
		testutils.AuthHeaders(testCtx.CaregiverToken),
	)
	require.Equal(t, http.StatusOK, w.Code)
}

func getSchedule(t *testing.T, testCtx *testutils.TestContext, date string) models.ScheduleResponse {
	t.Helper()
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/schedule/"+date,
		nil,
		testutils.AuthHeaders(testCtx.PatientToken),
	)
	require.Equal(t, http.StatusOK, w.Code)

	var response models.ScheduleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

func TestReserveAndCancel(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(t, testCtx)

	uploadAvailability(t, testCtx, testDate)
	addDoses(t, testCtx, "Moderna", 5)

	// Reserve: consumes the slot and one dose, assigns id 1
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/appointments",
		models.ReserveRequest{Date: testDate, VaccineName: "Moderna"},
		testutils.AuthHeaders(testCtx.PatientToken),
	)

	require.Equal(t, http.StatusCreated, w.Code)

	var reserveResponse models.ReserveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reserveResponse))
	assert.Equal(t, int64(1), reserveResponse.AppointmentID)
	assert.Equal(t, testutils.TestCaregiver, reserveResponse.CaregiverUsername)

	schedule := getSchedule(t, testCtx, testDate)
	assert.Empty(t, schedule.Caregivers, "consumed slot must not be offered")
	assert.Equal(t, []models.Vaccine{{Name: "Moderna", Doses: 4}}, schedule.Vaccines)

	// The appointment shows up for both parties, ordered by id
	for _, token := range []string{testCtx.PatientToken, testCtx.CaregiverToken} {
		w = testutils.PerformRequest(
			testCtx.Router,
			http.MethodGet,
			"/api/appointments",
			nil,
			testutils.AuthHeaders(token),
		)
		require.Equal(t, http.StatusOK, w.Code)

		var listResponse models.AppointmentsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResponse))
		require.Len(t, listResponse.Appointments, 1)
		assert.Equal(t, int64(1), listResponse.Appointments[0].ID)
		assert.Equal(t, "Moderna", listResponse.Appointments[0].VaccineName)
	}

	// Single-appointment lookup is scoped to the acting account
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/appointments/1",
		nil,
		testutils.AuthHeaders(testCtx.CaregiverToken),
	)
	require.Equal(t, http.StatusOK, w.Code)

	var appointment models.Appointment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &appointment))
	assert.Equal(t, testutils.TestPatient, appointment.PatientUsername)

	// Cancel: restores the dose and the slot, removes the appointment
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodDelete,
		"/api/appointments/1",
		nil,
		testutils.AuthHeaders(testCtx.PatientToken),
	)

	require.Equal(t, http.StatusOK, w.Code)

	schedule = getSchedule(t, testCtx, testDate)
	assert.Equal(t, []string{testutils.TestCaregiver}, schedule.Caregivers)
	assert.Equal(t, []models.Vaccine{{Name: "Moderna", Doses: 5}}, schedule.Vaccines)

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/appointments/1",
		nil,
		testutils.AuthHeaders(testCtx.PatientToken),
	)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodDelete,
		"/api/appointments/1",
		nil,
		testutils.AuthHeaders(testCtx.PatientToken),
	)

	assert.Equal(t, http.StatusNotFound, w.Code, "canceled appointment is gone")
}

func TestReserveInsufficientDoses(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(t, testCtx)

	uploadAvailability(t, testCtx, testDate)
	addDoses(t, testCtx, "Moderna", 0)

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/appointments",
		models.ReserveRequest{Date: testDate, VaccineName: "Moderna"},
		testutils.AuthHeaders(testCtx.PatientToken),
	)

	require.Equal(t, http.StatusConflict, w.Code)

	var errResponse models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResponse))
	assert.Equal(t, "INSUFFICIENT_DOSES", errResponse.Code)

	// No ledger was mutated: the slot is still offered
	schedule := getSchedule(t, testCtx, testDate)
	assert.Equal(t, []string{testutils.TestCaregiver}, schedule.Caregivers)
	assert.Equal(t, []models.Vaccine{{Name: "Moderna", Doses: 0}}, schedule.Vaccines)
}

func TestReserveUnknownVaccine(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(t, testCtx)

	uploadAvailability(t, testCtx, testDate)

	// An unknown vaccine counts as zero doses
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/appointments",
		models.ReserveRequest{Date: testDate, VaccineName: "Pfizer"},
		testutils.AuthHeaders(testCtx.PatientToken),
	)

	require.Equal(t, http.StatusConflict, w.Code)

	var errResponse models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResponse))
	assert.Equal(t, "INSUFFICIENT_DOSES", errResponse.Code)
}

func TestReserveNoCaregiverAvailable(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(t, testCtx)

	addDoses(t, testCtx, "Moderna", 5)

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/appointments",
		models.ReserveRequest{Date: testDate, VaccineName: "Moderna"},
		testutils.AuthHeaders(testCtx.PatientToken),
	)

	require.Equal(t, http.StatusConflict, w.Code)

	var errResponse models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResponse))
	assert.Equal(t, "NO_CAREGIVER_AVAILABLE", errResponse.Code)

	schedule := getSchedule(t, testCtx, testDate)
	assert.Equal(t, []models.Vaccine{{Name: "Moderna", Doses: 5}}, schedule.Vaccines)
}

func TestCancelAfterSlotRepublished(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(t, testCtx)

	uploadAvailability(t, testCtx, testDate)
	addDoses(t, testCtx, "Moderna", 1)

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/appointments",
		models.ReserveRequest{Date: testDate, VaccineName: "Moderna"},
		testutils.AuthHeaders(testCtx.PatientToken),
	)
	require.Equal(t, http.StatusCreated, w.Code)

	// The booking consumed the slot, so re-publishing the same date succeeds
	uploadAvailability(t, testCtx, testDate)

	// Cancel still succeeds against the re-published row and does not stack
	// a duplicate slot
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodDelete,
		"/api/appointments/1",
		nil,
		testutils.AuthHeaders(testCtx.PatientToken),
	)
	require.Equal(t, http.StatusOK, w.Code)

	schedule := getSchedule(t, testCtx, testDate)
	assert.Equal(t, []string{testutils.TestCaregiver}, schedule.Caregivers)
	assert.Equal(t, []models.Vaccine{{Name: "Moderna", Doses: 1}}, schedule.Vaccines)

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/appointments",
		nil,
		testutils.AuthHeaders(testCtx.PatientToken),
	)
	require.Equal(t, http.StatusOK, w.Code)

	var listResponse models.AppointmentsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResponse))
	assert.Empty(t, listResponse.Appointments)
}

func TestDuplicateAvailabilityRejected(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(t, testCtx)

	uploadAvailability(t, testCtx, testDate)

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/availabilities",
		models.AvailabilityRequest{Date: testDate},
		testutils.AuthHeaders(testCtx.CaregiverToken),
	)

	require.Equal(t, http.StatusConflict, w.Code)

	var errResponse models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResponse))
	assert.Equal(t, "DUPLICATE_SLOT", errResponse.Code)
}

func TestInvalidDateRejected(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(t, testCtx)

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/appointments",
		models.ReserveRequest{Date: "2024-03-01", VaccineName: "Moderna"},
		testutils.AuthHeaders(testCtx.PatientToken),
	)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
