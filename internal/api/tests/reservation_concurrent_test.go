package api_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rongwang/vaccine-scheduler/internal/api/testutils"
	"github.com/rongwang/vaccine-scheduler/internal/models"
	"github.com/rongwang/vaccine-scheduler/internal/repository"
	"github.com/rongwang/vaccine-scheduler/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentReserveSingleSlot checks that one availability slot can be
// consumed by exactly one of many concurrent bookings.
func TestConcurrentReserveSingleSlot(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(t, testCtx)

	ctx := context.Background()
	date, err := service.ParseDate("03-01-2024")
	require.NoError(t, err)

	require.NoError(t, testCtx.Service.PublishAvailability(ctx, testutils.TestCaregiver, date))
	require.NoError(t, testCtx.Service.AddDoses(ctx, "Moderna", 100))

	const numGoroutines = 10

	resultsChan := make(chan error, numGoroutines)
	var wg sync.WaitGroup

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := testCtx.Service.Reserve(ctx, testutils.TestPatient, date, "Moderna")
			resultsChan <- err
		}()
	}

	wg.Wait()
	close(resultsChan)

	var successes, conflicts int
	for err := range resultsChan {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, repository.ErrNoCaregiverAvailable),
			errors.Is(err, repository.ErrSlotConflict):
			conflicts++
		default:
			t.Fatalf("unexpected reserve error: %v", err)
		}
	}

	assert.Equal(t, 1, successes, "exactly one booking may consume the slot")
	assert.Equal(t, numGoroutines-1, conflicts)

	// One dose consumed, one appointment booked
	vaccine, err := testCtx.Repository.GetVaccine(ctx, "Moderna")
	require.NoError(t, err)
	assert.Equal(t, 99, vaccine.Doses)

	appointments, err := testCtx.Service.ListAppointments(ctx, models.RolePatient, testutils.TestPatient)
	require.NoError(t, err)
	assert.Len(t, appointments, 1)
}

// TestConcurrentReserveDoseExhaustion checks that dose counts never go
// negative: with 3 doses and 6 retrying patients, exactly 3 bookings succeed.
func TestConcurrentReserveDoseExhaustion(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(t, testCtx)

	ctx := context.Background()
	date, err := service.ParseDate("03-02-2024")
	require.NoError(t, err)

	const numPatients = 6
	const numDoses = 3

	// Enough slots for everyone; doses are the scarce resource
	for i := 0; i < numPatients; i++ {
		caregiver := fmt.Sprintf("caregiver%d", i)
		require.NoError(t, testCtx.Service.RegisterCaregiver(ctx, caregiver, testutils.TestPassword))
		require.NoError(t, testCtx.Service.PublishAvailability(ctx, caregiver, date))
	}
	require.NoError(t, testCtx.Service.AddDoses(ctx, "Moderna", numDoses))

	resultsChan := make(chan error, numPatients)
	var wg sync.WaitGroup

	for i := 0; i < numPatients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Transaction conflicts are retryable; insufficient doses is the
			// terminal outcome once the stock runs out
			var err error
			for attempt := 0; attempt < 20; attempt++ {
				_, err = testCtx.Service.Reserve(ctx, testutils.TestPatient, date, "Moderna")
				if err == nil || errors.Is(err, repository.ErrInsufficientDoses) {
					break
				}
				time.Sleep(10 * time.Millisecond)
			}
			resultsChan <- err
		}()
	}

	wg.Wait()
	close(resultsChan)

	var successes, exhausted int
	for err := range resultsChan {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, repository.ErrInsufficientDoses):
			exhausted++
		default:
			t.Fatalf("unexpected reserve error: %v", err)
		}
	}

	assert.Equal(t, numDoses, successes, "one booking per dose")
	assert.Equal(t, numPatients-numDoses, exhausted)

	vaccine, err := testCtx.Repository.GetVaccine(ctx, "Moderna")
	require.NoError(t, err)
	assert.Equal(t, 0, vaccine.Doses, "stock ends at zero, never negative")

	// Assigned ids are unique and strictly increasing
	appointments, err := testCtx.Service.ListAppointments(ctx, models.RolePatient, testutils.TestPatient)
	require.NoError(t, err)
	require.Len(t, appointments, numDoses)
	for i := 1; i < len(appointments); i++ {
		assert.Greater(t, appointments[i].ID, appointments[i-1].ID)
	}
}
