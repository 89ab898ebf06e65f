package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/rongwang/vaccine-scheduler/internal/api"
	"github.com/rongwang/vaccine-scheduler/internal/config"
	"github.com/rongwang/vaccine-scheduler/internal/models"
	"github.com/rongwang/vaccine-scheduler/internal/repository"
	"github.com/rongwang/vaccine-scheduler/internal/service"
	"github.com/stretchr/testify/require"
)

// Usernames registered by SetupTestContext.
const (
	TestPatient   = "carol"
	TestCaregiver = "alice"
	TestPassword  = "testpassword"
)

// TestContext holds all dependencies for tests
type TestContext struct {
	Router         *gin.Engine
	Repository     repository.Repository
	Service        service.Service
	DB             *sqlx.DB
	PatientToken   string
	CaregiverToken string
}

// SetupTestContext creates a new test context with initialized dependencies.
// Tests are skipped when the test database is not reachable.
func SetupTestContext(t *testing.T) *TestContext {
	// Load configuration from environment
	cfg := config.LoadConfig()

	// Override with test-specific config
	if cfg.Database.TestDBName != "" {
		cfg.Database.DBName = cfg.Database.TestDBName
	}

	// Use a test JWT secret
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = "test-secret-key"
	}

	// Set up database
	db, err := config.SetupDatabase(cfg)
	if err != nil {
		t.Skipf("Test database unavailable: %v", err)
	}

	// Create repository
	repo := repository.NewPostgresRepository(db)

	// Create service
	svc := service.NewDefaultService(repo, cfg.Auth.JWTSecret)

	// Create API handler
	handler := api.NewHandler(svc)

	// Set up Gin router
	gin.SetMode(gin.TestMode)
	router := gin.Default()

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(cfg.Auth.JWTSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	cleanDatabase(t, db)

	// Register one patient and one caregiver and log them in
	patientToken := createTestAccount(t, svc, models.RolePatient, TestPatient)
	caregiverToken := createTestAccount(t, svc, models.RoleCaregiver, TestCaregiver)

	return &TestContext{
		Router:         router,
		Repository:     repo,
		Service:        svc,
		DB:             db,
		PatientToken:   patientToken,
		CaregiverToken: caregiverToken,
	}
}

// CleanupTestContext cleans up test resources
func CleanupTestContext(t *testing.T, testCtx *TestContext) {
	if testCtx.DB != nil {
		cleanDatabase(t, testCtx.DB)
		testCtx.DB.Close()
	}
}

// cleanDatabase removes all scheduler rows, children first
func cleanDatabase(t *testing.T, db *sqlx.DB) {
	for _, table := range []string{"appointments", "availabilities", "vaccines", "caregivers", "patients"} {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			t.Logf("Warning: Failed to clean %s: %v", table, err)
		}
	}
}

// Helper functions
func createTestAccount(t *testing.T, svc service.Service, role models.Role, username string) string {
	ctx := context.Background()

	var err error
	if role == models.RolePatient {
		err = svc.RegisterPatient(ctx, username, TestPassword)
	} else {
		err = svc.RegisterCaregiver(ctx, username, TestPassword)
	}
	require.NoError(t, err, "Failed to create test account")

	result, err := svc.Login(ctx, role, username, TestPassword)
	require.NoError(t, err, "Failed to log test account in")

	return result.Token
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}
