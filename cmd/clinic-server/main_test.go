package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/doctor"
	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/lock"
	"github.com/clinic/clinic/internal/platform/websocket"
)

func testConfig(env string) *config.Config {
	return &config.Config{
		Env:             env,
		LockBackend:     config.LockBackendLocal,
		JWTSecret:       "0123456789abcdef0123456789abcdef",
		CORSOrigins:     []string{"http://localhost:3000"},
		RateLimitRPS:    100,
		RateLimitBurst:  100,
		RequestTimeout:  time.Second,
		NotifyWorkers:   1,
		NotifyQueueSize: 1,
	}
}

func testServer(cfg *config.Config) *echo.Echo {
	logger := zerolog.Nop()
	doctors := doctor.NewService(nil, logger)
	a := app{
		doctors:    doctors,
		scheduling: scheduling.NewService(nil, doctors, lock.NewLocal(), nil, logger),
		live:       websocket.NewHub(logger),
	}
	e := newEcho(cfg, logger)
	registerRoutes(e, cfg, a, func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	return e
}

func TestNewLocker(t *testing.T) {
	cfg := testConfig("development")
	l, client, err := newLocker(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if l.Backend() != "local" || client != nil {
		t.Errorf("expected local locker without redis client, got %s", l.Backend())
	}

	cfg.LockBackend = config.LockBackendRedis
	cfg.RedisURL = "redis://localhost:6379/0"
	l, client, err = newLocker(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()
	if l.Backend() != "redis" {
		t.Errorf("expected redis locker, got %s", l.Backend())
	}

	cfg.RedisURL = "://bad"
	if _, _, err := newLocker(cfg, nil); err == nil {
		t.Error("expected error for malformed REDIS_URL")
	}

	cfg.LockBackend = "etcd"
	if _, _, err := newLocker(cfg, nil); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestRegisterRoutes(t *testing.T) {
	e := testServer(testConfig("development"))

	registered := make(map[string]bool)
	for _, r := range e.Routes() {
		registered[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /health",
		"GET /health/db",
		"GET /api/v1/appointments/available-slots",
		"POST /api/v1/appointments",
		"GET /api/v1/appointments",
		"PATCH /api/v1/appointments/:id",
		"PATCH /api/v1/appointments/:id/status",
		"PATCH /api/v1/appointments/:id/cancel",
		"POST /api/v1/appointments/:id/diagnosis",
		"DELETE /api/v1/appointments/:id",
		"GET /api/v1/doctors",
		"GET /api/v1/doctors/:id",
		"GET /api/v1/doctors/:id/available-slots",
		"GET /api/v1/doctors/user/:userId",
		"PATCH /api/v1/doctors/:id/working-hours",
		"GET /api/v1/notifications",
		"PATCH /api/v1/notifications/read-all",
		"GET /api/v1/notifications/ws",
	} {
		if !registered[want] {
			t.Errorf("route %s not registered", want)
		}
	}
}

func TestServer_AuthInProduction(t *testing.T) {
	cfg := testConfig("production")
	e := testServer(cfg)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health should be public, got %d", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers on responses")
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/appointments", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	token, err := issueToken(cfg, "", string(auth.RolePatient), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/appointments/"+uuid.New().String(), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for patient delete, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestIssueToken(t *testing.T) {
	cfg := testConfig("development")
	if _, err := issueToken(cfg, "not-a-uuid", "patient", time.Minute); err == nil {
		t.Error("expected error for invalid user id")
	}
	if _, err := issueToken(cfg, "", "nurse", time.Minute); err == nil {
		t.Error("expected error for unknown role")
	}
	cfg.JWTSecret = ""
	if _, err := issueToken(cfg, "", "admin", time.Minute); err == nil {
		t.Error("expected error without signing key")
	}
}
