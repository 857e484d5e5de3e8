package doctor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _ := newTestService()
	return NewHandler(svc), echo.New()
}

func request(e *echo.Echo, method, body string, p *auth.Principal) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, "/", nil)
	}
	if p != nil {
		req = req.WithContext(auth.WithPrincipal(req.Context(), *p))
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_CreateDoctor(t *testing.T) {
	h, e := newTestHandler()
	body := `{"userId":"` + uuid.New().String() + `","name":"Dr. Lee","slotDuration":45}`
	c, rec := request(e, http.MethodPost, body, &auth.Principal{UserID: uuid.New(), Role: auth.RoleAdmin})

	if err := h.CreateDoctor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"slotDuration":45`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_CreateDoctor_MissingName(t *testing.T) {
	h, e := newTestHandler()
	body := `{"userId":"` + uuid.New().String() + `"}`
	c, _ := request(e, http.MethodPost, body, &auth.Principal{UserID: uuid.New(), Role: auth.RoleAdmin})

	err := h.CreateDoctor(c)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err.(*apperr.Error).Message != "name is required" {
		t.Errorf("unexpected message %q", err.(*apperr.Error).Message)
	}
}

func TestHandler_GetDoctor(t *testing.T) {
	h, e := newTestHandler()
	d := createTestDoctor(t, h.svc, "Dr. Get")

	c, rec := request(e, http.MethodGet, "", nil)
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())
	if err := h.GetDoctor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c, _ = request(e, http.MethodGet, "", nil)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())
	if err := h.GetDoctor(c); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestHandler_UpdateDoctor_Ownership(t *testing.T) {
	h, e := newTestHandler()
	d := createTestDoctor(t, h.svc, "Dr. Own")
	body := `{"bio":"Twenty years of practice"}`

	// A different doctor may not edit the profile.
	c, _ := request(e, http.MethodPatch, body, &auth.Principal{UserID: uuid.New(), Role: auth.RoleDoctor})
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())
	if err := h.UpdateDoctor(c); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}

	c, rec := request(e, http.MethodPatch, body, &auth.Principal{UserID: d.UserID, Role: auth.RoleDoctor})
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())
	if err := h.UpdateDoctor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Twenty years") {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_UpdateWorkingHours(t *testing.T) {
	h, e := newTestHandler()
	d := createTestDoctor(t, h.svc, "Dr. Hours")
	body := `{"workingHours":{"monday":{"isWorking":true,"start":"08:00","end":"12:00"}},"slotDuration":15}`

	c, rec := request(e, http.MethodPatch, body, &auth.Principal{UserID: d.UserID, Role: auth.RoleDoctor})
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())
	if err := h.UpdateWorkingHours(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	got, _ := h.svc.GetDoctor(context.Background(), d.ID)
	if got.SlotDuration != 15 || got.WorkingHours.Monday.Start.String() != "08:00" {
		t.Errorf("working hours not applied: %+v", got.WorkingHours.Monday)
	}
}

func TestHandler_GetDoctorByUserID_OtherUser(t *testing.T) {
	h, e := newTestHandler()
	d := createTestDoctor(t, h.svc, "Dr. Self")

	c, _ := request(e, http.MethodGet, "", &auth.Principal{UserID: uuid.New(), Role: auth.RoleDoctor})
	c.SetParamNames("userId")
	c.SetParamValues(d.UserID.String())
	if err := h.GetDoctorByUserID(c); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}

	c, rec := request(e, http.MethodGet, "", &auth.Principal{UserID: d.UserID, Role: auth.RoleDoctor})
	c.SetParamNames("userId")
	c.SetParamValues(d.UserID.String())
	if err := h.GetDoctorByUserID(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_ListDoctors(t *testing.T) {
	h, e := newTestHandler()
	createTestDoctor(t, h.svc, "Dr. One")
	createTestDoctor(t, h.svc, "Dr. Two")

	c, rec := request(e, http.MethodGet, "", nil)
	if err := h.ListDoctors(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":2`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_DeleteDoctor(t *testing.T) {
	h, e := newTestHandler()
	d := createTestDoctor(t, h.svc, "Dr. Gone")

	c, rec := request(e, http.MethodDelete, "", &auth.Principal{UserID: uuid.New(), Role: auth.RoleAdmin})
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())
	if err := h.DeleteDoctor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}
