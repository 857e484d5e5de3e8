package scheduling

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

func newTestHandler() (*Handler, *testEnv, *echo.Echo) {
	env := newTestEnv()
	return NewHandler(env.svc), env, echo.New()
}

func request(e *echo.Echo, method, target, body string, p *auth.Principal) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if p != nil {
		req = req.WithContext(auth.WithPrincipal(req.Context(), *p))
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func withID(c echo.Context, id uuid.UUID) echo.Context {
	c.SetParamNames("id")
	c.SetParamValues(id.String())
	return c
}

func patient(id uuid.UUID) *auth.Principal { return &auth.Principal{UserID: id, Role: auth.RolePatient} }

func (e *testEnv) doctorPrincipal() *auth.Principal {
	return &auth.Principal{UserID: e.doctor.UserID, Role: auth.RoleDoctor}
}

// -- Availability --

func TestHandler_AvailableSlots(t *testing.T) {
	h, env, e := newTestHandler()
	env.book(t, "09:00", "09:30")

	c, rec := request(e, http.MethodGet, "/?doctorId="+env.doctor.ID.String()+"&date=2026-03-09", "", nil)
	if err := h.AvailableSlots(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), `"startTime":"09:00"`) {
		t.Error("booked slot should not be listed")
	}
	if !strings.Contains(rec.Body.String(), `{"startTime":"09:30","endTime":"10:00"}`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_AvailableSlots_BadInput(t *testing.T) {
	h, env, e := newTestHandler()
	tests := []struct {
		name   string
		target string
	}{
		{"missing date", "/?doctorId=" + env.doctor.ID.String()},
		{"missing doctor", "/?date=2026-03-09"},
		{"bad date", "/?doctorId=" + env.doctor.ID.String() + "&date=09-03-2026"},
		{"bad doctor id", "/?doctorId=abc&date=2026-03-09"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := request(e, http.MethodGet, tt.target, "", nil)
			if err := h.AvailableSlots(c); !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestHandler_DoctorAvailableSlots_Weekend(t *testing.T) {
	h, env, e := newTestHandler()
	c, rec := request(e, http.MethodGet, "/?date=2026-03-15", "", nil)
	withID(c, env.doctor.ID)
	if err := h.DoctorAvailableSlots(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty list, got %s", rec.Body.String())
	}
}

// -- Create --

func TestHandler_CreateAppointment_PatientDefaultsToSelf(t *testing.T) {
	h, env, e := newTestHandler()
	me := uuid.New()
	body := `{"doctorId":"` + env.doctor.ID.String() + `","date":"2026-03-09","startTime":"10:00","endTime":"10:30","type":"scaling"}`
	c, rec := request(e, http.MethodPost, "/", body, patient(me))

	if err := h.CreateAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"patientId":"`+me.String()+`"`) {
		t.Errorf("expected caller as patient, got %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"status":"upcoming"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_CreateAppointment_Conflict(t *testing.T) {
	h, env, e := newTestHandler()
	env.book(t, "10:00", "10:30")
	body := `{"doctorId":"` + env.doctor.ID.String() + `","date":"2026-03-09","startTime":"10:15","endTime":"10:45","type":"scaling"}`
	c, _ := request(e, http.MethodPost, "/", body, patient(uuid.New()))

	err := h.CreateAppointment(c)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err.(*apperr.Error).Status() != http.StatusBadRequest {
		t.Error("conflicts surface as 400")
	}
}

func TestHandler_CreateAppointment_PatientForOther(t *testing.T) {
	h, env, e := newTestHandler()
	body := `{"doctorId":"` + env.doctor.ID.String() + `","patientId":"` + uuid.New().String() +
		`","date":"2026-03-09","startTime":"10:00","endTime":"10:30","type":"scaling"}`
	c, _ := request(e, http.MethodPost, "/", body, patient(uuid.New()))

	if err := h.CreateAppointment(c); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
}

func TestHandler_CreateAppointment_BadTime(t *testing.T) {
	h, env, e := newTestHandler()
	body := `{"doctorId":"` + env.doctor.ID.String() + `","date":"2026-03-09","startTime":"25:00","endTime":"10:30","type":"scaling"}`
	c, _ := request(e, http.MethodPost, "/", body, patient(uuid.New()))

	if err := h.CreateAppointment(c); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

// -- Access control --

func TestHandler_GetAppointment_Access(t *testing.T) {
	h, env, e := newTestHandler()
	v := env.book(t, "10:00", "10:30")

	tests := []struct {
		name string
		p    *auth.Principal
		kind apperr.Kind
		ok   bool
	}{
		{"owner patient", patient(v.PatientID), 0, true},
		{"treating doctor", env.doctorPrincipal(), 0, true},
		{"admin", &auth.Principal{UserID: uuid.New(), Role: auth.RoleAdmin}, 0, true},
		{"other patient", patient(uuid.New()), apperr.KindNotFound, false},
		{"other doctor", &auth.Principal{UserID: uuid.New(), Role: auth.RoleDoctor}, apperr.KindNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := request(e, http.MethodGet, "/", "", tt.p)
			err := h.GetAppointment(withID(c, v.ID))
			if tt.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if !strings.Contains(rec.Body.String(), `"doctor":{`) {
					t.Errorf("expected doctor summary, got %s", rec.Body.String())
				}
				return
			}
			if !apperr.Is(err, tt.kind) {
				t.Errorf("expected kind %d, got %v", tt.kind, err)
			}
		})
	}
}

func TestHandler_GetAppointment_Unauthenticated(t *testing.T) {
	h, env, e := newTestHandler()
	v := env.book(t, "10:00", "10:30")
	c, _ := request(e, http.MethodGet, "/", "", nil)
	if err := h.GetAppointment(withID(c, v.ID)); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Errorf("expected unauthorized, got %v", err)
	}
}

func TestHandler_UpdateStatus_PatientCannotConfirm(t *testing.T) {
	h, env, e := newTestHandler()
	v := env.book(t, "10:00", "10:30")

	c, _ := request(e, http.MethodPatch, "/", `{"status":"confirmed"}`, patient(v.PatientID))
	if err := h.UpdateStatus(withID(c, v.ID)); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}

	c, rec := request(e, http.MethodPatch, "/", `{"status":"confirmed"}`, env.doctorPrincipal())
	if err := h.UpdateStatus(withID(c, v.ID)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"status":"confirmed"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_UpdateStatus_Invalid(t *testing.T) {
	h, env, e := newTestHandler()
	v := env.book(t, "10:00", "10:30")
	c, _ := request(e, http.MethodPatch, "/", `{"status":"lost"}`, env.doctorPrincipal())
	if err := h.UpdateStatus(withID(c, v.ID)); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHandler_CancelAppointment_ByPatient(t *testing.T) {
	h, env, e := newTestHandler()
	v := env.book(t, "10:00", "10:30")
	c, rec := request(e, http.MethodPatch, "/", "", patient(v.PatientID))
	if err := h.CancelAppointment(withID(c, v.ID)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"status":"canceled"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_UpdateAppointment_Reschedule(t *testing.T) {
	h, env, e := newTestHandler()
	v := env.book(t, "10:00", "10:30")
	env.book(t, "11:00", "11:30")

	c, _ := request(e, http.MethodPatch, "/", `{"startTime":"11:00","endTime":"11:30"}`, patient(v.PatientID))
	if err := h.UpdateAppointment(withID(c, v.ID)); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	c, rec := request(e, http.MethodPatch, "/", `{"startTime":"12:00","endTime":"12:30"}`, patient(v.PatientID))
	if err := h.UpdateAppointment(withID(c, v.ID)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"startTime":"12:00"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_AddDiagnosis(t *testing.T) {
	h, env, e := newTestHandler()
	v := env.book(t, "10:00", "10:30")
	body := `{"diagnoses":[{"toothNumber":"36","condition":"fracture","severity":"high"}],"prescription":"amoxicillin"}`
	c, rec := request(e, http.MethodPost, "/", body, env.doctorPrincipal())
	if err := h.AddDiagnosis(withID(c, v.ID)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"status":"completed"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

// -- List --

func TestHandler_ListAppointments_PatientScoped(t *testing.T) {
	h, env, e := newTestHandler()
	mine := env.book(t, "10:00", "10:30")
	env.book(t, "11:00", "11:30")

	c, rec := request(e, http.MethodGet, "/", "", patient(mine.PatientID))
	if err := h.ListAppointments(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("expected only own appointment, got %s", rec.Body.String())
	}

	c, _ = request(e, http.MethodGet, "/?patientId="+uuid.New().String(), "", patient(mine.PatientID))
	if err := h.ListAppointments(c); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
}

func TestHandler_ListAppointments_Doctor(t *testing.T) {
	h, env, e := newTestHandler()
	env.book(t, "10:00", "10:30")
	env.book(t, "11:00", "11:30")

	c, _ := request(e, http.MethodGet, "/", "", env.doctorPrincipal())
	if err := h.ListAppointments(c); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected doctorId to be required, got %v", err)
	}

	c, rec := request(e, http.MethodGet, "/?doctorId="+env.doctor.ID.String()+"&date=2026-03-09", "", env.doctorPrincipal())
	if err := h.ListAppointments(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":2`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

// -- Routing --

func TestHandler_Routes(t *testing.T) {
	h, env, e := newTestHandler()
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(zerolog.Nop())
	h.RegisterRoutes(e.Group("/api/v1"))
	v := env.book(t, "10:00", "10:30")

	tests := []struct {
		name   string
		method string
		path   string
		p      *auth.Principal
		want   int
	}{
		{"public slots", http.MethodGet, "/api/v1/doctors/" + env.doctor.ID.String() + "/available-slots?date=2026-03-09", nil, http.StatusOK},
		{"list needs auth", http.MethodGet, "/api/v1/appointments", nil, http.StatusUnauthorized},
		{"patient cannot delete", http.MethodDelete, "/api/v1/appointments/" + v.ID.String(), patient(v.PatientID), http.StatusForbidden},
		{"patient cannot diagnose", http.MethodPost, "/api/v1/appointments/" + v.ID.String() + "/diagnosis", patient(v.PatientID), http.StatusForbidden},
		{"admin deletes", http.MethodDelete, "/api/v1/appointments/" + v.ID.String(), &auth.Principal{UserID: uuid.New(), Role: auth.RoleAdmin}, http.StatusNoContent},
		{"gone after delete", http.MethodGet, "/api/v1/appointments/" + v.ID.String(), patient(v.PatientID), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.p != nil {
				req = req.WithContext(auth.WithPrincipal(req.Context(), *tt.p))
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}
