package scheduling

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/httputil"
	"github.com/clinic/clinic/pkg/pagination"
	"github.com/clinic/clinic/pkg/timeslot"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Public availability lookups
	api.GET("/appointments/available-slots", h.AvailableSlots)
	api.GET("/doctors/:id/available-slots", h.DoctorAvailableSlots)

	// Any authenticated caller; ownership is checked per appointment.
	authed := api.Group("", auth.RequireRole(auth.RolePatient, auth.RoleDoctor))
	authed.POST("/appointments", h.CreateAppointment)
	authed.GET("/appointments", h.ListAppointments)
	authed.GET("/appointments/:id", h.GetAppointment)
	authed.PATCH("/appointments/:id", h.UpdateAppointment)
	authed.PATCH("/appointments/:id/status", h.UpdateStatus)
	authed.PATCH("/appointments/:id/cancel", h.CancelAppointment)

	doctorGroup := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctorGroup.POST("/appointments/:id/diagnosis", h.AddDiagnosis)

	adminGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	adminGroup.DELETE("/appointments/:id", h.DeleteAppointment)
}

// -- Availability --

func (h *Handler) AvailableSlots(c echo.Context) error {
	if c.QueryParam("doctorId") == "" || c.QueryParam("date") == "" {
		return apperr.Validation("doctorId and date are required")
	}
	doctorID, err := httputil.QueryUUID(c, "doctorId")
	if err != nil {
		return err
	}
	return h.availableSlots(c, doctorID)
}

func (h *Handler) DoctorAvailableSlots(c echo.Context) error {
	doctorID, err := httputil.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	if c.QueryParam("date") == "" {
		return apperr.Validation("date is required")
	}
	return h.availableSlots(c, doctorID)
}

func (h *Handler) availableSlots(c echo.Context, doctorID uuid.UUID) error {
	date, err := timeslot.ParseDate(c.QueryParam("date"))
	if err != nil {
		return apperr.Validation("%s", err.Error())
	}
	slots, err := h.svc.AvailableSlots(c.Request().Context(), doctorID, date)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, slots)
}

// -- Appointments --

func (h *Handler) CreateAppointment(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var in CreateInput
	if err := httputil.Bind(c, &in); err != nil {
		return err
	}
	if in.PatientID == uuid.Nil && p.Role == auth.RolePatient {
		in.PatientID = p.UserID
	}
	if in.PatientID == uuid.Nil {
		return apperr.Validation("patientId is required")
	}

	ctx := c.Request().Context()
	doc, err := h.svc.doctors.GetDoctor(ctx, in.DoctorID)
	if err != nil {
		return err
	}
	if !auth.Allow(p, auth.ActionBook, auth.Resource{PatientID: in.PatientID, DoctorUserID: doc.UserID}) {
		return apperr.Forbidden("not allowed to book for this patient")
	}

	view, err := h.svc.CreateAppointment(ctx, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, view)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	a, err := h.authorize(c, auth.ActionRead)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.svc.View(c.Request().Context(), a))
}

func (h *Handler) ListAppointments(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	f := ListFilter{
		Status: Status(c.QueryParam("status")),
		Type:   Type(c.QueryParam("type")),
		Limit:  pg.Limit,
		Offset: pg.Offset,
	}
	if f.DoctorID, err = httputil.QueryUUID(c, "doctorId"); err != nil {
		return err
	}
	if f.PatientID, err = httputil.QueryUUID(c, "patientId"); err != nil {
		return err
	}
	if f.From, err = queryDate(c, "from"); err != nil {
		return err
	}
	if f.To, err = queryDate(c, "to"); err != nil {
		return err
	}
	if day, err := queryDate(c, "date"); err != nil {
		return err
	} else if day != nil {
		f.From, f.To = day, day
	}

	ctx := c.Request().Context()
	switch p.Role {
	case auth.RolePatient:
		if f.PatientID != uuid.Nil && f.PatientID != p.UserID {
			return apperr.Forbidden("patients may only list their own appointments")
		}
		f.PatientID = p.UserID
	case auth.RoleDoctor:
		if f.DoctorID == uuid.Nil {
			return apperr.Validation("doctorId is required")
		}
		doc, err := h.svc.doctors.GetDoctor(ctx, f.DoctorID)
		if err != nil {
			return err
		}
		if doc.UserID != p.UserID {
			return apperr.Forbidden("doctors may only list their own appointments")
		}
	}

	items, total, err := h.svc.ListAppointments(ctx, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	a, err := h.authorize(c, auth.ActionReschedule)
	if err != nil {
		return err
	}
	var in UpdateInput
	if err := httputil.Bind(c, &in); err != nil {
		return err
	}
	if in.DoctorID != nil && *in.DoctorID != a.DoctorID {
		p, _ := principal(c)
		doc, err := h.svc.doctors.GetDoctor(c.Request().Context(), *in.DoctorID)
		if err != nil {
			return err
		}
		if !auth.Allow(p, auth.ActionReschedule, auth.Resource{PatientID: a.PatientID, DoctorUserID: doc.UserID}) {
			return apperr.Forbidden("not allowed to move this appointment")
		}
	}
	view, err := h.svc.UpdateSchedule(c.Request().Context(), a.ID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

type statusRequest struct {
	Status Status `json:"status" validate:"required"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	var req statusRequest
	if err := httputil.Bind(c, &req); err != nil {
		return err
	}
	if !req.Status.Valid() {
		return apperr.Validation("invalid status")
	}
	action := auth.ActionChangeStatus
	if req.Status == StatusCanceled {
		action = auth.ActionCancel
	}
	a, err := h.authorize(c, action)
	if err != nil {
		return err
	}
	view, err := h.svc.UpdateStatus(c.Request().Context(), a.ID, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	a, err := h.authorize(c, auth.ActionCancel)
	if err != nil {
		return err
	}
	view, err := h.svc.CancelAppointment(c.Request().Context(), a.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) AddDiagnosis(c echo.Context) error {
	a, err := h.authorize(c, auth.ActionDiagnose)
	if err != nil {
		return err
	}
	var in DiagnosisInput
	if err := httputil.Bind(c, &in); err != nil {
		return err
	}
	view, err := h.svc.AddDiagnosis(c.Request().Context(), a.ID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	a, err := h.authorize(c, auth.ActionDelete)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAppointment(c.Request().Context(), a.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// authorize loads the appointment named by :id and checks the caller may
// perform action on it. Callers without access get a 404 so appointment ids
// are not disclosed.
func (h *Handler) authorize(c echo.Context, action auth.Action) (*Appointment, error) {
	p, err := principal(c)
	if err != nil {
		return nil, err
	}
	id, err := httputil.ParamUUID(c, "id")
	if err != nil {
		return nil, err
	}
	ctx := c.Request().Context()
	a, err := h.svc.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	res := auth.Resource{PatientID: a.PatientID}
	if p.Role == auth.RoleDoctor {
		if doc, err := h.svc.doctors.GetDoctor(ctx, a.DoctorID); err == nil {
			res.DoctorUserID = doc.UserID
		}
	}
	if auth.Allow(p, action, res) {
		return a, nil
	}
	if auth.Allow(p, auth.ActionRead, res) {
		return nil, apperr.Forbidden("not allowed to " + string(action) + " this appointment")
	}
	return nil, apperr.NotFound("appointment")
}

func principal(c echo.Context) (auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return auth.Principal{}, apperr.Unauthorized("authentication required")
	}
	return p, nil
}

func queryDate(c echo.Context, name string) (*timeslot.Date, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	d, err := timeslot.ParseDate(raw)
	if err != nil {
		return nil, apperr.Validation("invalid %s: expected YYYY-MM-DD", name)
	}
	return &d, nil
}
