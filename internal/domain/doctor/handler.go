package doctor

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/httputil"
	"github.com/clinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the doctor routes on api. The read routes are public;
// GET /doctors/:id/available-slots is served by the scheduling handler.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/doctors", h.ListDoctors)
	api.GET("/doctors/:id", h.GetDoctor)
	api.GET("/doctors/speciality/:speciality", h.ListBySpeciality)

	doctorGroup := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctorGroup.GET("/doctors/user/:userId", h.GetDoctorByUserID)
	doctorGroup.PATCH("/doctors/:id", h.UpdateDoctor)
	doctorGroup.PATCH("/doctors/:id/working-hours", h.UpdateWorkingHours)

	adminGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	adminGroup.POST("/doctors", h.CreateDoctor)
	adminGroup.DELETE("/doctors/:id", h.DeleteDoctor)
}

func (h *Handler) CreateDoctor(c echo.Context) error {
	var in CreateInput
	if err := httputil.Bind(c, &in); err != nil {
		return err
	}
	d, err := h.svc.CreateDoctor(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := httputil.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) GetDoctorByUserID(c echo.Context) error {
	userID, err := httputil.ParamUUID(c, "userId")
	if err != nil {
		return err
	}
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	if !p.IsAdmin() && p.UserID != userID {
		return apperr.Forbidden("not allowed to view this doctor profile")
	}
	d, err := h.svc.GetDoctorByUserID(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	availableOnly, _ := strconv.ParseBool(c.QueryParam("available"))
	return h.list(c, ListFilter{
		Speciality:    c.QueryParam("speciality"),
		AvailableOnly: availableOnly,
		Limit:         pg.Limit,
		Offset:        pg.Offset,
	})
}

func (h *Handler) ListBySpeciality(c echo.Context) error {
	pg := pagination.FromContext(c)
	return h.list(c, ListFilter{
		Speciality: c.Param("speciality"),
		Limit:      pg.Limit,
		Offset:     pg.Offset,
	})
}

func (h *Handler) list(c echo.Context, f ListFilter) error {
	items, total, err := h.svc.ListDoctors(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, f.Limit, f.Offset))
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	d, err := h.authorize(c, auth.ActionEditDoctor)
	if err != nil {
		return err
	}
	var in UpdateInput
	if err := httputil.Bind(c, &in); err != nil {
		return err
	}
	updated, err := h.svc.UpdateDoctor(c.Request().Context(), d.ID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) UpdateWorkingHours(c echo.Context) error {
	d, err := h.authorize(c, auth.ActionEditDoctor)
	if err != nil {
		return err
	}
	var in WorkingHoursInput
	if err := httputil.Bind(c, &in); err != nil {
		return err
	}
	updated, err := h.svc.UpdateWorkingHours(c.Request().Context(), d.ID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteDoctor(c echo.Context) error {
	id, err := httputil.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteDoctor(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// authorize loads the doctor named by :id and checks the caller may act on it.
func (h *Handler) authorize(c echo.Context, action auth.Action) (*Doctor, error) {
	id, err := httputil.ParamUUID(c, "id")
	if err != nil {
		return nil, err
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return nil, err
	}
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	if !auth.Allow(p, action, auth.Resource{DoctorUserID: d.UserID}) {
		return nil, apperr.Forbidden("not allowed to modify this doctor")
	}
	return d, nil
}
