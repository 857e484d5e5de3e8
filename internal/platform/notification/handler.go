package notification

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/pkg/pagination"
)

// Handler exposes the caller's own inbox. Every route is scoped to the
// authenticated user.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications", h.List)
	g.PATCH("/notifications/read-all", h.MarkAllRead)
	g.PATCH("/notifications/:id/read", h.MarkRead)
	g.DELETE("/notifications/:id", h.Delete)
}

// ListResponse is a page of notifications plus the caller's unread total.
type ListResponse struct {
	*pagination.Response
	UnreadCount int `json:"unreadCount"`
}

func (h *Handler) List(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	unreadOnly, _ := strconv.ParseBool(c.QueryParam("unreadOnly"))

	ctx := c.Request().Context()
	items, total, err := h.store.List(ctx, ListFilter{
		UserID:     p.UserID,
		UnreadOnly: unreadOnly,
		Limit:      pg.Limit,
		Offset:     pg.Offset,
	})
	if err != nil {
		return apperr.Upstream(err, "failed to list notifications")
	}
	unread, err := h.store.CountUnread(ctx, p.UserID)
	if err != nil {
		return apperr.Upstream(err, "failed to count notifications")
	}
	return c.JSON(http.StatusOK, ListResponse{
		Response:    pagination.NewResponse(items, total, pg.Limit, pg.Offset),
		UnreadCount: unread,
	})
}

func (h *Handler) MarkRead(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid notification id")
	}
	n, err := h.store.MarkRead(c.Request().Context(), id, p.UserID)
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("notification")
	}
	if err != nil {
		return apperr.Upstream(err, "failed to update notification")
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) MarkAllRead(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	updated, err := h.store.MarkAllRead(c.Request().Context(), p.UserID)
	if err != nil {
		return apperr.Upstream(err, "failed to update notifications")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "all notifications marked as read",
		"updated": updated,
	})
}

func (h *Handler) Delete(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid notification id")
	}
	err = h.store.Delete(c.Request().Context(), id, p.UserID)
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("notification")
	}
	if err != nil {
		return apperr.Upstream(err, "failed to delete notification")
	}
	return c.NoContent(http.StatusNoContent)
}

func principal(c echo.Context) (auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return auth.Principal{}, apperr.Unauthorized("authentication required")
	}
	return p, nil
}
