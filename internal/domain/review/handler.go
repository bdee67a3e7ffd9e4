package review

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/rxintake/rxintake/internal/domain/intake"
	"github.com/rxintake/rxintake/internal/platform/auth"
	"github.com/rxintake/rxintake/internal/platform/session"
	"github.com/rxintake/rxintake/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the review endpoints on a group that already
// requires a session.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/submissions", h.ListSubmissions)
	g.GET("/submissions/:id", h.GetSubmission)
	g.PATCH("/submissions/:id/status", h.UpdateStatus)
}

type listResponse struct {
	*pagination.Response
	Summary Summary `json:"summary"`
}

func (h *Handler) ListSubmissions(c echo.Context) error {
	p := pagination.FromContext(c)
	opts := intake.ListOptions{Limit: p.Limit, Offset: p.Offset}
	if raw := c.QueryParam("status"); raw != "" {
		st, ok := intake.ParseStatus(raw)
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown status")
		}
		opts.Status = st
	}

	page, err := h.svc.ListPage(c.Request().Context(), opts)
	if err != nil {
		return h.fail(c, err)
	}
	items := page.Items
	if items == nil {
		items = []*intake.Submission{}
	}
	return c.JSON(http.StatusOK, listResponse{
		Response: pagination.NewResponse(items, page.Total, p.Limit, p.Offset),
		Summary:  page.Summary,
	})
}

func (h *Handler) GetSubmission(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sub, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, sub)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	next, ok := intake.ParseStatus(req.Status)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "status must be one of pending, processing, completed")
	}

	sub, err := h.svc.Transition(c.Request().Context(), id, next)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, sub)
}

func (h *Handler) fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, session.ErrNoSession):
		return auth.LoginRequired(c)
	case errors.Is(err, ErrSubmissionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, ErrSubmissionNotFound.Error())
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, ErrUnexpected.Error())
	}
}
