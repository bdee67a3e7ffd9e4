package admin

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/rxintake/rxintake/internal/platform/auth"
	"github.com/rxintake/rxintake/internal/platform/credential"
	"github.com/rxintake/rxintake/internal/platform/session"
)

type Handler struct {
	dir     *Directory
	authn   session.Authenticator
	issuer  *auth.TokenIssuer
	revoked auth.Revocations
}

func NewHandler(dir *Directory, authn session.Authenticator, issuer *auth.TokenIssuer, revoked auth.Revocations) *Handler {
	return &Handler{dir: dir, authn: authn, issuer: issuer, revoked: revoked}
}

// RegisterRoutes mounts the auth endpoints on api and the user directory on
// protected, a group that already requires a session. gate guards the
// session and logout endpoints; limit throttles login.
func (h *Handler) RegisterRoutes(api, protected *echo.Group, gate, limit echo.MiddlewareFunc) {
	api.POST("/auth/login", h.Login, limit)
	api.GET("/auth/session", h.Session, gate)
	api.POST("/auth/logout", h.Logout, gate)

	protected.GET("/users", h.ListUsers)
	protected.POST("/users", h.CreateUser)
	protected.PATCH("/users/:id", h.UpdateUser)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	auth.Token
	Session session.Session `json:"session"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, ErrInvalidCredentials.Error())
	}

	s, err := h.authn.Authenticate(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return h.fail(c, err)
	}
	tok, err := h.issuer.Issue(s)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, ErrUnexpected.Error())
	}
	return c.JSON(http.StatusOK, loginResponse{Token: tok, Session: s})
}

func (h *Handler) Session(c echo.Context) error {
	s, ok := session.FromContext(c.Request().Context())
	if !ok {
		return auth.LoginRequired(c)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) Logout(c echo.Context) error {
	if claims, ok := auth.ClaimsFrom(c); ok && h.revoked != nil && claims.ExpiresAt != nil {
		if err := h.revoked.Revoke(c.Request().Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "unable to revoke token")
		}
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListUsers(c echo.Context) error {
	accts, err := h.dir.List(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	if accts == nil {
		accts = []*Account{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  accts,
		"total": len(accts),
	})
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	IsActive *bool  `json:"is_active"`
}

func (h *Handler) CreateUser(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	acct, err := h.dir.Create(c.Request().Context(), NewAccount{
		Username: req.Username,
		Password: req.Password,
		FullName: req.FullName,
		Active:   active,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, acct)
}

type updateUserRequest struct {
	Username *string `json:"username"`
	FullName *string `json:"full_name"`
	IsActive *bool   `json:"is_active"`
	Password *string `json:"password"`
}

func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Username != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "username cannot be changed")
	}

	err = h.dir.Update(c.Request().Context(), id, AccountUpdate{
		FullName: req.FullName,
		Active:   req.IsActive,
		Password: req.Password,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, session.ErrNoSession):
		return auth.LoginRequired(c)
	case errors.Is(err, ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, ErrInvalidCredentials.Error())
	case errors.Is(err, ErrUsernameRequired), errors.Is(err, ErrPasswordRequired):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, credential.ErrPasswordTooLong):
		return echo.NewHTTPError(http.StatusBadRequest, credential.ErrPasswordTooLong.Error())
	case errors.Is(err, ErrDuplicateUsername), errors.Is(err, ErrDirectoryNotEmpty):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrAccountNotFound):
		return echo.NewHTTPError(http.StatusNotFound, ErrAccountNotFound.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, ErrUnexpected.Error())
	}
}
