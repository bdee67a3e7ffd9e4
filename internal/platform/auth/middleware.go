package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/rxintake/rxintake/internal/platform/session"
)

// LoginPath is where unauthenticated callers are pointed.
const LoginPath = "/api/v1/auth/login"

const claimsKey = "auth_claims"

// RequireSession validates the bearer token, rejects revoked tokens and
// attaches the token's session to the request context. Failures answer 401
// with a pointer to the login endpoint. When the revocation check itself
// fails the request is refused with 503.
func RequireSession(issuer *TokenIssuer, revoked Revocations) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get("Authorization"))
			if !ok {
				return unauthorized(c, "missing bearer token")
			}
			claims, err := issuer.Parse(raw)
			if err != nil {
				return unauthorized(c, ErrInvalidToken.Error())
			}
			if revoked != nil {
				isRevoked, err := revoked.IsRevoked(c.Request().Context(), claims.ID)
				if err != nil {
					return echo.NewHTTPError(http.StatusServiceUnavailable, "unable to verify token")
				}
				if isRevoked {
					return unauthorized(c, ErrRevokedToken.Error())
				}
			}

			c.Set(claimsKey, claims)
			req := c.Request()
			c.SetRequest(req.WithContext(session.NewContext(req.Context(), claims.Session)))
			return next(c)
		}
	}
}

// ClaimsFrom returns the claims stored by RequireSession.
func ClaimsFrom(c echo.Context) (*Claims, bool) {
	claims, ok := c.Get(claimsKey).(*Claims)
	return claims, ok
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// unauthorized writes the 401 body directly so that the login pointer is
// part of the response.
func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{
		"error": msg,
		"login": LoginPath,
	})
}

// LoginRequired answers 401 with the login pointer. Handlers use it when a
// service reports session.ErrNoSession.
func LoginRequired(c echo.Context) error {
	return unauthorized(c, session.ErrNoSession.Error())
}
