package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

var securityHeaders = map[string]string{
	"X-Content-Type-Options":    "nosniff",
	"X-Frame-Options":           "DENY",
	"Referrer-Policy":           "no-referrer",
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
	"Permissions-Policy":        "geolocation=()",
}

// SecurityHeaders sets conservative response headers. Patient data must not
// be cached by intermediaries, so API responses also get Cache-Control:
// no-store. Storage paths are left cacheable since object names are unique.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for k, v := range securityHeaders {
				h.Set(k, v)
			}
			if !isStoragePath(c.Request().URL.Path) {
				h.Set("Cache-Control", "no-store")
				h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}
			return next(c)
		}
	}
}

func isStoragePath(p string) bool {
	return strings.HasPrefix(p, "/storage/")
}
