package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// publicPaths lists read-only route patterns that bypass authentication:
// health checks and the doctor and slot lookups patients use before signing in.
var publicPaths = map[string]bool{
	"/health":                                true,
	"/health/db":                             true,
	"/api/v1/appointments/available-slots":   true,
	"/api/v1/doctors":                        true,
	"/api/v1/doctors/:id":                    true,
	"/api/v1/doctors/:id/available-slots":    true,
	"/api/v1/doctors/speciality/:speciality": true,
}

// AuthSkipper reports whether the request may proceed without credentials.
// It compares the matched route pattern (c.Path()), so it must run after
// routing, and only applies to safe methods.
func AuthSkipper(c echo.Context) bool {
	m := c.Request().Method
	if m != http.MethodGet && m != http.MethodHead {
		return false
	}
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether the given route pattern is public.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
