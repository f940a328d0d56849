package server

import (
	"github.com/labstack/echo/v4"
)

// MountEcho serves the router's endpoints from an echo instance, under the
// router's base path.
func MountEcho(e *echo.Echo, r *Router) {
	h := echo.WrapHandler(r.Handler())
	base := r.BasePath()
	if base != "" {
		e.Any(base, h)
	}
	e.Any(base+"/*", h)
}
