package middleware

// identity.go defines helpers shared across middleware files. Overlay
// widgets and webhook callers are anonymous; their capability token is
// the only stable identity available for partitioning rate buckets.

import "github.com/labstack/echo/v4"

// overlayToken extracts the capability token from the request. Overlay
// routes carry it as a path parameter, the websocket upgrade as a query
// parameter. Returns "anon" when the request carries neither.
func overlayToken(c echo.Context) string {
	if t := c.Param("token"); t != "" {
		return t
	}
	if t := c.QueryParam("token"); t != "" {
		return t
	}
	return "anon"
}
