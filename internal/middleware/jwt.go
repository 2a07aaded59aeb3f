package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses
	"strconv"  // numeric parsing for the subject claim
	"strings"  // string utilities for prefix checking and trimming

	"github.com/golang-jwt/jwt/v5" // JWT library for parsing and validating tokens
	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// minted by the account system and injects the authenticated streamer ID
// into the request context. The provided secret must match the issuing
// side. This middleware wraps the operator dashboard routes so handlers
// can read the caller via `c.Get("streamer_id")`.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header starts with "Bearer " followed by the JWT.
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// Parse with HS256 and our secret. The callback checks the
			// algorithm so a token signed another way is rejected.
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			// The subject carries the streamer ID. Issuers write it either
			// as a JSON number or a decimal string.
			var streamerID uint64
			switch sub := claims["sub"].(type) {
			case float64:
				streamerID = uint64(sub)
			case string:
				streamerID, err = strconv.ParseUint(sub, 10, 64)
				if err != nil {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid subject"})
				}
			default:
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid subject"})
			}
			if streamerID == 0 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid subject"})
			}

			c.Set("streamer_id", streamerID)
			return next(c)
		}
	}
}

// StreamerID extracts the authenticated streamer from the context. It
// returns 0 when the route was not wrapped by JWTAuth.
func StreamerID(c echo.Context) uint64 {
	id, _ := c.Get("streamer_id").(uint64)
	return id
}
