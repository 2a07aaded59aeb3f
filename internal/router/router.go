package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/stream-donation-hub/internal/handler"    // handlers implementing the endpoints
	"github.com/iliyamo/stream-donation-hub/internal/middleware" // JWT and rate limit middleware
)

// Handlers bundles everything the router mounts. All fields must be
// non-nil except Public/Overlay rate limiters, which may be nil when
// rate limiting is disabled.
type Handlers struct {
	Payments    *handler.PaymentHandler
	Donations   *handler.DonationHandler
	Timer       *handler.TimerHandler
	Goal        *handler.GoalHandler
	Alerts      *handler.AlertsHandler
	Leaderboard *handler.LeaderboardHandler
	Overlay     *handler.OverlayHandler
	WS          *handler.WSHandler
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterPublic mounts the donor-facing and gateway-facing endpoints.
// None of these carry a session; the webhook and overlay tokens are
// the authorization. The optional limiter is applied to the whole
// group.
func RegisterPublic(e *echo.Echo, h Handlers, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1")
	if limiter != nil {
		g.Use(limiter)
	}

	// Donation intents and the sound effect catalog behind them.
	g.POST("/donations", h.Donations.Create)
	g.GET("/sound-effects", h.Overlay.SoundEffects)

	// Payment settlement: the gateway webhook and the donor's poll.
	g.POST("/payments/callback/:token", h.Payments.Callback)
	g.GET("/payments/check/:token", h.Payments.Check)

	// Overlay snapshots, addressed by capability token.
	g.GET("/overlay/timer/:token", h.Overlay.Timer)
	g.GET("/overlay/goal/:token", h.Overlay.Goal)
	g.GET("/overlay/leaderboard/:token", h.Overlay.Leaderboard)
	g.GET("/overlay/alerts/:token", h.Overlay.Alerts)
	g.GET("/overlay/feed/:token", h.Overlay.Feed)

	// The overlay's write paths: checkpoint saves and run-out resets.
	g.POST("/overlay/timer/:token/countdown", h.Timer.UpdateCountdown)
	g.POST("/overlay/timer/:token/auto-reset", h.Timer.AutoReset)

	// Live updates. The websocket validates its token during upgrade.
	g.GET("/ws/:surface", h.WS.Join)
}

// RegisterOperator mounts the authenticated dashboard endpoints under
// /v1 behind JWT verification. The limiter runs after the JWT check so
// it can bucket requests by the authenticated account; pass nil when
// rate limiting is disabled.
func RegisterOperator(e *echo.Echo, h Handlers, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	if limiter != nil {
		g.Use(limiter)
	}

	// Donation history.
	g.GET("/donations", h.Donations.List)
	g.GET("/donations/stats", h.Donations.Stats)
	g.GET("/donations/recent", h.Donations.Recent)

	// Countdown timer transitions and configuration.
	g.GET("/timer", h.Timer.Get)
	g.POST("/timer/start", h.Timer.Start)
	g.POST("/timer/pause", h.Timer.Pause)
	g.POST("/timer/resume", h.Timer.Resume)
	g.POST("/timer/reset", h.Timer.Reset)
	g.POST("/timer/adjust-time", h.Timer.AdjustTime)
	g.PUT("/timer/initial-time", h.Timer.SetInitialTime)
	g.PUT("/timer/minute-price", h.Timer.SetMinutePrice)

	// Accumulation goal.
	g.GET("/goal", h.Goal.Get)
	g.PUT("/goal", h.Goal.Update)
	g.POST("/goal/adjust", h.Goal.Adjust)
	g.POST("/goal/reset", h.Goal.Reset)

	// Alert policy and the overlay test trigger.
	g.GET("/alerts/settings", h.Alerts.Get)
	g.PUT("/alerts/settings", h.Alerts.Update)
	g.POST("/alerts/test", h.Alerts.TestAlert)

	// Leaderboard views and display settings.
	g.GET("/leaderboard", h.Leaderboard.Top)
	g.GET("/leaderboard/position", h.Leaderboard.Position)
	g.GET("/leaderboard/settings", h.Leaderboard.GetSettings)
	g.PUT("/leaderboard/settings", h.Leaderboard.UpdateSettings)
}
