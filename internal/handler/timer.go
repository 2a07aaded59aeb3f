package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/stream-donation-hub/internal/middleware"
	"github.com/iliyamo/stream-donation-hub/internal/repository"
	"github.com/iliyamo/stream-donation-hub/internal/service"
)

// TimerHandler exposes the countdown timer to two audiences: the
// authenticated operator (state transitions and configuration) and the
// anonymous overlay (checkpoint saves and auto-reset, addressed by
// overlay token).
type TimerHandler struct {
	Timers *service.TimerService
}

func NewTimerHandler(timers *service.TimerService) *TimerHandler {
	if timers == nil {
		panic("nil timer service passed to NewTimerHandler")
	}
	return &TimerHandler{Timers: timers}
}

// timerError maps service errors to HTTP responses shared by every
// timer endpoint.
func timerError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": "action not allowed in current timer state"})
	case errors.Is(err, repository.ErrTimerNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "timer not found"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
}

func (h *TimerHandler) respond(c echo.Context, t any) error {
	return c.JSON(http.StatusOK, echo.Map{"timer": t})
}

// Get handles GET /v1/timer for the operator dashboard.
func (h *TimerHandler) Get(c echo.Context) error {
	streamerID := middleware.StreamerID(c)
	if streamerID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	t, err := h.Timers.Get(c.Request().Context(), streamerID)
	if err != nil {
		return timerError(c, err)
	}
	return h.respond(c, service.TimerPayload(t, time.Now()))
}

// Start handles POST /v1/timer/start.
func (h *TimerHandler) Start(c echo.Context) error {
	streamerID := middleware.StreamerID(c)
	if streamerID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	t, err := h.Timers.Start(c.Request().Context(), streamerID)
	if err != nil {
		return timerError(c, err)
	}
	return h.respond(c, service.TimerPayload(t, time.Now()))
}

// Pause handles POST /v1/timer/pause. The body carries the remaining
// time the overlay currently displays; the server records it verbatim.
func (h *TimerHandler) Pause(c echo.Context) error {
	streamerID := middleware.StreamerID(c)
	if streamerID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		Minutes int `json:"minutes"`
		Seconds int `json:"seconds"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	t, err := h.Timers.Pause(c.Request().Context(), streamerID, body.Minutes, body.Seconds)
	if err != nil {
		return timerError(c, err)
	}
	return h.respond(c, service.TimerPayload(t, time.Now()))
}

// Resume handles POST /v1/timer/resume.
func (h *TimerHandler) Resume(c echo.Context) error {
	streamerID := middleware.StreamerID(c)
	if streamerID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	t, err := h.Timers.Resume(c.Request().Context(), streamerID)
	if err != nil {
		return timerError(c, err)
	}
	return h.respond(c, service.TimerPayload(t, time.Now()))
}

// Reset handles POST /v1/timer/reset.
func (h *TimerHandler) Reset(c echo.Context) error {
	streamerID := middleware.StreamerID(c)
	if streamerID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	t, err := h.Timers.Reset(c.Request().Context(), streamerID)
	if err != nil {
		return timerError(c, err)
	}
	return h.respond(c, service.TimerPayload(t, time.Now()))
}

// SetInitialTime handles PUT /v1/timer/initial-time. Idle only.
func (h *TimerHandler) SetInitialTime(c echo.Context) error {
	streamerID := middleware.StreamerID(c)
	if streamerID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		Minutes int `json:"minutes"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	t, err := h.Timers.SetInitialTime(c.Request().Context(), streamerID, body.Minutes)
	if err != nil {
		return timerError(c, err)
	}
	return h.respond(c, service.TimerPayload(t, time.Now()))
}

// AdjustTime handles POST /v1/timer/adjust-time: manual corrections,
// positive or negative, while the timer is started.
func (h *TimerHandler) AdjustTime(c echo.Context) error {
	streamerID := middleware.StreamerID(c)
	if streamerID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		Minutes int `json:"minutes"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	t, err := h.Timers.AdjustTime(c.Request().Context(), streamerID, body.Minutes)
	if err != nil {
		return timerError(c, err)
	}
	return h.respond(c, service.TimerPayload(t, time.Now()))
}

// SetMinutePrice handles PUT /v1/timer/minute-price.
func (h *TimerHandler) SetMinutePrice(c echo.Context) error {
	streamerID := middleware.StreamerID(c)
	if streamerID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		Price int64 `json:"price"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Price <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "price must be positive"})
	}
	t, err := h.Timers.SetMinutePrice(c.Request().Context(), streamerID, body.Price)
	if err != nil {
		return timerError(c, err)
	}
	return h.respond(c, service.TimerPayload(t, time.Now()))
}

// UpdateCountdown handles POST /v1/overlay/timer/:token/countdown, the
// overlay's periodic checkpoint save.
func (h *TimerHandler) UpdateCountdown(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing token"})
	}
	var body struct {
		Minutes int `json:"minutes"`
		Seconds int `json:"seconds"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	t, err := h.Timers.UpdateCountdown(c.Request().Context(), token, body.Minutes, body.Seconds)
	if err != nil {
		return timerError(c, err)
	}
	return h.respond(c, service.TimerPayload(t, time.Now()))
}

// AutoReset handles POST /v1/overlay/timer/:token/auto-reset, the
// overlay's notification that the countdown ran out.
func (h *TimerHandler) AutoReset(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing token"})
	}
	t, err := h.Timers.AutoReset(c.Request().Context(), token)
	if err != nil {
		return timerError(c, err)
	}
	return h.respond(c, service.TimerPayload(t, time.Now()))
}
