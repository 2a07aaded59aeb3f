package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/stream-donation-hub/internal/hub"
	"github.com/iliyamo/stream-donation-hub/internal/middleware"
	"github.com/iliyamo/stream-donation-hub/internal/model"
	"github.com/iliyamo/stream-donation-hub/internal/repository"
	"github.com/iliyamo/stream-donation-hub/internal/service"
)

// GoalHandler manages the streamer's accumulation goal. Donation
// credit happens inside the settlement pipeline; this handler covers
// the operator's configuration surface.
type GoalHandler struct {
	GoalRepo *repository.GoalRepo
	Hub      *hub.Hub
}

func NewGoalHandler(goals *repository.GoalRepo, h *hub.Hub) *GoalHandler {
	if goals == nil || h == nil {
		panic("nil dependency passed to NewGoalHandler")
	}
	return &GoalHandler{GoalRepo: goals, Hub: h}
}

func goalJSON(g *model.AccumulationGoal) echo.Map {
	return echo.Map{
		"title":             g.Title,
		"target_amount":     g.TargetAmount,
		"current_amount":    g.TotalAmount(),
		"donated_amount":    g.CurrentAmount,
		"manual_adjustment": g.ManualAdjustment,
		"percent":           g.ProgressPercent(),
		"is_active":         g.IsActive,
		"overlay_token":     g.OverlayToken,
	}
}

// broadcast pushes the goal's current state into its overlay room.
func (h *GoalHandler) broadcast(g *model.AccumulationGoal) {
	h.Hub.Publish(hub.Room{StreamerID: g.StreamerID, Surface: hub.SurfaceGoal}, service.EventGoalUpdated, service.GoalPayload{
		Title:         g.Title,
		TargetAmount:  g.TargetAmount,
		CurrentAmount: g.TotalAmount(),
		Percent:       g.ProgressPercent(),
	})
}

// Get handles GET /v1/goal, creating the row on first access.
func (h *GoalHandler) Get(c echo.Context) error {
	streamerID := middleware.StreamerID(c)
	if streamerID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	g, err := h.GoalRepo.GetOrCreate(c.Request().Context(), streamerID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"goal": goalJSON(g)})
}

// Update handles PUT /v1/goal: title, target and active flag, all
// optional.
func (h *GoalHandler) Update(c echo.Context) error {
	streamerID := middleware.StreamerID(c)
	if streamerID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		Title        *string `json:"title"`
		TargetAmount *int64  `json:"target_amount"`
		IsActive     *bool   `json:"is_active"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.TargetAmount != nil && *body.TargetAmount < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "target_amount must not be negative"})
	}
	ctx := c.Request().Context()
	if _, err := h.GoalRepo.GetOrCreate(ctx, streamerID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	err := h.GoalRepo.Update(ctx, streamerID, repository.GoalUpdate{
		Title:        body.Title,
		TargetAmount: body.TargetAmount,
		IsActive:     body.IsActive,
	})
	if errors.Is(err, repository.ErrGoalNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "goal not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	g, err := h.GoalRepo.GetOrCreate(ctx, streamerID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	h.broadcast(g)
	return c.JSON(http.StatusOK, echo.Map{"goal": goalJSON(g)})
}

// Adjust handles POST /v1/goal/adjust: a manual correction to the
// displayed total, kept apart from donation-derived progress.
func (h *GoalHandler) Adjust(c echo.Context) error {
	streamerID := middleware.StreamerID(c)
	if streamerID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		Amount int64 `json:"amount"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Amount == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount must not be zero"})
	}
	ctx := c.Request().Context()
	if _, err := h.GoalRepo.GetOrCreate(ctx, streamerID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	applied, err := h.GoalRepo.AddManualAdjustment(ctx, streamerID, body.Amount)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !applied {
		return c.JSON(http.StatusConflict, echo.Map{"error": "no active goal"})
	}
	g, err := h.GoalRepo.GetOrCreate(ctx, streamerID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	h.broadcast(g)
	return c.JSON(http.StatusOK, echo.Map{"goal": goalJSON(g)})
}

// Reset handles POST /v1/goal/reset: progress and adjustments return
// to zero, configuration stays.
func (h *GoalHandler) Reset(c echo.Context) error {
	streamerID := middleware.StreamerID(c)
	if streamerID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	if _, err := h.GoalRepo.GetOrCreate(ctx, streamerID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if err := h.GoalRepo.Reset(ctx, streamerID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	g, err := h.GoalRepo.GetOrCreate(ctx, streamerID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	h.broadcast(g)
	return c.JSON(http.StatusOK, echo.Map{"goal": goalJSON(g)})
}
