package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/stream-donation-hub/internal/model"
	"github.com/iliyamo/stream-donation-hub/internal/repository"
	"github.com/iliyamo/stream-donation-hub/internal/service"
)

// OverlayHandler serves the unauthenticated snapshot endpoints the
// browser-source widgets load on (re)connect. Every route is addressed
// by an overlay capability token; there are no sessions and no
// streamer ids in the URL.
type OverlayHandler struct {
	Timers          *service.TimerService
	GoalRepo        *repository.GoalRepo
	LeaderboardRepo *repository.LeaderboardRepo
	AlertRepo       *repository.AlertSettingsRepo
	DonationRepo    *repository.DonationRepo
	SoundRepo       *repository.SoundEffectRepo
}

func NewOverlayHandler(timers *service.TimerService, goals *repository.GoalRepo, leaderboards *repository.LeaderboardRepo, alerts *repository.AlertSettingsRepo, donations *repository.DonationRepo, sounds *repository.SoundEffectRepo) *OverlayHandler {
	if timers == nil || goals == nil || leaderboards == nil || alerts == nil || donations == nil || sounds == nil {
		panic("nil dependency passed to NewOverlayHandler")
	}
	return &OverlayHandler{
		Timers:          timers,
		GoalRepo:        goals,
		LeaderboardRepo: leaderboards,
		AlertRepo:       alerts,
		DonationRepo:    donations,
		SoundRepo:       sounds,
	}
}

// Timer handles GET /v1/overlay/timer/:token. Reading the snapshot
// lazily advances the stored checkpoint when enough time has passed
// since the last write.
func (h *OverlayHandler) Timer(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing token"})
	}
	_, payload, err := h.Timers.SnapshotByToken(c.Request().Context(), token)
	if errors.Is(err, repository.ErrTimerNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown overlay token"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"timer": payload})
}

// Goal handles GET /v1/overlay/goal/:token.
func (h *OverlayHandler) Goal(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing token"})
	}
	g, err := h.GoalRepo.FindByOverlayToken(c.Request().Context(), token)
	if errors.Is(err, repository.ErrGoalNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown overlay token"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"goal": service.GoalPayload{
		Title:         g.Title,
		TargetAmount:  g.TargetAmount,
		CurrentAmount: g.TotalAmount(),
		Percent:       g.ProgressPercent(),
	}, "is_active": g.IsActive})
}

// Leaderboard handles GET /v1/overlay/leaderboard/:token.
func (h *OverlayHandler) Leaderboard(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing token"})
	}
	ctx := c.Request().Context()
	s, err := h.LeaderboardRepo.FindSettingsByOverlayToken(ctx, token)
	if errors.Is(err, repository.ErrSettingsNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown overlay token"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !s.IsEnabled {
		return c.JSON(http.StatusOK, echo.Map{"enabled": false, "leaderboard": []any{}})
	}
	entries, err := h.LeaderboardRepo.TopDonors(ctx, s.StreamerID, s.PositionsCount)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	model.AssignRanks(entries)
	return c.JSON(http.StatusOK, echo.Map{"enabled": true, "leaderboard": service.LeaderboardPayload(entries)})
}

// Alerts handles GET /v1/overlay/alerts/:token. The alert widget only
// needs the display policy; actual alerts arrive over the websocket.
func (h *OverlayHandler) Alerts(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing token"})
	}
	s, err := h.AlertRepo.FindByOverlayToken(c.Request().Context(), token)
	if errors.Is(err, repository.ErrSettingsNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown overlay token"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"settings": echo.Map{
		"minimum_amount": s.MinimumAmount,
		"speech_enabled": s.SpeechEnabled,
	}})
}

// Feed handles GET /v1/overlay/feed/:token: the most recent settled
// donations, shown while the widget waits for live events. Shares the
// alert settings token.
func (h *OverlayHandler) Feed(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing token"})
	}
	ctx := c.Request().Context()
	s, err := h.AlertRepo.FindByOverlayToken(ctx, token)
	if errors.Is(err, repository.ErrSettingsNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown overlay token"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	recent, err := h.DonationRepo.RecentByStreamer(ctx, s.StreamerID, 20)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	items := make([]echo.Map, 0, len(recent))
	for i := range recent {
		items = append(items, donationJSON(&recent[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"donations": items})
}

// SoundEffects handles GET /v1/sound-effects: the catalog shown on the
// donor page.
func (h *OverlayHandler) SoundEffects(c echo.Context) error {
	clips, err := h.SoundRepo.ListActive(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	items := make([]echo.Map, 0, len(clips))
	for i := range clips {
		items = append(items, echo.Map{
			"id":       clips[i].ID,
			"name":     clips[i].Name,
			"price":    clips[i].Price,
			"duration": clips[i].DurationSeconds,
			"file_url": clips[i].FileURL(),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"sound_effects": items})
}
