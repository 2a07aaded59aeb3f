package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/stream-donation-hub/internal/middleware"
	"github.com/iliyamo/stream-donation-hub/internal/model"
	"github.com/iliyamo/stream-donation-hub/internal/repository"
	"github.com/iliyamo/stream-donation-hub/internal/service"
)

// AlertsHandler manages the streamer's alert policy and the test-alert
// trigger.
type AlertsHandler struct {
	AlertRepo  *repository.AlertSettingsRepo
	Settlement *service.SettlementService
}

func NewAlertsHandler(alerts *repository.AlertSettingsRepo, settlement *service.SettlementService) *AlertsHandler {
	if alerts == nil || settlement == nil {
		panic("nil dependency passed to NewAlertsHandler")
	}
	return &AlertsHandler{AlertRepo: alerts, Settlement: settlement}
}

func alertSettingsJSON(s *model.AlertSettings) echo.Map {
	return echo.Map{
		"minimum_amount": s.MinimumAmount,
		"speech_enabled": s.SpeechEnabled,
		"speech_minimum": s.SpeechMinimum,
		"speech_voice":   s.SpeechVoice,
		"speech_speed":   s.SpeechSpeed,
		"speech_pitch":   s.SpeechPitch,
		"overlay_token":  s.OverlayToken,
	}
}

// Get handles GET /v1/alerts/settings.
func (h *AlertsHandler) Get(c echo.Context) error {
	streamerID := middleware.StreamerID(c)
	if streamerID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	s, err := h.AlertRepo.GetOrCreate(c.Request().Context(), streamerID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"settings": alertSettingsJSON(s)})
}

// Update handles PUT /v1/alerts/settings with partial updates.
func (h *AlertsHandler) Update(c echo.Context) error {
	streamerID := middleware.StreamerID(c)
	if streamerID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body repository.AlertSettingsUpdate
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.MinimumAmount != nil && *body.MinimumAmount < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "minimum_amount must not be negative"})
	}
	if body.SpeechMinimum != nil && *body.SpeechMinimum < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "speech_minimum must not be negative"})
	}
	if body.SpeechSpeed != nil && (*body.SpeechSpeed < 0.5 || *body.SpeechSpeed > 2.0) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "speech_speed must be between 0.5 and 2.0"})
	}
	if body.SpeechPitch != nil && (*body.SpeechPitch < 0.5 || *body.SpeechPitch > 2.0) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "speech_pitch must be between 0.5 and 2.0"})
	}

	ctx := c.Request().Context()
	if _, err := h.AlertRepo.GetOrCreate(ctx, streamerID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if err := h.AlertRepo.Update(ctx, streamerID, body); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	s, err := h.AlertRepo.GetOrCreate(ctx, streamerID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"settings": alertSettingsJSON(s)})
}

// TestAlert handles POST /v1/alerts/test. It pushes a simulated
// donation into the alert room so the operator can check overlay
// placement; nothing is recorded.
func (h *AlertsHandler) TestAlert(c echo.Context) error {
	streamerID := middleware.StreamerID(c)
	if streamerID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		DonorName string `json:"donor_name"`
		Amount    int64  `json:"amount"`
		Message   string `json:"message"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Amount <= 0 {
		body.Amount = 1000
	}
	if err := h.Settlement.TestAlert(c.Request().Context(), streamerID, body.DonorName, body.Amount, body.Message); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to send test alert"})
	}
	return c.JSON(http.StatusOK, echo.Map{"sent": true})
}
