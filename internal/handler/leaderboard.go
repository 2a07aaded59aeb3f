package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/stream-donation-hub/internal/middleware"
	"github.com/iliyamo/stream-donation-hub/internal/model"
	"github.com/iliyamo/stream-donation-hub/internal/repository"
	"github.com/iliyamo/stream-donation-hub/internal/service"
)

// LeaderboardHandler serves the operator's leaderboard view and its
// display settings. Entry aggregation happens in the settlement
// pipeline; this handler only reads.
type LeaderboardHandler struct {
	Repo *repository.LeaderboardRepo
}

func NewLeaderboardHandler(repo *repository.LeaderboardRepo) *LeaderboardHandler {
	if repo == nil {
		panic("nil repository passed to NewLeaderboardHandler")
	}
	return &LeaderboardHandler{Repo: repo}
}

func leaderboardSettingsJSON(s *model.LeaderboardSettings) echo.Map {
	return echo.Map{
		"is_enabled":      s.IsEnabled,
		"positions_count": s.PositionsCount,
		"overlay_token":   s.OverlayToken,
	}
}

// Top handles GET /v1/leaderboard?limit=N: ranked donors for the
// operator dashboard.
func (h *LeaderboardHandler) Top(c echo.Context) error {
	streamerID := middleware.StreamerID(c)
	if streamerID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	entries, err := h.Repo.TopDonors(c.Request().Context(), streamerID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	model.AssignRanks(entries)
	return c.JSON(http.StatusOK, echo.Map{"leaderboard": service.LeaderboardPayload(entries)})
}

// Position handles GET /v1/leaderboard/position?donor_name=X: the
// donor's rank, or 0 when they have not donated yet.
func (h *LeaderboardHandler) Position(c echo.Context) error {
	streamerID := middleware.StreamerID(c)
	if streamerID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	name := c.QueryParam("donor_name")
	if name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "donor_name is required"})
	}
	pos, err := h.Repo.Position(c.Request().Context(), streamerID, name)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"donor_name": name, "position": pos})
}

// GetSettings handles GET /v1/leaderboard/settings.
func (h *LeaderboardHandler) GetSettings(c echo.Context) error {
	streamerID := middleware.StreamerID(c)
	if streamerID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	s, err := h.Repo.GetOrCreateSettings(c.Request().Context(), streamerID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"settings": leaderboardSettingsJSON(s)})
}

// UpdateSettings handles PUT /v1/leaderboard/settings.
func (h *LeaderboardHandler) UpdateSettings(c echo.Context) error {
	streamerID := middleware.StreamerID(c)
	if streamerID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body repository.LeaderboardSettingsUpdate
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.PositionsCount != nil && (*body.PositionsCount < 1 || *body.PositionsCount > 100) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "positions_count must be between 1 and 100"})
	}
	ctx := c.Request().Context()
	if _, err := h.Repo.GetOrCreateSettings(ctx, streamerID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if err := h.Repo.UpdateSettings(ctx, streamerID, body); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	s, err := h.Repo.GetOrCreateSettings(ctx, streamerID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"settings": leaderboardSettingsJSON(s)})
}
