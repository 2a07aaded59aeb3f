package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/stream-donation-hub/internal/hub"
	"github.com/iliyamo/stream-donation-hub/internal/repository"
)

// upgrader accepts any origin: overlay widgets run inside OBS browser
// sources and donor pages on arbitrary hosts, and the overlay token is
// the access control, not the Origin header.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler upgrades overlay widgets into their broadcast room. The
// room is derived from the overlay token, never taken from the client,
// so a subscriber can only ever join the surface its token unlocks.
type WSHandler struct {
	Hub             *hub.Hub
	TimerRepo       *repository.TimerRepo
	GoalRepo        *repository.GoalRepo
	LeaderboardRepo *repository.LeaderboardRepo
	AlertRepo       *repository.AlertSettingsRepo
}

func NewWSHandler(h *hub.Hub, timers *repository.TimerRepo, goals *repository.GoalRepo, leaderboards *repository.LeaderboardRepo, alerts *repository.AlertSettingsRepo) *WSHandler {
	if h == nil || timers == nil || goals == nil || leaderboards == nil || alerts == nil {
		panic("nil dependency passed to NewWSHandler")
	}
	return &WSHandler{Hub: h, TimerRepo: timers, GoalRepo: goals, LeaderboardRepo: leaderboards, AlertRepo: alerts}
}

// resolveRoom validates the token for the requested surface and
// returns the room it unlocks. The alert settings token covers both
// the alert overlay and the public donation feed.
func (h *WSHandler) resolveRoom(ctx context.Context, surface, token string) (hub.Room, bool) {
	switch surface {
	case hub.SurfaceTimer:
		if t, err := h.TimerRepo.FindByOverlayToken(ctx, token); err == nil {
			return hub.Room{StreamerID: t.StreamerID, Surface: surface}, true
		}
	case hub.SurfaceGoal:
		if g, err := h.GoalRepo.FindByOverlayToken(ctx, token); err == nil {
			return hub.Room{StreamerID: g.StreamerID, Surface: surface}, true
		}
	case hub.SurfaceLeaderboard:
		if s, err := h.LeaderboardRepo.FindSettingsByOverlayToken(ctx, token); err == nil {
			return hub.Room{StreamerID: s.StreamerID, Surface: surface}, true
		}
	case hub.SurfaceAlert, hub.SurfaceDonationFeed:
		if s, err := h.AlertRepo.FindByOverlayToken(ctx, token); err == nil {
			return hub.Room{StreamerID: s.StreamerID, Surface: surface}, true
		}
	}
	return hub.Room{}, false
}

// Join handles GET /v1/ws/:surface?token=... and keeps the connection
// in its room until the client goes away. The read loop discards
// client messages; the channel is push-only.
func (h *WSHandler) Join(c echo.Context) error {
	surface := c.Param("surface")
	token := c.QueryParam("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing token"})
	}
	room, ok := h.resolveRoom(c.Request().Context(), surface, token)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "invalid token for surface"})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return nil
	}
	h.Hub.Join(room, conn)
	defer h.Hub.Leave(room, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	return nil
}
