package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/stream-donation-hub/internal/hub"
	"github.com/iliyamo/stream-donation-hub/internal/model"
)

// ErrInvalidTransition is returned when an operator action does not
// apply to the timer's current state (pausing an idle timer, starting
// a running one, seeding initial time after start).
var ErrInvalidTransition = errors.New("timer: invalid transition for current state")

// timerTransitions is the slice of the timer repository the service
// needs. Each mutation is a single conditional UPDATE whose boolean
// reports whether the state allowed it.
type timerTransitions interface {
	GetOrCreate(ctx context.Context, streamerID uint64) (*model.CountdownTimer, error)
	FindByOverlayToken(ctx context.Context, token string) (*model.CountdownTimer, error)
	StartFresh(ctx context.Context, streamerID uint64) (bool, error)
	Resume(ctx context.Context, streamerID uint64) (bool, error)
	Pause(ctx context.Context, streamerID uint64, minutes, seconds int) (bool, error)
	AddManualTime(ctx context.Context, streamerID uint64, minutes int) (bool, error)
	SetInitialTime(ctx context.Context, streamerID uint64, totalMinutes int) (bool, error)
	SetMinutePrice(ctx context.Context, streamerID uint64, price int64) error
	AdvanceCheckpoint(ctx context.Context, t *model.CountdownTimer, minutes, seconds int) (bool, error)
	Reset(ctx context.Context, streamerID uint64) error
	AutoReset(ctx context.Context, timerID uint64) error
}

// TimerService exposes the operator transitions and the overlay
// checkpoint path of the countdown timer. Every successful mutation is
// broadcast to the timer room so all open overlays converge.
type TimerService struct {
	timers timerTransitions
	hub    broadcaster
	now    func() time.Time
}

func NewTimerService(timers timerTransitions, h broadcaster) *TimerService {
	return &TimerService{timers: timers, hub: h, now: time.Now}
}

// Get returns the streamer's timer, creating the row on first access.
func (s *TimerService) Get(ctx context.Context, streamerID uint64) (*model.CountdownTimer, error) {
	return s.timers.GetOrCreate(ctx, streamerID)
}

// Start transitions Idle -> Running.
func (s *TimerService) Start(ctx context.Context, streamerID uint64) (*model.CountdownTimer, error) {
	if _, err := s.timers.GetOrCreate(ctx, streamerID); err != nil {
		return nil, err
	}
	ok, err := s.timers.StartFresh(ctx, streamerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	return s.broadcastState(ctx, streamerID)
}

// Pause freezes a Running timer at the client-reported remaining time.
func (s *TimerService) Pause(ctx context.Context, streamerID uint64, minutes, seconds int) (*model.CountdownTimer, error) {
	if minutes < 0 || seconds < 0 || seconds > 59 {
		return nil, ErrInvalidTransition
	}
	ok, err := s.timers.Pause(ctx, streamerID, minutes, seconds)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	return s.broadcastState(ctx, streamerID)
}

// Resume unfreezes a Paused timer.
func (s *TimerService) Resume(ctx context.Context, streamerID uint64) (*model.CountdownTimer, error) {
	ok, err := s.timers.Resume(ctx, streamerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	return s.broadcastState(ctx, streamerID)
}

// AdjustTime applies an operator correction, positive or negative, to
// a started timer.
func (s *TimerService) AdjustTime(ctx context.Context, streamerID uint64, minutes int) (*model.CountdownTimer, error) {
	if minutes == 0 {
		return s.timers.GetOrCreate(ctx, streamerID)
	}
	ok, err := s.timers.AddManualTime(ctx, streamerID, minutes)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	return s.broadcastState(ctx, streamerID)
}

// SetInitialTime seeds the pre-start budget. Only valid while Idle.
func (s *TimerService) SetInitialTime(ctx context.Context, streamerID uint64, minutes int) (*model.CountdownTimer, error) {
	if minutes < 0 {
		return nil, ErrInvalidTransition
	}
	if _, err := s.timers.GetOrCreate(ctx, streamerID); err != nil {
		return nil, err
	}
	ok, err := s.timers.SetInitialTime(ctx, streamerID, minutes)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	return s.broadcastState(ctx, streamerID)
}

// SetMinutePrice updates the donation-to-minutes rate.
func (s *TimerService) SetMinutePrice(ctx context.Context, streamerID uint64, price int64) (*model.CountdownTimer, error) {
	if _, err := s.timers.GetOrCreate(ctx, streamerID); err != nil {
		return nil, err
	}
	if err := s.timers.SetMinutePrice(ctx, streamerID, price); err != nil {
		return nil, err
	}
	return s.timers.GetOrCreate(ctx, streamerID)
}

// Reset returns the timer to Idle and tells the overlays.
func (s *TimerService) Reset(ctx context.Context, streamerID uint64) (*model.CountdownTimer, error) {
	if _, err := s.timers.GetOrCreate(ctx, streamerID); err != nil {
		return nil, err
	}
	if err := s.timers.Reset(ctx, streamerID); err != nil {
		return nil, err
	}
	return s.broadcastState(ctx, streamerID)
}

// AutoReset handles the overlay's run-out notification, addressed by
// overlay token. The reset only happens once the countdown is actually
// at zero; a stale or malicious call against a ticking timer is
// rejected.
func (s *TimerService) AutoReset(ctx context.Context, token string) (*model.CountdownTimer, error) {
	t, err := s.timers.FindByOverlayToken(ctx, token)
	if err != nil {
		return nil, err
	}
	min, sec, _ := t.CurrentRemaining(s.now())
	if t.State() == model.TimerIdle || min > 0 || sec > 0 {
		return nil, ErrInvalidTransition
	}
	if err := s.timers.AutoReset(ctx, t.ID); err != nil {
		return nil, err
	}
	return s.broadcastState(ctx, t.StreamerID)
}

// UpdateCountdown is the overlay's periodic checkpoint save, addressed
// by overlay token. A checkpoint losing the optimistic write race is
// discarded without error: whatever won (a donation's added minutes, a
// pause) is newer truth than the overlay's clock tick.
func (s *TimerService) UpdateCountdown(ctx context.Context, token string, minutes, seconds int) (*model.CountdownTimer, error) {
	if minutes < 0 || seconds < 0 || seconds > 59 {
		return nil, ErrInvalidTransition
	}
	t, err := s.timers.FindByOverlayToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if t.State() != model.TimerRunning {
		return t, nil
	}
	if _, err := s.timers.AdvanceCheckpoint(ctx, t, minutes, seconds); err != nil {
		return nil, err
	}
	return s.timers.GetOrCreate(ctx, t.StreamerID)
}

// SnapshotByToken returns the overlay view of the timer, lazily
// persisting the extrapolated checkpoint when the guard window allows
// advancing it.
func (s *TimerService) SnapshotByToken(ctx context.Context, token string) (*model.CountdownTimer, map[string]any, error) {
	t, err := s.timers.FindByOverlayToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	now := s.now()
	min, sec, advanced := t.CurrentRemaining(now)
	if advanced {
		// Best effort; losing the race just means someone else wrote a
		// fresher checkpoint.
		if ok, err := s.timers.AdvanceCheckpoint(ctx, t, min, sec); err == nil && ok {
			t.Checkpoint(now, min, sec)
		}
	}
	return t, TimerPayload(t, now), nil
}

func (s *TimerService) broadcastState(ctx context.Context, streamerID uint64) (*model.CountdownTimer, error) {
	t, err := s.timers.GetOrCreate(ctx, streamerID)
	if err != nil {
		return nil, err
	}
	s.hub.Publish(hub.Room{StreamerID: streamerID, Surface: hub.SurfaceTimer}, EventTimerUpdated, TimerPayload(t, s.now()))
	return t, nil
}

// TimerPayload shapes the timer state the way every surface consumes
// it: live remaining time plus the per-bucket accounting.
func TimerPayload(t *model.CountdownTimer, now time.Time) map[string]any {
	min, sec, _ := t.CurrentRemaining(now)
	payload := map[string]any{
		"state":                 string(t.State()),
		"remaining":             model.BreakdownOf(min, sec),
		"initial_minutes":       t.InitialMinutes,
		"donated_minutes":       t.DonatedMinutes,
		"manual_minutes":        t.ManualMinutes,
		"total_minutes":         t.TotalMinutes(),
		"total_paused_minutes":  t.TotalPausedMinutes,
		"minute_price":          t.MinutePrice,
		"accumulated_donations": t.AccumulatedDonations,
	}
	if t.StartedAt != nil {
		payload["started_at"] = t.StartedAt.UTC().Format(time.RFC3339)
	}
	if t.PausedAt != nil {
		payload["paused_at"] = t.PausedAt.UTC().Format(time.RFC3339)
	}
	return payload
}
