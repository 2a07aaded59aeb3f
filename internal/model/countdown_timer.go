package model

import "time"

// TimerState describes the countdown timer's position in its state
// machine.  A timer is Idle until started (or after a reset), Running
// while counting down, and Paused when frozen by the operator.
type TimerState string

const (
	TimerIdle    TimerState = "idle"
	TimerRunning TimerState = "running"
	TimerPaused  TimerState = "paused"
)

// Sources for time adjustments.  Donation-sourced time only applies
// while the timer is running; manual adjustments apply while running
// or paused.
const (
	TimeSourceDonation = "donation"
	TimeSourceManual   = "manual"
)

// CheckpointGuardWindow is the interval during which elapsed-time
// extrapolation is suppressed after a checkpoint write.  The client
// overlay is the authoritative clock; the server only stores
// checkpoints.  Without the guard, a read racing a donation's time
// addition could extrapolate from the stale pre-addition checkpoint and
// silently erase the added minutes.
const CheckpointGuardWindow = 10 * time.Second

// CountdownTimer holds the per-streamer countdown state.  All minute
// buckets are kept separately so the overlay can show how much time
// came from donations versus manual adjustments.
//
// Fields:
//  ID                   – primary key identifier.
//  StreamerID           – owning streamer; one timer per streamer.
//  MinutePrice          – donation amount that buys one minute.
//  InitialMinutes       – time seeded by the operator before starting.
//  RemainingMinutes     – checkpointed remaining minutes.
//  RemainingSeconds     – checkpointed remaining seconds (0–59).
//  DonatedMinutes       – total minutes added by donations.
//  ManualMinutes        – total minutes added or removed manually.
//  AccumulatedDonations – donation amount received while running.
//  StartedAt            – when the countdown started; nil while Idle.
//  PausedAt             – when the countdown was paused; nil unless Paused.
//  IsPaused             – true while Paused.  Implies StartedAt is set.
//  TotalPausedMinutes   – cumulative minutes spent paused.
//  OverlayToken         – capability token for the public overlay.
//  UpdatedAt            – last checkpoint write; drives the guard window.
type CountdownTimer struct {
	ID                   uint64
	StreamerID           uint64
	MinutePrice          int64
	InitialMinutes       int
	RemainingMinutes     int
	RemainingSeconds     int
	DonatedMinutes       int
	ManualMinutes        int
	AccumulatedDonations int64
	StartedAt            *time.Time
	PausedAt             *time.Time
	IsPaused             bool
	TotalPausedMinutes   int
	OverlayToken         string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// State returns the timer's current state machine position.
func (t *CountdownTimer) State() TimerState {
	switch {
	case t.StartedAt == nil:
		return TimerIdle
	case t.IsPaused:
		return TimerPaused
	default:
		return TimerRunning
	}
}

// Running reports whether the timer is started and not paused.
func (t *CountdownTimer) Running() bool { return t.State() == TimerRunning }

// TotalMinutes is the full time budget across all buckets.
func (t *CountdownTimer) TotalMinutes() int {
	return t.InitialMinutes + t.DonatedMinutes + t.ManualMinutes
}

// MinutesFor converts a donation amount into whole minutes at the
// configured minute price.  A non-positive price buys no time.
func (t *CountdownTimer) MinutesFor(amount int64) int {
	if t.MinutePrice <= 0 {
		return 0
	}
	return int(amount / t.MinutePrice)
}

// Start seeds the countdown from Idle: remaining time becomes the full
// budget and the seconds hand resets.  Calling Start while Paused is a
// resume and handled by Resume instead.
func (t *CountdownTimer) Start(now time.Time) {
	t.StartedAt = &now
	t.RemainingMinutes = t.TotalMinutes()
	t.RemainingSeconds = 0
	t.IsPaused = false
	t.PausedAt = nil
	t.UpdatedAt = now
}

// Resume leaves Paused: the elapsed pause duration is folded into
// TotalPausedMinutes and the pause marker cleared.  The remaining-time
// checkpoint is untouched, so time does not tick while paused.
func (t *CountdownTimer) Resume(now time.Time) {
	if t.PausedAt != nil {
		t.TotalPausedMinutes += int(now.Sub(*t.PausedAt).Minutes())
	}
	t.IsPaused = false
	t.PausedAt = nil
	t.UpdatedAt = now
}

// Pause freezes the countdown, trusting the caller-reported remaining
// time as the new checkpoint.  The client overlay runs the actual
// clock; the server records whatever it last displayed.
func (t *CountdownTimer) Pause(now time.Time, minutes, seconds int) {
	t.RemainingMinutes = clampMin(minutes, 0)
	t.RemainingSeconds = clampRange(seconds, 0, 59)
	t.IsPaused = true
	t.PausedAt = &now
	t.UpdatedAt = now
}

// ApplyTime adds (or removes, for negative deltas) minutes from the
// given source.  Donation-sourced time is only applied while Running
// and reports false otherwise; remaining time never drops below zero.
func (t *CountdownTimer) ApplyTime(now time.Time, minutes int, source string) bool {
	if source == TimeSourceDonation && !t.Running() {
		return false
	}
	if source == TimeSourceDonation {
		t.DonatedMinutes += minutes
	} else {
		t.ManualMinutes += minutes
	}
	t.RemainingMinutes = clampMin(t.RemainingMinutes+minutes, 0)
	t.UpdatedAt = now
	return true
}

// Checkpoint records the client-reported countdown position.  Called
// by the overlay's periodic state save.
func (t *CountdownTimer) Checkpoint(now time.Time, minutes, seconds int) {
	t.RemainingMinutes = clampMin(minutes, 0)
	t.RemainingSeconds = clampRange(seconds, 0, 59)
	t.UpdatedAt = now
}

// Reset returns the timer to Idle, zeroing every accumulated bucket
// and the configured initial time. The minute price survives a reset.
func (t *CountdownTimer) Reset(now time.Time) {
	t.InitialMinutes = 0
	t.reset(now)
}

// AutoReset is invoked by the overlay when the countdown naturally
// reaches zero.  Like Reset it zeroes the initial time, but it is
// addressed by overlay token rather than operator identity, which
// distinguishes a run-out from an operator-initiated reset.
func (t *CountdownTimer) AutoReset(now time.Time) {
	t.InitialMinutes = 0
	t.reset(now)
}

func (t *CountdownTimer) reset(now time.Time) {
	t.RemainingMinutes = 0
	t.RemainingSeconds = 0
	t.DonatedMinutes = 0
	t.ManualMinutes = 0
	t.AccumulatedDonations = 0
	t.StartedAt = nil
	t.PausedAt = nil
	t.IsPaused = false
	t.TotalPausedMinutes = 0
	t.UpdatedAt = now
}

// CurrentRemaining computes the live remaining time at the given
// instant.  While Idle or Paused the stored checkpoint is returned
// unchanged.  While Running the checkpoint is advanced by the time
// elapsed since the last write, unless that write falls inside the
// guard window, in which case the checkpoint is returned as-is (see
// CheckpointGuardWindow).  The advanced flag reports whether the
// caller should persist the recomputed checkpoint.
func (t *CountdownTimer) CurrentRemaining(now time.Time) (minutes, seconds int, advanced bool) {
	if !t.Running() {
		return t.RemainingMinutes, t.RemainingSeconds, false
	}
	if now.Sub(t.UpdatedAt) < CheckpointGuardWindow {
		return t.RemainingMinutes, t.RemainingSeconds, false
	}
	elapsed := int(now.Sub(t.UpdatedAt).Seconds())
	total := t.RemainingMinutes*60 + t.RemainingSeconds - elapsed
	if total < 0 {
		total = 0
	}
	minutes, seconds = total/60, total%60
	advanced = minutes != t.RemainingMinutes || seconds != t.RemainingSeconds
	return minutes, seconds, advanced
}

// TimeBreakdown splits a minute/second pair into display units for the
// overlay.
type TimeBreakdown struct {
	Days         int `json:"days"`
	Hours        int `json:"hours"`
	Minutes      int `json:"minutes"`
	Seconds      int `json:"seconds"`
	TotalMinutes int `json:"total_minutes"`
}

// BreakdownOf splits a remaining time into display units.
func BreakdownOf(minutes, seconds int) TimeBreakdown {
	minutes = clampMin(minutes, 0)
	seconds = clampMin(seconds, 0)
	return TimeBreakdown{
		Days:         minutes / (24 * 60),
		Hours:        (minutes % (24 * 60)) / 60,
		Minutes:      minutes % 60,
		Seconds:      seconds,
		TotalMinutes: minutes,
	}
}

func clampMin(v, min int) int {
	if v < min {
		return min
	}
	return v
}

func clampRange(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
