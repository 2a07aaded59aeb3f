package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/stream-donation-hub/internal/model"
)

// TimerRepo provides data access to the countdown_timers table. Every
// mutation is a single conditional UPDATE whose WHERE clause encodes
// the legal state transition, so concurrent donations and operator
// actions can never lose updates through read-then-write interleaving:
// the database applies increments atomically and rejects transitions
// whose precondition no longer holds.
type TimerRepo struct {
	db *sql.DB
}

// NewTimerRepo returns a new TimerRepo bound to the provided database.
func NewTimerRepo(db *sql.DB) *TimerRepo { return &TimerRepo{db: db} }

const timerColumns = `id, streamer_id, minute_price, initial_minutes, remaining_minutes,
	remaining_seconds, donated_minutes, manual_minutes, accumulated_donations,
	started_at, paused_at, is_paused, total_paused_minutes, overlay_token,
	created_at, updated_at`

func scanTimer(row interface{ Scan(...any) error }) (*model.CountdownTimer, error) {
	var t model.CountdownTimer
	var startedAt, pausedAt sql.NullTime
	err := row.Scan(&t.ID, &t.StreamerID, &t.MinutePrice, &t.InitialMinutes,
		&t.RemainingMinutes, &t.RemainingSeconds, &t.DonatedMinutes, &t.ManualMinutes,
		&t.AccumulatedDonations, &startedAt, &pausedAt, &t.IsPaused,
		&t.TotalPausedMinutes, &t.OverlayToken, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if startedAt.Valid {
		v := startedAt.Time
		t.StartedAt = &v
	}
	if pausedAt.Valid {
		v := pausedAt.Time
		t.PausedAt = &v
	}
	return &t, nil
}

// GetOrCreate returns the streamer's timer, creating a default row with
// a fresh overlay token on first use. The INSERT ignores duplicate-key
// errors so two concurrent first reads converge on one row.
func (r *TimerRepo) GetOrCreate(ctx context.Context, streamerID uint64) (*model.CountdownTimer, error) {
	t, err := r.getByStreamer(ctx, streamerID)
	if err == nil {
		return t, nil
	}
	if err != ErrTimerNotFound {
		return nil, err
	}
	token, err := randomToken(32)
	if err != nil {
		return nil, err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT IGNORE INTO countdown_timers (streamer_id, minute_price, overlay_token)
		 VALUES (?, 1000, ?)`,
		streamerID, token)
	if err != nil {
		return nil, err
	}
	return r.getByStreamer(ctx, streamerID)
}

func (r *TimerRepo) getByStreamer(ctx context.Context, streamerID uint64) (*model.CountdownTimer, error) {
	const q = `SELECT ` + timerColumns + ` FROM countdown_timers WHERE streamer_id = ?`
	t, err := scanTimer(r.db.QueryRowContext(ctx, q, streamerID))
	if err == sql.ErrNoRows {
		return nil, ErrTimerNotFound
	}
	return t, err
}

// FindByOverlayToken resolves a timer from its public overlay token.
func (r *TimerRepo) FindByOverlayToken(ctx context.Context, token string) (*model.CountdownTimer, error) {
	const q = `SELECT ` + timerColumns + ` FROM countdown_timers WHERE overlay_token = ?`
	t, err := scanTimer(r.db.QueryRowContext(ctx, q, token))
	if err == sql.ErrNoRows {
		return nil, ErrTimerNotFound
	}
	return t, err
}

// StartFresh transitions Idle -> Running: remaining time is seeded from
// the sum of all buckets and the start instant stamped. Returns false
// when the timer was not Idle.
func (r *TimerRepo) StartFresh(ctx context.Context, streamerID uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE countdown_timers
		 SET started_at = UTC_TIMESTAMP(),
		     remaining_minutes = initial_minutes + donated_minutes + manual_minutes,
		     remaining_seconds = 0,
		     is_paused = 0, paused_at = NULL,
		     updated_at = UTC_TIMESTAMP()
		 WHERE streamer_id = ? AND started_at IS NULL`,
		streamerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// Resume transitions Paused -> Running, folding the elapsed pause
// duration into total_paused_minutes in the same statement.
func (r *TimerRepo) Resume(ctx context.Context, streamerID uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE countdown_timers
		 SET total_paused_minutes = total_paused_minutes + TIMESTAMPDIFF(MINUTE, paused_at, UTC_TIMESTAMP()),
		     is_paused = 0, paused_at = NULL,
		     updated_at = UTC_TIMESTAMP()
		 WHERE streamer_id = ? AND is_paused = 1 AND paused_at IS NOT NULL`,
		streamerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// Pause transitions Running -> Paused. The caller-reported remaining
// time becomes the new checkpoint: the overlay runs the real clock and
// the server stores whatever it last displayed.
func (r *TimerRepo) Pause(ctx context.Context, streamerID uint64, minutes, seconds int) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE countdown_timers
		 SET remaining_minutes = GREATEST(0, ?),
		     remaining_seconds = LEAST(59, GREATEST(0, ?)),
		     is_paused = 1, paused_at = UTC_TIMESTAMP(),
		     updated_at = UTC_TIMESTAMP()
		 WHERE streamer_id = ? AND started_at IS NOT NULL AND is_paused = 0`,
		minutes, seconds, streamerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// AddDonationTime atomically credits a settled donation to a Running
// timer: the amount joins accumulated_donations, the bought minutes
// join the donated bucket and the remaining checkpoint, clamped at
// zero. The WHERE clause makes donation time a silent no-op while Idle
// or Paused, per the timer's contract.
func (r *TimerRepo) AddDonationTime(ctx context.Context, streamerID uint64, amount int64, minutes int) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE countdown_timers
		 SET accumulated_donations = accumulated_donations + ?,
		     donated_minutes = donated_minutes + ?,
		     remaining_minutes = GREATEST(0, remaining_minutes + ?),
		     updated_at = UTC_TIMESTAMP()
		 WHERE streamer_id = ? AND started_at IS NOT NULL AND is_paused = 0`,
		amount, minutes, minutes, streamerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// AddManualTime atomically applies an operator adjustment (positive or
// negative) to a Running or Paused timer.
func (r *TimerRepo) AddManualTime(ctx context.Context, streamerID uint64, minutes int) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE countdown_timers
		 SET manual_minutes = manual_minutes + ?,
		     remaining_minutes = GREATEST(0, remaining_minutes + ?),
		     updated_at = UTC_TIMESTAMP()
		 WHERE streamer_id = ? AND started_at IS NOT NULL`,
		minutes, minutes, streamerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// SetInitialTime seeds the initial bucket and resets the checkpoint to
// the new total. Only allowed while Idle; a running countdown keeps its
// state.
func (r *TimerRepo) SetInitialTime(ctx context.Context, streamerID uint64, totalMinutes int) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE countdown_timers
		 SET initial_minutes = ?,
		     remaining_minutes = ?,
		     remaining_seconds = 0,
		     updated_at = UTC_TIMESTAMP()
		 WHERE streamer_id = ? AND started_at IS NULL`,
		totalMinutes, totalMinutes, streamerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// SetMinutePrice updates the donation-to-minutes exchange rate.
func (r *TimerRepo) SetMinutePrice(ctx context.Context, streamerID uint64, price int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE countdown_timers SET minute_price = ?, updated_at = UTC_TIMESTAMP()
		 WHERE streamer_id = ?`,
		price, streamerID)
	return err
}

// AdvanceCheckpoint persists a lazily recomputed remaining time. The
// optimistic updated_at check means a checkpoint written concurrently
// (a donation's minutes, the overlay's save) wins over the
// extrapolation, which is exactly the guard-window contract.
func (r *TimerRepo) AdvanceCheckpoint(ctx context.Context, t *model.CountdownTimer, minutes, seconds int) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE countdown_timers
		 SET remaining_minutes = ?, remaining_seconds = ?, updated_at = UTC_TIMESTAMP()
		 WHERE id = ? AND is_paused = 0 AND updated_at = ?`,
		minutes, seconds, t.ID, t.UpdatedAt.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// Reset returns the timer to Idle, zeroing every bucket and the pause
// bookkeeping.
func (r *TimerRepo) Reset(ctx context.Context, streamerID uint64) error {
	_, err := r.db.ExecContext(ctx, resetStatement+` WHERE streamer_id = ?`, streamerID)
	return err
}

// AutoReset is Reset addressed by timer id, used by the overlay-token
// path when the countdown reaches zero on its own.
func (r *TimerRepo) AutoReset(ctx context.Context, timerID uint64) error {
	_, err := r.db.ExecContext(ctx, resetStatement+` WHERE id = ?`, timerID)
	return err
}

const resetStatement = `UPDATE countdown_timers
	 SET initial_minutes = 0, remaining_minutes = 0, remaining_seconds = 0,
	     donated_minutes = 0, manual_minutes = 0, accumulated_donations = 0,
	     started_at = NULL, paused_at = NULL, is_paused = 0,
	     total_paused_minutes = 0, updated_at = UTC_TIMESTAMP()`
