package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/stream-donation-hub/internal/model"
)

// GoalRepo provides data access to the donation_goals table. Amount
// mutations are expressed as atomic in-place increments so concurrent
// settlements for the same streamer can never lose an update.
type GoalRepo struct {
	db *sql.DB
}

// NewGoalRepo returns a new GoalRepo bound to the provided database.
func NewGoalRepo(db *sql.DB) *GoalRepo { return &GoalRepo{db: db} }

const goalColumns = `id, streamer_id, title, target_amount, current_amount,
	manual_adjustment, is_active, overlay_token, created_at, updated_at`

func scanGoal(row interface{ Scan(...any) error }) (*model.AccumulationGoal, error) {
	var g model.AccumulationGoal
	err := row.Scan(&g.ID, &g.StreamerID, &g.Title, &g.TargetAmount, &g.CurrentAmount,
		&g.ManualAdjustment, &g.IsActive, &g.OverlayToken, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// GetOrCreate returns the streamer's active goal, creating a default
// one with a fresh overlay token on first use.
func (r *GoalRepo) GetOrCreate(ctx context.Context, streamerID uint64) (*model.AccumulationGoal, error) {
	g, err := r.FindActive(ctx, streamerID)
	if err == nil {
		return g, nil
	}
	if err != ErrGoalNotFound {
		return nil, err
	}
	token, err := randomToken(32)
	if err != nil {
		return nil, err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT IGNORE INTO donation_goals (streamer_id, title, is_active, overlay_token)
		 VALUES (?, 'Goal', 1, ?)`,
		streamerID, token)
	if err != nil {
		return nil, err
	}
	return r.FindActive(ctx, streamerID)
}

// FindActive returns the streamer's active goal.
func (r *GoalRepo) FindActive(ctx context.Context, streamerID uint64) (*model.AccumulationGoal, error) {
	const q = `SELECT ` + goalColumns + ` FROM donation_goals
		WHERE streamer_id = ? AND is_active = 1`
	g, err := scanGoal(r.db.QueryRowContext(ctx, q, streamerID))
	if err == sql.ErrNoRows {
		return nil, ErrGoalNotFound
	}
	return g, err
}

// FindByOverlayToken resolves a goal from its public overlay token.
func (r *GoalRepo) FindByOverlayToken(ctx context.Context, token string) (*model.AccumulationGoal, error) {
	const q = `SELECT ` + goalColumns + ` FROM donation_goals WHERE overlay_token = ?`
	g, err := scanGoal(r.db.QueryRowContext(ctx, q, token))
	if err == sql.ErrNoRows {
		return nil, ErrGoalNotFound
	}
	return g, err
}

// AddDonation atomically credits a settled donation to the streamer's
// active goal. Returns false when no goal is active, which the caller
// treats as a skip rather than a failure.
func (r *GoalRepo) AddDonation(ctx context.Context, streamerID uint64, amount int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE donation_goals
		 SET current_amount = current_amount + ?, updated_at = UTC_TIMESTAMP()
		 WHERE streamer_id = ? AND is_active = 1`,
		amount, streamerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// AddManualAdjustment atomically applies an operator correction to the
// displayed total (positive or negative).
func (r *GoalRepo) AddManualAdjustment(ctx context.Context, streamerID uint64, amount int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE donation_goals
		 SET manual_adjustment = manual_adjustment + ?, updated_at = UTC_TIMESTAMP()
		 WHERE streamer_id = ? AND is_active = 1`,
		amount, streamerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// Reset zeroes the goal's progress while keeping title and target.
func (r *GoalRepo) Reset(ctx context.Context, streamerID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE donation_goals
		 SET current_amount = 0, manual_adjustment = 0, updated_at = UTC_TIMESTAMP()
		 WHERE streamer_id = ? AND is_active = 1`,
		streamerID)
	return err
}

// GoalUpdate is the explicit, enumerated set of operator-editable goal
// fields. Each present pointer is validated and applied individually;
// there is no dynamic field patching.
type GoalUpdate struct {
	Title        *string `json:"title"`
	TargetAmount *int64  `json:"target_amount"`
	IsActive     *bool   `json:"is_active"`
}

// Update applies the explicit field set to the streamer's goal.
func (r *GoalRepo) Update(ctx context.Context, streamerID uint64, u GoalUpdate) error {
	if u.Title != nil {
		if _, err := r.db.ExecContext(ctx,
			`UPDATE donation_goals SET title = ?, updated_at = UTC_TIMESTAMP()
			 WHERE streamer_id = ? AND is_active = 1`, *u.Title, streamerID); err != nil {
			return err
		}
	}
	if u.TargetAmount != nil {
		if _, err := r.db.ExecContext(ctx,
			`UPDATE donation_goals SET target_amount = ?, updated_at = UTC_TIMESTAMP()
			 WHERE streamer_id = ? AND is_active = 1`, *u.TargetAmount, streamerID); err != nil {
			return err
		}
	}
	if u.IsActive != nil {
		if _, err := r.db.ExecContext(ctx,
			`UPDATE donation_goals SET is_active = ?, updated_at = UTC_TIMESTAMP()
			 WHERE streamer_id = ?`, *u.IsActive, streamerID); err != nil {
			return err
		}
	}
	return nil
}
