package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/stream-donation-hub/internal/model"
)

// LeaderboardRepo provides data access to the leaderboard_entries and
// leaderboard_settings tables. Entry mutation is a single
// INSERT ... ON DUPLICATE KEY UPDATE keyed by the unique
// (streamer_id, donor_name) index, so concurrent settlements for the
// same donor fold together instead of losing increments. Entries merge
// guest and authenticated donations by display name.
type LeaderboardRepo struct {
	db *sql.DB
}

// NewLeaderboardRepo returns a new LeaderboardRepo bound to the
// provided database.
func NewLeaderboardRepo(db *sql.DB) *LeaderboardRepo { return &LeaderboardRepo{db: db} }

const entryColumns = `id, streamer_id, donor_name, donor_user_id, total_amount,
	donation_count, biggest_donation, first_donation_at, last_donation_at,
	created_at, updated_at`

func scanEntry(row interface{ Scan(...any) error }) (*model.LeaderboardEntry, error) {
	var e model.LeaderboardEntry
	var donorUserID sql.NullInt64
	err := row.Scan(&e.ID, &e.StreamerID, &e.DonorName, &donorUserID, &e.TotalAmount,
		&e.DonationCount, &e.BiggestDonation, &e.FirstDonationAt, &e.LastDonationAt,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if donorUserID.Valid {
		v := uint64(donorUserID.Int64)
		e.DonorUserID = &v
	}
	return &e, nil
}

// RecordDonation upserts the donor's entry in one atomic statement:
// totals and counts are incremented in place, the biggest single
// donation and the first/last timestamps folded with GREATEST/LEAST.
func (r *LeaderboardRepo) RecordDonation(ctx context.Context, streamerID uint64, donorName string, amount int64, at time.Time) error {
	ts := at.UTC().Format("2006-01-02 15:04:05")
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO leaderboard_entries
		 (streamer_id, donor_name, total_amount, donation_count, biggest_donation,
		  first_donation_at, last_donation_at)
		 VALUES (?, ?, ?, 1, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE
		   total_amount = total_amount + VALUES(total_amount),
		   donation_count = donation_count + 1,
		   biggest_donation = GREATEST(biggest_donation, VALUES(biggest_donation)),
		   first_donation_at = LEAST(first_donation_at, VALUES(first_donation_at)),
		   last_donation_at = GREATEST(last_donation_at, VALUES(last_donation_at)),
		   updated_at = UTC_TIMESTAMP()`,
		streamerID, donorName, amount, amount, ts, ts)
	return err
}

// Position returns the donor's 1-based rank: one plus the number of
// entries with a strictly greater total, so tied totals share a rank.
// Returns 0 when the donor has no entry yet.
func (r *LeaderboardRepo) Position(ctx context.Context, streamerID uint64, donorName string) (int, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT total_amount FROM leaderboard_entries
		 WHERE streamer_id = ? AND donor_name = ?`,
		streamerID, donorName).Scan(&total)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var higher int
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM leaderboard_entries
		 WHERE streamer_id = ? AND total_amount > ?`,
		streamerID, total).Scan(&higher)
	if err != nil {
		return 0, err
	}
	return higher + 1, nil
}

// TopDonors returns the streamer's highest totals in descending order.
// Ranks are not filled here; callers use model.AssignRanks so that
// ties share a rank in display payloads.
func (r *LeaderboardRepo) TopDonors(ctx context.Context, streamerID uint64, limit int) ([]model.LeaderboardEntry, error) {
	if limit < 1 || limit > 100 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM leaderboard_entries
		 WHERE streamer_id = ?
		 ORDER BY total_amount DESC, donor_name ASC
		 LIMIT ?`,
		streamerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.LeaderboardEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// GetOrCreateSettings returns the streamer's leaderboard settings,
// creating defaults with a fresh overlay token on first use.
func (r *LeaderboardRepo) GetOrCreateSettings(ctx context.Context, streamerID uint64) (*model.LeaderboardSettings, error) {
	s, err := r.settingsByStreamer(ctx, streamerID)
	if err == nil {
		return s, nil
	}
	if err != ErrSettingsNotFound {
		return nil, err
	}
	token, err := randomToken(32)
	if err != nil {
		return nil, err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT IGNORE INTO leaderboard_settings (streamer_id, is_enabled, positions_count, overlay_token)
		 VALUES (?, 1, 10, ?)`,
		streamerID, token)
	if err != nil {
		return nil, err
	}
	return r.settingsByStreamer(ctx, streamerID)
}

const settingsColumns = `id, streamer_id, is_enabled, positions_count, overlay_token, created_at, updated_at`

func scanSettings(row interface{ Scan(...any) error }) (*model.LeaderboardSettings, error) {
	var s model.LeaderboardSettings
	err := row.Scan(&s.ID, &s.StreamerID, &s.IsEnabled, &s.PositionsCount,
		&s.OverlayToken, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *LeaderboardRepo) settingsByStreamer(ctx context.Context, streamerID uint64) (*model.LeaderboardSettings, error) {
	const q = `SELECT ` + settingsColumns + ` FROM leaderboard_settings WHERE streamer_id = ?`
	s, err := scanSettings(r.db.QueryRowContext(ctx, q, streamerID))
	if err == sql.ErrNoRows {
		return nil, ErrSettingsNotFound
	}
	return s, err
}

// FindSettingsByOverlayToken resolves leaderboard settings from the
// public overlay token.
func (r *LeaderboardRepo) FindSettingsByOverlayToken(ctx context.Context, token string) (*model.LeaderboardSettings, error) {
	const q = `SELECT ` + settingsColumns + ` FROM leaderboard_settings WHERE overlay_token = ?`
	s, err := scanSettings(r.db.QueryRowContext(ctx, q, token))
	if err == sql.ErrNoRows {
		return nil, ErrSettingsNotFound
	}
	return s, err
}

// LeaderboardSettingsUpdate enumerates the operator-editable settings
// fields, applied individually after validation.
type LeaderboardSettingsUpdate struct {
	IsEnabled      *bool `json:"is_enabled"`
	PositionsCount *int  `json:"positions_count"`
}

// UpdateSettings applies the explicit field set.
func (r *LeaderboardRepo) UpdateSettings(ctx context.Context, streamerID uint64, u LeaderboardSettingsUpdate) error {
	if u.IsEnabled != nil {
		if _, err := r.db.ExecContext(ctx,
			`UPDATE leaderboard_settings SET is_enabled = ?, updated_at = UTC_TIMESTAMP()
			 WHERE streamer_id = ?`, *u.IsEnabled, streamerID); err != nil {
			return err
		}
	}
	if u.PositionsCount != nil {
		if _, err := r.db.ExecContext(ctx,
			`UPDATE leaderboard_settings SET positions_count = ?, updated_at = UTC_TIMESTAMP()
			 WHERE streamer_id = ?`, *u.PositionsCount, streamerID); err != nil {
			return err
		}
	}
	return nil
}
