package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/stream-donation-hub/internal/model"
)

// DonationRepo provides read access to the immutable donations ledger
// and aggregate statistics derived from it. Donation rows are created
// only by PaymentIntentRepo.SettlePending; nothing in this repository
// mutates them.
type DonationRepo struct {
	db *sql.DB
}

// NewDonationRepo returns a new DonationRepo bound to the given database.
func NewDonationRepo(db *sql.DB) *DonationRepo { return &DonationRepo{db: db} }

const donationColumns = `id, streamer_id, donor_name, donor_platform, donor_user_id, amount,
	message, type, sound_effect_id, donation_id, payment_intent_id, is_test, created_at, processed_at`

func scanDonation(row interface{ Scan(...any) error }) (*model.Donation, error) {
	var d model.Donation
	var donorUserID, soundEffectID, intentID sql.NullInt64
	var message sql.NullString
	var processedAt sql.NullTime
	err := row.Scan(&d.ID, &d.StreamerID, &d.DonorName, &d.DonorPlatform, &donorUserID,
		&d.Amount, &message, &d.Type, &soundEffectID, &d.DonationID, &intentID,
		&d.IsTest, &d.CreatedAt, &processedAt)
	if err != nil {
		return nil, err
	}
	if donorUserID.Valid {
		v := uint64(donorUserID.Int64)
		d.DonorUserID = &v
	}
	if soundEffectID.Valid {
		v := uint64(soundEffectID.Int64)
		d.SoundEffectID = &v
	}
	if intentID.Valid {
		v := uint64(intentID.Int64)
		d.PaymentIntentID = &v
	}
	d.Message = message.String
	if processedAt.Valid {
		t := processedAt.Time
		d.ProcessedAt = &t
	}
	return &d, nil
}

// DonationPage is one page of a streamer's donation history.
type DonationPage struct {
	Donations []model.Donation
	Total     int
	Page      int
	PerPage   int
}

// ListByStreamer returns a page of the streamer's donation history with
// optional search over donor name, message and platform, sorted by the
// given column. Only a fixed set of sort columns is accepted so user
// input never reaches the ORDER BY clause verbatim.
func (r *DonationRepo) ListByStreamer(ctx context.Context, streamerID uint64, page, perPage int, search, sortBy, sortOrder string) (*DonationPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	column := "created_at"
	switch sortBy {
	case "donor_name", "amount", "created_at":
		column = sortBy
	}
	dir := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		dir = "ASC"
	}

	where := `WHERE streamer_id = ?`
	args := []any{streamerID}
	if search != "" {
		where += ` AND (donor_name LIKE ? OR message LIKE ? OR donor_platform LIKE ?)`
		pat := "%" + search + "%"
		args = append(args, pat, pat, pat)
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM donations `+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	q := `SELECT ` + donationColumns + ` FROM donations ` + where +
		` ORDER BY ` + column + ` ` + dir + ` LIMIT ? OFFSET ?`
	args = append(args, perPage, (page-1)*perPage)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pageOut := &DonationPage{Total: total, Page: page, PerPage: perPage}
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		pageOut.Donations = append(pageOut.Donations, *d)
	}
	return pageOut, rows.Err()
}

// DonationStats aggregates a streamer's ledger.
type DonationStats struct {
	TotalDonations int     `json:"total_donations"`
	TotalAmount    int64   `json:"total_amount"`
	AverageAmount  float64 `json:"average_amount"`
}

// StatsByStreamer computes count, sum and average over the streamer's
// non-test donations.
func (r *DonationRepo) StatsByStreamer(ctx context.Context, streamerID uint64) (*DonationStats, error) {
	var s DonationStats
	var sum, avg sql.NullFloat64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(id), COALESCE(SUM(amount), 0), COALESCE(AVG(amount), 0)
		 FROM donations WHERE streamer_id = ? AND is_test = 0`,
		streamerID).Scan(&s.TotalDonations, &sum, &avg)
	if err != nil {
		return nil, err
	}
	s.TotalAmount = int64(sum.Float64)
	s.AverageAmount = avg.Float64
	return &s, nil
}

// RecentByStreamer returns the streamer's latest donations for the
// donation feed's full-state refresh on (re)connect.
func (r *DonationRepo) RecentByStreamer(ctx context.Context, streamerID uint64, limit int) ([]model.Donation, error) {
	if limit < 1 || limit > 100 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+donationColumns+` FROM donations
		 WHERE streamer_id = ? ORDER BY created_at DESC LIMIT ?`,
		streamerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}
