package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/stream-donation-hub/internal/model"
)

// PaymentIntentRepo provides data access to the payment_intents table
// and owns the settlement primitive. Both the webhook callback and the
// status-poll reconciliation path funnel through SettlePending so a
// race between them resolves to exactly one winner. All timestamps are
// stored in UTC.
type PaymentIntentRepo struct {
	db *sql.DB
}

// NewPaymentIntentRepo returns a new PaymentIntentRepo bound to the
// provided database.
func NewPaymentIntentRepo(db *sql.DB) *PaymentIntentRepo { return &PaymentIntentRepo{db: db} }

const intentColumns = `id, streamer_id, donor_name, donor_platform, donor_user_id, amount,
	currency, message, type, sound_effect_id, invoice_ref, webhook_token, status,
	payment_method, paid_at, expires_at, created_at, updated_at`

func scanIntent(row interface{ Scan(...any) error }) (*model.PaymentIntent, error) {
	var p model.PaymentIntent
	var donorUserID, soundEffectID sql.NullInt64
	var message, method sql.NullString
	var paidAt, expiresAt sql.NullTime
	err := row.Scan(&p.ID, &p.StreamerID, &p.DonorName, &p.DonorPlatform, &donorUserID,
		&p.Amount, &p.Currency, &message, &p.Type, &soundEffectID, &p.InvoiceRef,
		&p.WebhookToken, &p.Status, &method, &paidAt, &expiresAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if donorUserID.Valid {
		v := uint64(donorUserID.Int64)
		p.DonorUserID = &v
	}
	if soundEffectID.Valid {
		v := uint64(soundEffectID.Int64)
		p.SoundEffectID = &v
	}
	p.Message = message.String
	p.PaymentMethod = method.String
	if paidAt.Valid {
		t := paidAt.Time
		p.PaidAt = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		p.ExpiresAt = &t
	}
	return &p, nil
}

// Create inserts a new pending intent and generates its webhook token.
// The token and generated id are populated on the passed record.
func (r *PaymentIntentRepo) Create(ctx context.Context, p *model.PaymentIntent) error {
	token, err := randomToken(32)
	if err != nil {
		return err
	}
	p.WebhookToken = token
	p.Status = model.IntentStatusPending
	const q = `INSERT INTO payment_intents
		(streamer_id, donor_name, donor_platform, donor_user_id, amount, currency,
		 message, type, sound_effect_id, invoice_ref, webhook_token, status, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending', ?)`
	var expires any
	if p.ExpiresAt != nil {
		expires = p.ExpiresAt.UTC().Format("2006-01-02 15:04:05")
	}
	res, err := r.db.ExecContext(ctx, q, p.StreamerID, p.DonorName, p.DonorPlatform,
		nullableID(p.DonorUserID), p.Amount, p.Currency, p.Message, p.Type,
		nullableID(p.SoundEffectID), p.InvoiceRef, p.WebhookToken, expires)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// FindByWebhookToken resolves the intent addressed by a settlement
// callback's capability token.
func (r *PaymentIntentRepo) FindByWebhookToken(ctx context.Context, token string) (*model.PaymentIntent, error) {
	const q = `SELECT ` + intentColumns + ` FROM payment_intents WHERE webhook_token = ?`
	p, err := scanIntent(r.db.QueryRowContext(ctx, q, token))
	if err == sql.ErrNoRows {
		return nil, ErrIntentNotFound
	}
	return p, err
}

// FindByInvoiceRef resolves the intent by its external invoice id, used
// by the reconciliation path.
func (r *PaymentIntentRepo) FindByInvoiceRef(ctx context.Context, ref string) (*model.PaymentIntent, error) {
	const q = `SELECT ` + intentColumns + ` FROM payment_intents WHERE invoice_ref = ?`
	p, err := scanIntent(r.db.QueryRowContext(ctx, q, ref))
	if err == sql.ErrNoRows {
		return nil, ErrIntentNotFound
	}
	return p, err
}

// SettlePending performs the durable settlement step: a single
// compare-and-set transition pending -> paid plus creation of exactly
// one donation row, inside one transaction. The UPDATE's WHERE clause
// carries both the status check and the expiry deadline, so only one of
// two racing callers can ever observe RowsAffected == 1; the loser gets
// ErrAlreadyPaid (or ErrIntentTerminal when the row finished in another
// terminal state). The donations.payment_intent_id unique index is a
// second line of defense against double inserts.
func (r *PaymentIntentRepo) SettlePending(ctx context.Context, intentID uint64, paymentMethod string) (*model.Donation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE payment_intents
		 SET status = 'paid', payment_method = ?, paid_at = UTC_TIMESTAMP(), updated_at = UTC_TIMESTAMP()
		 WHERE id = ? AND status = 'pending'
		   AND (expires_at IS NULL OR expires_at > UTC_TIMESTAMP())`,
		paymentMethod, intentID)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Lost the race or the intent is no longer settleable; report
		// which from the current status.
		var status string
		if err := tx.QueryRowContext(ctx,
			`SELECT status FROM payment_intents WHERE id = ?`, intentID).Scan(&status); err != nil {
			if err == sql.ErrNoRows {
				return nil, ErrIntentNotFound
			}
			return nil, err
		}
		if status == model.IntentStatusPaid {
			return nil, ErrAlreadyPaid
		}
		return nil, ErrIntentTerminal
	}

	suffix, err := randomToken(6)
	if err != nil {
		return nil, err
	}
	donationID := "don_" + suffix

	ins, err := tx.ExecContext(ctx,
		`INSERT INTO donations
		 (streamer_id, donor_name, donor_platform, donor_user_id, amount, message,
		  type, sound_effect_id, donation_id, payment_intent_id, is_test, processed_at)
		 SELECT streamer_id, donor_name, donor_platform, donor_user_id, amount, message,
		        type, sound_effect_id, ?, id, 0, UTC_TIMESTAMP()
		 FROM payment_intents WHERE id = ?`,
		donationID, intentID)
	if err != nil {
		return nil, err
	}
	rowID, err := ins.LastInsertId()
	if err != nil {
		return nil, err
	}

	d, err := scanDonation(tx.QueryRowContext(ctx,
		`SELECT `+donationColumns+` FROM donations WHERE id = ?`, rowID))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return d, nil
}

// MarkExpired transitions a pending intent past its deadline to
// expired. The WHERE clause re-checks both status and deadline so a
// concurrent settlement cannot be clobbered; it reports whether this
// call performed the transition.
func (r *PaymentIntentRepo) MarkExpired(ctx context.Context, intentID uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payment_intents
		 SET status = 'expired', updated_at = UTC_TIMESTAMP()
		 WHERE id = ? AND status = 'pending'
		   AND expires_at IS NOT NULL AND expires_at <= UTC_TIMESTAMP()`,
		intentID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// MarkFailed transitions a pending intent to failed after the gateway
// reported a final failure.
func (r *PaymentIntentRepo) MarkFailed(ctx context.Context, intentID uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payment_intents
		 SET status = 'failed', updated_at = UTC_TIMESTAMP()
		 WHERE id = ? AND status = 'pending'`,
		intentID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func nullableID(v *uint64) any {
	if v == nil {
		return nil
	}
	return *v
}
