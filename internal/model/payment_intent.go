package model

import "time"

// Payment intent statuses.  An intent is created as pending by the
// invoice-creation flow and is mutated exactly once afterwards: either
// settled to paid, or finished to failed/expired.  Paid, failed and
// expired are terminal.
const (
	IntentStatusPending = "pending"
	IntentStatusPaid    = "paid"
	IntentStatusFailed  = "failed"
	IntentStatusExpired = "expired"
)

// Donation types.  An alert donation drives the visual alert overlay,
// a sound_effect donation triggers playback of a purchased sound clip
// instead.
const (
	DonationTypeAlert       = "alert"
	DonationTypeSoundEffect = "sound_effect"
)

// PaymentIntent represents one attempted payment before it becomes a
// settled donation.  The webhook token is the capability presented by
// the payment gateway's callback; the invoice ref identifies the
// invoice at the external gateway for status reconciliation.
//
// Fields:
//  ID            – primary key identifier.
//  StreamerID    – streamer receiving the donation.
//  DonorName     – display name entered by the donor.
//  DonorPlatform – origin of the donor ("guest", "twitch", "youtube", "kick").
//  DonorUserID   – account id when the donor is authenticated, nil for guests.
//  Amount        – donation amount in whole currency units.
//  Currency      – ISO currency code, "MNT" by default.
//  Message       – optional donation message shown on the alert.
//  Type          – "alert" or "sound_effect".
//  SoundEffectID – referenced sound clip when Type is "sound_effect".
//  InvoiceRef    – external gateway invoice identifier.
//  WebhookToken  – capability token addressing the settlement callback.
//  Status        – pending, paid, failed or expired.
//  PaymentMethod – method reported by the gateway once paid.
//  PaidAt        – settlement timestamp, nil until paid.
//  ExpiresAt     – deadline after which the intent may no longer settle.
type PaymentIntent struct {
	ID            uint64
	StreamerID    uint64
	DonorName     string
	DonorPlatform string
	DonorUserID   *uint64
	Amount        int64
	Currency      string
	Message       string
	Type          string
	SoundEffectID *uint64
	InvoiceRef    string
	WebhookToken  string
	Status        string
	PaymentMethod string
	PaidAt        *time.Time
	ExpiresAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Expired reports whether the intent's deadline has passed at the given
// instant.  Intents without a deadline never expire.
func (p *PaymentIntent) Expired(now time.Time) bool {
	if p.ExpiresAt == nil {
		return false
	}
	return now.After(*p.ExpiresAt)
}

// Terminal reports whether the intent has reached a final status and
// must not be settled.
func (p *PaymentIntent) Terminal() bool {
	return p.Status == IntentStatusFailed || p.Status == IntentStatusExpired
}
