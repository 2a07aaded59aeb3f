// Package queue defines message payloads exchanged over the message broker.
package queue

// DonationSettledEvent is published after a payment intent settles and its
// donation record is written. It carries enough information for downstream
// consumers to log, notify, or feed analytics without querying the primary
// database.
type DonationSettledEvent struct {
	DonationID      string `json:"donation_id"`
	PaymentIntentID uint64 `json:"payment_intent_id"`
	StreamerID      uint64 `json:"streamer_id"`
	DonorName       string `json:"donor_name"`
	Amount          int64  `json:"amount"`
	Message         string `json:"message"`
	Type            string `json:"type"`
	PaymentMethod   string `json:"payment_method"`
	MinutesAdded    int    `json:"minutes_added"`
	SettledAt       string `json:"settled_at"`
}
