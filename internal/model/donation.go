package model

import "time"

// Donation is the immutable ledger entry created exactly once per
// settled payment intent.  Rows are never updated or deleted after
// creation; every aggregate (goal total, leaderboard entry, timer
// accumulation) is derivable from this table.
//
// Fields:
//  ID              – primary key identifier.
//  StreamerID      – streamer who received the donation.
//  DonorName       – donor display name as shown on overlays.
//  DonorPlatform   – "guest" or the platform the donor logged in with.
//  DonorUserID     – donor account id when authenticated, nil for guests.
//  Amount          – amount in whole currency units.
//  Message         – donation message, may be empty.
//  Type            – "alert" or "sound_effect".
//  SoundEffectID   – sound clip reference for sound_effect donations.
//  DonationID      – external identifier ("don_<hex>") used in payloads.
//  PaymentIntentID – back-reference to the settled intent; a unique
//                    index on this column enforces exactly-once creation.
//  IsTest          – true for simulated donations that bypass payment.
type Donation struct {
	ID              uint64
	StreamerID      uint64
	DonorName       string
	DonorPlatform   string
	DonorUserID     *uint64
	Amount          int64
	Message         string
	Type            string
	SoundEffectID   *uint64
	DonationID      string
	PaymentIntentID *uint64
	IsTest          bool
	CreatedAt       time.Time
	ProcessedAt     *time.Time
}
