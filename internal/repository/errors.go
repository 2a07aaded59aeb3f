// Package repository defines error types that are reused across multiple
// repositories. These sentinel values let higher layers such as the
// settlement service and handlers distinguish failure scenarios without
// string matching: an unknown capability token, an intent that already
// settled, or one that reached a terminal status and must never settle.
package repository

import "errors"

// ErrIntentNotFound is returned when no payment intent matches the
// given capability token, invoice reference or id. Handlers translate
// this into an HTTP 404.
var ErrIntentNotFound = errors.New("payment intent not found")

// ErrAlreadyPaid is returned by the settlement primitive when the
// intent was already settled by a concurrent or earlier call. This is
// not a failure: callers treat it as an idempotent success and must not
// create a second donation or re-run side effects.
var ErrAlreadyPaid = errors.New("payment intent already paid")

// ErrIntentTerminal is returned when settlement is attempted on a
// failed or expired intent. The stored status wins regardless of what
// the caller claims the gateway reported.
var ErrIntentTerminal = errors.New("payment intent in terminal state")

// ErrTimerNotFound is returned when a streamer has no countdown timer
// row or an overlay token matches none.
var ErrTimerNotFound = errors.New("countdown timer not found")

// ErrGoalNotFound is returned when no active accumulation goal exists
// for a streamer or overlay token.
var ErrGoalNotFound = errors.New("accumulation goal not found")

// ErrSettingsNotFound is returned when a settings row addressed by
// overlay token does not exist.
var ErrSettingsNotFound = errors.New("settings not found")

// ErrSoundEffectNotFound is returned when a sound_effect donation
// references a missing or inactive clip.
var ErrSoundEffectNotFound = errors.New("sound effect not found")
