package model

import "time"

// AlertSettings is the streamer's alert policy: the thresholds that
// decide whether a settled donation produces an on-screen alert and
// whether its message is routed through speech synthesis.
//
// Fields:
//  MinimumAmount  – donations below this produce no alert (0 = none).
//  SpeechEnabled  – whether message speech synthesis is on at all.
//  SpeechMinimum  – minimum donation amount that qualifies for speech.
//  SpeechVoice    – synthesis voice identifier.
//  SpeechSpeed    – playback speed multiplier.
//  SpeechPitch    – pitch multiplier.
//  OverlayToken   – capability token for the alert overlay and the
//                   public donation feed.
type AlertSettings struct {
	ID            uint64
	StreamerID    uint64
	MinimumAmount int64
	SpeechEnabled bool
	SpeechMinimum int64
	SpeechVoice   string
	SpeechSpeed   float64
	SpeechPitch   float64
	OverlayToken  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// WantsSpeech reports whether a donation with the given amount and
// message qualifies for speech synthesis under this policy.  The usage
// limiter may still veto the request.
func (s *AlertSettings) WantsSpeech(amount int64, message string) bool {
	return s.SpeechEnabled && amount >= s.SpeechMinimum && message != ""
}

// AlertWorthy reports whether a donation of the given amount should
// produce an alert at all.
func (s *AlertSettings) AlertWorthy(amount int64) bool {
	return s.MinimumAmount <= 0 || amount >= s.MinimumAmount
}
