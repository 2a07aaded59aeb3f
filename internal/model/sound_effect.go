package model

import "time"

// SoundEffect is a purchasable sound clip.  A sound_effect donation
// references one of these; settlement resolves the clip and emits a
// playback payload instead of a visual alert.
type SoundEffect struct {
	ID              uint64
	Name            string
	Filename        string
	DurationSeconds float64
	Price           int64
	IsActive        bool
	CreatedAt       time.Time
}

// FileURL is the public path the overlay loads the clip from.
func (s *SoundEffect) FileURL() string {
	return "/static/sounds/" + s.Filename
}
