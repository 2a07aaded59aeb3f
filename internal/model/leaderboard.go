package model

import "time"

// LeaderboardEntry is the pre-aggregated donation total for one donor
// display name on one streamer's leaderboard.  Guest donations and
// authenticated donations under the same display name are merged into
// a single entry on purpose, so two people using the same name share
// one row.
type LeaderboardEntry struct {
	ID              uint64
	StreamerID      uint64
	DonorName       string
	DonorUserID     *uint64
	TotalAmount     int64
	DonationCount   int
	BiggestDonation int64
	FirstDonationAt time.Time
	LastDonationAt  time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Rank is filled by AssignRanks when building display payloads;
	// it is not a stored column.
	Rank int
}

// LeaderboardSettings controls the leaderboard overlay for a streamer.
type LeaderboardSettings struct {
	ID             uint64
	StreamerID     uint64
	IsEnabled      bool
	PositionsCount int
	OverlayToken   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AssignRanks fills the Rank field for entries ordered by descending
// total.  Rank is one plus the number of entries with a strictly
// greater total, so donors with equal totals share a rank and the next
// distinct total skips ahead (1, 1, 3 rather than 1, 2, 3).
func AssignRanks(entries []LeaderboardEntry) {
	greater := 0
	for i := range entries {
		if i > 0 && entries[i].TotalAmount < entries[i-1].TotalAmount {
			greater = i
		}
		entries[i].Rank = greater + 1
	}
}
