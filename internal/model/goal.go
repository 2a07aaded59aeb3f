package model

import "time"

// AccumulationGoal tracks progress toward a fundraising target.  At
// most one goal is active per streamer; every settled donation adds to
// CurrentAmount while the goal is active.  Manual adjustments are kept
// in a separate bucket so the operator can correct the displayed total
// without touching donation-derived state.
type AccumulationGoal struct {
	ID               uint64
	StreamerID       uint64
	Title            string
	TargetAmount     int64
	CurrentAmount    int64
	ManualAdjustment int64
	IsActive         bool
	OverlayToken     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TotalAmount is the displayed total including manual adjustments.
func (g *AccumulationGoal) TotalAmount() int64 {
	return g.CurrentAmount + g.ManualAdjustment
}

// ProgressPercent returns the displayed completion percentage, capped
// at 100.  A goal without a positive target reports zero.
func (g *AccumulationGoal) ProgressPercent() float64 {
	if g.TargetAmount <= 0 {
		return 0
	}
	pct := float64(g.TotalAmount()) / float64(g.TargetAmount) * 100
	if pct > 100 {
		return 100
	}
	return pct
}
