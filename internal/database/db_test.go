package database

import (
	"testing"
	"time"
)

func TestPoolDefaults(t *testing.T) {
	p := Pool{}.withDefaults()
	if p.MaxOpen != 25 {
		t.Errorf("MaxOpen = %d, want 25", p.MaxOpen)
	}
	if p.MaxIdle != 25 {
		t.Errorf("MaxIdle = %d, want 25", p.MaxIdle)
	}
	if p.ConnLifetime != 30*time.Minute {
		t.Errorf("ConnLifetime = %s, want 30m", p.ConnLifetime)
	}
}

func TestPoolKeepsConfiguredValues(t *testing.T) {
	p := Pool{MaxOpen: 50, ConnLifetime: time.Hour}.withDefaults()
	if p.MaxOpen != 50 {
		t.Errorf("MaxOpen = %d, want 50", p.MaxOpen)
	}
	// Unset idle count follows the open ceiling.
	if p.MaxIdle != 50 {
		t.Errorf("MaxIdle = %d, want 50", p.MaxIdle)
	}
	if p.ConnLifetime != time.Hour {
		t.Errorf("ConnLifetime = %s, want 1h", p.ConnLifetime)
	}
}
