package model

import (
	"testing"
	"time"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTimer() *CountdownTimer {
	return &CountdownTimer{
		ID:          1,
		StreamerID:  7,
		MinutePrice: 1000,
		UpdatedAt:   base,
	}
}

func TestStateTransitions(t *testing.T) {
	tm := newTimer()
	if tm.State() != TimerIdle {
		t.Fatalf("new timer state = %s, want idle", tm.State())
	}

	tm.InitialMinutes = 60
	tm.Start(base)
	if tm.State() != TimerRunning {
		t.Fatalf("after Start state = %s, want running", tm.State())
	}
	if tm.RemainingMinutes != 60 || tm.RemainingSeconds != 0 {
		t.Fatalf("after Start remaining = %d:%d, want 60:0", tm.RemainingMinutes, tm.RemainingSeconds)
	}

	tm.Pause(base.Add(10*time.Minute), 49, 30)
	if tm.State() != TimerPaused {
		t.Fatalf("after Pause state = %s, want paused", tm.State())
	}
	// The pause checkpoint is whatever the client reported.
	if tm.RemainingMinutes != 49 || tm.RemainingSeconds != 30 {
		t.Fatalf("pause checkpoint = %d:%d, want 49:30", tm.RemainingMinutes, tm.RemainingSeconds)
	}

	tm.Resume(base.Add(15 * time.Minute))
	if tm.State() != TimerRunning {
		t.Fatalf("after Resume state = %s, want running", tm.State())
	}
	if tm.TotalPausedMinutes != 5 {
		t.Fatalf("TotalPausedMinutes = %d, want 5", tm.TotalPausedMinutes)
	}
	// Remaining time must not have ticked while paused.
	if tm.RemainingMinutes != 49 || tm.RemainingSeconds != 30 {
		t.Fatalf("remaining after resume = %d:%d, want 49:30", tm.RemainingMinutes, tm.RemainingSeconds)
	}
}

func TestDonationTimeOnlyWhileRunning(t *testing.T) {
	tm := newTimer()
	now := base

	// Idle: donation time is a silent no-op.
	if tm.ApplyTime(now, 5, TimeSourceDonation) {
		t.Fatal("donation time applied while idle")
	}

	tm.InitialMinutes = 30
	tm.Start(now)
	if !tm.ApplyTime(now.Add(time.Minute), 5, TimeSourceDonation) {
		t.Fatal("donation time rejected while running")
	}
	if tm.DonatedMinutes != 5 || tm.RemainingMinutes != 35 {
		t.Fatalf("donated=%d remaining=%d, want 5 and 35", tm.DonatedMinutes, tm.RemainingMinutes)
	}

	tm.Pause(now.Add(2*time.Minute), 33, 0)
	if tm.ApplyTime(now.Add(3*time.Minute), 5, TimeSourceDonation) {
		t.Fatal("donation time applied while paused")
	}
	if tm.DonatedMinutes != 5 {
		t.Fatalf("donated bucket changed while paused: %d", tm.DonatedMinutes)
	}

	// Manual adjustments do apply while paused.
	if !tm.ApplyTime(now.Add(3*time.Minute), -10, TimeSourceManual) {
		t.Fatal("manual adjustment rejected while paused")
	}
	if tm.ManualMinutes != -10 || tm.RemainingMinutes != 23 {
		t.Fatalf("manual=%d remaining=%d, want -10 and 23", tm.ManualMinutes, tm.RemainingMinutes)
	}
}

func TestApplyTimeClampsAtZero(t *testing.T) {
	tm := newTimer()
	tm.InitialMinutes = 3
	tm.Start(base)
	tm.ApplyTime(base.Add(time.Minute), -100, TimeSourceManual)
	if tm.RemainingMinutes != 0 {
		t.Fatalf("remaining = %d, want clamp at 0", tm.RemainingMinutes)
	}
}

func TestCurrentRemainingGuardWindow(t *testing.T) {
	tm := newTimer()
	tm.InitialMinutes = 30
	tm.Start(base)

	// Inside the guard window the checkpoint is returned untouched,
	// even though wall time has advanced.
	min, sec, advanced := tm.CurrentRemaining(base.Add(9 * time.Second))
	if advanced {
		t.Fatal("checkpoint advanced inside the guard window")
	}
	if min != 30 || sec != 0 {
		t.Fatalf("remaining inside window = %d:%d, want 30:0", min, sec)
	}

	// Outside the window elapsed time is subtracted.
	min, sec, advanced = tm.CurrentRemaining(base.Add(90 * time.Second))
	if !advanced {
		t.Fatal("checkpoint did not advance outside the guard window")
	}
	if min != 28 || sec != 30 {
		t.Fatalf("remaining outside window = %d:%d, want 28:30", min, sec)
	}
}

func TestCurrentRemainingWhilePausedIsFrozen(t *testing.T) {
	tm := newTimer()
	tm.InitialMinutes = 30
	tm.Start(base)
	tm.Pause(base.Add(time.Minute), 29, 0)

	min, sec, advanced := tm.CurrentRemaining(base.Add(2 * time.Hour))
	if advanced || min != 29 || sec != 0 {
		t.Fatalf("paused remaining = %d:%d advanced=%v, want frozen 29:0", min, sec, advanced)
	}
}

func TestCurrentRemainingFloorsAtZero(t *testing.T) {
	tm := newTimer()
	tm.InitialMinutes = 1
	tm.Start(base)
	min, sec, _ := tm.CurrentRemaining(base.Add(time.Hour))
	if min != 0 || sec != 0 {
		t.Fatalf("remaining = %d:%d, want 0:0", min, sec)
	}
}

func TestResetZeroesEverything(t *testing.T) {
	for _, auto := range []bool{false, true} {
		tm := newTimer()
		tm.InitialMinutes = 60
		tm.Start(base)
		tm.ApplyTime(base.Add(time.Minute), 10, TimeSourceDonation)
		tm.AccumulatedDonations = 10000
		tm.Pause(base.Add(2*time.Minute), 50, 0)

		if auto {
			tm.AutoReset(base.Add(time.Hour))
		} else {
			tm.Reset(base.Add(time.Hour))
		}
		if tm.State() != TimerIdle {
			t.Fatalf("auto=%v state after reset = %s, want idle", auto, tm.State())
		}
		if tm.InitialMinutes != 0 || tm.DonatedMinutes != 0 || tm.ManualMinutes != 0 ||
			tm.AccumulatedDonations != 0 || tm.TotalPausedMinutes != 0 ||
			tm.RemainingMinutes != 0 || tm.RemainingSeconds != 0 {
			t.Fatalf("auto=%v reset left state behind: %+v", auto, tm)
		}
	}
}

func TestMinutesFor(t *testing.T) {
	tm := newTimer()
	cases := []struct {
		amount int64
		want   int
	}{
		{0, 0},
		{999, 0},
		{1000, 1},
		{2500, 2},
		{10000, 10},
	}
	for _, tc := range cases {
		if got := tm.MinutesFor(tc.amount); got != tc.want {
			t.Errorf("MinutesFor(%d) = %d, want %d", tc.amount, got, tc.want)
		}
	}
	tm.MinutePrice = 0
	if got := tm.MinutesFor(5000); got != 0 {
		t.Errorf("MinutesFor with zero price = %d, want 0", got)
	}
}

func TestBreakdownOf(t *testing.T) {
	b := BreakdownOf(1501, 42)
	if b.Days != 1 || b.Hours != 1 || b.Minutes != 1 || b.Seconds != 42 {
		t.Fatalf("BreakdownOf(1501,42) = %+v", b)
	}
	if b.TotalMinutes != 1501 {
		t.Fatalf("TotalMinutes = %d, want 1501", b.TotalMinutes)
	}
	// Negative inputs clamp rather than underflow.
	b = BreakdownOf(-5, -5)
	if b.Days != 0 || b.Minutes != 0 || b.Seconds != 0 {
		t.Fatalf("negative BreakdownOf = %+v, want zeros", b)
	}
}
