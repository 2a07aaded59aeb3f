package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/stream-donation-hub/internal/hub"
	"github.com/iliyamo/stream-donation-hub/internal/model"
	"github.com/iliyamo/stream-donation-hub/internal/queue"
	"github.com/iliyamo/stream-donation-hub/internal/repository"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeIntents reproduces the repository's CAS semantics in memory so
// the concurrency contract can be exercised without a database.
type fakeIntents struct {
	mu        sync.Mutex
	intents   map[uint64]*model.PaymentIntent
	donations map[uint64]*model.Donation
	nextID    uint64
}

func newFakeIntents(list ...*model.PaymentIntent) *fakeIntents {
	f := &fakeIntents{
		intents:   make(map[uint64]*model.PaymentIntent),
		donations: make(map[uint64]*model.Donation),
		nextID:    1,
	}
	for _, in := range list {
		f.intents[in.ID] = in
	}
	return f
}

func (f *fakeIntents) FindByWebhookToken(_ context.Context, token string) (*model.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, in := range f.intents {
		if in.WebhookToken == token {
			cp := *in
			return &cp, nil
		}
	}
	return nil, repository.ErrIntentNotFound
}

func (f *fakeIntents) FindByInvoiceRef(_ context.Context, ref string) (*model.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, in := range f.intents {
		if in.InvoiceRef == ref {
			cp := *in
			return &cp, nil
		}
	}
	return nil, repository.ErrIntentNotFound
}

func (f *fakeIntents) SettlePending(_ context.Context, intentID uint64, paymentMethod string) (*model.Donation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	in, ok := f.intents[intentID]
	if !ok {
		return nil, repository.ErrIntentNotFound
	}
	if in.Status == model.IntentStatusPaid {
		return nil, repository.ErrAlreadyPaid
	}
	if in.Status != model.IntentStatusPending {
		return nil, repository.ErrIntentTerminal
	}
	in.Status = model.IntentStatusPaid
	in.PaymentMethod = paymentMethod
	id := f.nextID
	f.nextID++
	intentRef := in.ID
	d := &model.Donation{
		ID:              id,
		StreamerID:      in.StreamerID,
		DonorName:       in.DonorName,
		DonorPlatform:   in.DonorPlatform,
		Amount:          in.Amount,
		Message:         in.Message,
		Type:            in.Type,
		SoundEffectID:   in.SoundEffectID,
		DonationID:      "don_test" + in.WebhookToken,
		PaymentIntentID: &intentRef,
		CreatedAt:       testNow,
	}
	f.donations[id] = d
	return d, nil
}

func (f *fakeIntents) MarkExpired(_ context.Context, intentID uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	in, ok := f.intents[intentID]
	if !ok || in.Status != model.IntentStatusPending {
		return false, nil
	}
	in.Status = model.IntentStatusExpired
	return true, nil
}

func (f *fakeIntents) MarkFailed(_ context.Context, intentID uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	in, ok := f.intents[intentID]
	if !ok || in.Status != model.IntentStatusPending {
		return false, nil
	}
	in.Status = model.IntentStatusFailed
	return true, nil
}

type fakeTimers struct {
	mu    sync.Mutex
	timer *model.CountdownTimer
}

func (f *fakeTimers) GetOrCreate(context.Context, uint64) (*model.CountdownTimer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.timer
	return &cp, nil
}

func (f *fakeTimers) AddDonationTime(_ context.Context, _ uint64, amount int64, minutes int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.timer.Running() {
		return false, nil
	}
	f.timer.AccumulatedDonations += amount
	f.timer.ApplyTime(testNow, minutes, model.TimeSourceDonation)
	return true, nil
}

type fakeGoals struct {
	mu   sync.Mutex
	goal *model.AccumulationGoal
	err  error
}

func (f *fakeGoals) FindActive(context.Context, uint64) (*model.AccumulationGoal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.goal == nil || !f.goal.IsActive {
		return nil, repository.ErrGoalNotFound
	}
	cp := *f.goal
	return &cp, nil
}

func (f *fakeGoals) AddDonation(_ context.Context, _ uint64, amount int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.goal == nil || !f.goal.IsActive {
		return false, nil
	}
	f.goal.CurrentAmount += amount
	return true, nil
}

type fakeLeaderboard struct {
	mu       sync.Mutex
	totals   map[string]int64
	settings model.LeaderboardSettings
	panics   bool
}

func newFakeLeaderboard() *fakeLeaderboard {
	return &fakeLeaderboard{
		totals:   make(map[string]int64),
		settings: model.LeaderboardSettings{IsEnabled: true, PositionsCount: 10},
	}
}

func (f *fakeLeaderboard) RecordDonation(_ context.Context, _ uint64, donorName string, amount int64, _ time.Time) error {
	if f.panics {
		panic("leaderboard store exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.totals[donorName] += amount
	return nil
}

func (f *fakeLeaderboard) TopDonors(_ context.Context, _ uint64, limit int) ([]model.LeaderboardEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := make([]model.LeaderboardEntry, 0, len(f.totals))
	for name, total := range f.totals {
		entries = append(entries, model.LeaderboardEntry{DonorName: name, TotalAmount: total})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalAmount != entries[j].TotalAmount {
			return entries[i].TotalAmount > entries[j].TotalAmount
		}
		return entries[i].DonorName < entries[j].DonorName
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (f *fakeLeaderboard) Position(_ context.Context, _ uint64, donorName string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mine, ok := f.totals[donorName]
	if !ok {
		return 0, nil
	}
	greater := 0
	for _, total := range f.totals {
		if total > mine {
			greater++
		}
	}
	return greater + 1, nil
}

func (f *fakeLeaderboard) GetOrCreateSettings(context.Context, uint64) (*model.LeaderboardSettings, error) {
	cp := f.settings
	return &cp, nil
}

type fakeAlerts struct {
	settings model.AlertSettings
}

func (f *fakeAlerts) GetOrCreate(context.Context, uint64) (*model.AlertSettings, error) {
	cp := f.settings
	return &cp, nil
}

type fakeSounds struct {
	clips map[uint64]*model.SoundEffect
}

func (f *fakeSounds) FindActiveByID(_ context.Context, id uint64) (*model.SoundEffect, error) {
	if c, ok := f.clips[id]; ok {
		return c, nil
	}
	return nil, repository.ErrSoundEffectNotFound
}

type published struct {
	room  hub.Room
	event string
	data  any
}

type fakeHub struct {
	mu     sync.Mutex
	events []published
}

func (f *fakeHub) Publish(room hub.Room, event string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, published{room, event, data})
}

func (f *fakeHub) byEvent(event string) []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []published
	for _, p := range f.events {
		if p.event == event {
			out = append(out, p)
		}
	}
	return out
}

type fakeSpeaker struct{ url string }

func (f *fakeSpeaker) Synthesize(context.Context, uint64, *model.AlertSettings, string) (string, error) {
	return f.url, nil
}

type env struct {
	intents  *fakeIntents
	timers   *fakeTimers
	goals    *fakeGoals
	board    *fakeLeaderboard
	alerts   *fakeAlerts
	sounds   *fakeSounds
	hub      *fakeHub
	queuedMu sync.Mutex
	queued   []queue.DonationSettledEvent
	svc      *SettlementService
}

func pendingIntent(id uint64, token string, amount int64) *model.PaymentIntent {
	return &model.PaymentIntent{
		ID:            id,
		StreamerID:    7,
		DonorName:     "alice",
		DonorPlatform: "guest",
		Amount:        amount,
		Currency:      "MNT",
		Message:       "great stream",
		Type:          model.DonationTypeAlert,
		WebhookToken:  token,
		Status:        model.IntentStatusPending,
	}
}

func newEnv(intents ...*model.PaymentIntent) *env {
	e := &env{
		intents: newFakeIntents(intents...),
		timers: &fakeTimers{timer: &model.CountdownTimer{
			ID: 1, StreamerID: 7, MinutePrice: 1000, UpdatedAt: testNow,
		}},
		goals:  &fakeGoals{goal: &model.AccumulationGoal{StreamerID: 7, Title: "new mic", TargetAmount: 100000, IsActive: true}},
		board:  newFakeLeaderboard(),
		alerts: &fakeAlerts{settings: model.AlertSettings{SpeechVoice: "default", SpeechSpeed: 1, SpeechPitch: 1}},
		sounds: &fakeSounds{clips: map[uint64]*model.SoundEffect{}},
		hub:    &fakeHub{},
	}
	e.svc = &SettlementService{
		intents:      e.intents,
		timers:       e.timers,
		goals:        e.goals,
		leaderboards: e.board,
		alerts:       e.alerts,
		sounds:       e.sounds,
		hub:          e.hub,
		speech:       &fakeSpeaker{},
		publishEvent: func(_ context.Context, ev queue.DonationSettledEvent) error {
			e.queuedMu.Lock()
			e.queued = append(e.queued, ev)
			e.queuedMu.Unlock()
			return nil
		},
		now: func() time.Time { return testNow },
	}
	return e
}

func TestSettleFansOutToAllSurfaces(t *testing.T) {
	e := newEnv(pendingIntent(1, "tok1", 5000))
	start := testNow.Add(-time.Hour)
	e.timers.timer.InitialMinutes = 60
	e.timers.timer.Start(start)

	res, err := e.svc.SettleByToken(context.Background(), "tok1", "card")
	if err != nil {
		t.Fatalf("SettleByToken: %v", err)
	}
	if res.AlreadyPaid || res.Donation == nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Outcomes) != 5 {
		t.Fatalf("outcomes = %d, want 5", len(res.Outcomes))
	}
	if failed := res.Failed(); len(failed) != 0 {
		t.Fatalf("failed effects: %v", failed)
	}

	// 5000 MNT at 1000/minute buys 5 minutes.
	if res.MinutesAdded != 5 {
		t.Fatalf("MinutesAdded = %d, want 5", res.MinutesAdded)
	}
	if e.timers.timer.DonatedMinutes != 5 {
		t.Fatalf("timer donated minutes = %d, want 5", e.timers.timer.DonatedMinutes)
	}
	if e.goals.goal.CurrentAmount != 5000 {
		t.Fatalf("goal amount = %d, want 5000", e.goals.goal.CurrentAmount)
	}
	if e.board.totals["alice"] != 5000 {
		t.Fatalf("leaderboard total = %d, want 5000", e.board.totals["alice"])
	}

	for _, event := range []string{EventDonationFeed, EventDonationAlert, EventGoalUpdated, EventTimeAdded, EventTimerUpdated, EventLeaderboardUpdated} {
		if got := e.hub.byEvent(event); len(got) != 1 {
			t.Errorf("event %s published %d times, want 1", event, len(got))
		}
	}

	if len(e.queued) != 1 {
		t.Fatalf("queued events = %d, want 1", len(e.queued))
	}
	if e.queued[0].MinutesAdded != 5 || e.queued[0].PaymentMethod != "card" {
		t.Fatalf("queued event = %+v", e.queued[0])
	}
}

func TestSettleIsIdempotent(t *testing.T) {
	e := newEnv(pendingIntent(1, "tok1", 5000))

	first, err := e.svc.SettleByToken(context.Background(), "tok1", "card")
	if err != nil || first.AlreadyPaid {
		t.Fatalf("first settlement: res=%+v err=%v", first, err)
	}
	eventsAfterFirst := len(e.hub.events)

	second, err := e.svc.SettleByToken(context.Background(), "tok1", "card")
	if err != nil {
		t.Fatalf("second settlement: %v", err)
	}
	if !second.AlreadyPaid {
		t.Fatal("second settlement did not report already paid")
	}
	if second.Donation != nil {
		t.Fatal("second settlement created a donation")
	}
	if len(e.intents.donations) != 1 {
		t.Fatalf("donations = %d, want exactly 1", len(e.intents.donations))
	}
	if len(e.hub.events) != eventsAfterFirst {
		t.Fatal("second settlement published events")
	}
	if e.goals.goal.CurrentAmount != 5000 {
		t.Fatalf("goal credited twice: %d", e.goals.goal.CurrentAmount)
	}
}

func TestConcurrentSettlementsSettleOnce(t *testing.T) {
	e := newEnv(pendingIntent(1, "tok1", 5000))

	const n = 16
	var wg sync.WaitGroup
	results := make([]*SettlementResult, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := e.svc.SettleByToken(context.Background(), "tok1", "card")
			if err != nil {
				t.Errorf("settlement %d: %v", i, err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, res := range results {
		if res != nil && !res.AlreadyPaid {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
	if len(e.intents.donations) != 1 {
		t.Fatalf("donations = %d, want exactly 1", len(e.intents.donations))
	}
	if e.goals.goal.CurrentAmount != 5000 {
		t.Fatalf("goal amount = %d, want 5000 (credited once)", e.goals.goal.CurrentAmount)
	}
}

func TestConcurrentDistinctSettlementsLoseNothing(t *testing.T) {
	const n = 10
	intents := make([]*model.PaymentIntent, n)
	for i := range intents {
		intents[i] = pendingIntent(uint64(i+1), "tok"+string(rune('a'+i)), 1000)
	}
	e := newEnv(intents...)

	var wg sync.WaitGroup
	for _, in := range intents {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			if _, err := e.svc.SettleByToken(context.Background(), token, "card"); err != nil {
				t.Errorf("settle %s: %v", token, err)
			}
		}(in.WebhookToken)
	}
	wg.Wait()

	if len(e.intents.donations) != n {
		t.Fatalf("donations = %d, want %d", len(e.intents.donations), n)
	}
	if e.goals.goal.CurrentAmount != n*1000 {
		t.Fatalf("goal amount = %d, want %d", e.goals.goal.CurrentAmount, n*1000)
	}
	if e.board.totals["alice"] != n*1000 {
		t.Fatalf("leaderboard total = %d, want %d", e.board.totals["alice"], n*1000)
	}
}

func TestSettleExpiredIntent(t *testing.T) {
	in := pendingIntent(1, "tok1", 5000)
	deadline := testNow.Add(-time.Minute)
	in.ExpiresAt = &deadline
	e := newEnv(in)

	_, err := e.svc.SettleByToken(context.Background(), "tok1", "card")
	if !errors.Is(err, repository.ErrIntentTerminal) {
		t.Fatalf("err = %v, want ErrIntentTerminal", err)
	}
	if e.intents.intents[1].Status != model.IntentStatusExpired {
		t.Fatalf("intent status = %s, want expired", e.intents.intents[1].Status)
	}
	if len(e.intents.donations) != 0 {
		t.Fatal("expired intent produced a donation")
	}
}

func TestFailByToken(t *testing.T) {
	e := newEnv(pendingIntent(1, "tok1", 5000))

	in, err := e.svc.FailByToken(context.Background(), "tok1")
	if err != nil {
		t.Fatalf("FailByToken: %v", err)
	}
	if in.Status != model.IntentStatusFailed {
		t.Fatalf("status = %s, want failed", in.Status)
	}

	// A failure notice arriving after settlement changes nothing.
	e = newEnv(pendingIntent(1, "tok1", 5000))
	if _, err := e.svc.SettleByToken(context.Background(), "tok1", "card"); err != nil {
		t.Fatalf("SettleByToken: %v", err)
	}
	in, err = e.svc.FailByToken(context.Background(), "tok1")
	if err != nil {
		t.Fatalf("FailByToken after settle: %v", err)
	}
	if in.Status != model.IntentStatusPaid {
		t.Fatalf("status = %s, want paid", in.Status)
	}
	if e.intents.intents[1].Status != model.IntentStatusPaid {
		t.Fatal("settled intent flipped to failed")
	}
}

func TestSideEffectFailuresAreIsolated(t *testing.T) {
	e := newEnv(pendingIntent(1, "tok1", 5000))
	e.goals.err = errors.New("goal table on fire")
	e.board.panics = true

	res, err := e.svc.SettleByToken(context.Background(), "tok1", "card")
	if err != nil {
		t.Fatalf("settlement must survive side-effect failures: %v", err)
	}
	if res.Donation == nil {
		t.Fatal("no donation despite successful settlement")
	}

	failed := res.Failed()
	if len(failed) != 2 {
		t.Fatalf("failed = %v, want goal and leaderboard", failed)
	}
	for _, name := range failed {
		if name != "goal" && name != "leaderboard" {
			t.Errorf("unexpected failed effect %q", name)
		}
	}

	// The surfaces before and after the failing ones still ran.
	if got := e.hub.byEvent(EventDonationFeed); len(got) != 1 {
		t.Error("donation feed event missing")
	}
	if got := e.hub.byEvent(EventDonationAlert); len(got) != 1 {
		t.Error("alert event missing")
	}
}

func TestDonationWhileTimerPausedAddsNoTime(t *testing.T) {
	e := newEnv(pendingIntent(1, "tok1", 5000))
	e.timers.timer.InitialMinutes = 60
	e.timers.timer.Start(testNow.Add(-time.Hour))
	e.timers.timer.Pause(testNow.Add(-time.Minute), 30, 0)

	res, err := e.svc.SettleByToken(context.Background(), "tok1", "card")
	if err != nil {
		t.Fatalf("SettleByToken: %v", err)
	}
	if res.MinutesAdded != 0 {
		t.Fatalf("MinutesAdded = %d, want 0 while paused", res.MinutesAdded)
	}
	if e.timers.timer.DonatedMinutes != 0 {
		t.Fatal("paused timer gained donated minutes")
	}
	if got := e.hub.byEvent(EventTimeAdded); len(got) != 0 {
		t.Fatal("time_added published for a paused timer")
	}
	// The timer outcome is a success: skipping is the contract, not a
	// failure.
	if failed := res.Failed(); len(failed) != 0 {
		t.Fatalf("failed effects: %v", failed)
	}
}

func TestThroneTakeover(t *testing.T) {
	e := newEnv(pendingIntent(1, "tok1", 9000))
	e.board.totals["bob"] = 5000

	if _, err := e.svc.SettleByToken(context.Background(), "tok1", "card"); err != nil {
		t.Fatalf("SettleByToken: %v", err)
	}

	taken := e.hub.byEvent(EventThroneTaken)
	if len(taken) != 1 {
		t.Fatalf("throne_taken published %d times, want 1", len(taken))
	}
	data := taken[0].data.(map[string]any)
	if data["new_king"] != "alice" || data["old_king"] != "bob" {
		t.Fatalf("throne payload = %v", data)
	}
}

func TestNoThroneEventWhenKingDefends(t *testing.T) {
	e := newEnv(pendingIntent(1, "tok1", 1000))
	e.board.totals["alice"] = 10000

	if _, err := e.svc.SettleByToken(context.Background(), "tok1", "card"); err != nil {
		t.Fatalf("SettleByToken: %v", err)
	}
	if got := e.hub.byEvent(EventThroneTaken); len(got) != 0 {
		t.Fatal("throne_taken published for the sitting king")
	}
}

func TestNoThroneEventWhenTiedKingExtendsLead(t *testing.T) {
	e := newEnv(pendingIntent(1, "tok1", 1000))
	e.board.totals["alice"] = 5000
	e.board.totals["bob"] = 5000

	if _, err := e.svc.SettleByToken(context.Background(), "tok1", "card"); err != nil {
		t.Fatalf("SettleByToken: %v", err)
	}
	// alice already shared rank 1; pulling ahead is not a takeover.
	if got := e.hub.byEvent(EventThroneTaken); len(got) != 0 {
		t.Fatal("throne_taken published for a donor already on rank 1")
	}
}

func TestThroneEventWhenDonorTiesTheTop(t *testing.T) {
	e := newEnv(pendingIntent(1, "tok1", 1000))
	e.board.totals["alice"] = 4000
	e.board.totals["bob"] = 5000

	if _, err := e.svc.SettleByToken(context.Background(), "tok1", "card"); err != nil {
		t.Fatalf("SettleByToken: %v", err)
	}
	// alice moves from rank 2 onto a shared rank 1.
	taken := e.hub.byEvent(EventThroneTaken)
	if len(taken) != 1 {
		t.Fatalf("throne_taken published %d times, want 1", len(taken))
	}
	data := taken[0].data.(map[string]any)
	if data["new_king"] != "alice" || data["old_king"] != "bob" {
		t.Fatalf("throne payload = %v", data)
	}
	if data["total_amount"] != int64(5000) {
		t.Fatalf("total_amount = %v, want 5000", data["total_amount"])
	}
}

func TestAlertBelowThresholdIsSuppressed(t *testing.T) {
	e := newEnv(pendingIntent(1, "tok1", 500))
	e.alerts.settings.MinimumAmount = 1000

	if _, err := e.svc.SettleByToken(context.Background(), "tok1", "card"); err != nil {
		t.Fatalf("SettleByToken: %v", err)
	}
	if got := e.hub.byEvent(EventDonationAlert); len(got) != 0 {
		t.Fatal("alert fired below the minimum")
	}
	// The feed still shows the donation.
	if got := e.hub.byEvent(EventDonationFeed); len(got) != 1 {
		t.Fatal("feed event missing for sub-threshold donation")
	}
}

func TestSoundEffectDonation(t *testing.T) {
	in := pendingIntent(1, "tok1", 3000)
	in.Type = model.DonationTypeSoundEffect
	clipID := uint64(4)
	in.SoundEffectID = &clipID
	e := newEnv(in)
	e.sounds.clips[clipID] = &model.SoundEffect{ID: clipID, Name: "airhorn", Filename: "airhorn.mp3", Price: 3000, IsActive: true}

	res, err := e.svc.SettleByToken(context.Background(), "tok1", "card")
	if err != nil {
		t.Fatalf("SettleByToken: %v", err)
	}
	if failed := res.Failed(); len(failed) != 0 {
		t.Fatalf("failed effects: %v", failed)
	}
	if got := e.hub.byEvent(EventSoundEffect); len(got) != 1 {
		t.Fatalf("sound_effect published %d times, want 1", len(got))
	}
	// A sound effect donation never fires the visual alert.
	if got := e.hub.byEvent(EventDonationAlert); len(got) != 0 {
		t.Fatal("visual alert fired for a sound effect donation")
	}
}

type fakeGateway struct {
	paid   bool
	method string
}

func (f *fakeGateway) InvoicePaid(context.Context, string) (bool, string, error) {
	return f.paid, f.method, nil
}

func TestCheckByTokenReconcilesLostWebhook(t *testing.T) {
	in := pendingIntent(1, "tok1", 5000)
	in.InvoiceRef = "inv-42"
	e := newEnv(in)
	e.svc.UseGateway(&fakeGateway{paid: true, method: "qr"})

	st, err := e.svc.CheckByToken(context.Background(), "tok1")
	if err != nil {
		t.Fatalf("CheckByToken: %v", err)
	}
	if st.Status != model.IntentStatusPaid {
		t.Fatalf("status = %s, want paid", st.Status)
	}
	if len(e.intents.donations) != 1 {
		t.Fatal("reconciliation did not settle the intent")
	}
	if e.intents.intents[1].PaymentMethod != "qr" {
		t.Fatalf("payment method = %q, want qr", e.intents.intents[1].PaymentMethod)
	}
}

func TestCheckByTokenStillPending(t *testing.T) {
	in := pendingIntent(1, "tok1", 5000)
	in.InvoiceRef = "inv-42"
	e := newEnv(in)
	e.svc.UseGateway(&fakeGateway{paid: false})

	st, err := e.svc.CheckByToken(context.Background(), "tok1")
	if err != nil {
		t.Fatalf("CheckByToken: %v", err)
	}
	if st.Status != model.IntentStatusPending {
		t.Fatalf("status = %s, want pending", st.Status)
	}
	if len(e.intents.donations) != 0 {
		t.Fatal("unpaid invoice settled")
	}
}
