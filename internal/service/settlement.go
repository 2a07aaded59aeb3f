// Package service contains the business logic between the HTTP
// handlers and the repositories: settlement fan-out, timer
// transitions, speech budgeting and gateway reconciliation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/stream-donation-hub/internal/hub"
	"github.com/iliyamo/stream-donation-hub/internal/model"
	"github.com/iliyamo/stream-donation-hub/internal/queue"
	"github.com/iliyamo/stream-donation-hub/internal/repository"
)

// Broadcast event names pushed into overlay rooms.
const (
	EventDonationAlert      = "donation_alert"
	EventDonationFeed       = "new_donation"
	EventSoundEffect        = "sound_effect"
	EventGoalUpdated        = "goal_updated"
	EventTimerUpdated       = "timer_updated"
	EventTimeAdded          = "time_added"
	EventLeaderboardUpdated = "leaderboard_updated"
	EventThroneTaken        = "throne_taken"
)

// Store interfaces are deliberately narrow: the settlement pipeline
// names only the calls it makes, so tests can substitute in-memory
// fakes for the SQL repositories.

type intentStore interface {
	FindByWebhookToken(ctx context.Context, token string) (*model.PaymentIntent, error)
	FindByInvoiceRef(ctx context.Context, ref string) (*model.PaymentIntent, error)
	SettlePending(ctx context.Context, intentID uint64, paymentMethod string) (*model.Donation, error)
	MarkExpired(ctx context.Context, intentID uint64) (bool, error)
	MarkFailed(ctx context.Context, intentID uint64) (bool, error)
}

type timerStore interface {
	GetOrCreate(ctx context.Context, streamerID uint64) (*model.CountdownTimer, error)
	AddDonationTime(ctx context.Context, streamerID uint64, amount int64, minutes int) (bool, error)
}

type goalStore interface {
	FindActive(ctx context.Context, streamerID uint64) (*model.AccumulationGoal, error)
	AddDonation(ctx context.Context, streamerID uint64, amount int64) (bool, error)
}

type leaderboardStore interface {
	RecordDonation(ctx context.Context, streamerID uint64, donorName string, amount int64, at time.Time) error
	TopDonors(ctx context.Context, streamerID uint64, limit int) ([]model.LeaderboardEntry, error)
	Position(ctx context.Context, streamerID uint64, donorName string) (int, error)
	GetOrCreateSettings(ctx context.Context, streamerID uint64) (*model.LeaderboardSettings, error)
}

type alertStore interface {
	GetOrCreate(ctx context.Context, streamerID uint64) (*model.AlertSettings, error)
}

type soundStore interface {
	FindActiveByID(ctx context.Context, id uint64) (*model.SoundEffect, error)
}

// broadcaster is satisfied by *hub.Hub.
type broadcaster interface {
	Publish(room hub.Room, event string, data any)
}

// speaker turns a donation message into a playable audio URL. An empty
// URL with a nil error means speech was skipped (disabled, over budget,
// or no synthesis backend configured).
type speaker interface {
	Synthesize(ctx context.Context, streamerID uint64, settings *model.AlertSettings, text string) (string, error)
}

// Outcome records how one settlement side effect went. Side effects
// are best-effort; a failed outcome never rolls back the donation.
type Outcome struct {
	Name string `json:"name"`
	Err  error  `json:"-"`
}

// SettlementResult is what a settlement attempt produced: the donation
// record (nil when the intent had already been settled by an earlier
// delivery) and the per-side-effect outcomes.
type SettlementResult struct {
	Intent       *model.PaymentIntent
	Donation     *model.Donation
	AlreadyPaid  bool
	MinutesAdded int
	Outcomes     []Outcome
}

// Failed lists the names of side effects that returned an error.
func (r *SettlementResult) Failed() []string {
	var names []string
	for _, o := range r.Outcomes {
		if o.Err != nil {
			names = append(names, o.Name)
		}
	}
	return names
}

// SettlementService drives a payment intent from pending to paid and
// fans the settled donation out to the overlay surfaces. The state
// transition is atomic and idempotent; everything after it is
// best-effort and isolated per surface.
type SettlementService struct {
	intents      intentStore
	timers       timerStore
	goals        goalStore
	leaderboards leaderboardStore
	alerts       alertStore
	sounds       soundStore
	hub          broadcaster
	speech       speaker
	gateway      GatewayClient

	// publishEvent pushes the audit event to the broker; replaced in
	// tests. Defaults to queue.PublishDonationSettled.
	publishEvent func(ctx context.Context, ev queue.DonationSettledEvent) error

	now func() time.Time
}

// NewSettlementService wires the production repositories, hub and
// speech pipeline together.
func NewSettlementService(
	intents *repository.PaymentIntentRepo,
	timers *repository.TimerRepo,
	goals *repository.GoalRepo,
	leaderboards *repository.LeaderboardRepo,
	alerts *repository.AlertSettingsRepo,
	sounds *repository.SoundEffectRepo,
	h *hub.Hub,
	speech speaker,
) *SettlementService {
	return &SettlementService{
		intents:      intents,
		timers:       timers,
		goals:        goals,
		leaderboards: leaderboards,
		alerts:       alerts,
		sounds:       sounds,
		hub:          h,
		speech:       speech,
		publishEvent: queue.PublishDonationSettled,
		now:          time.Now,
	}
}

// SettleByToken settles the intent addressed by a webhook capability
// token. Callers map the sentinel errors from the repository package
// to HTTP statuses; a repeat delivery is not an error and comes back
// with AlreadyPaid set.
func (s *SettlementService) SettleByToken(ctx context.Context, token, paymentMethod string) (*SettlementResult, error) {
	intent, err := s.intents.FindByWebhookToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, intent, paymentMethod)
}

// SettleByInvoiceRef settles the intent identified by its gateway
// invoice reference. Used by the reconciliation path after the gateway
// API reported the invoice as paid.
func (s *SettlementService) SettleByInvoiceRef(ctx context.Context, ref, paymentMethod string) (*SettlementResult, error) {
	intent, err := s.intents.FindByInvoiceRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, intent, paymentMethod)
}

// FailByToken records a gateway-reported final failure for a pending
// intent. A late failure notice arriving after the intent already left
// pending (settled, expired) changes nothing and reports the current
// status.
func (s *SettlementService) FailByToken(ctx context.Context, token string) (*model.PaymentIntent, error) {
	intent, err := s.intents.FindByWebhookToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if intent.Status != model.IntentStatusPending {
		return intent, nil
	}
	if flipped, err := s.intents.MarkFailed(ctx, intent.ID); err != nil {
		return nil, err
	} else if flipped {
		intent.Status = model.IntentStatusFailed
	}
	return intent, nil
}

func (s *SettlementService) settle(ctx context.Context, intent *model.PaymentIntent, paymentMethod string) (*SettlementResult, error) {
	res := &SettlementResult{Intent: intent}

	// Repeat webhook delivery for an already settled intent: succeed
	// without touching anything.
	if intent.Status == model.IntentStatusPaid {
		res.AlreadyPaid = true
		return res, nil
	}
	if intent.Terminal() {
		return nil, repository.ErrIntentTerminal
	}
	if intent.Expired(s.now()) {
		// Flip it to expired unless a concurrent settlement beat the
		// deadline check; in that case fall through to SettlePending
		// which will report ErrAlreadyPaid.
		if flipped, err := s.intents.MarkExpired(ctx, intent.ID); err != nil {
			return nil, err
		} else if flipped {
			return nil, repository.ErrIntentTerminal
		}
	}

	donation, err := s.intents.SettlePending(ctx, intent.ID, paymentMethod)
	if errors.Is(err, repository.ErrAlreadyPaid) {
		res.AlreadyPaid = true
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	res.Donation = donation

	s.fanOut(ctx, res)

	intent.Status = model.IntentStatusPaid
	intent.PaymentMethod = paymentMethod
	s.audit(ctx, res, paymentMethod)
	return res, nil
}

// fanOut runs the five overlay side effects in a fixed order. Each
// effect is isolated: an error or panic in one is recorded in the
// result and the rest still run.
func (s *SettlementService) fanOut(ctx context.Context, res *SettlementResult) {
	d := res.Donation
	s.runEffect(res, "alert", func() error { return s.effectAlert(ctx, d) })
	s.runEffect(res, "sound_effect", func() error { return s.effectSound(ctx, d) })
	s.runEffect(res, "goal", func() error { return s.effectGoal(ctx, d) })
	s.runEffect(res, "timer", func() error {
		minutes, err := s.effectTimer(ctx, d)
		res.MinutesAdded = minutes
		return err
	})
	s.runEffect(res, "leaderboard", func() error { return s.effectLeaderboard(ctx, d) })
}

func (s *SettlementService) runEffect(res *SettlementResult, name string, fn func() error) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		err = fn()
	}()
	if err != nil {
		log.Printf("settlement: %s effect failed for donation %s: %v", name, res.Donation.DonationID, err)
	}
	res.Outcomes = append(res.Outcomes, Outcome{Name: name, Err: err})
}

// AlertPayload is pushed into the alert room when a donation clears
// the streamer's alert threshold.
type AlertPayload struct {
	DonationID string  `json:"donation_id"`
	DonorName  string  `json:"donor_name"`
	Amount     int64   `json:"amount"`
	Message    string  `json:"message"`
	AudioURL   string  `json:"audio_url,omitempty"`
	IsTest     bool    `json:"is_test"`
	Voice      string  `json:"voice,omitempty"`
	Speed      float64 `json:"speed,omitempty"`
	Pitch      float64 `json:"pitch,omitempty"`
}

func (s *SettlementService) effectAlert(ctx context.Context, d *model.Donation) error {
	// The public donation feed shows every settled donation,
	// independent of the alert threshold.
	s.hub.Publish(hub.Room{StreamerID: d.StreamerID, Surface: hub.SurfaceDonationFeed}, EventDonationFeed, map[string]any{
		"donation_id": d.DonationID,
		"donor_name":  d.DonorName,
		"amount":      d.Amount,
		"message":     d.Message,
		"type":        d.Type,
		"created_at":  d.CreatedAt.UTC().Format(time.RFC3339),
	})

	if d.Type != model.DonationTypeAlert {
		return nil
	}
	settings, err := s.alerts.GetOrCreate(ctx, d.StreamerID)
	if err != nil {
		return err
	}
	if !settings.AlertWorthy(d.Amount) {
		return nil
	}

	payload := AlertPayload{
		DonationID: d.DonationID,
		DonorName:  d.DonorName,
		Amount:     d.Amount,
		Message:    d.Message,
	}
	if settings.WantsSpeech(d.Amount, d.Message) && s.speech != nil {
		url, err := s.speech.Synthesize(ctx, d.StreamerID, settings, d.Message)
		if err != nil {
			// A dead synthesis backend must not mute the visual alert.
			log.Printf("settlement: speech synthesis failed for donation %s: %v", d.DonationID, err)
		} else if url != "" {
			payload.AudioURL = url
			payload.Voice = settings.SpeechVoice
			payload.Speed = settings.SpeechSpeed
			payload.Pitch = settings.SpeechPitch
		}
	}
	s.hub.Publish(hub.Room{StreamerID: d.StreamerID, Surface: hub.SurfaceAlert}, EventDonationAlert, payload)
	return nil
}

func (s *SettlementService) effectSound(ctx context.Context, d *model.Donation) error {
	if d.Type != model.DonationTypeSoundEffect {
		return nil
	}
	if d.SoundEffectID == nil {
		return fmt.Errorf("sound_effect donation %s has no sound id", d.DonationID)
	}
	clip, err := s.sounds.FindActiveByID(ctx, *d.SoundEffectID)
	if errors.Is(err, repository.ErrSoundEffectNotFound) {
		// The clip was retired between purchase and settlement; the
		// donation stands, playback is skipped.
		return err
	}
	if err != nil {
		return err
	}
	s.hub.Publish(hub.Room{StreamerID: d.StreamerID, Surface: hub.SurfaceAlert}, EventSoundEffect, map[string]any{
		"donation_id": d.DonationID,
		"donor_name":  d.DonorName,
		"amount":      d.Amount,
		"sound_id":    clip.ID,
		"sound_name":  clip.Name,
		"file_url":    clip.FileURL(),
		"duration":    clip.DurationSeconds,
	})
	return nil
}

// GoalPayload mirrors the state the goal overlay renders.
type GoalPayload struct {
	Title         string  `json:"title"`
	TargetAmount  int64   `json:"target_amount"`
	CurrentAmount int64   `json:"current_amount"`
	Percent       float64 `json:"percent"`
}

func (s *SettlementService) effectGoal(ctx context.Context, d *model.Donation) error {
	applied, err := s.goals.AddDonation(ctx, d.StreamerID, d.Amount)
	if err != nil {
		return err
	}
	if !applied {
		// no active goal
		return nil
	}
	g, err := s.goals.FindActive(ctx, d.StreamerID)
	if err != nil {
		return err
	}
	s.hub.Publish(hub.Room{StreamerID: d.StreamerID, Surface: hub.SurfaceGoal}, EventGoalUpdated, GoalPayload{
		Title:         g.Title,
		TargetAmount:  g.TargetAmount,
		CurrentAmount: g.TotalAmount(),
		Percent:       g.ProgressPercent(),
	})
	return nil
}

func (s *SettlementService) effectTimer(ctx context.Context, d *model.Donation) (int, error) {
	t, err := s.timers.GetOrCreate(ctx, d.StreamerID)
	if err != nil {
		return 0, err
	}
	minutes := t.MinutesFor(d.Amount)
	if minutes <= 0 {
		return 0, nil
	}
	applied, err := s.timers.AddDonationTime(ctx, d.StreamerID, d.Amount, minutes)
	if err != nil {
		return 0, err
	}
	if !applied {
		// Timer idle or paused: donation time is dropped on purpose.
		return 0, nil
	}
	t, err = s.timers.GetOrCreate(ctx, d.StreamerID)
	if err != nil {
		return minutes, err
	}
	room := hub.Room{StreamerID: d.StreamerID, Surface: hub.SurfaceTimer}
	s.hub.Publish(room, EventTimeAdded, map[string]any{
		"donor_name": d.DonorName,
		"amount":     d.Amount,
		"minutes":    minutes,
	})
	s.hub.Publish(room, EventTimerUpdated, TimerPayload(t, s.now()))
	return minutes, nil
}

func (s *SettlementService) effectLeaderboard(ctx context.Context, d *model.Donation) error {
	settings, err := s.leaderboards.GetOrCreateSettings(ctx, d.StreamerID)
	if err != nil {
		return err
	}

	// Takeover detection is rank-based: the throne changes hands when
	// this donation moves the donor onto rank 1 from anywhere else.
	// Rank 1 can be shared, so a tied king edging ahead is not a
	// takeover, while newly tying the top is.
	oldPos, err := s.leaderboards.Position(ctx, d.StreamerID, d.DonorName)
	if err != nil {
		return err
	}
	var prevTop string
	if top, err := s.leaderboards.TopDonors(ctx, d.StreamerID, 1); err == nil && len(top) > 0 {
		prevTop = top[0].DonorName
	}

	if err := s.leaderboards.RecordDonation(ctx, d.StreamerID, d.DonorName, d.Amount, s.now()); err != nil {
		return err
	}

	if !settings.IsEnabled {
		return nil
	}

	entries, err := s.leaderboards.TopDonors(ctx, d.StreamerID, settings.PositionsCount)
	if err != nil {
		return err
	}
	model.AssignRanks(entries)

	room := hub.Room{StreamerID: d.StreamerID, Surface: hub.SurfaceLeaderboard}
	s.hub.Publish(room, EventLeaderboardUpdated, LeaderboardPayload(entries))

	newPos, err := s.leaderboards.Position(ctx, d.StreamerID, d.DonorName)
	if err != nil {
		return err
	}
	if newPos == 1 && oldPos != 1 && prevTop != "" {
		var total int64
		for _, e := range entries {
			if e.DonorName == d.DonorName {
				total = e.TotalAmount
				break
			}
		}
		s.hub.Publish(room, EventThroneTaken, map[string]any{
			"new_king":     d.DonorName,
			"old_king":     prevTop,
			"total_amount": total,
		})
	}
	return nil
}

// LeaderboardPayload shapes ranked entries for the overlay.
func LeaderboardPayload(entries []model.LeaderboardEntry) []map[string]any {
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"rank":           e.Rank,
			"donor_name":     e.DonorName,
			"total_amount":   e.TotalAmount,
			"donation_count": e.DonationCount,
		})
	}
	return out
}

// audit publishes the settlement event to the broker. Failures are
// logged and swallowed; the broker is an observer, not a dependency.
func (s *SettlementService) audit(ctx context.Context, res *SettlementResult, paymentMethod string) {
	if s.publishEvent == nil || res.Donation == nil {
		return
	}
	d := res.Donation
	ev := queue.DonationSettledEvent{
		DonationID:    d.DonationID,
		StreamerID:    d.StreamerID,
		DonorName:     d.DonorName,
		Amount:        d.Amount,
		Message:       d.Message,
		Type:          d.Type,
		PaymentMethod: paymentMethod,
		MinutesAdded:  res.MinutesAdded,
		SettledAt:     s.now().UTC().Format(time.RFC3339),
	}
	if d.PaymentIntentID != nil {
		ev.PaymentIntentID = *d.PaymentIntentID
	}
	if err := s.publishEvent(ctx, ev); err != nil {
		log.Printf("settlement: audit publish failed for donation %s: %v", d.DonationID, err)
	}
}

// TestAlert pushes a simulated donation alert into the streamer's
// alert room without creating any records. Operators use it to check
// overlay positioning before going live.
func (s *SettlementService) TestAlert(ctx context.Context, streamerID uint64, donorName string, amount int64, message string) error {
	if donorName == "" {
		donorName = "Test Donor"
	}
	payload := AlertPayload{
		DonationID: "don_test",
		DonorName:  donorName,
		Amount:     amount,
		Message:    message,
		IsTest:     true,
	}
	settings, err := s.alerts.GetOrCreate(ctx, streamerID)
	if err != nil {
		return err
	}
	if settings.WantsSpeech(amount, message) && s.speech != nil {
		if url, err := s.speech.Synthesize(ctx, streamerID, settings, message); err == nil && url != "" {
			payload.AudioURL = url
			payload.Voice = settings.SpeechVoice
			payload.Speed = settings.SpeechSpeed
			payload.Pitch = settings.SpeechPitch
		}
	}
	s.hub.Publish(hub.Room{StreamerID: streamerID, Surface: hub.SurfaceAlert}, EventDonationAlert, payload)
	return nil
}
