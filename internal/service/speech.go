package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/stream-donation-hub/internal/config"
	"github.com/iliyamo/stream-donation-hub/internal/model"
)

// SpeechService synthesizes donation messages into audio through an
// external HTTP API, metered per streamer by Redis counters. Budgets
// are advisory: when Redis is unavailable the service fails open and
// synthesizes anyway, and when a budget is exhausted the donation
// alert still fires, just silently.
type SpeechService struct {
	cfg    config.SpeechConfig
	rdb    *redis.Client
	client *http.Client
	now    func() time.Time
}

func NewSpeechService(cfg config.SpeechConfig, rdb *redis.Client) *SpeechService {
	return &SpeechService{
		cfg:    cfg,
		rdb:    rdb,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}
}

// Synthesize returns a playable audio URL for the message, or "" when
// speech is disabled, unconfigured or over budget. Only transport and
// API failures surface as errors.
func (s *SpeechService) Synthesize(ctx context.Context, streamerID uint64, settings *model.AlertSettings, text string) (string, error) {
	if !s.cfg.Enabled || s.cfg.APIURL == "" || text == "" {
		return "", nil
	}
	if s.cfg.MaxMessageLen > 0 {
		runes := []rune(text)
		if len(runes) > s.cfg.MaxMessageLen {
			text = string(runes[:s.cfg.MaxMessageLen])
		}
	}
	if !s.allow(ctx, streamerID, len([]rune(text))) {
		log.Printf("speech: budget exhausted for streamer %d, skipping synthesis", streamerID)
		return "", nil
	}

	reqBody, err := json.Marshal(map[string]any{
		"text":  text,
		"voice": settings.SpeechVoice,
		"speed": settings.SpeechSpeed,
		"pitch": settings.SpeechPitch,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("speech: synthesis API returned %d", resp.StatusCode)
	}

	var out struct {
		AudioURL string `json:"audio_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.AudioURL, nil
}

// allow consumes budget for one synthesis of charCount characters. It
// checks the five-minute request window and the daily/monthly request
// and character budgets, all per streamer. Counters are INCR'd first
// and the request denied when any counter lands over its cap; the
// overshoot stays counted, which errs on the side of spending less.
func (s *SpeechService) allow(ctx context.Context, streamerID uint64, charCount int) bool {
	if s.rdb == nil {
		return true
	}
	now := s.now().UTC()
	day := now.Format("2006-01-02")
	month := now.Format("2006-01")
	window := now.Unix() / 300

	type counter struct {
		key   string
		incr  int64
		ttl   time.Duration
		limit int64
	}
	counters := []counter{
		{fmt.Sprintf("speech:%d:win:%d", streamerID, window), 1, 5 * time.Minute, int64(s.cfg.WindowRequests)},
		{fmt.Sprintf("speech:%d:req:day:%s", streamerID, day), 1, 48 * time.Hour, int64(s.cfg.DailyRequests)},
		{fmt.Sprintf("speech:%d:req:mon:%s", streamerID, month), 1, 32 * 24 * time.Hour, int64(s.cfg.MonthlyRequest)},
		{fmt.Sprintf("speech:%d:chr:day:%s", streamerID, day), int64(charCount), 48 * time.Hour, int64(s.cfg.DailyChars)},
		{fmt.Sprintf("speech:%d:chr:mon:%s", streamerID, month), int64(charCount), 32 * 24 * time.Hour, int64(s.cfg.MonthlyChars)},
	}

	pipe := s.rdb.Pipeline()
	incrs := make([]*redis.IntCmd, len(counters))
	for i, c := range counters {
		incrs[i] = pipe.IncrBy(ctx, c.key, c.incr)
		pipe.Expire(ctx, c.key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		// Redis down: fail open.
		log.Printf("speech: limiter unavailable: %v", err)
		return true
	}
	for i, c := range counters {
		if c.limit > 0 && incrs[i].Val() > c.limit {
			return false
		}
	}
	return true
}
