package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/stream-donation-hub/internal/model"
)

// AlertSettingsRepo provides data access to the alert_settings table,
// one row per streamer holding the alert and speech-synthesis policy.
type AlertSettingsRepo struct {
	db *sql.DB
}

// NewAlertSettingsRepo returns a new AlertSettingsRepo bound to the
// provided database.
func NewAlertSettingsRepo(db *sql.DB) *AlertSettingsRepo { return &AlertSettingsRepo{db: db} }

const alertColumns = `id, streamer_id, minimum_amount, speech_enabled, speech_minimum,
	speech_voice, speech_speed, speech_pitch, overlay_token, created_at, updated_at`

func scanAlertSettings(row interface{ Scan(...any) error }) (*model.AlertSettings, error) {
	var s model.AlertSettings
	err := row.Scan(&s.ID, &s.StreamerID, &s.MinimumAmount, &s.SpeechEnabled,
		&s.SpeechMinimum, &s.SpeechVoice, &s.SpeechSpeed, &s.SpeechPitch,
		&s.OverlayToken, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetOrCreate returns the streamer's alert settings, creating defaults
// with a fresh overlay token on first use.
func (r *AlertSettingsRepo) GetOrCreate(ctx context.Context, streamerID uint64) (*model.AlertSettings, error) {
	s, err := r.byStreamer(ctx, streamerID)
	if err == nil {
		return s, nil
	}
	if err != ErrSettingsNotFound {
		return nil, err
	}
	token, err := randomToken(32)
	if err != nil {
		return nil, err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT IGNORE INTO alert_settings
		 (streamer_id, minimum_amount, speech_enabled, speech_minimum, speech_voice, speech_speed, speech_pitch, overlay_token)
		 VALUES (?, 0, 0, 0, 'default', 1.0, 1.0, ?)`,
		streamerID, token)
	if err != nil {
		return nil, err
	}
	return r.byStreamer(ctx, streamerID)
}

func (r *AlertSettingsRepo) byStreamer(ctx context.Context, streamerID uint64) (*model.AlertSettings, error) {
	const q = `SELECT ` + alertColumns + ` FROM alert_settings WHERE streamer_id = ?`
	s, err := scanAlertSettings(r.db.QueryRowContext(ctx, q, streamerID))
	if err == sql.ErrNoRows {
		return nil, ErrSettingsNotFound
	}
	return s, err
}

// FindByOverlayToken resolves alert settings from the public overlay
// token. The same token scopes both the alert overlay and the donation
// feed surface.
func (r *AlertSettingsRepo) FindByOverlayToken(ctx context.Context, token string) (*model.AlertSettings, error) {
	const q = `SELECT ` + alertColumns + ` FROM alert_settings WHERE overlay_token = ?`
	s, err := scanAlertSettings(r.db.QueryRowContext(ctx, q, token))
	if err == sql.ErrNoRows {
		return nil, ErrSettingsNotFound
	}
	return s, err
}

// AlertSettingsUpdate enumerates the operator-editable alert policy
// fields. Handlers validate each present field before calling Update;
// arbitrary field patching is deliberately not supported.
type AlertSettingsUpdate struct {
	MinimumAmount *int64   `json:"minimum_amount"`
	SpeechEnabled *bool    `json:"speech_enabled"`
	SpeechMinimum *int64   `json:"speech_minimum"`
	SpeechVoice   *string  `json:"speech_voice"`
	SpeechSpeed   *float64 `json:"speech_speed"`
	SpeechPitch   *float64 `json:"speech_pitch"`
}

// Update applies the explicit field set to the streamer's settings.
func (r *AlertSettingsRepo) Update(ctx context.Context, streamerID uint64, u AlertSettingsUpdate) error {
	set := func(column string, value any) error {
		_, err := r.db.ExecContext(ctx,
			`UPDATE alert_settings SET `+column+` = ?, updated_at = UTC_TIMESTAMP()
			 WHERE streamer_id = ?`, value, streamerID)
		return err
	}
	if u.MinimumAmount != nil {
		if err := set("minimum_amount", *u.MinimumAmount); err != nil {
			return err
		}
	}
	if u.SpeechEnabled != nil {
		if err := set("speech_enabled", *u.SpeechEnabled); err != nil {
			return err
		}
	}
	if u.SpeechMinimum != nil {
		if err := set("speech_minimum", *u.SpeechMinimum); err != nil {
			return err
		}
	}
	if u.SpeechVoice != nil {
		if err := set("speech_voice", *u.SpeechVoice); err != nil {
			return err
		}
	}
	if u.SpeechSpeed != nil {
		if err := set("speech_speed", *u.SpeechSpeed); err != nil {
			return err
		}
	}
	if u.SpeechPitch != nil {
		if err := set("speech_pitch", *u.SpeechPitch); err != nil {
			return err
		}
	}
	return nil
}
