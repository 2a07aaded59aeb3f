package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/stream-donation-hub/internal/model"
)

// SoundEffectRepo provides read access to the sound_effects catalog.
type SoundEffectRepo struct {
	db *sql.DB
}

// NewSoundEffectRepo returns a new SoundEffectRepo bound to the
// provided database.
func NewSoundEffectRepo(db *sql.DB) *SoundEffectRepo { return &SoundEffectRepo{db: db} }

// FindActiveByID resolves an active sound clip by id. Inactive clips
// behave as missing so retired sounds cannot be triggered by stale
// intents.
func (r *SoundEffectRepo) FindActiveByID(ctx context.Context, id uint64) (*model.SoundEffect, error) {
	var s model.SoundEffect
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, filename, duration_seconds, price, is_active, created_at
		 FROM sound_effects WHERE id = ? AND is_active = 1`, id).
		Scan(&s.ID, &s.Name, &s.Filename, &s.DurationSeconds, &s.Price, &s.IsActive, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSoundEffectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListActive returns the purchasable catalog for the donation page.
func (r *SoundEffectRepo) ListActive(ctx context.Context) ([]model.SoundEffect, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, filename, duration_seconds, price, is_active, created_at
		 FROM sound_effects WHERE is_active = 1 ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.SoundEffect
	for rows.Next() {
		var s model.SoundEffect
		if err := rows.Scan(&s.ID, &s.Name, &s.Filename, &s.DurationSeconds, &s.Price, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
