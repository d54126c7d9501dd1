package repo

import (
	"context"

	"github.com/koki-187/200-sub000/internal/domain"
)

// SettingsRepositoryPG implements domain.SettingsRepository.
type SettingsRepositoryPG struct {
	db DB
}

// NewSettingsRepository creates a settings repository backed by PostgreSQL.
func NewSettingsRepository(db DB) *SettingsRepositoryPG {
	return &SettingsRepositoryPG{db: db}
}

// Get returns the user's settings, inserting the default row on first
// access.
func (r *SettingsRepositoryPG) Get(ctx context.Context, ownerID string) (domain.Settings, error) {
	defaults := domain.DefaultSettings(ownerID)
	insert := `
INSERT INTO ocr_settings (owner_id, auto_save_history, confidence_threshold, enable_batch, max_batch_size)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (owner_id) DO NOTHING;
`
	if _, err := r.db.Exec(ctx, insert,
		defaults.OwnerID,
		defaults.AutoSaveHistory,
		defaults.ConfidenceThreshold,
		defaults.EnableBatch,
		defaults.MaxBatchSize,
	); err != nil {
		return domain.Settings{}, err
	}

	query := `
SELECT owner_id, auto_save_history, confidence_threshold, enable_batch, max_batch_size
FROM ocr_settings
WHERE owner_id = $1;
`
	var s domain.Settings
	if err := r.db.QueryRow(ctx, query, ownerID).Scan(
		&s.OwnerID,
		&s.AutoSaveHistory,
		&s.ConfidenceThreshold,
		&s.EnableBatch,
		&s.MaxBatchSize,
	); err != nil {
		return domain.Settings{}, err
	}
	return s, nil
}

// Update persists the full settings row in place.
func (r *SettingsRepositoryPG) Update(ctx context.Context, s domain.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	query := `
INSERT INTO ocr_settings (owner_id, auto_save_history, confidence_threshold, enable_batch, max_batch_size, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW())
ON CONFLICT (owner_id) DO UPDATE
SET auto_save_history = EXCLUDED.auto_save_history,
    confidence_threshold = EXCLUDED.confidence_threshold,
    enable_batch = EXCLUDED.enable_batch,
    max_batch_size = EXCLUDED.max_batch_size,
    updated_at = NOW();
`
	_, err := r.db.Exec(ctx, query,
		s.OwnerID,
		s.AutoSaveHistory,
		s.ConfidenceThreshold,
		s.EnableBatch,
		s.MaxBatchSize,
	)
	return err
}
