package domain

// Settings hold per-user extraction preferences. A row is created lazily
// with defaults the first time a user touches the settings surface.
type Settings struct {
	OwnerID             string
	AutoSaveHistory     bool
	ConfidenceThreshold float64
	EnableBatch         bool
	MaxBatchSize        int
}

const (
	DefaultConfidenceThreshold = 0.7
	DefaultMaxBatchSize        = 10
	MaxBatchSizeLimit          = 50
)

// DefaultSettings returns the settings applied before a user has saved any.
func DefaultSettings(ownerID string) Settings {
	return Settings{
		OwnerID:             ownerID,
		AutoSaveHistory:     true,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		EnableBatch:         true,
		MaxBatchSize:        DefaultMaxBatchSize,
	}
}

// Validate checks value ranges before an update is persisted.
func (s Settings) Validate() error {
	if s.ConfidenceThreshold < 0 || s.ConfidenceThreshold > 1 {
		return ValidationError{Reason: "confidence_threshold must be within [0,1]"}
	}
	if s.MaxBatchSize < 1 || s.MaxBatchSize > MaxBatchSizeLimit {
		return ValidationError{Reason: "max_batch_size must be within 1..50"}
	}
	return nil
}
