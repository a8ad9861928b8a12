package store

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// LoadHistory reads the history stored under key. A missing key yields an
// empty history. A payload that does not decode is treated as no history and
// logged at warn level; only backend failures are returned.
func LoadHistory[R any](ctx context.Context, port Port, key string, logger *zap.Logger) ([]R, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	payload, ok, err := port.Get(ctx, key)
	if err != nil {
		return nil, &StorageError{Op: "load", Key: key, Err: err}
	}
	if !ok || len(payload) == 0 {
		return []R{}, nil
	}
	var history []R
	if err := json.Unmarshal(payload, &history); err != nil {
		logger.Warn("discarding malformed history",
			zap.String("key", key),
			zap.Int("bytes", len(payload)),
			zap.Error(err),
		)
		return []R{}, nil
	}
	if history == nil {
		history = []R{}
	}
	return history, nil
}

// SaveHistory overwrites key with the full history.
func SaveHistory[R any](ctx context.Context, port Port, key string, history []R) error {
	if history == nil {
		history = []R{}
	}
	payload, err := json.Marshal(history)
	if err != nil {
		return &StorageError{Op: "encode", Key: key, Err: err}
	}
	if err := port.Set(ctx, key, payload); err != nil {
		return &StorageError{Op: "save", Key: key, Err: err}
	}
	return nil
}
