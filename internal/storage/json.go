package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// LoadJSON decodes the value stored under key into v and returns its version.
// An absent key leaves v untouched and returns version 0.
func LoadJSON(ctx context.Context, s Store, key string, v any) (int64, error) {
	e, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal(e.Value, v); err != nil {
		return 0, fmt.Errorf("decode %s: %w", key, err)
	}
	return e.Version, nil
}

// SaveJSON encodes v and stores it under key, see Store.Put for expected.
func SaveJSON(ctx context.Context, s Store, key string, v any, expected int64) (int64, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", key, err)
	}
	version, err := s.Put(ctx, key, b, expected)
	if err != nil {
		return 0, fmt.Errorf("save %s: %w", key, err)
	}
	return version, nil
}
