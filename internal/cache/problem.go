package cache

import (
	"encoding/json"
	"fmt"
)

// Problem is one problem record from the cached archive payload.
type Problem struct {
	Number      int
	Title       string
	ID          int64
	DACU        int64
	BestRuntime int64

	// Favorite is applied from external state after each load.
	Favorite bool

	// FileSize is the on-disk size of the problem's cached detail file,
	// zero when no detail file exists.
	FileSize int64
}

// Volume returns the archive volume the problem belongs to. Problems are
// numbered so that volume 7 holds problems 700-799.
func (p *Problem) Volume() int {
	return p.Number / 100
}

// UnmarshalJSON decodes the fixed-shape array form of a problem record:
// [number, title, id, dacu, bestRuntime, ...]. Trailing elements are
// ignored.
func (p *Problem) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("problem record: %w", err)
	}
	if len(raw) < 2 {
		return fmt.Errorf("problem record: want at least 2 fields, got %d", len(raw))
	}

	fields := []any{&p.Number, &p.Title, &p.ID, &p.DACU, &p.BestRuntime}
	for i, dst := range fields {
		if i >= len(raw) {
			break
		}
		if err := json.Unmarshal(raw[i], dst); err != nil {
			return fmt.Errorf("problem record field %d: %w", i, err)
		}
	}
	return nil
}
