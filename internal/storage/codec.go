package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"durood/internal/core"
)

var ErrCorruptState = errors.New("corrupt persisted state")

// EncodeState serialises the whole state blob.
func EncodeState(s core.State) ([]byte, error) {
	if s.Version == 0 {
		s.Version = core.SchemaVersion
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return b, nil
}

// DecodeState parses a blob written by EncodeState. Blobs written before the
// version field existed decode as version 1.
func DecodeState(b []byte) (*core.State, error) {
	var s core.State
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if s.Version == 0 {
		s.Version = 1
	}
	if s.Version > core.SchemaVersion {
		return nil, fmt.Errorf("%w: %d", core.ErrUnsupportedVersion, s.Version)
	}
	if s.History == nil {
		s.History = []core.Entry{}
	}
	if s.DailyTotals == nil {
		s.DailyTotals = []core.DailyTotal{}
	}
	return &s, nil
}
