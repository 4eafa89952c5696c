// Package store persists saved-strategy snapshots. A snapshot is an opaque
// blob keyed by save time; the engine never reads it back into live state.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/options-edge-scanner/internal/strategy"
)

// SchemaVersion is embedded in every snapshot so a future layout change can
// migrate or reject old blobs instead of misreading them.
const SchemaVersion = 1

var ErrNotFound = errors.New("snapshot not found")

// Snapshot is one saved strategy with its analysis at save time.
type Snapshot struct {
	SchemaVersion int               `json:"schema_version"`
	Symbol        string            `json:"symbol"`
	StrategyKind  strategy.Kind     `json:"strategy_kind"`
	Legs          []strategy.Leg    `json:"legs"`
	Analysis      strategy.Analysis `json:"analysis"`
	SavedAt       time.Time         `json:"saved_at"`
}

// Key derives the snapshot's storage key from its save time.
func (s *Snapshot) Key() string {
	return fmt.Sprintf("strategy:%d", s.SavedAt.UnixNano())
}

// Store is the snapshot persistence boundary.
type Store interface {
	Save(ctx context.Context, snapshot Snapshot) (string, error)
	Get(ctx context.Context, key string) (*Snapshot, error)
	// List returns snapshots newest first.
	List(ctx context.Context) ([]Snapshot, error)
	Close() error
}
