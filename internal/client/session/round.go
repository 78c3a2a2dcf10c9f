package session

import (
	"context"
	"time"

	"github.com/openmined/treesync/internal/merkle"
)

// Round describes one Sync call, successful or not.
type Round struct {
	ID           string
	Mode         Mode
	Kind         string // full, delta or compact
	Fallback     bool   // compact request retried with the full tree
	StartedAt    time.Time
	Duration     time.Duration
	BaseDigest   string
	ResultDigest string
	FileCount    int
	ChangeSet    merkle.ChangeSet
	Err          error
}

// Recorder receives every finished round, e.g. a sync journal.
type Recorder interface {
	Record(ctx context.Context, round *Round) error
}
