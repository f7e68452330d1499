package export

import (
	"context"

	"codeberg.org/mutker/socmon/internal/engine"
)

// SnapshotFunc supplies the current engine snapshot. The exporter
// calls it on every scrape, so each scrape also counts as a consumer
// read for the engine's visibility signal.
type SnapshotFunc func() engine.Snapshot

// Collector publishes snapshots on a Prometheus exposition endpoint
type Collector interface {
	Record(ctx context.Context, snapshot *engine.Snapshot) error
	Serve() error
	Close() error
}
