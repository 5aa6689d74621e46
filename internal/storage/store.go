package storage

import (
	"context"

	"spikenet/internal/model"
)

// SnapshotKey addresses one domain snapshot of a run.
type SnapshotKey struct {
	RunID  string `json:"run_id"`
	Domain string `json:"domain"`
	Ticks  int64  `json:"ticks"`
}

// Store defines transaction-like persistence operations for runs and the
// domain state they produce.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveSnapshot(ctx context.Context, snapshot model.DomainSnapshot) error
	GetSnapshot(ctx context.Context, key SnapshotKey) (model.DomainSnapshot, bool, error)
	// LatestSnapshot returns the snapshot of domain with the highest tick.
	LatestSnapshot(ctx context.Context, runID, domain string) (model.DomainSnapshot, bool, error)
	ListSnapshots(ctx context.Context, runID string) ([]SnapshotKey, error)
	SaveTickHistory(ctx context.Context, runID, domain string, history []model.TickStats) error
	GetTickHistory(ctx context.Context, runID, domain string) ([]model.TickStats, bool, error)
}
