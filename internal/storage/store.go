package storage

import (
	"context"

	"formica/internal/model"
)

// Store defines transaction-like persistence operations for automaton
// snapshots and colony runs.
type Store interface {
	Init(ctx context.Context) error
	SaveSnapshot(ctx context.Context, snapshot model.AutomatonSnapshot) error
	GetSnapshot(ctx context.Context, id string) (model.AutomatonSnapshot, bool, error)
	ListSnapshots(ctx context.Context, runID string) ([]string, error)
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error)
	SaveEpisodes(ctx context.Context, runID string, episodes []model.EpisodeRecord) error
	GetEpisodes(ctx context.Context, runID string) ([]model.EpisodeRecord, bool, error)
}
