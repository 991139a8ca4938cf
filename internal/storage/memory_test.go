package storage

import (
	"context"
	"testing"

	"formica/internal/model"
)

func TestMemoryStoreSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := model.AutomatonSnapshot{
		VersionedRecord: CurrentVersion(),
		ID:              "ant-1",
		RunID:           "run-1",
		Params:          map[string]float64{"beta": 0.1},
		Transitions: []model.TransitionRecord{{
			Symbol:       "eat",
			Distribution: map[string]float64{"stay": 1},
			Confidence:   1,
		}},
	}
	if err := store.SaveSnapshot(ctx, input); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	input.Transitions[0].Distribution["stay"] = 0
	input.Params["beta"] = 9

	output, ok, err := store.GetSnapshot(ctx, "ant-1")
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted snapshot")
	}
	if output.Transitions[0].Distribution["stay"] != 1 || output.Params["beta"] != 0.1 {
		t.Fatalf("expected stored snapshot isolated from caller: %+v", output)
	}

	output.Transitions[0].Distribution["stay"] = 0
	again, _, _ := store.GetSnapshot(ctx, "ant-1")
	if again.Transitions[0].Distribution["stay"] != 1 {
		t.Fatal("expected returned snapshot isolated from store")
	}

	if _, ok, _ := store.GetSnapshot(ctx, "missing"); ok {
		t.Fatal("expected missing snapshot")
	}
}

func TestMemoryStoreListSnapshotsByRun(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	for _, snap := range []model.AutomatonSnapshot{
		{ID: "b", RunID: "run-1"},
		{ID: "a", RunID: "run-1"},
		{ID: "c", RunID: "run-2"},
	} {
		if err := store.SaveSnapshot(ctx, snap); err != nil {
			t.Fatalf("save snapshot %s: %v", snap.ID, err)
		}
	}

	ids, err := store.ListSnapshots(ctx, "run-1")
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("unexpected snapshot ids: %v", ids)
	}
	all, _ := store.ListSnapshots(ctx, "")
	if len(all) != 3 {
		t.Fatalf("expected all snapshots, got %v", all)
	}
}

func TestMemoryStoreRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	for _, run := range []model.RunRecord{
		{ID: "old", CreatedAtUTC: "2026-01-01T00:00:00Z"},
		{ID: "new", CreatedAtUTC: "2026-03-01T00:00:00Z"},
		{ID: "mid", CreatedAtUTC: "2026-02-01T00:00:00Z"},
	} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", run.ID, err)
		}
	}

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "new" || runs[1].ID != "mid" {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	run, ok, err := store.GetRun(ctx, "old")
	if err != nil || !ok || run.CreatedAtUTC != "2026-01-01T00:00:00Z" {
		t.Fatalf("get run: ok=%v err=%v run=%+v", ok, err, run)
	}
}

func TestMemoryStoreEpisodesRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := []model.EpisodeRecord{
		{AgentID: "ant-1", Episode: 0, Steps: 40, Rewards: 1, Fitness: 0.5},
		{AgentID: "ant-1", Episode: 1, Steps: 22, Rewards: 1, Fitness: 0.8},
	}
	if err := store.SaveEpisodes(ctx, "run-1", input); err != nil {
		t.Fatalf("save episodes: %v", err)
	}
	output, ok, err := store.GetEpisodes(ctx, "run-1")
	if err != nil {
		t.Fatalf("get episodes: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted episodes")
	}
	if len(output) != len(input) || output[1].Fitness != input[1].Fitness {
		t.Fatalf("unexpected episodes: %+v", output)
	}
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	if err := store.SaveRun(context.Background(), model.RunRecord{ID: "run-1"}); err == nil {
		t.Fatal("expected error before init")
	}
}
