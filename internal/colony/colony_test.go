package colony

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"formica/internal/fst"
	"formica/internal/scape"
	"formica/internal/storage"
)

func newTestColony(t *testing.T) (*Colony, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init store: %v", err)
	}
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := New(store,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return fixed }),
	)
	return c, store
}

func forage(t *testing.T) scape.Scape {
	t.Helper()
	s, err := scape.New("forage", scape.DefaultConfig())
	if err != nil {
		t.Fatalf("forage scape: %v", err)
	}
	return s
}

func TestRunPersistsEpisodesSnapshotsAndRun(t *testing.T) {
	c, store := newTestColony(t)
	ctx := context.Background()

	result, err := c.Run(ctx, Config{
		RunID:    "run-a",
		Scape:    forage(t),
		Agents:   3,
		Episodes: 4,
		Workers:  2,
		Seed:     7,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Episodes) != 12 {
		t.Fatalf("expected 12 episode records, got %d", len(result.Episodes))
	}
	for i, record := range result.Episodes {
		if record.Episode != i/3 || record.AgentID != agentID(i%3) {
			t.Fatalf("record %d out of order: %+v", i, record)
		}
		if record.Steps <= 0 || record.States < 3 {
			t.Fatalf("record %d did nothing: %+v", i, record)
		}
		switch record.Outcome {
		case "ate", "burned", "starved":
		default:
			t.Fatalf("record %d has outcome %q", i, record.Outcome)
		}
	}
	if len(result.Curve) != 4 {
		t.Fatalf("expected 4 curve points, got %d", len(result.Curve))
	}

	run, ok, err := store.GetRun(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%t err=%v", ok, err)
	}
	if diff := cmp.Diff(result.Run, run); diff != "" {
		t.Fatalf("stored run mismatch (-want +got):\n%s", diff)
	}
	if run.Scape != "forage" || run.Agents != 3 || run.Episodes != 4 || run.CreatedAtUTC != "2026-03-01T12:00:00Z" {
		t.Fatalf("unexpected run record: %+v", run)
	}
	if run.BestFitness < run.MeanFitness {
		t.Fatalf("best fitness %v below final mean %v", run.BestFitness, run.MeanFitness)
	}

	episodes, ok, err := store.GetEpisodes(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get episodes: ok=%t err=%v", ok, err)
	}
	if diff := cmp.Diff(result.Episodes, episodes); diff != "" {
		t.Fatalf("stored episodes mismatch (-want +got):\n%s", diff)
	}

	ids, err := store.ListSnapshots(ctx, "run-a")
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	if diff := cmp.Diff(result.SnapshotIDs, ids); diff != "" {
		t.Fatalf("snapshot ids mismatch (-want +got):\n%s", diff)
	}
	for _, id := range ids {
		snap, ok, err := store.GetSnapshot(ctx, id)
		if err != nil || !ok {
			t.Fatalf("get snapshot %s: ok=%t err=%v", id, ok, err)
		}
		if snap.RunID != "run-a" || snap.SchemaVersion != storage.CurrentSchemaVersion {
			t.Fatalf("snapshot %s not stamped: %+v", id, snap.VersionedRecord)
		}
		if _, err := fst.Restore(snap); err != nil {
			t.Fatalf("restore %s: %v", id, err)
		}
	}
}

func TestRunIsDeterministicAcrossWorkerCounts(t *testing.T) {
	ctx := context.Background()
	run := func(workers int) Result {
		c, _ := newTestColony(t)
		result, err := c.Run(ctx, Config{
			RunID:    "same",
			Scape:    forage(t),
			Agents:   4,
			Episodes: 3,
			Workers:  workers,
			Seed:     11,
		})
		if err != nil {
			t.Fatalf("run with %d workers: %v", workers, err)
		}
		return result
	}

	serial, parallel := run(1), run(4)
	if diff := cmp.Diff(serial.Episodes, parallel.Episodes); diff != "" {
		t.Fatalf("episodes depend on scheduling (-serial +parallel):\n%s", diff)
	}
}

func TestRunResumesSavedAutomata(t *testing.T) {
	c, store := newTestColony(t)
	ctx := context.Background()
	s := forage(t)

	first, err := c.Run(ctx, Config{RunID: "first", Scape: s, Agents: 2, Episodes: 3, Seed: 3})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := c.Run(ctx, Config{RunID: "second", Scape: s, Episodes: 2, Seed: 3, ResumeRun: "first"})
	if err != nil {
		t.Fatalf("resumed run: %v", err)
	}
	if second.Run.Agents != 2 {
		t.Fatalf("expected 2 resumed agents, got %d", second.Run.Agents)
	}

	grown := map[string]int{}
	for _, record := range first.Episodes {
		grown[record.AgentID] = record.States
	}
	for _, record := range second.Episodes {
		if record.States < grown[record.AgentID] {
			t.Fatalf("agent %s lost states on resume: %d < %d", record.AgentID, record.States, grown[record.AgentID])
		}
	}

	ids, err := store.ListSnapshots(ctx, "second")
	if err != nil || len(ids) != 2 {
		t.Fatalf("expected 2 snapshots for resumed run, got %v err=%v", ids, err)
	}
	kept, err := store.ListSnapshots(ctx, "first")
	if err != nil || len(kept) != 2 {
		t.Fatalf("first run snapshots should be kept, got %v err=%v", kept, err)
	}
}

func TestRunRejectsResumeAcrossScapes(t *testing.T) {
	c, _ := newTestColony(t)
	ctx := context.Background()
	if _, err := c.Run(ctx, Config{RunID: "ants", Scape: forage(t), Agents: 1, Episodes: 1}); err != nil {
		t.Fatalf("seed run: %v", err)
	}
	maze, err := scape.New("t-maze", scape.DefaultConfig())
	if err != nil {
		t.Fatalf("t-maze: %v", err)
	}
	_, err = c.Run(ctx, Config{Scape: maze, Episodes: 1, ResumeRun: "ants"})
	if err == nil || !strings.Contains(err.Error(), "trained on inputs") {
		t.Fatalf("expected alphabet mismatch error, got %v", err)
	}
	if _, err := c.Run(ctx, Config{Scape: maze, Episodes: 1, ResumeRun: "missing"}); err == nil {
		t.Fatal("expected error for run without snapshots")
	}
}

func TestRunValidatesConfig(t *testing.T) {
	c, _ := newTestColony(t)
	s := forage(t)
	cases := map[string]Config{
		"no scape":    {Agents: 1, Episodes: 1},
		"no episodes": {Scape: s, Agents: 1},
		"no agents":   {Scape: s, Episodes: 1},
	}
	for name, cfg := range cases {
		if _, err := c.Run(context.Background(), cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := New(nil).Run(context.Background(), Config{Scape: s, Agents: 1, Episodes: 1}); err == nil {
		t.Fatal("expected error without store")
	}
}

func TestRunGeneratesRunIDAndStopsOnCancel(t *testing.T) {
	c, store := newTestColony(t)
	result, err := c.Run(context.Background(), Config{Scape: forage(t), Agents: 1, Episodes: 1})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Run.ID == "" {
		t.Fatal("expected generated run id")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Run(ctx, Config{RunID: "canceled", Scape: forage(t), Agents: 2, Episodes: 5})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, ok, _ := store.GetRun(context.Background(), "canceled"); ok {
		t.Fatal("canceled run must not be stored")
	}
}
