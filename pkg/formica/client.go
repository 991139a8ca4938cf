package formica

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"formica/internal/colony"
	"formica/internal/fst"
	"formica/internal/model"
	"formica/internal/scape"
	"formica/internal/stats"
	"formica/internal/storage"
)

const (
	defaultBenchmarksDir = "benchmarks"
	defaultDBPath        = "formica.db"
	snapshotsDir         = "snapshots"
)

type Options struct {
	StoreKind     string
	DBPath        string
	BenchmarksDir string
	Logger        *slog.Logger
}

type Client struct {
	store  storage.Store
	colony *colony.Colony
	logger *slog.Logger

	benchmarksDir string
	initialized   bool
}

// RunRequest mirrors config.RunConfig minus the process-level settings.
// Zero values fall back to defaults.
type RunRequest struct {
	RunID     string
	Scape     string
	Agents    int
	Episodes  int
	Workers   int
	Seed      int64
	Params    fst.Params
	Scapes    *scape.Config
	ResumeRun string
	// Config is written next to the run artifacts as config.json.
	Config any
}

type RunSummary struct {
	RunID            string
	ArtifactsDir     string
	MeanByEpisode    []float64
	BestByEpisode    []float64
	BestFitness      float64
	FinalMeanFitness float64
	SnapshotIDs      []string
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Scape        string
	Agents       int
	Episodes     int
	Seed         int64
	BestFitness  float64
	MeanFitness  float64
}

type InspectRequest struct {
	SnapshotID string
}

type TransitionRow struct {
	From        int
	To          int
	Symbol      string
	Output      string
	Probability float64
	Confidence  float64
	Temporary   bool
}

type InspectSummary struct {
	SnapshotID   string
	RunID        string
	States       int
	Transitions  int
	Expectancies int
	Current      int
	Anchor       int
	Clock        float64
	Reward       []int
	Punishment   []int
	Params       fst.Params
	Rows         []TransitionRow
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	benchmarksDir := opts.BenchmarksDir
	if benchmarksDir == "" {
		benchmarksDir = defaultBenchmarksDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:         store,
		colony:        colony.New(store, colony.WithLogger(logger)),
		logger:        logger,
		benchmarksDir: benchmarksDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.Scape == "" {
		req.Scape = "forage"
	}
	if req.Agents <= 0 && req.ResumeRun == "" {
		req.Agents = 8
	}
	if req.Episodes <= 0 {
		req.Episodes = 50
	}
	if req.Workers <= 0 {
		req.Workers = 4
	}
	scapes := scape.DefaultConfig()
	if req.Scapes != nil {
		scapes = *req.Scapes
	}
	s, err := scape.New(req.Scape, scapes)
	if err != nil {
		return RunSummary{}, err
	}
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}
	if req.ResumeRun != "" {
		if err := c.hydrate(ctx, req.ResumeRun); err != nil {
			return RunSummary{}, err
		}
	}

	result, err := c.colony.Run(ctx, colony.Config{
		RunID:     req.RunID,
		Scape:     s,
		Agents:    req.Agents,
		Episodes:  req.Episodes,
		Workers:   req.Workers,
		Seed:      req.Seed,
		Params:    req.Params,
		ResumeRun: req.ResumeRun,
	})
	if err != nil {
		return RunSummary{}, err
	}

	runDir, err := stats.WriteRunArtifacts(c.benchmarksDir, stats.RunArtifacts{
		Run:      result.Run,
		Config:   req.Config,
		Episodes: result.Episodes,
		Curve:    result.Curve,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := c.writeSnapshots(ctx, runDir, result.SnapshotIDs); err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.benchmarksDir, stats.IndexEntry(result.Run)); err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{
		RunID:            result.Run.ID,
		ArtifactsDir:     filepath.Clean(runDir),
		BestFitness:      result.Run.BestFitness,
		FinalMeanFitness: result.Run.MeanFitness,
		SnapshotIDs:      result.SnapshotIDs,
	}
	for _, point := range result.Curve {
		summary.MeanByEpisode = append(summary.MeanByEpisode, point.Mean)
		summary.BestByEpisode = append(summary.BestByEpisode, point.Best)
	}
	return summary, nil
}

// Runs lists runs from the on-disk index, newest first, so runs made with
// the memory store stay visible to later processes.
func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if req.Limit == 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.benchmarksDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:        e.RunID,
			CreatedAtUTC: e.CreatedAtUTC,
			Scape:        e.Scape,
			Agents:       e.Agents,
			Episodes:     e.Episodes,
			Seed:         e.Seed,
			BestFitness:  e.BestFitness,
			MeanFitness:  e.MeanFitness,
		})
	}
	return out, nil
}

// Snapshots lists the snapshot ids a run left behind.
func (c *Client) Snapshots(ctx context.Context, runID string) ([]string, error) {
	if runID == "" {
		return nil, errors.New("run id is required")
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	if err := c.hydrate(ctx, runID); err != nil {
		return nil, err
	}
	return c.store.ListSnapshots(ctx, runID)
}

func (c *Client) Inspect(ctx context.Context, req InspectRequest) (InspectSummary, error) {
	if req.SnapshotID == "" {
		return InspectSummary{}, errors.New("snapshot id is required")
	}
	if err := c.Init(ctx); err != nil {
		return InspectSummary{}, err
	}
	snap, ok, err := c.store.GetSnapshot(ctx, req.SnapshotID)
	if err != nil {
		return InspectSummary{}, err
	}
	if !ok {
		snap, ok, err = c.readSnapshot(req.SnapshotID)
		if err != nil {
			return InspectSummary{}, err
		}
		if !ok {
			return InspectSummary{}, fmt.Errorf("snapshot not found: %s", req.SnapshotID)
		}
	}
	automaton, err := fst.Restore(snap, fst.WithLogger(c.logger))
	if err != nil {
		return InspectSummary{}, err
	}

	summary := InspectSummary{
		SnapshotID:   snap.ID,
		RunID:        snap.RunID,
		States:       automaton.NumStates(),
		Transitions:  len(snap.Transitions),
		Expectancies: len(snap.Expectancies),
		Current:      int(automaton.CurrentState()),
		Anchor:       int(automaton.AnchorState()),
		Clock:        automaton.Clock(),
		Reward:       append([]int(nil), snap.Reward...),
		Punishment:   append([]int(nil), snap.Punishment...),
		Params:       automaton.Params(),
		Rows:         make([]TransitionRow, 0, len(snap.Transitions)),
	}
	for _, record := range snap.Transitions {
		output, probability := likeliestOutput(automaton.OutputAlphabet(), record.Distribution)
		summary.Rows = append(summary.Rows, TransitionRow{
			From:        record.From,
			To:          record.To,
			Symbol:      record.Symbol,
			Output:      output,
			Probability: probability,
			Confidence:  record.Confidence,
			Temporary:   record.Temporary,
		})
	}
	return summary, nil
}

// likeliestOutput picks the most probable output; ties go to the earlier
// name in the alphabet.
func likeliestOutput(alphabet []string, distribution map[string]float64) (string, float64) {
	best, bestP := "", -1.0
	for _, name := range alphabet {
		if p := distribution[name]; p > bestP {
			best, bestP = name, p
		}
	}
	return best, bestP
}

func (c *Client) writeSnapshots(ctx context.Context, runDir string, ids []string) error {
	dir := filepath.Join(runDir, snapshotsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, id := range ids {
		snap, ok, err := c.store.GetSnapshot(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("snapshot not found: %s", id)
		}
		data, err := storage.EncodeSnapshot(snap)
		if err != nil {
			return fmt.Errorf("encode snapshot %s: %w", id, err)
		}
		_, agentID := splitSnapshotID(id)
		if err := os.WriteFile(filepath.Join(dir, agentID+".json"), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) readSnapshot(id string) (model.AutomatonSnapshot, bool, error) {
	runID, agentID := splitSnapshotID(id)
	if runID == "" {
		return model.AutomatonSnapshot{}, false, nil
	}
	data, err := os.ReadFile(filepath.Join(c.benchmarksDir, runID, snapshotsDir, agentID+".json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.AutomatonSnapshot{}, false, nil
		}
		return model.AutomatonSnapshot{}, false, err
	}
	snap, err := storage.DecodeSnapshot(data)
	if err != nil {
		return model.AutomatonSnapshot{}, false, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return snap, true, nil
}

// hydrate copies the snapshots of runID from its artifacts directory into
// the store when the store does not hold them yet.
func (c *Client) hydrate(ctx context.Context, runID string) error {
	ids, err := c.store.ListSnapshots(ctx, runID)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		return nil
	}
	entries, err := os.ReadDir(filepath.Join(c.benchmarksDir, runID, snapshotsDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
		}
	}
	sort.Strings(names)
	for _, agentID := range names {
		snap, ok, err := c.readSnapshot(colony.SnapshotID(runID, agentID))
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := c.store.SaveSnapshot(ctx, snap); err != nil {
			return err
		}
	}
	c.logger.Debug("snapshots loaded from artifacts", "run", runID, "count", len(names))
	return nil
}

func splitSnapshotID(id string) (runID, agentID string) {
	i := strings.LastIndex(id, "/")
	if i < 0 {
		return "", id
	}
	return id[:i], id[i+1:]
}
