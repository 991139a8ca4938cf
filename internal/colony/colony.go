package colony

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"formica/internal/fst"
	"formica/internal/model"
	"formica/internal/scape"
	"formica/internal/stats"
	"formica/internal/storage"
)

// Config describes one colony run. With ResumeRun set, the colony is made
// of the automata saved by that run and Agents is ignored.
type Config struct {
	RunID     string
	Scape     scape.Scape
	Agents    int
	Episodes  int
	Workers   int
	Seed      int64
	Params    fst.Params
	ResumeRun string
}

type Result struct {
	Run         model.RunRecord
	Episodes    []model.EpisodeRecord
	Curve       []stats.CurvePoint
	SnapshotIDs []string
}

type Option func(*Colony)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Colony) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock replaces the wall clock used to stamp runs.
func WithClock(now func() time.Time) Option {
	return func(c *Colony) {
		if now != nil {
			c.now = now
		}
	}
}

// Colony runs independent automata side by side on one scape. Agents share
// nothing, so each one is driven by its own goroutine without locking.
type Colony struct {
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
}

func New(store storage.Store, opts ...Option) *Colony {
	c := &Colony{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Colony) Run(ctx context.Context, cfg Config) (Result, error) {
	if c.store == nil {
		return Result{}, fmt.Errorf("store is required")
	}
	if cfg.Scape == nil {
		return Result{}, fmt.Errorf("scape is required")
	}
	if cfg.Episodes <= 0 {
		return Result{}, fmt.Errorf("episodes must be positive, got %d", cfg.Episodes)
	}
	if cfg.ResumeRun == "" && cfg.Agents <= 0 {
		return Result{}, fmt.Errorf("agents must be positive, got %d", cfg.Agents)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Params == (fst.Params{}) {
		cfg.Params = fst.DefaultParams()
	}
	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := c.logger.With("run", runID, "scape", cfg.Scape.Name())

	agents, err := c.spawn(ctx, cfg, logger)
	if err != nil {
		return Result{}, err
	}
	logger.Info("run started", "agents", len(agents), "episodes", cfg.Episodes, "workers", cfg.Workers, "resume", cfg.ResumeRun)
	started := c.now()

	perAgent := make([][]model.EpisodeRecord, len(agents))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, agent := range agents {
		g.Go(func() error {
			records, err := live(gctx, cfg.Scape, agent, cfg.Episodes)
			if err != nil {
				return fmt.Errorf("agent %s: %w", agent.ID(), err)
			}
			perAgent[i] = records
			logger.Debug("agent finished", "agent", agent.ID(), "states", agent.Automaton().NumStates(), "stats", agent.Automaton().Stats())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	episodes := slices.Concat(perAgent...)
	sort.SliceStable(episodes, func(i, j int) bool {
		if episodes[i].Episode != episodes[j].Episode {
			return episodes[i].Episode < episodes[j].Episode
		}
		return episodes[i].AgentID < episodes[j].AgentID
	})
	curve := stats.EpisodeCurve(episodes)
	best, mean := stats.Summary(curve)

	snapshotIDs := make([]string, 0, len(agents))
	for _, agent := range agents {
		snap := agent.Automaton().Snapshot(SnapshotID(runID, agent.ID()))
		snap.VersionedRecord = storage.CurrentVersion()
		snap.RunID = runID
		if err := c.store.SaveSnapshot(ctx, snap); err != nil {
			return Result{}, fmt.Errorf("save snapshot %s: %w", snap.ID, err)
		}
		snapshotIDs = append(snapshotIDs, snap.ID)
	}
	if err := c.store.SaveEpisodes(ctx, runID, episodes); err != nil {
		return Result{}, fmt.Errorf("save episodes: %w", err)
	}
	run := model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              runID,
		Scape:           cfg.Scape.Name(),
		Agents:          len(agents),
		Episodes:        cfg.Episodes,
		Seed:            cfg.Seed,
		CreatedAtUTC:    started.UTC().Format(time.RFC3339Nano),
		BestFitness:     best,
		MeanFitness:     mean,
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return Result{}, fmt.Errorf("save run: %w", err)
	}

	logger.Info("run finished", "best_fitness", best, "final_mean_fitness", mean, "elapsed", c.now().Sub(started))
	return Result{
		Run:         run,
		Episodes:    episodes,
		Curve:       curve,
		SnapshotIDs: snapshotIDs,
	}, nil
}

// SnapshotID names the snapshot an agent leaves behind in a run.
func SnapshotID(runID, agentID string) string {
	return runID + "/" + agentID
}

func agentID(i int) string {
	return fmt.Sprintf("ant-%03d", i)
}

func (c *Colony) spawn(ctx context.Context, cfg Config, logger *slog.Logger) ([]*scape.AutomatonAgent, error) {
	inputs, outputs := cfg.Scape.InputAlphabet(), cfg.Scape.OutputAlphabet()
	if cfg.ResumeRun != "" {
		return c.restore(ctx, cfg, logger)
	}

	agents := make([]*scape.AutomatonAgent, 0, cfg.Agents)
	for i := 0; i < cfg.Agents; i++ {
		id := agentID(i)
		g, start, err := scape.SeedGraph(outputs)
		if err != nil {
			return nil, fmt.Errorf("seed graph: %w", err)
		}
		a, err := fst.NewAutomaton(inputs, outputs, g, start,
			fst.WithParams(cfg.Params),
			fst.WithLogger(logger.With("agent", id)),
		)
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", id, err)
		}
		agents = append(agents, scape.NewAutomatonAgent(id, a, cfg.Seed+int64(i)))
	}
	return agents, nil
}

func (c *Colony) restore(ctx context.Context, cfg Config, logger *slog.Logger) ([]*scape.AutomatonAgent, error) {
	ids, err := c.store.ListSnapshots(ctx, cfg.ResumeRun)
	if err != nil {
		return nil, fmt.Errorf("list snapshots of run %s: %w", cfg.ResumeRun, err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("run %s left no snapshots", cfg.ResumeRun)
	}

	agents := make([]*scape.AutomatonAgent, 0, len(ids))
	for i, snapshotID := range ids {
		snap, ok, err := c.store.GetSnapshot(ctx, snapshotID)
		if err != nil {
			return nil, fmt.Errorf("load snapshot %s: %w", snapshotID, err)
		}
		if !ok {
			return nil, fmt.Errorf("snapshot %s disappeared", snapshotID)
		}
		if !slices.Equal(snap.InputAlphabet, cfg.Scape.InputAlphabet()) {
			return nil, fmt.Errorf("snapshot %s was trained on inputs %v, scape %s senses %v",
				snapshotID, snap.InputAlphabet, cfg.Scape.Name(), cfg.Scape.InputAlphabet())
		}
		id := agentID(i)
		a, err := fst.Restore(snap, fst.WithLogger(logger.With("agent", id)))
		if err != nil {
			return nil, err
		}
		agents = append(agents, scape.NewAutomatonAgent(id, a, cfg.Seed+int64(i)))
	}
	return agents, nil
}

// live runs one agent through every episode and records what changed in
// its automaton during each of them.
func live(ctx context.Context, s scape.Scape, agent *scape.AutomatonAgent, episodes int) ([]model.EpisodeRecord, error) {
	records := make([]model.EpisodeRecord, 0, episodes)
	for episode := 0; episode < episodes; episode++ {
		before := agent.Automaton().Stats()
		fitness, trace, err := s.Evaluate(ctx, agent)
		if err != nil {
			return nil, fmt.Errorf("episode %d: %w", episode, err)
		}
		after := agent.Automaton().Stats()
		outcome, _ := trace["outcome"].(string)
		records = append(records, model.EpisodeRecord{
			AgentID:     agent.ID(),
			Episode:     episode,
			Steps:       after.Steps - before.Steps,
			Rewards:     after.Rewards - before.Rewards,
			Punishments: after.Punishments - before.Punishments,
			States:      agent.Automaton().NumStates(),
			Fitness:     float64(fitness),
			Outcome:     outcome,
		})
	}
	return records, nil
}
