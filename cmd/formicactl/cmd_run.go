package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"formica/internal/config"
	"formica/internal/logging"
	"formica/internal/stats"
	"formica/pkg/formica"
)

type runFlags struct {
	configPath string
	runID      string
	resume     string
	scape      string
	agents     int
	episodes   int
	workers    int
	seed       int64
	logLevel   string
	logFormat  string
	logFile    string
	chart      string
	beta       float64
	gamma      float64
	nu         float64
	tau        float64
}

func newRunCmd(opts *globalOptions) *cobra.Command {
	flags := &runFlags{}
	defaults := config.Default()
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a colony on a scape and record the learning curve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts, flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.configPath, "config", "", "run config file (yaml or json)")
	f.StringVar(&flags.runID, "run-id", "", "explicit run id; generated when empty")
	f.StringVar(&flags.resume, "resume", "", "continue the automata saved by this run id")
	f.StringVar(&flags.scape, "scape", defaults.Scape, "scape name: forage|t-maze")
	f.IntVar(&flags.agents, "agents", defaults.Agents, "number of automata in the colony")
	f.IntVar(&flags.episodes, "episodes", defaults.Episodes, "episodes per automaton")
	f.IntVar(&flags.workers, "workers", defaults.Workers, "automata evaluated concurrently")
	f.Int64Var(&flags.seed, "seed", defaults.Seed, "random seed")
	f.StringVar(&flags.logLevel, "log-level", defaults.LogLevel, "log level: debug|info|warn|error")
	f.StringVar(&flags.logFormat, "log-format", defaults.LogFormat, "log format: text|json")
	f.StringVar(&flags.logFile, "log-file", "", "also append logs to this file")
	f.StringVar(&flags.chart, "chart", "", "write the learning curve chart to this html file")
	f.Float64Var(&flags.beta, "beta", defaults.Params.Beta, "reward and punishment learning rate")
	f.Float64Var(&flags.gamma, "gamma", defaults.Params.Gamma, "conditioning learning rate")
	f.Float64Var(&flags.nu, "nu", defaults.Params.Nu, "damping of reward copied to other states")
	f.Float64Var(&flags.tau, "tau", defaults.Params.Tau, "input timeout and trace decay")
	return cmd
}

func runRun(cmd *cobra.Command, opts *globalOptions, flags *runFlags) error {
	cfg := config.Default()
	if flags.configPath != "" {
		loaded, err := config.LoadFromPath(flags.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	applyRunFlags(cmd, opts, flags, &cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid run config: %w", err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	writers := []io.Writer{cmd.ErrOrStderr()}
	if cfg.LogFile != "" {
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer file.Close()
		writers = append(writers, file)
	}
	logging.Init(level, cfg.LogFormat, writers...)

	client, err := formica.New(formica.Options{
		StoreKind:     cfg.Store,
		DBPath:        cfg.DBPath,
		BenchmarksDir: opts.benchmarksDir,
		Logger:        logging.New("colony"),
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(cmd.Context(), formica.RunRequest{
		RunID:     flags.runID,
		Scape:     cfg.Scape,
		Agents:    cfg.Agents,
		Episodes:  cfg.Episodes,
		Workers:   cfg.Workers,
		Seed:      cfg.Seed,
		Params:    cfg.Params,
		Scapes:    &cfg.Scapes,
		ResumeRun: flags.resume,
		Config:    cfg,
	})
	if err != nil {
		return err
	}

	if cfg.ChartPath != "" {
		curve, ok, err := stats.ReadCurveCSV(opts.benchmarksDir, summary.RunID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("learning curve missing for run %s", summary.RunID)
		}
		title := fmt.Sprintf("%s (%s)", cfg.Scape, summary.RunID)
		if err := stats.WriteCurveHTML(cfg.ChartPath, title, stats.NamedCurve{Name: cfg.Scape, Curve: curve}); err != nil {
			return err
		}
	}

	color := palette(opts)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s run_id=%s scape=%s agents=%s episodes=%s\n",
		color.Green("completed"),
		summary.RunID,
		cfg.Scape,
		humanize.Comma(int64(len(summary.SnapshotIDs))),
		humanize.Comma(int64(cfg.Episodes)),
	)
	fmt.Fprintf(out, "best_fitness=%.4f final_mean_fitness=%.4f\n", summary.BestFitness, summary.FinalMeanFitness)
	fmt.Fprintf(out, "artifacts=%s\n", summary.ArtifactsDir)
	if cfg.ChartPath != "" {
		fmt.Fprintf(out, "chart=%s\n", cfg.ChartPath)
	}
	return nil
}

// applyRunFlags lets explicit flags override the config file.
func applyRunFlags(cmd *cobra.Command, opts *globalOptions, flags *runFlags, cfg *config.RunConfig) {
	changed := func(name string) bool {
		flag := cmd.Flag(name)
		return flag != nil && flag.Changed
	}
	if changed("store") {
		cfg.Store = opts.store
	}
	if changed("db-path") {
		cfg.DBPath = opts.dbPath
	}
	if changed("scape") {
		cfg.Scape = flags.scape
	}
	if changed("agents") {
		cfg.Agents = flags.agents
	}
	if changed("episodes") {
		cfg.Episodes = flags.episodes
	}
	if changed("workers") {
		cfg.Workers = flags.workers
	}
	if changed("seed") {
		cfg.Seed = flags.seed
	}
	if changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if changed("log-format") {
		cfg.LogFormat = flags.logFormat
	}
	if changed("log-file") {
		cfg.LogFile = flags.logFile
	}
	if changed("chart") {
		cfg.ChartPath = flags.chart
	}
	if changed("beta") {
		cfg.Params.Beta = flags.beta
	}
	if changed("gamma") {
		cfg.Params.Gamma = flags.gamma
	}
	if changed("nu") {
		cfg.Params.Nu = flags.nu
	}
	if changed("tau") {
		cfg.Params.Tau = flags.tau
	}
}
