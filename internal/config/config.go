package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"formica/internal/fst"
	"formica/internal/logging"
	"formica/internal/scape"
	"formica/internal/scapeid"
)

// RunConfig describes one colony run.
type RunConfig struct {
	Scape    string `json:"scape" yaml:"scape"`
	Agents   int    `json:"agents" yaml:"agents"`
	Episodes int    `json:"episodes" yaml:"episodes"`
	Workers  int    `json:"workers" yaml:"workers"`
	Seed     int64  `json:"seed" yaml:"seed"`

	Store  string `json:"store" yaml:"store"`
	DBPath string `json:"db_path" yaml:"db_path"`

	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format"`
	LogFile   string `json:"log_file,omitempty" yaml:"log_file,omitempty"`
	ChartPath string `json:"chart_path,omitempty" yaml:"chart_path,omitempty"`

	Params fst.Params   `json:"params" yaml:"params"`
	Scapes scape.Config `json:"scapes" yaml:"scapes"`
}

func Default() RunConfig {
	return RunConfig{
		Scape:     "forage",
		Agents:    8,
		Episodes:  50,
		Workers:   4,
		Seed:      1,
		Store:     "memory",
		DBPath:    "formica.db",
		LogLevel:  "info",
		LogFormat: "text",
		Params:    fst.DefaultParams(),
		Scapes:    scape.DefaultConfig(),
	}
}

func (c RunConfig) Validate() error {
	var errs []error
	name := scapeid.Normalize(c.Scape)
	if _, err := scape.New(name, c.Scapes); err != nil {
		errs = append(errs, err)
	}
	if c.Agents <= 0 {
		errs = append(errs, fmt.Errorf("agents must be positive, got %d", c.Agents))
	}
	if c.Episodes <= 0 {
		errs = append(errs, fmt.Errorf("episodes must be positive, got %d", c.Episodes))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be non-negative, got %d", c.Workers))
	}
	switch c.Store {
	case "", "memory", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported store backend: %s", c.Store))
	}
	if c.Store == "sqlite" && c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required for the sqlite store"))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unsupported log format: %s", c.LogFormat))
	}
	if err := c.Params.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("params: %w", err))
	}

	// Steps inside a burst must stay under the timeout and pauses between
	// bursts must exceed it.
	step, pause := c.timing(name)
	if step > 0 && !(step < c.Params.Tau && c.Params.Tau < pause) {
		errs = append(errs, fmt.Errorf("%s timing needs step_time < tau < pause, got %v < %v < %v", name, step, c.Params.Tau, pause))
	}
	return errors.Join(errs...)
}

func (c RunConfig) timing(name string) (step, pause float64) {
	switch name {
	case "forage":
		return c.Scapes.Forage.StepTime, c.Scapes.Forage.Pause
	case "t-maze":
		return c.Scapes.TMaze.StepTime, c.Scapes.TMaze.Pause
	default:
		return 0, 0
	}
}

// LoadFromPath reads a run config file (YAML or JSON) on top of Default.
func LoadFromPath(path string) (RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("read config: %w", err)
	}
	return Load(data, filepath.Ext(path))
}

// Load parses a run config. ext is the file extension used as format hint;
// empty means detect from content. Fields missing from the input keep their
// default values.
func Load(data []byte, ext string) (RunConfig, error) {
	cfg := Default()
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}
	if ext == "" {
		ext = ".yaml"
		if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
			ext = ".json"
		}
	}
	switch ext {
	case ".yaml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return RunConfig{}, fmt.Errorf("parse config yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return RunConfig{}, fmt.Errorf("parse config json: %w", err)
		}
	default:
		return RunConfig{}, fmt.Errorf("unsupported config format %q", ext)
	}
	return cfg, nil
}
