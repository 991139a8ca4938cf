package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"formica/internal/model"
)

const runIndexFile = "run_index.json"

// RunArtifacts is everything a run leaves on disk next to the store.
type RunArtifacts struct {
	Run      model.RunRecord       `json:"run"`
	Config   any                   `json:"config,omitempty"`
	Episodes []model.EpisodeRecord `json:"episodes"`
	Curve    []CurvePoint          `json:"curve"`
}

type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	Scape        string  `json:"scape"`
	Agents       int     `json:"agents"`
	Episodes     int     `json:"episodes"`
	Seed         int64   `json:"seed"`
	BestFitness  float64 `json:"best_fitness"`
	MeanFitness  float64 `json:"mean_fitness"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

// WriteRunArtifacts writes run.json, config.json, episodes.json, curve.csv
// and curve.html under baseDir/<run id> and returns that directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Run.ID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Run.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "run.json"), artifacts.Run); err != nil {
		return "", err
	}
	if artifacts.Config != nil {
		if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
			return "", err
		}
	}
	if err := writeJSON(filepath.Join(runDir, "episodes.json"), artifacts.Episodes); err != nil {
		return "", err
	}
	curve := artifacts.Curve
	if curve == nil {
		curve = EpisodeCurve(artifacts.Episodes)
	}
	if err := WriteCurveCSV(runDir, curve); err != nil {
		return "", err
	}
	if len(curve) > 0 {
		title := fmt.Sprintf("%s (%s)", artifacts.Run.Scape, artifacts.Run.ID)
		if err := WriteCurveHTML(filepath.Join(runDir, "curve.html"), title, NamedCurve{Name: artifacts.Run.Scape, Curve: curve}); err != nil {
			return "", err
		}
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the index newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func IndexEntry(run model.RunRecord) RunIndexEntry {
	return RunIndexEntry{
		RunID:        run.ID,
		Scape:        run.Scape,
		Agents:       run.Agents,
		Episodes:     run.Episodes,
		Seed:         run.Seed,
		BestFitness:  run.BestFitness,
		MeanFitness:  run.MeanFitness,
		CreatedAtUTC: run.CreatedAtUTC,
	}
}

func WriteCurveCSV(runDir string, curve []CurvePoint) error {
	file, err := os.Create(filepath.Join(runDir, "curve.csv"))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"episode", "mean_fitness", "best_fitness", "rewards", "punishments", "mean_states"}); err != nil {
		return err
	}
	for _, point := range curve {
		if err := writer.Write([]string{
			strconv.Itoa(point.Episode),
			strconv.FormatFloat(point.Mean, 'f', -1, 64),
			strconv.FormatFloat(point.Best, 'f', -1, 64),
			strconv.Itoa(point.Rewards),
			strconv.Itoa(point.Punishments),
			strconv.FormatFloat(point.MeanStates, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadCurveCSV reads the mean and best fitness columns back.
func ReadCurveCSV(baseDir, runID string) ([]CurvePoint, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, "curve.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return []CurvePoint{}, true, nil
		}
		return nil, false, err
	}

	curve := make([]CurvePoint, 0, 64)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 3 {
			return nil, false, fmt.Errorf("curve row must have at least 3 columns")
		}
		episode, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, false, err
		}
		mean, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, false, err
		}
		best, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, false, err
		}
		curve = append(curve, CurvePoint{Episode: episode, Mean: mean, Best: best})
	}
	return curve, true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
