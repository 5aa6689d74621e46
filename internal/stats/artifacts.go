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
	"strings"

	"spikenet/internal/config"
	"spikenet/internal/model"
)

const (
	runIndexFile    = "run_index.json"
	configFile      = "config.json"
	tickHistoryFile = "tick_history.csv"
	domainsFile     = "domains.json"
)

var tickHistoryHeader = []string{"domain", "tick", "spiked", "received", "transmitted", "dead_neurons", "live_synapses", "elapsed_micros"}

// DomainArtifact is the end of run state of one domain.
type DomainArtifact struct {
	Name       string            `json:"name"`
	Ticks      int64             `json:"ticks"`
	Neurons    int               `json:"neurons"`
	Synapses   int               `json:"synapses"`
	Stats      model.DomainStats `json:"stats"`
	Summary    ActivitySummary   `json:"summary"`
	SizeReport string            `json:"size_report,omitempty"`

	History []model.TickStats `json:"-"`
}

type RunArtifacts struct {
	RunID   string           `json:"run_id"`
	Config  config.Config    `json:"config"`
	Domains []DomainArtifact `json:"domains"`
}

type RunIndexEntry struct {
	RunID        string   `json:"run_id"`
	Network      string   `json:"network"`
	Device       string   `json:"device"`
	Domains      []string `json:"domains"`
	Seed         int64    `json:"seed"`
	Ticks        int64    `json:"ticks"`
	Neurons      int      `json:"neurons"`
	Synapses     int      `json:"synapses"`
	CreatedAtUTC string   `json:"created_at_utc"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, domainsFile), artifacts.Domains); err != nil {
		return "", err
	}
	if err := WriteTickHistory(runDir, artifacts.Domains); err != nil {
		return "", err
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

// ListRunIndex returns the indexed runs, newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
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
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})
	for i := range indexed {
		entries[i] = indexed[i].entry
	}
	return entries, nil
}

func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}
	for _, file := range []string{configFile, domainsFile, tickHistoryFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (config.Config, bool, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, configFile))
	if err != nil {
		if os.IsNotExist(err) {
			return config.Config{}, false, nil
		}
		return config.Config{}, false, err
	}

	var cfg config.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return config.Config{}, false, err
	}
	return cfg, true, nil
}

// WriteTickHistory writes one row per domain and tick, domains in the given
// order.
func WriteTickHistory(runDir string, domains []DomainArtifact) error {
	file, err := os.Create(filepath.Join(runDir, tickHistoryFile))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(tickHistoryHeader); err != nil {
		return err
	}
	for _, d := range domains {
		for _, st := range d.History {
			if err := writer.Write([]string{
				d.Name,
				strconv.FormatInt(st.Tick, 10),
				strconv.Itoa(st.Spiked),
				strconv.Itoa(st.Received),
				strconv.Itoa(st.Transmitted),
				strconv.Itoa(st.DeadNeurons),
				strconv.Itoa(st.LiveSynapses),
				strconv.FormatInt(st.ElapsedMicros, 10),
			}); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadTickHistory returns the per-domain history of a run keyed by domain
// name.
func ReadTickHistory(baseDir, runID string) (map[string][]model.TickStats, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, tickHistoryFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return map[string][]model.TickStats{}, true, nil
		}
		return nil, false, err
	}
	if strings.Join(header, ",") != strings.Join(tickHistoryHeader, ",") {
		return nil, false, fmt.Errorf("unexpected tick history header: %v", header)
	}

	history := make(map[string][]model.TickStats)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		st, err := parseTickRow(record)
		if err != nil {
			return nil, false, err
		}
		history[record[0]] = append(history[record[0]], st)
	}
	return history, true, nil
}

func parseTickRow(record []string) (model.TickStats, error) {
	var (
		st   model.TickStats
		ints [5]int
		err  error
	)
	if st.Tick, err = strconv.ParseInt(record[1], 10, 64); err != nil {
		return model.TickStats{}, fmt.Errorf("tick history tick: %w", err)
	}
	for i := range ints {
		if ints[i], err = strconv.Atoi(record[2+i]); err != nil {
			return model.TickStats{}, fmt.Errorf("tick history %s: %w", tickHistoryHeader[2+i], err)
		}
	}
	st.Spiked, st.Received, st.Transmitted, st.DeadNeurons, st.LiveSynapses = ints[0], ints[1], ints[2], ints[3], ints[4]
	if st.ElapsedMicros, err = strconv.ParseInt(record[7], 10, 64); err != nil {
		return model.TickStats{}, fmt.Errorf("tick history elapsed: %w", err)
	}
	return st, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
