package spikenet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"spikenet/internal/config"
	"spikenet/internal/domain"
	"spikenet/internal/metrics"
	"spikenet/internal/model"
	"spikenet/internal/network"
	"spikenet/internal/stats"
	"spikenet/internal/storage"
)

const (
	defaultRunsDir    = "runs"
	defaultExportsDir = "exports"
	defaultDBPath     = "spikenet.db"
)

type Options struct {
	StoreKind  string
	DBPath     string
	RunsDir    string
	ExportsDir string
	Logger     *slog.Logger
	// Registerer receives the simulation metrics. Nil keeps them private
	// to the client.
	Registerer prometheus.Registerer
}

type Client struct {
	store   storage.Store
	logger  *slog.Logger
	metrics *metrics.Metrics

	runsDir    string
	exportsDir string
}

type RunRequest struct {
	// RunID defaults to a random UUID.
	RunID  string
	Config config.Config
	// Ticks and SnapshotEvery override the config when positive.
	Ticks         int
	SnapshotEvery int
	// Stimuli are applied after the ones of the config.
	Stimuli []config.Stimulus

	Progress domain.ProgressFunc
	// Attach is called with the network before deployment starts, so that
	// callers can watch its status while it runs.
	Attach func(n *network.Network)
	OnTick network.TickFunc
}

type DomainSummary struct {
	Name         string
	Neurons      int
	Receivers    int
	Transmitters int
	Synapses     int
	Stats        model.DomainStats
	Activity     stats.ActivitySummary
	SizeReport   string
}

type RunSummary struct {
	RunID        string
	ArtifactsDir string
	Ticks        int64
	Snapshots    int
	DeployTime   time.Duration
	RunTime      time.Duration
	Domains      []DomainSummary
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Network      string
	Device       string
	Domains      []string
	Seed         int64
	Ticks        int64
	Neurons      int
	Synapses     int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type SnapshotsRequest struct {
	RunID  string
	Latest bool
}

type SnapshotRequest struct {
	RunID  string
	Latest bool
	Domain string
	// Ticks selects the snapshot taken after that many ticks. Zero selects
	// the most recent one.
	Ticks int64
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
	runsDir := opts.RunsDir
	if runsDir == "" {
		runsDir = defaultRunsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		logger:     logger,
		metrics:    metrics.New(opts.Registerer),
		runsDir:    runsDir,
		exportsDir: exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.Close(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// Deploy builds and deploys the network of cfg without running it.
func (c *Client) Deploy(ctx context.Context, cfg config.Config, progress domain.ProgressFunc) (*network.Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := []network.Option{network.WithLogger(c.logger), network.WithMetrics(c.metrics)}
	if progress != nil {
		opts = append(opts, network.WithProgress(progress))
	}
	n, err := network.New(cfg.NetworkSpec, opts...)
	if err != nil {
		return nil, err
	}
	if err := n.Deploy(ctx); err != nil {
		return nil, err
	}
	return n, nil
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	cfg := req.Config
	if req.Ticks > 0 {
		cfg.Run.Ticks = req.Ticks
	}
	if req.SnapshotEvery > 0 {
		cfg.Run.SnapshotEvery = req.SnapshotEvery
	}
	cfg.Run.Stimuli = append(append([]config.Stimulus(nil), cfg.Run.Stimuli...), req.Stimuli...)
	if err := cfg.Validate(); err != nil {
		return RunSummary{}, err
	}
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := c.logger.With("run", runID)

	opts := []network.Option{network.WithLogger(logger), network.WithMetrics(c.metrics)}
	if req.Progress != nil {
		opts = append(opts, network.WithProgress(req.Progress))
	}
	n, err := network.New(cfg.NetworkSpec, opts...)
	if err != nil {
		return RunSummary{}, err
	}
	if req.Attach != nil {
		req.Attach(n)
	}

	deployStart := time.Now()
	if err := n.Deploy(ctx); err != nil {
		return RunSummary{}, fmt.Errorf("deploy: %w", err)
	}
	deployTime := time.Since(deployStart)
	for _, s := range cfg.Run.Stimuli {
		d, err := n.DomainByName(s.Domain)
		if err != nil {
			return RunSummary{}, err
		}
		if err := d.Stimulate(s.Layer, s.X, s.Y, s.Amount); err != nil {
			return RunSummary{}, err
		}
	}

	record := model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              runID,
		CreatedAtUTC:    time.Now().UTC().Format(time.RFC3339Nano),
		Device:          cfg.Device,
		Seed:            cfg.Seed,
	}
	for _, d := range n.Domains() {
		record.Domains = append(record.Domains, d.Name())
	}
	if err := c.store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, err
	}

	snapshots := 0
	var lastSnapshot int64
	runStart := time.Now()
	err = n.Run(ctx, cfg.Run.Ticks, func(tick int64, st []model.TickStats) error {
		if req.OnTick != nil {
			if err := req.OnTick(tick, st); err != nil {
				return err
			}
		}
		if cfg.Run.SnapshotEvery > 0 && tick%int64(cfg.Run.SnapshotEvery) == 0 {
			if err := c.saveSnapshots(ctx, runID, n); err != nil {
				return err
			}
			snapshots++
			lastSnapshot = tick
		}
		return nil
	})
	if err != nil {
		return RunSummary{}, fmt.Errorf("run: %w", err)
	}
	runTime := time.Since(runStart)

	domains := n.Domains()
	ticks := domains[0].Ticks()
	if ticks != lastSnapshot || snapshots == 0 {
		if err := c.saveSnapshots(ctx, runID, n); err != nil {
			return RunSummary{}, err
		}
		snapshots++
	}

	summary := RunSummary{
		RunID:      runID,
		Ticks:      ticks,
		Snapshots:  snapshots,
		DeployTime: deployTime,
		RunTime:    runTime,
	}
	artifacts := stats.RunArtifacts{RunID: runID, Config: cfg}
	for _, d := range domains {
		history := d.TickHistory()
		if err := c.store.SaveTickHistory(ctx, runID, d.Name(), history); err != nil {
			return RunSummary{}, err
		}
		status := d.Status()
		activity := stats.Summarize(history)
		summary.Domains = append(summary.Domains, DomainSummary{
			Name:         d.Name(),
			Neurons:      status.Neurons,
			Receivers:    status.Receivers,
			Transmitters: status.Transmitters,
			Synapses:     status.Synapses,
			Stats:        status.Stats,
			Activity:     activity,
			SizeReport:   d.SizeReport(),
		})
		artifacts.Domains = append(artifacts.Domains, stats.DomainArtifact{
			Name:       d.Name(),
			Ticks:      d.Ticks(),
			Neurons:    status.Neurons,
			Synapses:   status.Synapses,
			Stats:      status.Stats,
			Summary:    activity,
			SizeReport: d.SizeReport(),
			History:    history,
		})
		record.Neurons += status.Neurons
		record.Synapses += status.Synapses
	}

	runDir, err := stats.WriteRunArtifacts(c.runsDir, artifacts)
	if err != nil {
		return RunSummary{}, err
	}
	summary.ArtifactsDir = filepath.Clean(runDir)

	record.Ticks = ticks
	if err := c.store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.runsDir, stats.RunIndexEntry{
		RunID:        runID,
		Network:      cfg.Name,
		Device:       record.Device,
		Domains:      record.Domains,
		Seed:         record.Seed,
		Ticks:        record.Ticks,
		Neurons:      record.Neurons,
		Synapses:     record.Synapses,
		CreatedAtUTC: record.CreatedAtUTC,
	}); err != nil {
		return RunSummary{}, err
	}
	logger.Info("run finished", "ticks", ticks, "snapshots", snapshots, "elapsed", runTime.String())
	return summary, nil
}

func (c *Client) saveSnapshots(ctx context.Context, runID string, n *network.Network) error {
	for _, d := range n.Domains() {
		snap := d.Snapshot(runID)
		snap.VersionedRecord = storage.CurrentVersion()
		if err := c.store.SaveSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("snapshot %s: %w", d.Name(), err)
		}
	}
	return nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.runsDir)
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
			Network:      e.Network,
			Device:       e.Device,
			Domains:      append([]string(nil), e.Domains...),
			Seed:         e.Seed,
			Ticks:        e.Ticks,
			Neurons:      e.Neurons,
			Synapses:     e.Synapses,
		})
	}
	return out, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.runsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) Snapshots(ctx context.Context, req SnapshotsRequest) ([]storage.SnapshotKey, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	return c.store.ListSnapshots(ctx, runID)
}

func (c *Client) Snapshot(ctx context.Context, req SnapshotRequest) (model.DomainSnapshot, error) {
	if req.Domain == "" {
		return model.DomainSnapshot{}, errors.New("snapshot requires a domain")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return model.DomainSnapshot{}, err
	}

	var (
		snap model.DomainSnapshot
		ok   bool
	)
	if req.Ticks == 0 {
		snap, ok, err = c.store.LatestSnapshot(ctx, runID, req.Domain)
	} else {
		snap, ok, err = c.store.GetSnapshot(ctx, storage.SnapshotKey{RunID: runID, Domain: req.Domain, Ticks: req.Ticks})
	}
	if err != nil {
		return model.DomainSnapshot{}, err
	}
	if !ok {
		return model.DomainSnapshot{}, fmt.Errorf("no snapshot of domain %s in run %s", req.Domain, runID)
	}
	return snap, nil
}

// TickHistory returns the recorded per-tick statistics of one domain.
func (c *Client) TickHistory(ctx context.Context, runID, domainName string) ([]model.TickStats, error) {
	history, ok, err := c.store.GetTickHistory(ctx, runID, domainName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no tick history of domain %s in run %s", domainName, runID)
	}
	return history, nil
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID == "" && !latest {
		return "", errors.New("run id or latest is required")
	}
	if runID != "" {
		return runID, nil
	}
	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}
