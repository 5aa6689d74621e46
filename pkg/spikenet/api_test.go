package spikenet

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"spikenet/internal/config"
	"spikenet/internal/model"
	"spikenet/internal/network"
	"spikenet/internal/storage"
)

func pairConfig() config.Config {
	cfg := config.Defaults()
	cfg.Name = "pair"
	cfg.Seed = 3
	cfg.Domains = []model.DomainSpec{
		{Name: "a", Layers: []model.LayerSpec{{
			Name: "in", Width: 2, Height: 2, Threshold: 1,
			Connect: []model.ConnectSpec{{Name: "out", Radius: 2}},
		}}},
		{Name: "b", Layers: []model.LayerSpec{{Name: "out", Width: 2, Height: 2, Threshold: 10, Relaxation: 0.5}}},
	}
	cfg.Run = config.RunConfig{Ticks: 4, Stimuli: []config.Stimulus{{Domain: "a", Layer: "in", X: 0, Y: 0, Amount: 1}}}
	return cfg
}

func newClient(t *testing.T) (*Client, string) {
	t.Helper()
	base := t.TempDir()
	client, err := New(Options{
		StoreKind:  "memory",
		RunsDir:    filepath.Join(base, "runs"),
		ExportsDir: filepath.Join(base, "exports"),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	if err := client.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return client, base
}

func TestClientRunRunsAndExport(t *testing.T) {
	ctx := context.Background()
	client, base := newClient(t)

	var ticks []int64
	var attached *network.Network
	summary, err := client.Run(ctx, RunRequest{
		RunID:         "run-1",
		Config:        pairConfig(),
		SnapshotEvery: 2,
		Attach:        func(n *network.Network) { attached = n },
		OnTick: func(tick int64, _ []model.TickStats) error {
			ticks = append(ticks, tick)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if attached == nil {
		t.Fatal("expected attach callback")
	}
	if summary.RunID != "run-1" || summary.Ticks != 4 || len(ticks) != 4 {
		t.Fatalf("unexpected summary: %+v ticks=%v", summary, ticks)
	}
	if summary.Snapshots != 2 {
		t.Fatalf("expected snapshots at ticks 2 and 4, got %d", summary.Snapshots)
	}
	if len(summary.Domains) != 2 {
		t.Fatalf("unexpected domains: %+v", summary.Domains)
	}
	a, b := summary.Domains[0], summary.Domains[1]
	if a.Transmitters != 4 || b.Receivers != 4 || b.Synapses != 16 {
		t.Fatalf("unexpected topology: a=%+v b=%+v", a, b)
	}
	if a.Stats.SpikesSent != 1 || b.Stats.SpikesReceived != 1 {
		t.Fatalf("expected one spike to cross domains: a=%+v b=%+v", a.Stats, b.Stats)
	}
	if a.Activity.TotalSpiked != 1 || a.SizeReport == "" {
		t.Fatalf("unexpected activity of a: %+v", a)
	}
	if _, err := os.Stat(filepath.Join(summary.ArtifactsDir, "tick_history.csv")); err != nil {
		t.Fatalf("expected tick history artifact: %v", err)
	}

	runs, err := client.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != "run-1" || runs[0].Ticks != 4 || runs[0].Synapses != 16 {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	if runs[0].Network != "pair" || len(runs[0].Domains) != 2 {
		t.Fatalf("unexpected run item: %+v", runs[0])
	}

	exported, err := client.Export(ctx, ExportRequest{Latest: true})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.RunID != "run-1" || exported.Directory != filepath.Join(base, "exports", "run-1") {
		t.Fatalf("unexpected export: %+v", exported)
	}
}

func TestClientSnapshots(t *testing.T) {
	ctx := context.Background()
	client, _ := newClient(t)
	if _, err := client.Run(ctx, RunRequest{RunID: "run-s", Config: pairConfig(), Ticks: 3, SnapshotEvery: 2}); err != nil {
		t.Fatalf("run: %v", err)
	}

	keys, err := client.Snapshots(ctx, SnapshotsRequest{Latest: true})
	if err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	if len(keys) != 4 {
		t.Fatalf("expected snapshots of both domains at ticks 2 and 3, got %+v", keys)
	}

	latest, err := client.Snapshot(ctx, SnapshotRequest{RunID: "run-s", Domain: "b"})
	if err != nil {
		t.Fatalf("latest snapshot: %v", err)
	}
	if latest.Ticks != 3 || len(latest.Synapses.Levels) != 16 || latest.Stats.SpikesReceived != 1 {
		t.Fatalf("unexpected latest snapshot: ticks=%d stats=%+v", latest.Ticks, latest.Stats)
	}
	first, err := client.Snapshot(ctx, SnapshotRequest{RunID: "run-s", Domain: "a", Ticks: 2})
	if err != nil {
		t.Fatalf("snapshot at tick 2: %v", err)
	}
	if first.Ticks != 2 || len(first.Neurons.Levels) != 4 {
		t.Fatalf("unexpected snapshot: %+v", first)
	}
	if _, err := client.Snapshot(ctx, SnapshotRequest{RunID: "run-s", Domain: "a", Ticks: 1}); err == nil {
		t.Fatal("expected missing snapshot error")
	}
	if _, err := client.Snapshot(ctx, SnapshotRequest{RunID: "run-s"}); err == nil {
		t.Fatal("expected domain requirement error")
	}

	history, err := client.TickHistory(ctx, "run-s", "a")
	if err != nil {
		t.Fatalf("tick history: %v", err)
	}
	if len(history) != 3 || history[2].Tick != 3 {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestClientRunValidates(t *testing.T) {
	ctx := context.Background()
	client, _ := newClient(t)

	cfg := pairConfig()
	cfg.Domains[0].Layers[0].Connect[0].Name = "nowhere"
	if _, err := client.Run(ctx, RunRequest{Config: cfg}); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := client.Run(ctx, RunRequest{Config: pairConfig(), Stimuli: []config.Stimulus{{Domain: "a", Layer: "in", X: 5}}}); err == nil {
		t.Fatal("expected stimulus validation error")
	}
	if _, err := client.Export(ctx, ExportRequest{RunID: "x", Latest: true}); err == nil {
		t.Fatal("expected run id/latest conflict")
	}
	if _, err := client.Snapshots(ctx, SnapshotsRequest{Latest: true}); err == nil {
		t.Fatal("expected no runs error")
	}
}

func TestClientRunGeneratesRunID(t *testing.T) {
	client, _ := newClient(t)
	summary, err := client.Run(context.Background(), RunRequest{Config: pairConfig(), Ticks: 1})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(summary.RunID) != 36 {
		t.Fatalf("expected uuid run id, got %q", summary.RunID)
	}
	if summary.Snapshots != 1 {
		t.Fatalf("expected final snapshot, got %d", summary.Snapshots)
	}
}

func TestNewRejectsUnknownStore(t *testing.T) {
	if _, err := New(Options{StoreKind: "postgres"}); !errors.Is(err, storage.ErrUnsupportedStore) {
		t.Fatalf("expected unsupported store error, got %v", err)
	}
}

func TestClientDeploy(t *testing.T) {
	client, _ := newClient(t)
	n, err := client.Deploy(context.Background(), pairConfig(), nil)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	statuses := n.Statuses()
	if len(statuses) != 2 || statuses[1].Receivers != 4 || statuses[1].Stage != "device" {
		t.Fatalf("unexpected statuses: %+v", statuses)
	}
}
