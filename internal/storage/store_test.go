package storage

import (
	"context"
	"testing"

	"spikenet/internal/model"
)

func testSnapshot(runID, domain string, ticks int64) model.DomainSnapshot {
	return model.DomainSnapshot{
		VersionedRecord: CurrentVersion(),
		RunID:           runID,
		Domain:          domain,
		Ticks:           ticks,
		Neurons: model.NeuronState{
			Levels:   []float32{0.5, 0},
			Flags:    []model.Flags{model.FlagSpiked, model.FlagReceiver | model.FlagInhibitory},
			Ticks:    []int64{ticks, 0},
			Vitality: []float32{1, 1},
		},
		Synapses: model.SynapseState{Pre: []int32{1}, Post: []int32{0}, Levels: []float32{0.25}},
		Stats:    model.DomainStats{SpikesReceived: ticks},
	}
}

// exerciseStore runs the contract every Store backend must satisfy.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	runs := []model.RunRecord{
		{VersionedRecord: CurrentVersion(), ID: "run-b", CreatedAtUTC: "2026-01-02T00:00:00Z", Domains: []string{"a"}, Ticks: 3},
		{VersionedRecord: CurrentVersion(), ID: "run-a", CreatedAtUTC: "2026-01-02T00:00:00Z", Domains: []string{"a", "b"}},
		{VersionedRecord: CurrentVersion(), ID: "run-0", CreatedAtUTC: "2026-01-01T00:00:00Z"},
	}
	for _, run := range runs {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", run.ID, err)
		}
	}
	listed, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(listed) != 3 || listed[0].ID != "run-0" || listed[1].ID != "run-a" || listed[2].ID != "run-b" {
		t.Fatalf("unexpected run order: %+v", listed)
	}

	runs[0].Ticks = 10
	if err := store.SaveRun(ctx, runs[0]); err != nil {
		t.Fatalf("update run: %v", err)
	}
	run, ok, err := store.GetRun(ctx, "run-b")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%t err=%v", ok, err)
	}
	if run.Ticks != 10 || len(run.Domains) != 1 {
		t.Fatalf("unexpected run: %+v", run)
	}
	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing run, ok=%t err=%v", ok, err)
	}

	for _, snap := range []model.DomainSnapshot{
		testSnapshot("run-b", "b", 5),
		testSnapshot("run-b", "a", 10),
		testSnapshot("run-b", "a", 5),
		testSnapshot("run-a", "a", 99),
	} {
		if err := store.SaveSnapshot(ctx, snap); err != nil {
			t.Fatalf("save snapshot: %v", err)
		}
	}
	keys, err := store.ListSnapshots(ctx, "run-b")
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	want := []SnapshotKey{{"run-b", "a", 5}, {"run-b", "b", 5}, {"run-b", "a", 10}}
	if len(keys) != len(want) {
		t.Fatalf("unexpected snapshot keys: %+v", keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("snapshot key %d: got %+v want %+v", i, keys[i], want[i])
		}
	}

	snap, ok, err := store.GetSnapshot(ctx, SnapshotKey{RunID: "run-b", Domain: "a", Ticks: 5})
	if err != nil || !ok {
		t.Fatalf("get snapshot: ok=%t err=%v", ok, err)
	}
	if snap.Stats.SpikesReceived != 5 || snap.Neurons.Flags[1] != model.FlagReceiver|model.FlagInhibitory {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	latest, ok, err := store.LatestSnapshot(ctx, "run-b", "a")
	if err != nil || !ok {
		t.Fatalf("latest snapshot: ok=%t err=%v", ok, err)
	}
	if latest.Ticks != 10 {
		t.Fatalf("expected latest tick 10, got %d", latest.Ticks)
	}
	if _, ok, err := store.LatestSnapshot(ctx, "run-0", "a"); err != nil || ok {
		t.Fatalf("expected no snapshot, ok=%t err=%v", ok, err)
	}

	history := []model.TickStats{{Tick: 1, Spiked: 2}, {Tick: 2, Received: 1, LiveSynapses: 16}}
	if err := store.SaveTickHistory(ctx, "run-b", "a", history); err != nil {
		t.Fatalf("save history: %v", err)
	}
	loaded, ok, err := store.GetTickHistory(ctx, "run-b", "a")
	if err != nil || !ok {
		t.Fatalf("get history: ok=%t err=%v", ok, err)
	}
	if len(loaded) != 2 || loaded[1] != history[1] {
		t.Fatalf("unexpected history: %+v", loaded)
	}
	if _, ok, err := store.GetTickHistory(ctx, "run-b", "b"); err != nil || ok {
		t.Fatalf("expected missing history, ok=%t err=%v", ok, err)
	}
}
