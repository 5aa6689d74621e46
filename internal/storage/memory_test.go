package storage

import (
	"context"
	"testing"

	"spikenet/internal/model"
)

func TestMemoryStoreContract(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	exerciseStore(t, store)
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	if err := store.SaveRun(context.Background(), model.RunRecord{ID: "r"}); err == nil {
		t.Fatal("expected error before init")
	}
}

func TestMemoryStoreCopiesHistory(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	history := []model.TickStats{{Tick: 1}}
	if err := store.SaveTickHistory(ctx, "run", "a", history); err != nil {
		t.Fatalf("save history: %v", err)
	}
	history[0].Tick = 42
	loaded, _, err := store.GetTickHistory(ctx, "run", "a")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if loaded[0].Tick != 1 {
		t.Fatalf("stored history aliases the caller slice: %+v", loaded)
	}
}
