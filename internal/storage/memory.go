package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"spikenet/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

type historyKey struct {
	runID  string
	domain string
}

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	snapshots   map[SnapshotKey]model.DomainSnapshot
	history     map[historyKey][]model.TickStats
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.snapshots = make(map[SnapshotKey]model.DomainSnapshot)
	s.history = make(map[historyKey][]model.TickStats)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sortRuns(runs)
	return runs, nil
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, snapshot model.DomainSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.snapshots[keyOf(snapshot)] = snapshot
	return nil
}

func (s *MemoryStore) GetSnapshot(_ context.Context, key SnapshotKey) (model.DomainSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[key]
	return snapshot, ok, nil
}

func (s *MemoryStore) LatestSnapshot(_ context.Context, runID, domain string) (model.DomainSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		latest model.DomainSnapshot
		found  bool
	)
	for key, snapshot := range s.snapshots {
		if key.RunID != runID || key.Domain != domain {
			continue
		}
		if !found || key.Ticks > latest.Ticks {
			latest, found = snapshot, true
		}
	}
	return latest, found, nil
}

func (s *MemoryStore) ListSnapshots(_ context.Context, runID string) ([]SnapshotKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []SnapshotKey
	for key := range s.snapshots {
		if key.RunID == runID {
			keys = append(keys, key)
		}
	}
	sortSnapshotKeys(keys)
	return keys, nil
}

func (s *MemoryStore) SaveTickHistory(_ context.Context, runID, domain string, history []model.TickStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.history[historyKey{runID: runID, domain: domain}] = append([]model.TickStats(nil), history...)
	return nil
}

func (s *MemoryStore) GetTickHistory(_ context.Context, runID, domain string) ([]model.TickStats, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[historyKey{runID: runID, domain: domain}]
	if !ok {
		return nil, false, nil
	}
	return append([]model.TickStats(nil), history...), true, nil
}

func keyOf(snapshot model.DomainSnapshot) SnapshotKey {
	return SnapshotKey{RunID: snapshot.RunID, Domain: snapshot.Domain, Ticks: snapshot.Ticks}
}

// sortRuns orders runs oldest first; ids break ties.
func sortRuns(runs []model.RunRecord) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC != runs[j].CreatedAtUTC {
			return runs[i].CreatedAtUTC < runs[j].CreatedAtUTC
		}
		return runs[i].ID < runs[j].ID
	})
}

func sortSnapshotKeys(keys []SnapshotKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Ticks != keys[j].Ticks {
			return keys[i].Ticks < keys[j].Ticks
		}
		return keys[i].Domain < keys[j].Domain
	})
}
