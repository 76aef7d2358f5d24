package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps transfer records in process memory.
// maps record id -> record
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*types.TransferRecord

	backend Backend
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*types.TransferRecord),
		backend: Backend{Name: BackendMemory},
		now:     time.Now,
	}
}

// NewDegradedMemoryStore is the fallback used when the durable backend is unavailable.
func NewDegradedMemoryStore(reason string) *MemoryStore {
	s := NewMemoryStore()
	s.backend.Degraded = true
	s.backend.Reason = reason
	return s
}

func (s *MemoryStore) Create(_ context.Context, rec *types.TransferRecord) (*types.TransferRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.byNaturalKey(rec.Direction, rec.NaturalKey()); existing != nil {
		return existing.Clone(), false, nil
	}
	if _, ok := s.records[rec.ID]; ok {
		return nil, false, types.NewValidationError("transfer %s already exists", rec.ID)
	}
	s.records[rec.ID] = rec.Clone()
	return rec.Clone(), true, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*types.TransferRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, types.NewNotFoundError("transfer %s not found", id)
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) GetByNaturalKey(_ context.Context, direction types.Direction, key string) (*types.TransferRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.byNaturalKey(direction, key).Clone(), nil
}

// byNaturalKey must be called with mu held.
func (s *MemoryStore) byNaturalKey(direction types.Direction, key string) *types.TransferRecord {
	if key == "" {
		return nil
	}
	for _, rec := range s.records {
		if rec.Direction != direction || rec.NaturalKey() != key {
			continue
		}
		// only one active withdraw per user; finished ones do not block a new one
		if direction == types.Withdraw && rec.Status.Terminal() {
			continue
		}
		return rec
	}
	return nil
}

func (s *MemoryStore) Transition(_ context.Context, id string, p types.Patch) (*types.TransferRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, types.NewNotFoundError("transfer %s not found", id)
	}
	next := rec.Clone()
	if err := types.ApplyPatch(next, p, s.now().UTC()); err != nil {
		return nil, err
	}
	s.records[id] = next
	return next.Clone(), nil
}

func (s *MemoryStore) ListResumable(_ context.Context, f Filter) ([]*types.TransferRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*types.TransferRecord
	for _, rec := range s.records {
		if f.match(rec) {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Backend() Backend { return s.backend }

func (s *MemoryStore) Close() {}
