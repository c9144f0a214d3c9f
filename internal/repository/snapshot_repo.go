// Package repository persists the simulator state. The whole state is one
// document behind a pluggable Backend; SnapshotRepository serialises every
// read-modify-write cycle against it.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/evetabi/opportunity/internal/domain"
)

// DefaultKey is the document key used when none is configured.
const DefaultKey = "opportunity-demo-state-v1"

// Seeder supplies the state used when the store is empty, corrupt, or reset.
type Seeder interface {
	Snapshot() domain.Snapshot
}

// SnapshotRepository loads and saves domain.Snapshot documents.
type SnapshotRepository struct {
	mu      sync.Mutex
	backend Backend
	seeder  Seeder
	logger  *slog.Logger
}

// NewSnapshotRepository creates a repository over backend. A nil logger
// falls back to slog.Default().
func NewSnapshotRepository(backend Backend, seeder Seeder, logger *slog.Logger) *SnapshotRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotRepository{backend: backend, seeder: seeder, logger: logger}
}

// Load returns the current snapshot. A missing document yields the seed
// state; a corrupt one is logged, replaced by the seed, and persisted.
func (r *SnapshotRepository) Load(ctx context.Context) (*domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

// Save normalises s and writes it, replacing the stored document.
func (r *SnapshotRepository) Save(ctx context.Context, s *domain.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(ctx, s)
}

// Reset discards all stored state and writes the seed.
func (r *SnapshotRepository) Reset(ctx context.Context) (*domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.seeder.Snapshot()
	if err := r.save(ctx, &s); err != nil {
		return nil, fmt.Errorf("snapshot_repo.Reset: %w", err)
	}
	return &s, nil
}

// Update runs fn against the current snapshot and saves the result. When fn
// returns an error nothing is written and the error is returned unchanged.
// Concurrent calls are serialised.
func (r *SnapshotRepository) Update(ctx context.Context, fn func(*domain.Snapshot) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return err
	}
	return r.save(ctx, s)
}

// Export returns the stored snapshot encoded as JSON.
func (r *SnapshotRepository) Export(ctx context.Context) ([]byte, error) {
	s, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("snapshot_repo.Export: %w", err)
	}
	return data, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Internals (caller holds r.mu)
// ──────────────────────────────────────────────────────────────────────────────

func (r *SnapshotRepository) load(ctx context.Context) (*domain.Snapshot, error) {
	raw, err := r.backend.Read(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		seeded := r.seeder.Snapshot()
		if werr := r.save(ctx, &seeded); werr != nil {
			return nil, fmt.Errorf("snapshot_repo.Load: persist seed: %w", werr)
		}
		return &seeded, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot_repo.Load: %w", err)
	}

	s, err := decodeSnapshot(raw)
	if err != nil {
		r.logger.Warn("stored snapshot is corrupt, restoring seed", "err", err)
		seeded := r.seeder.Snapshot()
		if werr := r.save(ctx, &seeded); werr != nil {
			return nil, fmt.Errorf("snapshot_repo.Load: restore seed: %w", werr)
		}
		return &seeded, nil
	}
	return s, nil
}

func (r *SnapshotRepository) save(ctx context.Context, s *domain.Snapshot) error {
	s.Normalize()
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("snapshot_repo.Save: encode: %w", err)
	}
	if err := r.backend.Write(ctx, data); err != nil {
		return fmt.Errorf("snapshot_repo.Save: %w", err)
	}
	return nil
}

// errNoMarkets marks a document without a markets array.
var errNoMarkets = errors.New("document has no markets array")

// decodeSnapshot parses a stored document. The markets array is required;
// markets without an id take their list position and missing collections
// default to empty.
func decodeSnapshot(raw []byte) (*domain.Snapshot, error) {
	var doc struct {
		Markets json.RawMessage `json:"markets"`
		NextID  *int            `json:"nextId"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if len(doc.Markets) == 0 || string(doc.Markets) == "null" {
		return nil, errNoMarkets
	}
	var markets []json.RawMessage
	if err := json.Unmarshal(doc.Markets, &markets); err != nil {
		return nil, fmt.Errorf("markets: %w", err)
	}

	s := &domain.Snapshot{Markets: make([]domain.Market, 0, len(markets))}
	for i, rm := range markets {
		var probe struct {
			ID *int `json:"id"`
		}
		if err := json.Unmarshal(rm, &probe); err != nil {
			return nil, fmt.Errorf("market %d: %w", i, err)
		}
		var m domain.Market
		if err := json.Unmarshal(rm, &m); err != nil {
			return nil, fmt.Errorf("market %d: %w", i, err)
		}
		if probe.ID == nil {
			m.ID = i
		}
		s.Markets = append(s.Markets, m)
	}
	if doc.NextID != nil {
		s.NextID = *doc.NextID
	}
	s.Normalize()
	return s, nil
}
