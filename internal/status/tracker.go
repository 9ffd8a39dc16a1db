package status

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"api-test-engine/internal/logger"
	"api-test-engine/internal/types"
)

// ErrNotFound is returned for endpoints the tracker has never seen
var ErrNotFound = errors.New("endpoint not tracked")

// Persister stores verdicts outside the process. Implementations must be
// safe for concurrent use.
type Persister interface {
	Save(ctx context.Context, v types.EndpointVerdict) error
	Delete(ctx context.Context, endpointID string) error
}

// entry holds one endpoint's verdict. Writers serialize on mu; readers load
// the pointer without locking and always see a complete verdict.
type entry struct {
	mu      sync.Mutex
	verdict atomic.Pointer[types.EndpointVerdict]
	evicted bool
}

// Tracker maps endpoint ids to their last applied verdict
type Tracker struct {
	mu        sync.RWMutex
	entries   map[string]*entry
	persister Persister
	log       *logger.Logger
}

// NewTracker creates an empty tracker. persister may be nil.
func NewTracker(persister Persister, log *logger.Logger) *Tracker {
	return &Tracker{
		entries:   make(map[string]*entry),
		persister: persister,
		log:       log.Subsystem("status"),
	}
}

func (t *Tracker) lookup(id string) (*entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[id]
	return e, ok
}

func (t *Tracker) getOrCreate(id string) *entry {
	if e, ok := t.lookup(id); ok {
		return e
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[id]; ok {
		return e
	}
	e := &entry{}
	v := types.NewVerdict(id)
	e.verdict.Store(&v)
	t.entries[id] = e
	return e
}

// Register makes sure an endpoint is tracked, creating a not_tested entry on
// first sight, and returns its current verdict.
func (t *Tracker) Register(endpointID string) types.EndpointVerdict {
	return t.getOrCreate(endpointID).verdict.Load().Clone()
}

// Get returns a copy of the current verdict for an endpoint
func (t *Tracker) Get(endpointID string) (types.EndpointVerdict, error) {
	e, ok := t.lookup(endpointID)
	if !ok {
		return types.EndpointVerdict{}, fmt.Errorf("%w: %s", ErrNotFound, endpointID)
	}
	return e.verdict.Load().Clone(), nil
}

// Apply replaces the endpoint's verdict unless it comes from a batch
// submitted before the one already stored, in which case it is discarded
// and applied is false. A persistence failure is returned after the
// in-memory verdict has been replaced.
func (t *Tracker) Apply(ctx context.Context, v types.EndpointVerdict) (applied bool, err error) {
	for {
		e := t.getOrCreate(v.EndpointID)
		e.mu.Lock()
		if e.evicted {
			// raced with Evict; start over with a fresh entry
			e.mu.Unlock()
			continue
		}

		current := e.verdict.Load()
		if v.SubmittedAt.Before(current.SubmittedAt) {
			e.mu.Unlock()
			t.log.Info("stale batch discarded", "endpoint", v.EndpointID,
				"submitted_at", v.SubmittedAt, "current_submitted_at", current.SubmittedAt)
			return false, nil
		}

		stored := v.Clone()
		e.verdict.Store(&stored)

		if t.persister != nil {
			err = t.persister.Save(ctx, stored)
		}
		e.mu.Unlock()

		if err != nil {
			t.log.Warn("failed to persist verdict", "endpoint", v.EndpointID, "error", err)
			return true, fmt.Errorf("failed to persist verdict for %s: %w", v.EndpointID, err)
		}
		return true, nil
	}
}

// Evict removes an endpoint's entry. Only the catalog's owner calls this
// when the endpoint itself is deleted.
func (t *Tracker) Evict(ctx context.Context, endpointID string) error {
	t.mu.Lock()
	e, ok := t.entries[endpointID]
	delete(t.entries, endpointID)
	t.mu.Unlock()

	if ok {
		e.mu.Lock()
		e.evicted = true
		e.mu.Unlock()
	}

	if t.persister != nil {
		if err := t.persister.Delete(ctx, endpointID); err != nil {
			return fmt.Errorf("failed to delete stored verdict for %s: %w", endpointID, err)
		}
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, endpointID)
	}
	t.log.Info("endpoint evicted", "endpoint", endpointID)
	return nil
}

// All returns every tracked verdict ordered by endpoint id
func (t *Tracker) All() []types.EndpointVerdict {
	t.mu.RLock()
	out := make([]types.EndpointVerdict, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.verdict.Load().Clone())
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].EndpointID < out[j].EndpointID })
	return out
}

// Restore seeds the tracker with previously persisted verdicts. A restored
// verdict never replaces a newer one already in memory.
func (t *Tracker) Restore(verdicts []types.EndpointVerdict) {
	for _, v := range verdicts {
		e := t.getOrCreate(v.EndpointID)
		e.mu.Lock()
		current := e.verdict.Load()
		if !v.SubmittedAt.Before(current.SubmittedAt) {
			restored := v.Clone()
			e.verdict.Store(&restored)
		}
		e.mu.Unlock()
	}
	t.log.Debug("verdicts restored", "count", len(verdicts))
}
