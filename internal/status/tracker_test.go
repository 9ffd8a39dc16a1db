package status

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"api-test-engine/internal/logger"
	"api-test-engine/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPersister struct {
	mu      sync.Mutex
	saved   map[string]types.EndpointVerdict
	deleted []string
	failing bool
}

func newMemPersister() *memPersister {
	return &memPersister{saved: make(map[string]types.EndpointVerdict)}
}

func (m *memPersister) Save(_ context.Context, v types.EndpointVerdict) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("disk full")
	}
	m.saved[v.EndpointID] = v
	return nil
}

func (m *memPersister) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func verdict(id string, status types.VerdictStatus, submitted time.Time) types.EndpointVerdict {
	at := submitted.Add(time.Second)
	return types.EndpointVerdict{
		EndpointID:   id,
		Status:       status,
		LastTestedAt: &at,
		SubmittedAt:  submitted,
		Outcomes:     []types.Outcome{{TestCaseID: "c1", Passed: status == types.VerdictSuccess}},
	}
}

func TestRegisterCreatesNotTested(t *testing.T) {
	tr := NewTracker(nil, logger.Discard())

	_, err := tr.Get("get-users")
	assert.ErrorIs(t, err, ErrNotFound)

	v := tr.Register("get-users")
	assert.Equal(t, types.VerdictNotTested, v.Status)
	assert.Nil(t, v.LastTestedAt)

	got, err := tr.Get("get-users")
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

func TestApplyReplacesVerdict(t *testing.T) {
	p := newMemPersister()
	tr := NewTracker(p, logger.Discard())
	t0 := time.Now()

	applied, err := tr.Apply(context.Background(), verdict("e1", types.VerdictFailed, t0))
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = tr.Apply(context.Background(), verdict("e1", types.VerdictSuccess, t0.Add(time.Minute)))
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := tr.Get("e1")
	require.NoError(t, err)
	assert.Equal(t, types.VerdictSuccess, got.Status)
	assert.Equal(t, types.VerdictSuccess, p.saved["e1"].Status)
}

func TestApplyDiscardsStaleBatch(t *testing.T) {
	tr := NewTracker(nil, logger.Discard())
	t1 := time.Now()
	t2 := t1.Add(time.Second)

	// B (newer) lands first, then A (older)
	applied, err := tr.Apply(context.Background(), verdict("e1", types.VerdictSuccess, t2))
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = tr.Apply(context.Background(), verdict("e1", types.VerdictFailed, t1))
	require.NoError(t, err)
	assert.False(t, applied)

	got, _ := tr.Get("e1")
	assert.Equal(t, types.VerdictSuccess, got.Status)
	assert.True(t, got.SubmittedAt.Equal(t2))
}

func TestGetReturnsCopy(t *testing.T) {
	tr := NewTracker(nil, logger.Discard())
	_, err := tr.Apply(context.Background(), verdict("e1", types.VerdictSuccess, time.Now()))
	require.NoError(t, err)

	got, _ := tr.Get("e1")
	got.Outcomes[0].TestCaseID = "mutated"
	*got.LastTestedAt = time.Time{}

	again, _ := tr.Get("e1")
	assert.Equal(t, "c1", again.Outcomes[0].TestCaseID)
	assert.False(t, again.LastTestedAt.IsZero())
}

func TestApplyReportsPersistFailure(t *testing.T) {
	p := newMemPersister()
	p.failing = true
	tr := NewTracker(p, logger.Discard())

	applied, err := tr.Apply(context.Background(), verdict("e1", types.VerdictSuccess, time.Now()))
	assert.True(t, applied)
	assert.Error(t, err)

	got, _ := tr.Get("e1")
	assert.Equal(t, types.VerdictSuccess, got.Status)
}

func TestEvict(t *testing.T) {
	p := newMemPersister()
	tr := NewTracker(p, logger.Discard())
	_, err := tr.Apply(context.Background(), verdict("e1", types.VerdictSuccess, time.Now()))
	require.NoError(t, err)

	require.NoError(t, tr.Evict(context.Background(), "e1"))
	_, err = tr.Get("e1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{"e1"}, p.deleted)
	assert.NotContains(t, p.saved, "e1")

	assert.ErrorIs(t, tr.Evict(context.Background(), "e1"), ErrNotFound)
}

func TestAllSortedAndRestore(t *testing.T) {
	tr := NewTracker(nil, logger.Discard())
	now := time.Now()
	tr.Register("b")
	_, err := tr.Apply(context.Background(), verdict("c", types.VerdictSuccess, now))
	require.NoError(t, err)

	tr.Restore([]types.EndpointVerdict{
		verdict("a", types.VerdictFailed, now.Add(-time.Hour)),
		verdict("c", types.VerdictFailed, now.Add(-time.Hour)),
	})

	all := tr.All()
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].EndpointID, all[1].EndpointID, all[2].EndpointID})
	assert.Equal(t, types.VerdictFailed, all[0].Status)
	assert.Equal(t, types.VerdictNotTested, all[1].Status)
	// restored verdict is older than the one in memory
	assert.Equal(t, types.VerdictSuccess, all[2].Status)
}

func TestConcurrentAppliesKeepNewest(t *testing.T) {
	tr := NewTracker(newMemPersister(), logger.Discard())
	base := time.Now()

	var wg sync.WaitGroup
	for e := 0; e < 4; e++ {
		id := fmt.Sprintf("endpoint-%d", e)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				status := types.VerdictFailed
				if i == 49 {
					status = types.VerdictSuccess
				}
				_, _ = tr.Apply(context.Background(), verdict(id, status, base.Add(time.Duration(i)*time.Millisecond)))
			}(i)
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = tr.Get(id)
			}()
		}
	}
	wg.Wait()

	for _, v := range tr.All() {
		assert.Equal(t, types.VerdictSuccess, v.Status, v.EndpointID)
		assert.True(t, v.SubmittedAt.Equal(base.Add(49*time.Millisecond)))
	}
	assert.Len(t, tr.All(), 4)
}
