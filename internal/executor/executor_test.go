package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tzhu0704/s3warmup/internal/plan"
)

type fakeStore struct {
	mu         sync.Mutex
	objects    map[string]struct{}
	copyErrs   map[string]error
	deleteErrs map[string]error

	inFlight    int32
	maxInFlight int32
	copyDelay   time.Duration
}

func newFakeStore(keys ...string) *fakeStore {
	s := &fakeStore{
		objects:    make(map[string]struct{}),
		copyErrs:   make(map[string]error),
		deleteErrs: make(map[string]error),
	}
	for _, k := range keys {
		s.objects[k] = struct{}{}
	}
	return s
}

func (s *fakeStore) CopyObject(ctx context.Context, bucketName, srcKey, dstKey string) error {
	cur := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		prev := atomic.LoadInt32(&s.maxInFlight)
		if cur <= prev || atomic.CompareAndSwapInt32(&s.maxInFlight, prev, cur) {
			break
		}
	}
	if s.copyDelay > 0 {
		time.Sleep(s.copyDelay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.copyErrs[srcKey]; err != nil {
		return err
	}
	if _, ok := s.objects[srcKey]; !ok {
		return fmt.Errorf("no such key: %s", srcKey)
	}
	s.objects[dstKey] = struct{}{}
	return nil
}

func (s *fakeStore) DeleteObject(ctx context.Context, bucketName, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.deleteErrs[key]; err != nil {
		return err
	}
	delete(s.objects, key)
	return nil
}

func (s *fakeStore) exists(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

func buildPlan(t *testing.T, store *fakeStore, n int) *plan.Plan {
	t.Helper()
	entries := make([]plan.Entry, n)
	for i := range entries {
		src := fmt.Sprintf("src/obj%04d", i)
		store.mu.Lock()
		store.objects[src] = struct{}{}
		store.mu.Unlock()
		entries[i] = plan.Entry{
			SourceKey: src,
			TargetKey: fmt.Sprintf("out/%04d/obj%04d", i%4, i),
		}
	}
	return &plan.Plan{
		PrefixCount:    4,
		TargetPrefixes: []string{"0000", "0001", "0002", "0003"},
		Entries:        entries,
	}
}

func collect(outcomes <-chan Outcome) []Outcome {
	result := make([]Outcome, 0)
	for o := range outcomes {
		result = append(result, o)
	}
	return result
}

func TestExecuteCopiesEveryEntryExactlyOnce(t *testing.T) {
	store := newFakeStore()
	p := buildPlan(t, store, 100)

	outcomes := collect(Execute(context.Background(), store, "bucket1", p, Options{
		Concurrency: 8,
	}))

	require.Len(t, outcomes, 100)
	seen := map[string]struct{}{}
	for _, o := range outcomes {
		assert.Equal(t, Copied, o.Phase)
		assert.NoError(t, o.Err)
		_, dup := seen[o.Entry.SourceKey]
		assert.False(t, dup, "duplicate outcome for %s", o.Entry.SourceKey)
		seen[o.Entry.SourceKey] = struct{}{}
		assert.True(t, store.exists(o.Entry.TargetKey))
		assert.True(t, store.exists(o.Entry.SourceKey), "source must be retained without delete")
	}
}

func TestExecuteDeleteSource(t *testing.T) {
	store := newFakeStore()
	p := buildPlan(t, store, 20)

	outcomes := collect(Execute(context.Background(), store, "bucket1", p, Options{
		Concurrency:  4,
		DeleteSource: true,
	}))

	require.Len(t, outcomes, 20)
	for _, o := range outcomes {
		assert.Equal(t, Deleted, o.Phase)
		assert.True(t, o.Phase.Succeeded())
		assert.True(t, store.exists(o.Entry.TargetKey))
		assert.False(t, store.exists(o.Entry.SourceKey))
	}
}

func TestExecuteCopyFailureDoesNotAbortRun(t *testing.T) {
	store := newFakeStore()
	p := buildPlan(t, store, 10)
	store.copyErrs["src/obj0003"] = errors.New("internal error")

	outcomes := collect(Execute(context.Background(), store, "bucket1", p, Options{
		Concurrency:  2,
		DeleteSource: true,
	}))

	require.Len(t, outcomes, 10)
	var failed []Outcome
	for _, o := range outcomes {
		if !o.Phase.Succeeded() {
			failed = append(failed, o)
		}
	}
	require.Len(t, failed, 1)
	assert.Equal(t, CopyFailed, failed[0].Phase)
	assert.Equal(t, "src/obj0003", failed[0].Entry.SourceKey)
	assert.Error(t, failed[0].Err)
	// A failed copy must not trigger a delete.
	assert.True(t, store.exists("src/obj0003"))
	assert.False(t, store.exists(failed[0].Entry.TargetKey))
}

func TestExecuteDeleteFailureLeavesResidual(t *testing.T) {
	store := newFakeStore()
	p := buildPlan(t, store, 5)
	store.deleteErrs["src/obj0002"] = errors.New("access denied")

	outcomes := collect(Execute(context.Background(), store, "bucket1", p, Options{
		Concurrency:  2,
		DeleteSource: true,
	}))

	require.Len(t, outcomes, 5)
	for _, o := range outcomes {
		if o.Entry.SourceKey != "src/obj0002" {
			assert.Equal(t, Deleted, o.Phase)
			continue
		}
		assert.Equal(t, DeleteFailed, o.Phase)
		assert.False(t, o.Phase.Succeeded())
		// The object remains at both locations.
		assert.True(t, store.exists(o.Entry.SourceKey))
		assert.True(t, store.exists(o.Entry.TargetKey))
	}
}

func TestExecuteBoundsConcurrency(t *testing.T) {
	store := newFakeStore()
	store.copyDelay = time.Millisecond
	p := buildPlan(t, store, 64)

	outcomes := collect(Execute(context.Background(), store, "bucket1", p, Options{
		Concurrency: 4,
	}))

	require.Len(t, outcomes, 64)
	assert.LessOrEqual(t, atomic.LoadInt32(&store.maxInFlight), int32(4))
}

func TestExecuteChunkingPreservesOutcomes(t *testing.T) {
	store := newFakeStore()
	p := buildPlan(t, store, 50)

	outcomes := collect(Execute(context.Background(), store, "bucket1", p, Options{
		Concurrency: 4,
		ChunkSize:   7,
	}))

	require.Len(t, outcomes, 50)
	seen := map[string]struct{}{}
	for _, o := range outcomes {
		assert.Equal(t, Copied, o.Phase)
		seen[o.Entry.SourceKey] = struct{}{}
	}
	assert.Len(t, seen, 50)
}

func TestExecuteCancellationStopsDispatch(t *testing.T) {
	store := newFakeStore()
	store.copyDelay = 2 * time.Millisecond
	p := buildPlan(t, store, 1000)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	outcomeCh := Execute(ctx, store, "bucket1", p, Options{
		Concurrency: 2,
	})

	outcomes := make([]Outcome, 0)
	for o := range outcomeCh {
		outcomes = append(outcomes, o)
		if len(outcomes) == 10 {
			cancel()
		}
	}
	// Dispatch stopped early, in-flight entries still reported.
	assert.GreaterOrEqual(t, len(outcomes), 10)
	assert.Less(t, len(outcomes), 1000)

	seen := map[string]struct{}{}
	for _, o := range outcomes {
		_, dup := seen[o.Entry.SourceKey]
		assert.False(t, dup)
		seen[o.Entry.SourceKey] = struct{}{}
	}
}
