package executor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tzhu0704/s3warmup/internal/plan"
)

type Phase int

const (
	Copied Phase = iota
	CopyFailed
	Deleted
	DeleteFailed
)

func (p Phase) String() string {
	switch p {
	case Copied:
		return "Copied"
	case CopyFailed:
		return "CopyFailed"
	case Deleted:
		return "Deleted"
	case DeleteFailed:
		return "DeleteFailed"
	default:
		return "Unknown"
	}
}

// Succeeded reports whether the phase counts as a success. DeleteFailed
// does not: the object is left at both the source and the target and
// must be reconciled manually.
func (p Phase) Succeeded() bool {
	return p == Copied || p == Deleted
}

// Outcome is the result of one transfer attempt. Exactly one outcome is
// emitted per plan entry.
type Outcome struct {
	Entry plan.Entry
	Phase Phase
	Err   error
}

// Store is the subset of the store client needed to execute a plan.
type Store interface {
	CopyObject(ctx context.Context, bucketName, srcKey, dstKey string) error
	DeleteObject(ctx context.Context, bucketName, key string) error
}

type Options struct {
	Concurrency  int
	DeleteSource bool
	// ChunkSize bounds how many entries are dispatched before waiting
	// for the workers to drain. It changes pacing only, not outcomes.
	ChunkSize int
}

const (
	defaultConcurrency = 32
	defaultChunkSize   = 100000
)

type executor struct {
	store      Store
	bucketName string
	opts       Options
}

// Execute runs the plan with a bounded worker pool and returns the
// outcome stream. Entries are dispatched in plan order but complete in
// arbitrary order. The channel is closed once every dispatched entry
// has an outcome. Canceling the context stops dispatching new entries;
// in-flight entries still emit their outcome.
func Execute(ctx context.Context, store Store, bucketName string, p *plan.Plan, opts Options) <-chan Outcome {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	e := &executor{
		store:      store,
		bucketName: bucketName,
		opts:       opts,
	}

	outcomes := make(chan Outcome, opts.Concurrency)
	go func() {
		defer close(outcomes)
		entries := p.Entries
		for start := 0; start < len(entries); start += opts.ChunkSize {
			end := start + opts.ChunkSize
			if end > len(entries) {
				end = len(entries)
			}
			e.runChunk(ctx, entries[start:end], outcomes)
			if ctx.Err() != nil {
				slog.Warn("Transfer dispatch was canceled.",
					"chunkEnd", end, "total", len(entries))
				return
			}
		}
	}()
	return outcomes
}

func (e *executor) runChunk(ctx context.Context, entries []plan.Entry, outcomes chan<- Outcome) {
	jobs := make(chan plan.Entry)
	wg := &sync.WaitGroup{}
	for i := 0; i < e.opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range jobs {
				outcomes <- e.transfer(ctx, entry)
			}
		}()
	}

dispatch:
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- entry:
		}
	}
	close(jobs)
	wg.Wait()
}

// transfer copies one object and optionally deletes the source. A
// failed copy is never retried and never aborts the run. The delete of
// a successfully copied object runs on the background context so that
// cancellation cannot strand an entry between the copy and its paired
// delete.
func (e *executor) transfer(ctx context.Context, entry plan.Entry) Outcome {
	err := e.store.CopyObject(ctx, e.bucketName, entry.SourceKey, entry.TargetKey)
	if err != nil {
		return Outcome{Entry: entry, Phase: CopyFailed, Err: err}
	}
	if !e.opts.DeleteSource {
		return Outcome{Entry: entry, Phase: Copied}
	}
	err = e.store.DeleteObject(context.Background(), e.bucketName, entry.SourceKey)
	if err != nil {
		// The object now exists at both locations.
		return Outcome{Entry: entry, Phase: DeleteFailed, Err: err}
	}
	return Outcome{Entry: entry, Phase: Deleted}
}
