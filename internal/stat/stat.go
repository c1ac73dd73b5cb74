package stat

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tzhu0704/s3warmup/internal/executor"
)

// RunStats holds the counters for one run. It has a single writer, the
// aggregator, for the whole run.
type RunStats struct {
	Succeeded      uint64
	Failed         uint64
	StartTime      time.Time
	LastUpdateTime time.Time
}

func (s RunStats) Processed() uint64 {
	return s.Succeeded + s.Failed
}

// Recorder persists one outcome. Implemented by the ledger writer.
type Recorder interface {
	Record(o executor.Outcome) error
}

// Aggregator is the single consumer of the outcome stream. Every
// outcome is counted exactly once; succeeded+failed grows by one per
// observed outcome and equals the plan's entry count at stream end.
type Aggregator struct {
	total          int
	reportInterval int
	recorder       Recorder
	stats          RunStats
}

func NewAggregator(total, reportInterval int, recorder Recorder) *Aggregator {
	return &Aggregator{
		total:          total,
		reportInterval: reportInterval,
		recorder:       recorder,
	}
}

// Observe consumes the outcome stream until it is closed and returns
// the final counters. A progress line is emitted every reportInterval
// outcomes and once at stream end.
func (a *Aggregator) Observe(outcomes <-chan executor.Outcome) RunStats {
	a.stats.StartTime = time.Now()
	a.stats.LastUpdateTime = a.stats.StartTime
	for o := range outcomes {
		if o.Phase.Succeeded() {
			a.stats.Succeeded++
		} else {
			a.stats.Failed++
			slog.Debug("Transfer failed.",
				"phase", o.Phase.String(), "sourceKey", o.Entry.SourceKey, "err", o.Err)
		}
		a.stats.LastUpdateTime = time.Now()
		if a.recorder != nil {
			err := a.recorder.Record(o)
			if err != nil {
				slog.Warn("Failed to write a ledger record.",
					"sourceKey", o.Entry.SourceKey, "err", err)
			}
		}
		if a.reportInterval > 0 && a.stats.Processed()%uint64(a.reportInterval) == 0 {
			a.reportProgress()
		}
	}
	a.reportProgress()
	return a.stats
}

func (a *Aggregator) reportProgress() {
	processed := a.stats.Processed()
	var percent float64
	if a.total > 0 {
		percent = float64(processed) * 100 / float64(a.total)
	}
	elapsed := a.stats.LastUpdateTime.Sub(a.stats.StartTime)
	var throughput float64
	if elapsed > 0 {
		throughput = float64(processed) / elapsed.Seconds()
	}
	slog.Info("Progress report.",
		slog.Group("report", "processed", processed,
			"total", a.total,
			"percent", fmt.Sprintf("%.1f", percent),
			"objectsPerSec", fmt.Sprintf("%.1f", throughput),
			"succeeded", a.stats.Succeeded,
			"failed", a.stats.Failed,
		),
	)
}

// Report emits the final statistics line for the run.
func (a *Aggregator) Report() {
	slog.Info("Statistics report.",
		slog.Group("report", "total", a.total,
			"succeeded", a.stats.Succeeded,
			"failed", a.stats.Failed,
			"elapsed", a.stats.LastUpdateTime.Sub(a.stats.StartTime).String(),
		),
	)
}
