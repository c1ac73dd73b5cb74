// Package verify measures the resulting distribution directly from the
// store, independently of the executor's in-memory outcomes.
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/tzhu0704/s3warmup/internal/s3client"
)

type PrefixStats struct {
	Prefix      string
	ObjectCount uint64
}

type Report struct {
	Stats               []PrefixStats
	ImbalanceRatio      float64
	ImbalancePercentage float64
	// Insufficient is set when fewer than 2 prefixes were found and
	// the imbalance metrics are meaningless.
	Insufficient bool
}

// Lister is the subset of the store client needed for verification.
type Lister interface {
	ListObjects(ctx context.Context, bucketName, prefix string) ([]s3client.Object, error)
}

// Run re-lists the target root prefix, counts objects per immediate
// sub-prefix, and computes the imbalance metrics. Keys directly under
// the root with no sub-prefix segment are ignored.
func Run(ctx context.Context, lister Lister, bucketName, targetRoot string) (*Report, error) {
	root := strings.TrimSuffix(targetRoot, "/") + "/"
	objects, err := lister.ListObjects(ctx, bucketName, root)
	if err != nil {
		return nil, fmt.Errorf("failed to list bucket %q prefix %q: %w", bucketName, root, err)
	}

	counts := map[string]uint64{}
	for _, obj := range objects {
		rest := strings.TrimPrefix(obj.Key, root)
		sep := strings.Index(rest, "/")
		if sep < 0 {
			continue
		}
		counts[rest[:sep]]++
	}

	report := &Report{
		Stats: make([]PrefixStats, 0, len(counts)),
	}
	for prefix, count := range counts {
		report.Stats = append(report.Stats, PrefixStats{
			Prefix:      prefix,
			ObjectCount: count,
		})
	}
	sort.Slice(report.Stats, func(i, j int) bool {
		return report.Stats[i].Prefix < report.Stats[j].Prefix
	})

	if len(report.Stats) < 2 {
		report.Insufficient = true
		return report, nil
	}

	minCount, maxCount := report.Stats[0].ObjectCount, report.Stats[0].ObjectCount
	for _, ps := range report.Stats[1:] {
		if ps.ObjectCount < minCount {
			minCount = ps.ObjectCount
		}
		if ps.ObjectCount > maxCount {
			maxCount = ps.ObjectCount
		}
	}
	// Listed prefixes always hold at least one object, so minCount and
	// maxCount are non-zero here.
	report.ImbalanceRatio = float64(maxCount) / float64(minCount)
	report.ImbalancePercentage = float64(maxCount-minCount) * 100 / float64(maxCount)
	return report, nil
}

// Log emits the human-readable verification report.
func (r *Report) Log() {
	for _, ps := range r.Stats {
		slog.Info("Verified prefix.", "prefix", ps.Prefix, "objectCount", ps.ObjectCount)
	}
	if r.Insufficient {
		slog.Warn("Fewer than 2 target prefixes were found. Imbalance metrics are not available.",
			"prefixCount", len(r.Stats))
		return
	}
	slog.Info("Verification report.",
		slog.Group("report", "prefixCount", len(r.Stats),
			"imbalanceRatio", fmt.Sprintf("%.3f", r.ImbalanceRatio),
			"imbalancePercentage", fmt.Sprintf("%.1f", r.ImbalancePercentage),
		),
	)
}
