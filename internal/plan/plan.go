// Package plan computes the assignment of source objects to target
// prefixes. Planning is pure: the plan depends only on the inventory
// order, the resolved prefix count and the prefix parameters. Note that
// the store does not contractually guarantee a stable listing order
// across runs, so determinism holds per inventory, not per bucket.
package plan

import (
	"fmt"
	"strings"

	"github.com/tzhu0704/s3warmup/internal/inventory"
)

// Entry maps one source object to its target key.
type Entry struct {
	SourceKey string
	TargetKey string
}

type Plan struct {
	PrefixCount    int
	TargetPrefixes []string
	Entries        []Entry
}

// ResolvePrefixCount returns the number of target prefixes to use.
// A requested value of 0 selects one from the inventory size.
func ResolvePrefixCount(numObj, requested int) (int, error) {
	if requested < 0 {
		return 0, fmt.Errorf("prefix count must not be negative: %d", requested)
	}
	if requested > 0 {
		return requested, nil
	}
	switch {
	case numObj < 10000:
		return 4, nil
	case numObj < 100000:
		return 8, nil
	case numObj < 1000000:
		return 16, nil
	default:
		return 32, nil
	}
}

// relativeName strips the source prefix and a single leading separator
// from the key. Keys outside the source prefix are kept as they are.
func relativeName(key, sourcePrefix string) string {
	if !strings.HasPrefix(key, sourcePrefix) {
		return key
	}
	name := key[len(sourcePrefix):]
	name = strings.TrimPrefix(name, "/")
	return name
}

// Build produces the full distribution plan for the inventory. Entry i
// is assigned to target prefix i mod prefixCount, so per-prefix counts
// never differ by more than one.
func Build(records []inventory.Record, requestedPrefixCount int, targetRoot, sourcePrefix string) (*Plan, error) {
	targetRoot = strings.TrimSuffix(targetRoot, "/")
	if targetRoot == "" || strings.HasPrefix(targetRoot, "/") {
		return nil, fmt.Errorf("malformed target root prefix: %q", targetRoot)
	}

	prefixCount, err := ResolvePrefixCount(len(records), requestedPrefixCount)
	if err != nil {
		return nil, err
	}

	targetPrefixes := make([]string, prefixCount)
	for i := range targetPrefixes {
		targetPrefixes[i] = fmt.Sprintf("%04d", i)
	}

	entries := make([]Entry, len(records))
	for i, r := range records {
		targetPrefix := targetPrefixes[i%prefixCount]
		entries[i] = Entry{
			SourceKey: r.Key,
			TargetKey: targetRoot + "/" + targetPrefix + "/" + relativeName(r.Key, sourcePrefix),
		}
	}

	return &Plan{
		PrefixCount:    prefixCount,
		TargetPrefixes: targetPrefixes,
		Entries:        entries,
	}, nil
}
