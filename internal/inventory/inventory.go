package inventory

import (
	"context"
	"fmt"

	"github.com/tzhu0704/s3warmup/internal/s3client"
)

// Record is one listed source object. Records keep the order returned
// by the store listing.
type Record struct {
	Key  string
	Size int64
}

// Lister is the subset of the store client needed to take an inventory.
type Lister interface {
	ListObjects(ctx context.Context, bucketName, prefix string) ([]s3client.Object, error)
}

// List drives a full listing of the source prefix. A listing failure is
// fatal to the whole run; an empty result is not an error.
func List(ctx context.Context, lister Lister, bucketName, prefix string) ([]Record, error) {
	objects, err := lister.ListObjects(ctx, bucketName, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list bucket %q prefix %q: %w", bucketName, prefix, err)
	}
	records := make([]Record, len(objects))
	for i, obj := range objects {
		records[i] = Record{
			Key:  obj.Key,
			Size: obj.Size,
		}
	}
	return records, nil
}

// TotalSize sums the listed object sizes in bytes.
func TotalSize(records []Record) int64 {
	var total int64
	for _, r := range records {
		total += r.Size
	}
	return total
}
