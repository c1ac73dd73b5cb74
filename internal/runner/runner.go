package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pkg/profile"

	"github.com/tzhu0704/s3warmup/internal/executor"
	"github.com/tzhu0704/s3warmup/internal/inventory"
	"github.com/tzhu0704/s3warmup/internal/ledger"
	"github.com/tzhu0704/s3warmup/internal/plan"
	"github.com/tzhu0704/s3warmup/internal/s3client"
	"github.com/tzhu0704/s3warmup/internal/stat"
	"github.com/tzhu0704/s3warmup/internal/verify"
)

type Config struct {
	BucketName       string `json:"bucket"`
	SourcePrefix     string `json:"sourcePrefix"`
	TargetRootPrefix string `json:"targetRootPrefix"`
	PrefixCount      int    `json:"prefixCount"`
	Concurrency      int    `json:"concurrency"`
	ReportInterval   int    `json:"reportInterval"`
	ChunkSize        int    `json:"chunkSize"`
	DeleteSource     bool   `json:"deleteSource"`
	AnalyzeOnly      bool   `json:"analyzeOnly"`
	LedgerBasePath   string `json:"ledgerBasePath"`
	Endpoint         string `json:"endpoint"`
	CACertFileName   string `json:"caCertFileName"`
	Profiler         bool   `json:"profiler"`
}

// StoreClient is the store surface the runner needs. *s3client.S3Client
// implements it.
type StoreClient interface {
	HeadBucket(ctx context.Context, bucketName string) error
	ListObjects(ctx context.Context, bucketName, prefix string) ([]s3client.Object, error)
	CopyObject(ctx context.Context, bucketName, srcKey, dstKey string) error
	DeleteObject(ctx context.Context, bucketName, key string) error
}

type Runner struct {
	config *Config
	client StoreClient
}

func NewRunner(config *Config) *Runner {
	return &Runner{
		config: config,
		client: s3client.NewS3Client(config.Endpoint, config.CACertFileName),
	}
}

func NewRunnerWithClient(config *Config, client StoreClient) *Runner {
	return &Runner{
		config: config,
		client: client,
	}
}

// Run executes the whole rebalance: list, plan, transfer, aggregate and
// verify. Per-object transfer failures never fail the run; only listing
// and planning errors do.
func (r *Runner) Run(ctx context.Context) error {
	if r.config.Profiler {
		defer profile.Start(profile.ProfilePath(".")).Stop()
	}

	err := r.client.HeadBucket(ctx, r.config.BucketName)
	if err != nil {
		return fmt.Errorf("failed to access bucket %q: %w", r.config.BucketName, err)
	}

	records, err := inventory.List(ctx, r.client, r.config.BucketName, r.config.SourcePrefix)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		slog.Info("No objects found under the source prefix. Nothing to do.",
			"bucket", r.config.BucketName, "sourcePrefix", r.config.SourcePrefix)
		return nil
	}

	prefixCount, err := plan.ResolvePrefixCount(len(records), r.config.PrefixCount)
	if err != nil {
		return err
	}
	slog.Info("Inventory analysis.",
		slog.Group("analysis", "objectCount", len(records),
			"totalBytes", inventory.TotalSize(records),
			"prefixCount", prefixCount,
		),
	)
	if r.config.AnalyzeOnly {
		return nil
	}

	p, err := plan.Build(records, prefixCount, r.config.TargetRootPrefix, r.config.SourcePrefix)
	if err != nil {
		return err
	}

	var recorder stat.Recorder
	var ledgerWriter *ledger.Writer
	if r.config.LedgerBasePath != "" {
		ledgerWriter, err = ledger.NewWriter(r.config.LedgerBasePath)
		if err != nil {
			return fmt.Errorf("failed to open the result ledger: %w", err)
		}
		defer ledgerWriter.Close()
		recorder = ledgerWriter
	}

	slog.Info("Transfer start.",
		"entries", len(p.Entries), "concurrency", r.config.Concurrency,
		"deleteSource", r.config.DeleteSource)
	outcomes := executor.Execute(ctx, r.client, r.config.BucketName, p, executor.Options{
		Concurrency:  r.config.Concurrency,
		DeleteSource: r.config.DeleteSource,
		ChunkSize:    r.config.ChunkSize,
	})
	agg := stat.NewAggregator(len(p.Entries), r.config.ReportInterval, recorder)
	agg.Observe(outcomes)
	slog.Info("Transfer finished.")
	agg.Report()

	if ctx.Err() != nil {
		slog.Warn("Run was canceled. Skipping verification.")
		return nil
	}

	report, err := verify.Run(ctx, r.client, r.config.BucketName, r.config.TargetRootPrefix)
	if err != nil {
		// Verification problems are warnings, never run failures.
		slog.Warn("Verification failed.", "err", err)
		return nil
	}
	report.Log()
	return nil
}
