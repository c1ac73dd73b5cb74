package cmd

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tzhu0704/s3warmup/internal/argparser"
	"github.com/tzhu0704/s3warmup/internal/logger"
	"github.com/tzhu0704/s3warmup/internal/runner"
)

var (
	bucketName        string
	sourcePrefix      string
	targetPrefix      string
	prefixCount       int
	concurrency       int
	reportIntervalStr string
	chunkSizeStr      string
	deleteSource      bool
	analyzeOnly       bool
	ledgerBasePath    string
	endpoint          string
	caCertFileName    string
	logFormat         string
	profiler          bool
	configFileName    string

	runnerConfig *runner.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "s3warmup",
	Short: "A prefix rebalancing tool for S3-compatible object storages",
	Long: `A prefix rebalancing tool for S3-compatible object storages.
s3warmup redistributes the objects under one prefix into a set of
sibling prefixes so that per-prefix object counts are evenly spread.`,
	Run: func(cmd *cobra.Command, args []string) {
		handleCommonFlags(cmd)
		runnerConfig.AnalyzeOnly = analyzeOnly
		runRebalance()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	defineCommonFlags(rootCmd)
	defineRunFlags(rootCmd)
	rootCmd.Flags().BoolVar(&analyzeOnly, "analyze", false, "Run the inventory analysis only. No object is copied or deleted.")
}

func runRebalance() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	r := runner.NewRunner(runnerConfig)
	err := r.Run(ctx)
	if err != nil {
		slog.Error("Run failed.", "err", err)
		if ctx.Err() == context.Canceled {
			return
		}
		os.Exit(1)
	}
}

func parseConfigFile() (*runner.Config, error) {
	file, err := os.Open(configFileName)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	configInJSON, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	fileConfig := &runner.Config{}
	err = json.Unmarshal(configInJSON, fileConfig)
	if err != nil {
		return nil, err
	}
	return fileConfig, nil
}

// mergeConfigFile fills in values from the config file for every flag
// the user did not set explicitly.
func mergeConfigFile(cmd *cobra.Command, fileConfig *runner.Config) {
	flags := cmd.Flags()
	if !flags.Changed("bucket") && fileConfig.BucketName != "" {
		runnerConfig.BucketName = fileConfig.BucketName
	}
	if !flags.Changed("source_prefix") && fileConfig.SourcePrefix != "" {
		runnerConfig.SourcePrefix = fileConfig.SourcePrefix
	}
	if !flags.Changed("target_prefix") && fileConfig.TargetRootPrefix != "" {
		runnerConfig.TargetRootPrefix = fileConfig.TargetRootPrefix
	}
	if !flags.Changed("prefix_count") && fileConfig.PrefixCount != 0 {
		runnerConfig.PrefixCount = fileConfig.PrefixCount
	}
	if !flags.Changed("concurrency") && fileConfig.Concurrency != 0 {
		runnerConfig.Concurrency = fileConfig.Concurrency
	}
	if !flags.Changed("report_interval") && fileConfig.ReportInterval != 0 {
		runnerConfig.ReportInterval = fileConfig.ReportInterval
	}
	if !flags.Changed("chunk_size") && fileConfig.ChunkSize != 0 {
		runnerConfig.ChunkSize = fileConfig.ChunkSize
	}
	if !flags.Changed("delete_source") && fileConfig.DeleteSource {
		runnerConfig.DeleteSource = true
	}
	if !flags.Changed("ledger") && fileConfig.LedgerBasePath != "" {
		runnerConfig.LedgerBasePath = fileConfig.LedgerBasePath
	}
	if !flags.Changed("endpoint") && fileConfig.Endpoint != "" {
		runnerConfig.Endpoint = fileConfig.Endpoint
	}
	if !flags.Changed("cacert") && fileConfig.CACertFileName != "" {
		runnerConfig.CACertFileName = fileConfig.CACertFileName
	}
}

func handleCommonFlags(cmd *cobra.Command) {
	err := logger.SetLogFormat(logFormat)
	if err != nil {
		log.Fatal(err)
	}

	reportInterval, err := argparser.ParseCount(reportIntervalStr)
	if err != nil {
		log.Fatal(err)
	}
	chunkSize, err := argparser.ParseCount(chunkSizeStr)
	if err != nil {
		log.Fatal(err)
	}

	runnerConfig = &runner.Config{
		BucketName:       bucketName,
		SourcePrefix:     sourcePrefix,
		TargetRootPrefix: targetPrefix,
		PrefixCount:      prefixCount,
		Concurrency:      concurrency,
		ReportInterval:   reportInterval,
		ChunkSize:        chunkSize,
		DeleteSource:     deleteSource,
		LedgerBasePath:   ledgerBasePath,
		Endpoint:         endpoint,
		CACertFileName:   caCertFileName,
		Profiler:         profiler,
	}

	if configFileName != "" {
		fileConfig, err := parseConfigFile()
		if err != nil {
			log.Fatal(err)
		}
		mergeConfigFile(cmd, fileConfig)
	}

	if caCertFileName != "" {
		// Check if a file with the name "caCertFileName" exists.
		_, err = os.Stat(caCertFileName)
		if err != nil {
			log.Fatal(err)
		}
	}

	if runnerConfig.BucketName == "" {
		log.Fatal("The bucket must be specified.")
	}
	if runnerConfig.SourcePrefix == "" {
		log.Fatal("The source prefix must be specified.")
	}
	if runnerConfig.TargetRootPrefix == "" {
		log.Fatal("The target prefix must not be empty.")
	}
	if runnerConfig.PrefixCount < 0 {
		log.Fatal("The prefix count must not be negative.")
	}
	if runnerConfig.Concurrency < 1 {
		log.Fatal("The concurrency must be larger than or equal to 1.")
	}
	if runnerConfig.SourcePrefix == runnerConfig.TargetRootPrefix {
		log.Fatal("The source prefix and the target prefix must differ.")
	}
}

func defineCommonFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&bucketName, "bucket", "", "The name of the bucket.")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "The endpoint URL and TCP port number. e.g. \"http://127.0.0.1:9000\"")
	cmd.Flags().StringVar(&caCertFileName, "cacert", "", "File name of CA certificate.")
	cmd.Flags().StringVar(&logFormat, "log_format", logger.Plane, `The log format. Either "plane" or "json".`)
}

func defineRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&sourcePrefix, "source_prefix", "", "The prefix to read the objects from.")
	cmd.Flags().StringVar(&targetPrefix, "target_prefix", "balance_prefix", "The root prefix under which the generated sub-prefixes are created.")
	cmd.Flags().IntVar(&prefixCount, "prefix_count", 0, "The number of target sub-prefixes. The value 0 means to select it from the object count.")
	cmd.Flags().IntVar(&concurrency, "concurrency", 32, "The number of objects transferred in parallel.")
	cmd.Flags().StringVar(&reportIntervalStr, "report_interval", "10k", `The number of processed objects between progress reports. e.g. "5000" or "10k"`)
	cmd.Flags().StringVar(&chunkSizeStr, "chunk_size", "100k", `The number of plan entries dispatched per chunk. e.g. "50k"`)
	cmd.Flags().BoolVar(&deleteSource, "delete_source", false, "Delete each source object after it was copied successfully.")
	cmd.Flags().StringVar(&ledgerBasePath, "ledger", "s3warmup-result", "Base file name of the result ledger. The empty value disables the ledger.")
	cmd.Flags().StringVar(&configFileName, "config", "", "Config file name in JSON format.")
	cmd.Flags().BoolVar(&profiler, "profiler", false, "Enable profiler.")
}
