package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tzhu0704/s3warmup/internal/logger"
	"github.com/tzhu0704/s3warmup/internal/s3client"
	"github.com/tzhu0704/s3warmup/internal/verify"
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the distribution under an existing target prefix",
	Long: `Verify the distribution under an existing target prefix.
The target root prefix is re-listed and the per-prefix object counts
and the imbalance metrics are reported. Nothing is modified.`,
	Run: func(cmd *cobra.Command, args []string) {
		err := logger.SetLogFormat(logFormat)
		if err != nil {
			log.Fatal(err)
		}
		if bucketName == "" {
			log.Fatal("The bucket must be specified.")
		}
		if caCertFileName != "" {
			_, err = os.Stat(caCertFileName)
			if err != nil {
				log.Fatal(err)
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()
		client := s3client.NewS3Client(endpoint, caCertFileName)
		report, err := verify.Run(ctx, client, bucketName, targetPrefix)
		if err != nil {
			slog.Error("Verification failed.", "err", err)
			if ctx.Err() == context.Canceled {
				return
			}
			os.Exit(1)
		}
		report.Log()
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	defineCommonFlags(verifyCmd)
	verifyCmd.Flags().StringVar(&targetPrefix, "target_prefix", "balance_prefix", "The root prefix to verify.")
}
