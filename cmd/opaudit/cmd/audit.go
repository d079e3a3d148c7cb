package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/opaudit/opaudit/pkg/audit"
	"github.com/opaudit/opaudit/pkg/config"
	"github.com/opaudit/opaudit/pkg/report"
	"github.com/opaudit/opaudit/pkg/telemetry"
)

var (
	auditOutput      string
	auditAllVaults   bool
	auditConcurrency int
	auditMetricsFile string
	auditS3Bucket    string
	auditS3Region    string
	auditS3Endpoint  string
	auditS3Prefix    string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Resolve vault access and write the CSV report",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		logger := newLogger()
		metrics := telemetry.NewPrometheusMetrics()

		client := newClient(logger, metrics)
		client.AllVaults = auditAllVaults

		auditor := audit.New(client, logger, metrics)
		auditor.Concurrency = auditConcurrency

		// Progress goes to stderr so stdout stays clean for piped output.
		// On a TTY the line is rewritten in place.
		interactive := term.IsTerminal(int(os.Stderr.Fd()))
		auditor.Progress = func(done, total int) {
			if interactive {
				fmt.Fprintf(os.Stderr, "\rResolved %d of %d vaults", done, total)
				if done == total {
					fmt.Fprintln(os.Stderr)
				}
			}
		}

		rows, summary, err := auditor.Run(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Audit failed: %v\n", err)
			os.Exit(1)
		}

		var buf bytes.Buffer
		if err := report.WriteCSV(&buf, rows); err != nil {
			fmt.Fprintf(os.Stderr, "Error serializing report: %v\n", err)
			os.Exit(1)
		}

		dir := filepath.Dir(auditOutput)
		store, err := report.NewLocalStore(dir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error preparing report directory: %v\n", err)
			os.Exit(1)
		}
		key := filepath.Base(auditOutput)
		if err := store.Put(ctx, key, bytes.NewReader(buf.Bytes())); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing report %s: %v\n", auditOutput, err)
			os.Exit(1)
		}

		if auditS3Bucket != "" {
			s3store, err := report.NewS3Store(ctx, report.S3Options{
				Endpoint: auditS3Endpoint,
				Region:   auditS3Region,
				Bucket:   auditS3Bucket,
				Prefix:   auditS3Prefix,
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error configuring S3 publication: %v\n", err)
				os.Exit(1)
			}
			if err := s3store.Put(ctx, key, bytes.NewReader(buf.Bytes())); err != nil {
				fmt.Fprintf(os.Stderr, "Error publishing report to S3: %v\n", err)
				os.Exit(1)
			}
		}

		if auditMetricsFile != "" {
			if err := metrics.WriteTextfile(auditMetricsFile); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Audited %d vaults, %d groups: %d rows written to %s\n",
			summary.Vaults, summary.Groups, summary.Rows, auditOutput)
	},
}

func init() {
	defaults := config.Load()
	auditCmd.Flags().StringVarP(&auditOutput, "output", "o", defaults.Output, "Report file path")
	auditCmd.Flags().BoolVar(&auditAllVaults, "all-vaults", false, "Audit every visible vault, not just manageable ones")
	auditCmd.Flags().IntVar(&auditConcurrency, "concurrency", defaults.Concurrency, "Max concurrent vault/group fetches (0 = unbounded)")
	auditCmd.Flags().StringVar(&auditMetricsFile, "metrics-file", defaults.MetricsFile, "Write run metrics in textfile-collector format")
	auditCmd.Flags().StringVar(&auditS3Bucket, "s3-bucket", defaults.S3Bucket, "Publish the report to this S3 bucket")
	auditCmd.Flags().StringVar(&auditS3Region, "s3-region", defaults.S3Region, "S3 region")
	auditCmd.Flags().StringVar(&auditS3Endpoint, "s3-endpoint", defaults.S3Endpoint, "Custom S3 endpoint (MinIO compatible)")
	auditCmd.Flags().StringVar(&auditS3Prefix, "s3-prefix", defaults.S3Prefix, "Key prefix for published reports")
	rootCmd.AddCommand(auditCmd)
}
