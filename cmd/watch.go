// cmd/watch.go
package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/hindsight/internal/observability"
	"github.com/xkilldash9x/hindsight/internal/watcher"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var quiet time.Duration

	cmd := &cobra.Command{
		Use:   "watch <logfile>",
		Short: "Analyze every Python traceback appended to a log file",
		Long: `Watch follows a log file from its current end and runs a full analysis
for each traceback written to it. The file is reopened when it is rotated.
Stop with Ctrl+C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig(cmd)
			logger := observability.GetLogger()
			p := newPrinter(cmd, cfg)

			repoPath, err := filepath.Abs(opts.repo)
			if err != nil {
				return fmt.Errorf("failed to resolve repository path: %w", err)
			}

			ctx, cancel := withTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			analyzer, cleanup, err := buildAnalyzer(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			reporter, err := newReporter(cmd, cfg, opts.output)
			if err != nil {
				return err
			}
			defer reporter.Close()

			incidents := make(chan watcher.Incident, 8)
			w, err := watcher.NewWatcher(logger, args[0], incidents, watcher.WithQuietPeriod(quiet))
			if err != nil {
				return err
			}
			if err := w.Start(ctx); err != nil {
				return err
			}
			p.printf("Watching %s for tracebacks (Ctrl+C to stop)...\n", args[0])

			for {
				select {
				case <-ctx.Done():
					<-w.Done()
					return nil
				case inc := <-incidents:
					logger.Info("Analyzing incident.", zap.String("incident_id", inc.ID), zap.Time("detected_at", inc.DetectedAt))
					result := analyzer.Analyze(ctx, inc.Trace, repoPath)
					if err := reporter.Write(result); err != nil {
						return err
					}
				}
			}
		},
	}

	cmd.Flags().DurationVar(&quiet, "quiet-period", watcher.DefaultQuietPeriod, "how long a traceback may stay unfinished before it is analyzed")
	return cmd
}
