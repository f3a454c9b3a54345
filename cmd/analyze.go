// cmd/analyze.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/hindsight/internal/attribution"
	"github.com/xkilldash9x/hindsight/internal/config"
	"github.com/xkilldash9x/hindsight/internal/explainer"
	"github.com/xkilldash9x/hindsight/internal/intent"
	"github.com/xkilldash9x/hindsight/internal/llmclient"
	"github.com/xkilldash9x/hindsight/internal/observability"
	"github.com/xkilldash9x/hindsight/internal/reporting"
	"github.com/xkilldash9x/hindsight/internal/store"
)

const usageLine = `Usage: hindsight "<error message>" or hindsight -f <traceback_file>`

// runAnalysis analyzes the error text given on the command line, in a file
// or on stdin, and prints the report.
func runAnalysis(cmd *cobra.Command, cfg *config.Config, opts *rootOptions, args []string) error {
	p := newPrinter(cmd, cfg)

	text, err := readErrorText(cmd, opts, args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		p.errorf("Error: No error message provided.")
		p.println(usageLine)
		return errNoInput
	}

	repoPath, err := filepath.Abs(opts.repo)
	if err != nil {
		return fmt.Errorf("failed to resolve repository path: %w", err)
	}

	ctx, cancel := withTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	logger := observability.GetLogger()
	analyzer, cleanup, err := buildAnalyzer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	reporter, err := newReporter(cmd, cfg, opts.output)
	if err != nil {
		return err
	}

	result := analyzer.Analyze(ctx, text, repoPath)
	if err := reporter.Write(result); err != nil {
		_ = reporter.Close()
		return err
	}
	return reporter.Close()
}

// readErrorText resolves the error text from --traceback-file, "-" (stdin)
// or the positional arguments, in that order.
func readErrorText(cmd *cobra.Command, opts *rootOptions, args []string) (string, error) {
	if opts.tracebackFile != "" {
		data, err := os.ReadFile(opts.tracebackFile)
		if err != nil {
			return "", fmt.Errorf("failed to read traceback file: %w", err)
		}
		return string(data), nil
	}

	if len(args) == 1 && args[0] == "-" {
		in := cmd.InOrStdin()
		if isTerminal(in) {
			fmt.Fprintln(cmd.ErrOrStderr(), "Reading from stdin (Ctrl+D to finish):")
		}
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	return strings.Join(args, " "), nil
}

// buildAnalyzer wires the analysis pipeline from cfg. The returned cleanup
// releases the cache and the model client.
func buildAnalyzer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*attribution.Analyzer, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var analyzerOpts []attribution.Option

	if cfg.Cache.Enabled {
		cache, err := store.Open(ctx, store.Options{Path: cfg.Cache.Path, TTL: cfg.Cache.TTL, MaxSizeMB: cfg.Cache.MaxSize}, logger)
		if err != nil {
			logger.Warn("Result cache unavailable, continuing without it.", zap.Error(err))
		} else {
			analyzerOpts = append(analyzerOpts, attribution.WithCache(cache))
			closers = append(closers, func() {
				if err := cache.Close(); err != nil {
					logger.Warn("Failed to close result cache.", zap.Error(err))
				}
			})
		}
	}

	if cfg.API.APIKey != "" {
		client, err := llmclient.NewClient(cfg.API, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to initialize LLM client: %w", err)
		}
		closers = append(closers, func() {
			if err := client.Close(); err != nil {
				logger.Warn("Failed to close LLM client.", zap.Error(err))
			}
		})
		analyzerOpts = append(analyzerOpts, attribution.WithExplainer(explainer.NewBugExplainer(logger, client, cfg.API)))
	}

	extractor := intent.NewExtractor(afero.NewOsFs(), logger, intent.WithMaxFileSize(cfg.Analysis.MaxFileSize))
	analyzer, err := attribution.New(cfg.Analysis, logger, attribution.GitOpener(logger), extractor, analyzerOpts...)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to initialize analyzer: %w", err)
	}
	return analyzer, cleanup, nil
}

// newReporter writes to --output when set and to the command's stdout
// otherwise.
func newReporter(cmd *cobra.Command, cfg *config.Config, output string) (reporting.Reporter, error) {
	opts := reporting.Options{Verbose: cfg.Output.Verbose}
	if output != "" && output != "stdout" {
		return reporting.New(cfg.Output.Format, output, opts)
	}
	out := cmd.OutOrStdout()
	opts.Color = useColor(cfg, out)
	return reporting.NewForWriter(cfg.Output.Format, reporting.Nop(out), opts)
}
