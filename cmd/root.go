// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/hindsight/internal/config"
	"github.com/xkilldash9x/hindsight/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

// errNoInput reports that there was no error text to analyze. The message
// has already been shown to the user when it is returned.
var errNoInput = errors.New("no error message provided")

// rootOptions holds the flag values of one command tree.
type rootOptions struct {
	cfgFile       string
	tracebackFile string
	repo          string
	format        string
	output        string
	verbose       bool
	noColor       bool
	noCache       bool
	clearCache    bool
	init          bool
	maxCommits    int
	timeout       time.Duration
}

// NewRootCommand builds the hindsight command tree. Every call returns an
// independent tree with its own flag state.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "hindsight [error message | -]",
		Short: "Hindsight explains why a bug happened by tracing it back through git history.",
		Long: `Hindsight parses a Python error or traceback, scores recent commits by how
likely they are to have introduced it, gathers what the code says it should
do, and explains the gap.

Pass the error text as an argument, "-" to read it from stdin, or a file with
--traceback-file.`,
		Version:       Version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd, opts)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig(cmd)
			switch {
			case opts.init:
				return runInit(cmd, cfg, opts)
			case opts.clearCache:
				return runClearCache(cmd, cfg, "")
			}
			return runAnalysis(cmd, cfg, opts, args)
		},
	}
	cmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}` + "\n")

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.cfgFile, "config", "c", "", "config file (default is $HOME/.hindsight/config.yaml)")
	pf.StringVarP(&opts.repo, "repo", "r", ".", "path to the git repository to analyze")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "show repository details and informational logs")
	pf.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	pf.BoolVar(&opts.noCache, "no-cache", false, "do not read or write the result cache")
	pf.IntVarP(&opts.maxCommits, "max-commits", "n", 0, "number of recent commits to analyze (default from config)")
	pf.StringVar(&opts.format, "format", "", "output format: terminal or json (default from config)")
	pf.StringVarP(&opts.output, "output", "o", "", "write the report to a file instead of stdout")
	pf.DurationVar(&opts.timeout, "timeout", 0, "abort the analysis after this long (0 means no limit)")

	f := cmd.Flags()
	f.StringVarP(&opts.tracebackFile, "traceback-file", "f", "", "read the error or traceback from a file")
	f.BoolVar(&opts.clearCache, "clear-cache", false, "remove every cached entry and exit")
	f.BoolVar(&opts.init, "init", false, "write the default configuration file and exit")

	cmd.AddCommand(newInitCmd(opts))
	cmd.AddCommand(newCacheCmd())
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the command tree with ctx and reports a failure on stderr.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil && !errors.Is(err, errNoInput) {
		observability.GetLogger().Debug("Command execution failed.", zap.Error(err))
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	observability.Sync()
	return err
}

// setup loads the configuration, applies flag overrides, initializes
// logging and stores the configuration in the command context.
func setup(cmd *cobra.Command, opts *rootOptions) error {
	v := viper.New()
	config.SetDefaults(v)

	if err := initializeConfig(cmd, v, opts.cfgFile); err != nil {
		observability.InitializeLogger(config.LoggerConfig{Level: "info", ConsoleLevel: "warn", Format: "console", ServiceName: "hindsight"})
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	cfg, err := config.NewConfigFromViper(v)
	if err != nil {
		observability.InitializeLogger(config.LoggerConfig{Level: "info", ConsoleLevel: "warn", Format: "console", ServiceName: "hindsight"})
		return fmt.Errorf("failed to load or validate config: %w", err)
	}

	if opts.noColor {
		cfg.Output.Color = false
	}
	if opts.noCache {
		cfg.Cache.Enabled = false
	}
	if opts.verbose {
		cfg.Output.Verbose = true
		cfg.Logger.ConsoleLevel = "info"
	}
	cfg.Output.Format = strings.ToLower(cfg.Output.Format)

	loggerCfg := cfg.Logger
	if !useColor(cfg, cmd.ErrOrStderr()) {
		loggerCfg.Colors = config.ColorConfig{}
	}
	observability.Initialize(loggerCfg, zapcore.Lock(zapcore.AddSync(cmd.ErrOrStderr())))
	observability.GetLogger().Debug("Starting hindsight.", zap.String("version", Version), zap.String("command", cmd.Name()))

	cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
	return nil
}

// initializeConfig reads the config file and environment into v and binds
// the flags that map onto configuration keys. A missing config file is not
// an error.
func initializeConfig(cmd *cobra.Command, v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(config.Dir())
		v.SetConfigName(strings.TrimSuffix(config.FileName, ".yaml"))
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	bindings := map[string]string{
		"analysis.max_commits": "max-commits",
		"output.format":        "format",
	}
	for key, flag := range bindings {
		if fl := cmd.Flags().Lookup(flag); fl != nil {
			if err := v.BindPFlag(key, fl); err != nil {
				return fmt.Errorf("failed to bind flag --%s: %w", flag, err)
			}
		}
	}
	return nil
}

// getConfig returns the configuration stored by setup.
func getConfig(cmd *cobra.Command) *config.Config {
	if cfg, ok := cmd.Context().Value(configKey).(*config.Config); ok {
		return cfg
	}
	return config.NewDefaultConfig()
}

// withTimeout bounds ctx by d when d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
