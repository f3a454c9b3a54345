// cmd/init.go
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/hindsight/internal/config"
)

func newInitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, getConfig(cmd), opts)
		},
	}
}

// runInit saves the effective configuration unless a file already exists,
// and reminds the user to export an API key when none is set.
func runInit(cmd *cobra.Command, cfg *config.Config, opts *rootOptions) error {
	p := newPrinter(cmd, cfg)

	path := opts.cfgFile
	if path == "" {
		path = config.DefaultFile()
	}

	if _, err := os.Stat(path); err == nil {
		p.printf("Configuration already exists at %s\n", path)
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to inspect config file: %w", err)
	}

	if err := cfg.Save(path); err != nil {
		return err
	}
	p.successf("Configuration created at %s", path)

	if cfg.API.APIKey == "" {
		p.printf("\n%s Set your API key:\n", p.yellow.Sprint("Note:"))
		p.printf("  export %s=your-key-here\n", config.EnvAnthropicAPIKey)
		p.println("  # or")
		p.printf("  export %s=your-key-here\n", config.EnvAPIKey)
	}
	return nil
}
