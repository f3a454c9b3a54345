// cmd/cache.go
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/hindsight/internal/config"
	"github.com/xkilldash9x/hindsight/internal/observability"
	"github.com/xkilldash9x/hindsight/internal/store"
)

func newCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the result cache",
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:       "clear [namespace]",
		Short:     "Remove cached entries, optionally from one namespace only",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: store.Namespaces,
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace := ""
			if len(args) == 1 {
				namespace = args[0]
			}
			return runClearCache(cmd, getConfig(cmd), namespace)
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig(cmd)
			p := newPrinter(cmd, cfg)
			return withCache(cmd, cfg, p, func(c *store.Cache) error {
				n, err := c.CleanupExpired(cmd.Context())
				if err != nil {
					return err
				}
				p.successf("Removed %d expired %s.", n, entries(n))
				return nil
			})
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache size and entry counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig(cmd)
			p := newPrinter(cmd, cfg)
			return withCache(cmd, cfg, p, func(c *store.Cache) error {
				stats, err := c.Stats(cmd.Context())
				if err != nil {
					return err
				}
				printStats(p, cfg, stats)
				return nil
			})
		},
	})

	return cacheCmd
}

// runClearCache removes the entries of namespace, or of every namespace when
// it is empty.
func runClearCache(cmd *cobra.Command, cfg *config.Config, namespace string) error {
	p := newPrinter(cmd, cfg)
	return withCache(cmd, cfg, p, func(c *store.Cache) error {
		n, err := c.Clear(cmd.Context(), namespace)
		if err != nil {
			return err
		}
		p.successf("Cleared %d cached %s.", n, entries(n))
		return nil
	})
}

// withCache opens the configured cache for fn. A cache that was never
// created is reported instead of being created.
func withCache(cmd *cobra.Command, cfg *config.Config, p *printer, fn func(*store.Cache) error) error {
	if _, err := os.Stat(cfg.Cache.Path); errors.Is(err, fs.ErrNotExist) {
		p.println("No cache found.")
		return nil
	}

	c, err := store.Open(cmd.Context(), store.Options{Path: cfg.Cache.Path, TTL: cfg.Cache.TTL, MaxSizeMB: cfg.Cache.MaxSize}, observability.GetLogger())
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer c.Close()
	return fn(c)
}

func printStats(p *printer, cfg *config.Config, stats store.Stats) {
	p.printf("Cache: %s\n", stats.Path)
	p.printf("Entries: %s\n", humanize.Comma(int64(stats.Entries)))
	if cfg.Cache.MaxSize > 0 {
		p.printf("Size: %s of %s\n", humanize.Bytes(uint64(stats.Bytes)), humanize.Bytes(uint64(cfg.Cache.MaxSize)*humanize.MByte))
	} else {
		p.printf("Size: %s\n", humanize.Bytes(uint64(stats.Bytes)))
	}
	if !stats.Oldest.IsZero() {
		p.printf("Oldest entry: %s\n", humanize.Time(stats.Oldest))
	}

	names := make([]string, 0, len(stats.Namespaces))
	for ns := range stats.Namespaces {
		names = append(names, ns)
	}
	sort.Strings(names)
	for _, ns := range names {
		p.printf("  %s %-18s %d\n", p.dimmed.Sprint("-"), ns, stats.Namespaces[ns])
	}
}

func entries(n int) string {
	if n == 1 {
		return "entry"
	}
	return "entries"
}
