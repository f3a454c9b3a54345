// cmd/output.go
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/hindsight/internal/config"
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// useColor decides whether output written to w is styled.
func useColor(cfg *config.Config, w io.Writer) bool {
	return cfg.Output.Color && isTerminal(w)
}

// printer writes user-facing status lines to a command's output.
type printer struct {
	out     io.Writer
	red     *color.Color
	green   *color.Color
	yellow  *color.Color
	dimmed  *color.Color
	colored bool
}

func newPrinter(cmd *cobra.Command, cfg *config.Config) *printer {
	out := cmd.OutOrStdout()
	p := &printer{
		out:     out,
		red:     color.New(color.FgHiRed),
		green:   color.New(color.FgHiGreen),
		yellow:  color.New(color.FgHiYellow),
		dimmed:  color.New(color.Faint),
		colored: useColor(cfg, out),
	}
	for _, c := range []*color.Color{p.red, p.green, p.yellow, p.dimmed} {
		if p.colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p *printer) println(a ...any) {
	fmt.Fprintln(p.out, a...)
}

func (p *printer) printf(format string, a ...any) {
	fmt.Fprintf(p.out, format, a...)
}

func (p *printer) errorf(format string, a ...any) {
	fmt.Fprintln(p.out, p.red.Sprintf(format, a...))
}

func (p *printer) successf(format string, a ...any) {
	fmt.Fprintln(p.out, p.green.Sprintf(format, a...))
}
