// Package cli wires the pos-qa commands.
package cli

import (
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
)

// RootOptions holds the global flags.
type RootOptions struct {
	Verbose bool
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "pos-qa",
		Short: "End-to-end scenario runner for the POS backend",
		Long: `pos-qa drives a running POS backend through its HTTP API: it registers a
tenant, manages products, records sales and checks stock, statistics and
tenant isolation, then prints a pass/fail summary.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging on stderr")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewScenariosCommand(opts))
	return cmd
}

func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
