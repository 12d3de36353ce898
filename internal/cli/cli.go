// Package cli implements the nnvmc command-line interface: loading a
// graph description, running a configured sequence of passes over it, and
// inspecting the result as DOT/SVG.
package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// Log levels exported for use by cmd/nnvmc.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a CLI with a logger writing to w at level.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
	}
}

// SetLogLevel updates the logger's level in place.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand builds the root cobra command with every subcommand
// registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "nnvmc",
		Short:        "nnvmc rewrites and re-layouts deep-learning operator graphs",
		Long:         "nnvmc loads a graph description, runs a configured sequence of layout-aware graph-rewrite passes over it, and can inspect the result as DOT or SVG.",
		SilenceUsage: true,
	}

	root.AddCommand(c.runCommand())
	root.AddCommand(c.describeCommand())

	return root
}
