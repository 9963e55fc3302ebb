// Package cli implements the depthconv command-line interface.
//
// depthconv converts model atmosphere files from the optical-depth scale to
// geometric height and column mass, and prints equation-of-state values at a
// single (T, Pe) point. Logging goes to stderr through charmbracelet/log;
// command output goes to stdout.
package cli

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/star/depthscale/internal/eos"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a CLI that logs to w at the given level.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// slogger adapts the CLI logger for packages that take a *slog.Logger.
func (c *CLI) slogger() *slog.Logger {
	return slog.New(c.Logger)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "depthconv",
		Short:        "Convert model atmospheres from optical depth to height and column mass",
		SilenceUsage: true,
	}

	root.AddCommand(c.convertCommand())
	root.AddCommand(c.eosCommand())

	return root
}

// newEOS builds the Wittmann equation of state, applying the abundance file
// at path when it is non-empty.
func (c *CLI) newEOS(path string) (*eos.Wittmann, error) {
	if path == "" {
		return eos.NewWittmann(nil)
	}
	abund, err := eos.LoadAbundances(path)
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("abundance overrides loaded", "path", path, "count", len(abund))
	return eos.NewWittmann(abund)
}
