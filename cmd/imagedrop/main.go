// Package main is the entry point for the imagedrop command.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/imagedrop/internal/config"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// cli holds state shared by all subcommands.
type cli struct {
	configPath string
	logLevel   string
	logFormat  string

	stdout io.Writer
	stderr io.Writer

	settings *config.File
	logger   *slog.Logger
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "imagedrop",
		Short: "Drop and paste images into a document",
		Long: `imagedrop feeds local image files through the drop/paste image pipeline:
files are filtered by MIME type, encoded as data URIs, optionally uploaded,
and inserted into a scratch document. Each insertion is printed as a JSON line.

Examples:
  imagedrop drop shot.png logo.svg          # insert at the end of the document
  imagedrop drop --at 0 shot.png            # insert at offset 0
  imagedrop paste clip.png                  # paste as clipboard items
  imagedrop watch ~/Drop --metrics-addr :9090`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initialize(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "Path to configuration file (.yaml, .yml or .toml)")
	flags.StringVar(&c.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&c.logFormat, "log-format", "", "Log format (text, json)")

	root.AddCommand(
		newDropCommand(c),
		newPasteCommand(c),
		newWatchCommand(c),
		newVersionCommand(c),
	)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root
}

// initialize loads configuration and builds the logger. Flags override
// the file and environment.
func (c *cli) initialize(cmd *cobra.Command) error {
	settings, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("log-level") {
		if err := settings.Logging.Level.UnmarshalText([]byte(c.logLevel)); err != nil {
			return fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", c.logLevel)
		}
	}
	if cmd.Flags().Changed("log-format") {
		format := strings.ToLower(c.logFormat)
		if format != config.FormatText && format != config.FormatJSON {
			return fmt.Errorf("invalid log format %q (must be text or json)", c.logFormat)
		}
		settings.Logging.Format = format
	}

	c.settings = settings
	c.logger = newLogger(c.stderr, settings.Logging)
	return nil
}

func newLogger(w io.Writer, s config.LoggingSettings) *slog.Logger {
	opts := &slog.HandlerOptions{Level: s.Level}
	if s.Format == config.FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newVersionCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		// Skip config loading.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(c.stdout, "imagedrop %s\n", version)
			fmt.Fprintf(c.stdout, "Commit: %s\n", commit)
			fmt.Fprintf(c.stdout, "Built: %s\n", date)
		},
	}
}
