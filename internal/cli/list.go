package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mrlokans/kindle-vocab/internal/config"
	"github.com/mrlokans/kindle-vocab/internal/services"
)

// ListCommand prints dictionary data for words given on the command line.
type ListCommand struct {
	Words    []string
	APIKey   string
	Workers  int
	LogLevel string

	cfg    *config.Config
	stdout io.Writer
	stderr io.Writer
}

func NewListCommand(cfg *config.Config) *ListCommand {
	return &ListCommand{cfg: cfg, stdout: os.Stdout, stderr: os.Stderr}
}

func (cmd *ListCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(cmd.stderr)

	fs.StringVar(&cmd.APIKey, "key", cmd.cfg.Dictionary.APIKey, "Merriam-Webster Collegiate API key")
	fs.IntVar(&cmd.Workers, "workers", cmd.cfg.Export.Workers, "Concurrent dictionary lookups (0 = number of CPUs)")
	fs.StringVar(&cmd.LogLevel, "log", cmd.cfg.Log.Level, "Log level: debug, info, warn, error")

	fs.Usage = func() {
		fmt.Fprintf(cmd.stderr, "Usage: %s list [options] [word ...]\n\n", os.Args[0])
		fmt.Fprintf(cmd.stderr, "Look words up and print headword, pronunciation and definition.\n")
		fmt.Fprintf(cmd.stderr, "Without words a sample list is used: %s.\n\n", strings.Join(services.SampleWords, ", "))
		fmt.Fprintf(cmd.stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.Workers < 0 {
		return fmt.Errorf("-workers must not be negative, got %d", cmd.Workers)
	}
	if err := cmd.cfg.Dictionary.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cmd.Words = nil
	for _, w := range fs.Args() {
		if w = strings.TrimSpace(w); w != "" {
			cmd.Words = append(cmd.Words, w)
		}
	}
	return nil
}

func (cmd *ListCommand) Run(ctx context.Context) error {
	logger := newLogger(cmd.LogLevel, cmd.cfg.Log.Format, cmd.stderr)

	resolver, err := newResolver(cmd.cfg.Dictionary, cmd.APIKey, logger)
	if err != nil {
		return err
	}

	return services.NewListService(resolver, cmd.Workers, logger).List(ctx, cmd.Words, cmd.stdout)
}
