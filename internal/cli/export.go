package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mrlokans/kindle-vocab/internal/config"
	"github.com/mrlokans/kindle-vocab/internal/exporters"
	"github.com/mrlokans/kindle-vocab/internal/services"
)

// ExportCommand exports new Kindle lookups to an Anki import file.
type ExportCommand struct {
	DatabasePath  string
	OutputPath    string
	TimestampFile string
	APIKey        string
	Delimiter     string
	Workers       int
	LogLevel      string
	HistoryDBPath string

	cfg       *config.Config
	delimiter rune
	stdout    io.Writer
	stderr    io.Writer
}

func NewExportCommand(cfg *config.Config) *ExportCommand {
	return &ExportCommand{cfg: cfg, stdout: os.Stdout, stderr: os.Stderr}
}

// registerFlags binds the export flags; schedule reuses them.
func (cmd *ExportCommand) registerFlags(fs *flag.FlagSet) {
	fs.StringVar(&cmd.DatabasePath, "db", cmd.cfg.Kindle.VocabDBPath, "Path to the Kindle vocab.db")
	fs.StringVar(&cmd.OutputPath, "output", cmd.cfg.Output.Path, "Path of the Anki import file to write")
	fs.StringVar(&cmd.TimestampFile, "timestamp-file", cmd.cfg.Output.TimestampFile, "File recording the timestamp of the last exported lookup")
	fs.StringVar(&cmd.APIKey, "key", cmd.cfg.Dictionary.APIKey, "Merriam-Webster Collegiate API key")
	fs.StringVar(&cmd.Delimiter, "delimiter", cmd.cfg.Output.Delimiter, "Field delimiter: comma or tab")
	fs.IntVar(&cmd.Workers, "workers", cmd.cfg.Export.Workers, "Concurrent dictionary lookups (0 = number of CPUs)")
	fs.StringVar(&cmd.LogLevel, "log", cmd.cfg.Log.Level, "Log level: debug, info, warn, error")
	fs.StringVar(&cmd.HistoryDBPath, "history-db", cmd.cfg.History.DBPath, "Export run history database (empty disables)")
}

func (cmd *ExportCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(cmd.stderr)
	cmd.registerFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(cmd.stderr, "Usage: %s export [options]\n\n", os.Args[0])
		fmt.Fprintf(cmd.stderr, "Export words looked up on a Kindle since the last run to a file Anki can import.\n")
		fmt.Fprintf(cmd.stderr, "Each row holds headword, pronunciation, usage and definition.\n\n")
		fmt.Fprintf(cmd.stderr, "The vocabulary database is found on the device at:\n")
		fmt.Fprintf(cmd.stderr, "  /Volumes/Kindle/system/vocabulary/vocab.db\n\n")
		fmt.Fprintf(cmd.stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(cmd.stderr, "\nExamples:\n")
		fmt.Fprintf(cmd.stderr, "  %s export -db /Volumes/Kindle/system/vocabulary/vocab.db -key $MW_KEY\n", os.Args[0])
		fmt.Fprintf(cmd.stderr, "  %s export -delimiter tab -output import.tsv\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return cmd.validate()
}

func (cmd *ExportCommand) validate() error {
	if cmd.DatabasePath == "" {
		return fmt.Errorf("required flag -db not provided")
	}
	if cmd.OutputPath == "" {
		return fmt.Errorf("required flag -output not provided")
	}
	if cmd.TimestampFile == "" {
		return fmt.Errorf("required flag -timestamp-file not provided")
	}
	if cmd.Workers < 0 {
		return fmt.Errorf("-workers must not be negative, got %d", cmd.Workers)
	}
	if err := cmd.cfg.Dictionary.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	delimiter, err := exporters.ParseDelimiter(cmd.Delimiter)
	if err != nil {
		return err
	}
	cmd.delimiter = delimiter
	return nil
}

func (cmd *ExportCommand) request() services.ExportRequest {
	return services.ExportRequest{
		DatabasePath:  cmd.DatabasePath,
		WatermarkPath: cmd.TimestampFile,
		OutputPath:    cmd.OutputPath,
	}
}

// newService builds the export service. The returned closer releases the
// history database and is never nil.
func (cmd *ExportCommand) newService(logger *slog.Logger) (*services.ExportService, func(), error) {
	resolver, err := newResolver(cmd.cfg.Dictionary, cmd.APIKey, logger)
	if err != nil {
		return nil, nil, err
	}

	svc := services.NewExportService(resolver, services.ExportOptions{
		Workers:   cmd.Workers,
		Delimiter: cmd.delimiter,
	}, logger)

	closer := func() {}
	db, repo, err := openHistory(cmd.HistoryDBPath)
	if err != nil {
		logger.Warn("export history disabled", slog.String("error", err.Error()))
		return svc, closer, nil
	}
	if repo != nil {
		if n, err := repo.MarkInterrupted(); err != nil {
			logger.Warn("failed to clean up interrupted runs", slog.String("error", err.Error()))
		} else if n > 0 {
			logger.Info("marked interrupted export runs as failed", slog.Int64("runs", n))
		}
		svc.SetRunRecorder(repo)
		closer = func() { db.Close() }
	}
	return svc, closer, nil
}

func (cmd *ExportCommand) Run(ctx context.Context) error {
	logger := newLogger(cmd.LogLevel, cmd.cfg.Log.Format, cmd.stderr)

	svc, closeHistory, err := cmd.newService(logger)
	if err != nil {
		return err
	}
	defer closeHistory()

	start := time.Now()
	result, err := svc.Export(ctx, cmd.request())
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Fprintf(cmd.stdout, "Exported %d of %d new lookups to %s", result.Written, result.Fetched, cmd.OutputPath)
	if result.NotFound > 0 {
		fmt.Fprintf(cmd.stdout, " (%d without a definition)", result.NotFound)
	}
	fmt.Fprintln(cmd.stdout)
	fmt.Fprintf(cmd.stdout, "Watermark: %d -> %d\n", result.WatermarkBefore, result.WatermarkAfter)
	fmt.Fprintf(cmd.stdout, "Took %v\n", time.Since(start).Round(time.Millisecond))
	return nil
}
