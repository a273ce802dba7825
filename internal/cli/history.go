package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/mrlokans/kindle-vocab/internal/config"
	"github.com/mrlokans/kindle-vocab/internal/entities"
)

// HistoryCommand prints recent export runs.
type HistoryCommand struct {
	HistoryDBPath string
	Limit         int

	stdout io.Writer
	stderr io.Writer
}

func NewHistoryCommand(cfg *config.Config) *HistoryCommand {
	return &HistoryCommand{HistoryDBPath: cfg.History.DBPath, stdout: os.Stdout, stderr: os.Stderr}
}

func (cmd *HistoryCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(cmd.stderr)

	fs.StringVar(&cmd.HistoryDBPath, "history-db", cmd.HistoryDBPath, "Export run history database")
	fs.IntVar(&cmd.Limit, "limit", 20, "Number of runs to show")

	fs.Usage = func() {
		fmt.Fprintf(cmd.stderr, "Usage: %s history [options]\n\n", os.Args[0])
		fmt.Fprintf(cmd.stderr, "Show the most recent export runs, newest first.\n\n")
		fmt.Fprintf(cmd.stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.HistoryDBPath == "" {
		return fmt.Errorf("required flag -history-db not provided")
	}
	if cmd.Limit <= 0 {
		return fmt.Errorf("-limit must be positive, got %d", cmd.Limit)
	}
	return nil
}

func (cmd *HistoryCommand) Run(_ context.Context) error {
	if _, err := os.Stat(cmd.HistoryDBPath); os.IsNotExist(err) {
		fmt.Fprintln(cmd.stdout, "No export runs recorded yet.")
		return nil
	}

	db, repo, err := openHistory(cmd.HistoryDBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	recent, err := repo.RecentRuns(cmd.Limit)
	if err != nil {
		return fmt.Errorf("failed to read export history: %w", err)
	}
	if len(recent) == 0 {
		fmt.Fprintln(cmd.stdout, "No export runs recorded yet.")
		return nil
	}

	writeRuns(cmd.stdout, recent)

	last, err := repo.LastSuccessful()
	if err != nil {
		return fmt.Errorf("failed to read export history: %w", err)
	}
	if last == nil {
		fmt.Fprintln(cmd.stdout, "\nNo successful export yet.")
		return nil
	}
	fmt.Fprintf(cmd.stdout, "\nLast successful export: %s, watermark %d\n",
		last.StartedAt.Local().Format(time.DateTime), last.WatermarkAfter)
	return nil
}

func writeRuns(w io.Writer, recent []entities.ExportRun) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tWRITTEN\tNOT FOUND\tWATERMARK\tDURATION\tERROR")
	for _, run := range recent {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%v\t%s\n",
			run.ID,
			run.StartedAt.Local().Format(time.DateTime),
			run.Status,
			run.Written,
			run.NotFound,
			run.WatermarkAfter,
			run.Duration().Round(time.Millisecond),
			run.Error,
		)
	}
	tw.Flush()
}
