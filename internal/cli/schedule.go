package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mrlokans/kindle-vocab/internal/config"
	"github.com/mrlokans/kindle-vocab/internal/scheduler"
)

// ScheduleCommand runs the export periodically until the context is cancelled.
type ScheduleCommand struct {
	*ExportCommand
	Schedule string
	RunNow   bool
}

func NewScheduleCommand(cfg *config.Config) *ScheduleCommand {
	return &ScheduleCommand{ExportCommand: NewExportCommand(cfg)}
}

func (cmd *ScheduleCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("schedule", flag.ContinueOnError)
	fs.SetOutput(cmd.stderr)
	cmd.registerFlags(fs)
	fs.StringVar(&cmd.Schedule, "schedule", cmd.cfg.Schedule.Cron, "Cron schedule (minute hour day month weekday)")
	fs.BoolVar(&cmd.RunNow, "run-now", false, "Run an export immediately before waiting for the schedule")

	fs.Usage = func() {
		fmt.Fprintf(cmd.stderr, "Usage: %s schedule [options]\n\n", os.Args[0])
		fmt.Fprintf(cmd.stderr, "Run the export on a cron schedule until interrupted.\n")
		fmt.Fprintf(cmd.stderr, "A run that is still in progress when the next one is due causes that one to be skipped.\n\n")
		fmt.Fprintf(cmd.stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(cmd.stderr, "\nExamples:\n")
		fmt.Fprintf(cmd.stderr, "  %s schedule -schedule \"*/30 * * * *\" -run-now\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if err := scheduler.ValidateSchedule(cmd.Schedule); err != nil {
		return fmt.Errorf("invalid -schedule %q: %w", cmd.Schedule, err)
	}
	return cmd.validate()
}

func (cmd *ScheduleCommand) Run(ctx context.Context) error {
	logger := newLogger(cmd.LogLevel, cmd.cfg.Log.Format, cmd.stderr)

	svc, closeHistory, err := cmd.newService(logger)
	if err != nil {
		return err
	}
	defer closeHistory()

	s := scheduler.NewExportScheduler(svc, cmd.request(), cmd.Schedule, logger)
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer s.Stop()

	if cmd.RunNow {
		s.RunNow()
	}

	<-ctx.Done()
	return nil
}
