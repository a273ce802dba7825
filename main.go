package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mrlokans/kindle-vocab/internal/cli"
	"github.com/mrlokans/kindle-vocab/internal/config"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

type command interface {
	ParseFlags(args []string) error
	Run(ctx context.Context) error
}

func main() {
	// Export is the default: "kindle-vocab" and "kindle-vocab -db x" both export.
	name := "export"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		name, args = args[0], args[1:]
	} else if len(args) > 0 && (args[0] == "-h" || args[0] == "--help") {
		name = "help"
	}

	cfg := config.NewConfig()

	var cmd command
	switch name {
	case "export":
		cmd = cli.NewExportCommand(cfg)
	case "list", "l":
		cmd = cli.NewListCommand(cfg)
	case "schedule":
		cmd = cli.NewScheduleCommand(cfg)
	case "history":
		cmd = cli.NewHistoryCommand(cfg)
	case "version":
		fmt.Printf("kindle-vocab %s (%s)\n", Version, Commit)
		return
	case "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}

	if err := cmd.ParseFlags(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Run(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  export     Export new Kindle lookups to an Anki import file (default)\n")
	fmt.Fprintf(os.Stderr, "  list, l    Print dictionary definitions for the given words\n")
	fmt.Fprintf(os.Stderr, "  schedule   Run the export periodically on a cron schedule\n")
	fmt.Fprintf(os.Stderr, "  history    Show recent export runs\n")
	fmt.Fprintf(os.Stderr, "  version    Print version information\n")
	fmt.Fprintf(os.Stderr, "\nConfiguration is read from the environment (DICTIONARY_API_KEY, KINDLE_VOCAB_DB,\n")
	fmt.Fprintf(os.Stderr, "ANKI_OUTPUT_PATH, TIMESTAMP_FILE, ...); flags override it.\n")
	fmt.Fprintf(os.Stderr, "\nUse '%s <command> -h' for help on a specific command.\n", os.Args[0])
}
