package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/iyya/iyya/internal/app"
	"github.com/iyya/iyya/internal/ingest"
	"github.com/iyya/iyya/internal/log"
)

// syncOptions are the parsed flags for the sync command.
type syncOptions struct {
	moduleID string
	all      bool
	clear    bool
	file     string
}

// parseSyncFlags parses and validates the sync command flags.
func parseSyncFlags(args []string) (syncOptions, error) {
	var opts syncOptions
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	fs.StringVar(&opts.moduleID, "module", "", "module to index")
	fs.BoolVar(&opts.all, "all", false, "index every enabled module")
	fs.BoolVar(&opts.clear, "clear", false, "clear the collection before indexing")
	fs.StringVar(&opts.file, "file", "", "re-index a single file instead of the whole folder")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	switch {
	case opts.all && opts.moduleID != "":
		return opts, errors.New("-all and -module are mutually exclusive")
	case !opts.all && opts.moduleID == "":
		return opts, errors.New("either -module <id> or -all is required")
	case opts.file != "" && opts.all:
		return opts, errors.New("-file requires -module")
	case opts.file != "" && opts.clear:
		return opts, errors.New("-file and -clear are mutually exclusive")
	}
	return opts, nil
}

// runSync indexes module documents into the vector store.
func runSync(args []string, logger log.Logger) error {
	opts, err := parseSyncFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	var reports []*ingest.Report
	switch {
	case opts.file != "":
		report, err := a.Syncer.SyncFile(ctx, opts.moduleID, opts.file)
		if err != nil {
			return err
		}
		reports = append(reports, report)
	case opts.all:
		reports, err = a.Syncer.SyncAll(ctx, opts.clear)
		printReports(reports)
		if err != nil {
			return err
		}
		return nil
	default:
		report, err := a.Syncer.Sync(ctx, opts.moduleID, opts.clear)
		if err != nil {
			return err
		}
		reports = append(reports, report)
	}

	printReports(reports)

	// Freshly indexed content must reach already-built engines
	for _, r := range reports {
		a.Registry.Invalidate(r.ModuleID)
	}
	return nil
}

// printReports writes a human-readable sync summary to stdout.
func printReports(reports []*ingest.Report) {
	for _, r := range reports {
		status := "ok"
		if !r.Success {
			status = "completed with errors"
		}
		fmt.Printf("module %s: %s (%d files, %d chunks)\n",
			r.ModuleID, status, r.FilesProcessed, r.ChunksAdded)
		for _, fe := range r.Errors {
			fmt.Printf("  %s: %s\n", fe.File, fe.Message())
		}
	}
}
