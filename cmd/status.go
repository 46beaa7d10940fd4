package cmd

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/iyya/iyya/internal/app"
	"github.com/iyya/iyya/internal/log"
)

// runStatus prints the index state for one or all enabled modules.
func runStatus(args []string, logger log.Logger) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	moduleID := fs.String("module", "", "show a single module")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	ids := make([]string, 0, len(a.Config.Modules))
	if *moduleID != "" {
		ids = append(ids, *moduleID)
	} else {
		for _, m := range a.Config.EnabledModules() {
			ids = append(ids, m.ID)
		}
	}

	for _, id := range ids {
		st, err := a.Syncer.Status(ctx, id)
		if err != nil {
			return err
		}
		synced := "not synced"
		if st.Synced {
			synced = "synced"
		}
		fmt.Printf("module %s: %s (%d files in %s, %d vectors)\n",
			st.ModuleID, synced, st.FileCount, st.Folder, st.IndexCount)
	}
	return nil
}
