package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/iyya/iyya/internal/app"
	"github.com/iyya/iyya/internal/log"
)

// runAsk answers a single question from the command line.
// The answer streams to stdout as it is generated; sources follow.
func runAsk(args []string, logger log.Logger) error {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	moduleID := fs.String("module", "", "module to query")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *moduleID == "" {
		return errors.New("-module <id> is required")
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		return errors.New("question is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	engine, err := a.Registry.Engine(ctx, *moduleID)
	if err != nil {
		return err
	}

	ans, err := engine.AnswerStream(ctx, question, nil, func(ctx context.Context, chunk string) error {
		fmt.Print(chunk)
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Println()

	if len(ans.Sources) > 0 {
		fmt.Fprintf(os.Stdout, "\nSources (pages): %s\n", strings.Join(ans.Sources, ", "))
	}
	return nil
}
