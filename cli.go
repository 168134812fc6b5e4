package eventable

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/aarondfrancis/eventable/internal/service/prune"
)

const usage = `usage: eventable <command> [flags]

commands:
  prune [--dry-run]   delete events outside their retention policy
`

// Main runs the eventable command line and exits. Applications build their
// own binary around it so their event types are declared:
//
//	func main() {
//	    eventable.Main(eventable.WithTypes(eventable.TypeOf(orders.Placed, orders.Shipped)))
//	}
func Main(opts ...Option) {
	os.Exit(run0(opts))
}

func run0(opts []Option) int {
	logger, levelErr := newLogger(os.Stderr, os.Getenv("EVENTABLE_LOG_LEVEL"))
	slog.SetDefault(logger)
	if levelErr != nil {
		logger.Warn("eventable: invalid log level, using info", "error", levelErr)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	opts = append([]Option{WithLogger(logger), WithoutDotenv()}, opts...)
	return Run(ctx, os.Args[1:], os.Stdout, os.Stderr, opts...)
}

// newLogger builds the JSON logger at the named level. An unknown name
// falls back to info and is reported.
func newLogger(w io.Writer, name string) (*slog.Logger, error) {
	level := slog.LevelInfo
	var err error
	if name != "" {
		if uerr := level.UnmarshalText([]byte(name)); uerr != nil {
			level = slog.LevelInfo
			err = fmt.Errorf("EVENTABLE_LOG_LEVEL=%q: %w", name, uerr)
		}
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), err
}

// Run executes one command line and returns the process exit code: 0 on
// success, 1 when no pruneable event types exist or the command fails.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer, opts ...Option) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 1
	}

	switch args[0] {
	case "prune":
		return runPrune(ctx, args[1:], stdout, stderr, opts)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 1
	}
}

func runPrune(ctx context.Context, args []string, stdout, stderr io.Writer, opts []Option) int {
	fs := flag.NewFlagSet("prune", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dryRun := fs.Bool("dry-run", false, "count the events that would be pruned without deleting them")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	app, err := New(ctx, opts...)
	if err != nil {
		fmt.Fprintf(stderr, "eventable: %v\n", err)
		return 1
	}
	defer app.Close(context.Background())

	report, err := app.Prune(ctx, *dryRun)
	if errors.Is(err, ErrNoPruneableTypes) {
		for _, s := range report.Skipped {
			fmt.Fprintf(stdout, "Event type [%s] %s, skipping.\n", s.TypeID, s.Reason)
		}
		fmt.Fprintln(stderr, prune.NoPruneableMessage)
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "eventable: %v\n", err)
		return 1
	}
	if _, err := report.WriteTo(stdout); err != nil {
		return 1
	}
	return 0
}
