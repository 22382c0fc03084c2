package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"

	"expensinator/internal/cli"
	"expensinator/internal/log"
	"expensinator/internal/receipt"
	"expensinator/internal/services"
	"expensinator/internal/storage"
)

// command is one subcommand. action names what the user was doing for
// error messages.
type command struct {
	usage  string
	action string
	run    func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"list":       {"list", services.ActionFetching, runList},
	"categories": {"categories", "fetching categories", runCategories},
	"add":        {"add --amount 12.50 --category Food --description Lunch [--date 2024-12-01] [--receipt-url URL]", services.ActionAdding, runAdd},
	"edit":       {"edit --ids 1,2 --file new.json", services.ActionSaving, runEdit},
	"delete":     {"delete --ids 1,2", services.ActionDeleting, runDelete},
	"scan":       {"scan [--content-type image/png] <image>", "scanning receipt", runScan},
	"drafts":     {"drafts", "listing drafts", runDrafts},
	"revise":     {"revise <draft-id> [--item N] [--amount A] [--category C] [--description D] [--remove] [--date D] [--currency EUR] [--reset]", "editing draft", runRevise},
	"confirm":    {"confirm <draft-id> [--date 2024-12-01]", services.ActionImporting, runConfirm},
	"discard":    {"discard <draft-id>", "discarding draft", runDiscard},
	"export":     {"export [--dry-run] [--all]", "exporting expenses", runExport},
	"watch":      {"watch", services.ActionFetching, runWatch},
}

// usageError is printed as is instead of the generic retry message.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func main() {
	root := flag.NewFlagSet("expensinator", flag.ExitOnError)
	configPath := root.String("config", os.Getenv("EXPENSINATOR_CONFIG"), "path to a JSON config file")
	root.Usage = printUsage
	_ = root.Parse(os.Args[1:])

	args := root.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}

	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(*configPath)
	logger := cli.SetupLogger(cfg)

	a := newApp(cfg, logger)
	defer a.Close()

	ctx := commandContext(context.Background(), logger)
	if err := cmd.run(ctx, a, args[1:]); err != nil {
		log.FromContext(ctx).Error("Command failed",
			log.NewFields().
				WithOperation(args[0]).
				WithErrorType(services.ErrorType(err)).
				WithError(err).
				ToSlice()...)
		fmt.Fprintln(os.Stderr, report(cmd.action, err))
		a.Close()
		os.Exit(1)
	}
}

// commandContext tags one invocation with a request ID shared by all of its
// outbound calls and log lines.
func commandContext(ctx context.Context, logger *log.Logger) context.Context {
	return log.WithRequestID(log.WithLogger(ctx, logger), log.GenerateRequestID())
}

// report picks the text shown for a failed command.
func report(action string, err error) string {
	var ue *usageError
	switch {
	case errors.As(err, &ue),
		errors.Is(err, storage.ErrDraftNotFound),
		errors.Is(err, services.ErrNothingSelected),
		errors.Is(err, receipt.ErrNoItems):
		return err.Error()
	default:
		return services.UserMessage(action, err)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: expensinator [--config file.json] <command> [flags]")
	fmt.Fprintln(os.Stderr)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %s\n", commands[name].usage)
	}
}
