// fieldsales is the field-sales client: it signs in against the backend
// API, keeps the session on disk (or in Redis), submits shop visits and
// can serve a local console over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/utafrali/fieldsales/internal/app"
	"github.com/utafrali/fieldsales/internal/config"
	"github.com/utafrali/fieldsales/internal/session"
	"github.com/utafrali/fieldsales/pkg/logger"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	if err != nil {
		if !errors.Is(err, errSilent) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// errSilent reports failure through the exit code only; the command has
// already explained itself.
var errSilent = errors.New("silent failure")

// env is what every command runs with.
type env struct {
	cfg    *config.Config
	app    *app.App
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

type command struct {
	name    string
	summary string
	flags   func(fs *pflag.FlagSet) func(ctx context.Context, e *env) error
	// server commands log JSON to stdout like the other services.
	server bool
}

var commands = []command{
	{name: "login", summary: "sign in with phone and password", flags: loginCommand},
	{name: "logout", summary: "sign out and forget the stored session", flags: logoutCommand},
	{name: "whoami", summary: "print the current session", flags: whoamiCommand},
	{name: "route", summary: "show where a screen would send the current user", flags: routeCommand},
	{name: "checkin", summary: "submit a visit", flags: checkinCommand},
	{name: "serve", summary: "run the local console server", flags: serveCommand, server: true},
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stderr)
		return nil
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == args[0] {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}

	fs := pflag.NewFlagSet("fieldsales "+cmd.name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	exec := cmd.flags(fs)
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var log *slog.Logger
	if cmd.server {
		log = logger.NewWithOptions("fieldsales-console", logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Writer: stdout})
		log.Info("starting fieldsales console",
			slog.String("environment", cfg.Environment),
			slog.Int("http_port", cfg.ConsolePort),
		)
	} else {
		// CLI output belongs to stdout; logs stay quiet on stderr.
		log = logger.NewWithOptions("fieldsales", logger.Options{Level: cliLogLevel(cfg.LogLevel), Format: logger.FormatText, Writer: stderr})
	}

	opts := []session.Option{session.WithNotifier(printNotifier{out: stdout, err: stderr})}
	if offline := offlineStrategy(); offline != nil {
		log.Warn("offline demo logins are enabled")
		opts = append(opts, session.WithOfflineStrategy(offline))
	}

	application, err := app.NewApp(cfg, log, app.WithSessionOptions(opts...))
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}

	e := &env{cfg: cfg, app: application, logger: log, stdout: stdout, stderr: stderr}
	if cmd.server {
		// Run shuts the application down itself.
		if err := application.Run(ctx); err != nil {
			return fmt.Errorf("run application: %w", err)
		}
		log.Info("fieldsales console stopped")
		return nil
	}

	defer func() { _ = application.Shutdown() }()
	return exec(ctx, e)
}

// cliLogLevel keeps info logs out of interactive output unless asked for.
func cliLogLevel(level string) string {
	if level == "" || level == "info" {
		return "warn"
	}
	return level
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: fieldsales <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Configuration is read from %s* environment variables.\n", config.EnvPrefix)
}

// printNotifier shows session messages on the terminal.
type printNotifier struct {
	out io.Writer
	err io.Writer
}

func (n printNotifier) Success(_ context.Context, message string) {
	fmt.Fprintln(n.out, message)
}

func (n printNotifier) Error(_ context.Context, message string) {
	fmt.Fprintln(n.err, message)
}
