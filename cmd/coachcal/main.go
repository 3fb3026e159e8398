package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	calendarimpl "github.com/foxseedlab/coachcal/external/calendar"
	configloader "github.com/foxseedlab/coachcal/external/config"
	"github.com/foxseedlab/coachcal/external/httpapi"
	repositoryimpl "github.com/foxseedlab/coachcal/external/repository"
	webhookimpl "github.com/foxseedlab/coachcal/external/webhook"
	"github.com/foxseedlab/coachcal/internal/boundary"
	"github.com/foxseedlab/coachcal/internal/config"
	"github.com/foxseedlab/coachcal/internal/credential"
	"github.com/foxseedlab/coachcal/internal/dispatcher"
	"github.com/foxseedlab/coachcal/internal/eventcache"
	"github.com/foxseedlab/coachcal/internal/feed"
	"github.com/foxseedlab/coachcal/internal/reconciler"
	"github.com/foxseedlab/coachcal/internal/repository"
	"github.com/foxseedlab/coachcal/internal/scheduler"
	"github.com/samber/do/v2"
)

const shutdownTimeout = 10 * time.Second

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

const usage = `usage: coachcal <command> [flags]

commands:
  sessions    -start RFC3339 -end RFC3339   list sessions in range
  send        -session ID                   invite one session's trainee
  send-all    -start RFC3339 -end RFC3339   invite every session in range
  events      -start RFC3339 -end RFC3339   list remote calendar events
  upsert      -session ID [-attendee]       create or update the remote mirror
  delete      -session ID                   delete the remote mirror
  disconnect                                forget the stored credential
  history     [-start DATE] [-end DATE]     list sent invitations
  export      -start RFC3339 -end RFC3339   print sessions as iCalendar
  serve                                     run the local HTTP API
`

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code so deferred cleanup always happens before
// the process exits.
func run(argv []string) int {
	if len(argv) < 1 {
		fmt.Fprint(os.Stderr, usage)
		return exitUsage
	}

	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Debug("startup: configuration loaded", "env", cfg.Env, "database_driver", cfg.DatabaseDriver)

	injector := setupDI(cfg)
	repo, err := do.Invoke[repository.Repository](injector)
	if err != nil {
		slog.Error("failed to open repository", "error", err)
		return exitFailure
	}
	defer func() {
		if err := repo.Close(); err != nil {
			slog.Error("failed to close repository", "error", err)
		}
	}()

	cmd, args := argv[0], argv[1:]
	if cmd == "serve" {
		return runServer(injector)
	}
	adapter, err := do.Invoke[*boundary.Adapter](injector)
	if err != nil {
		slog.Error("failed to resolve dependency", "error", err)
		return exitFailure
	}
	ok, err := runCommand(context.Background(), adapter, cmd, args, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n\n%s", err, usage)
		return exitUsage
	}
	if !ok {
		return exitFailure
	}
	return exitOK
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// Logs go to stderr so that stdout carries only command output.
func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	repositoryimpl.RegisterDI(injector)
	calendarimpl.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	credential.RegisterDI(injector)
	eventcache.RegisterDI(injector)
	reconciler.RegisterDI(injector)
	dispatcher.RegisterDI(injector)
	feed.RegisterDI(injector)
	boundary.RegisterDI(injector)
	scheduler.RegisterDI(injector)
	httpapi.RegisterDI(injector)

	return injector
}

// runCommand executes one CLI command and reports whether its envelope was ok.
// A non-nil error means the command line itself was invalid.
func runCommand(ctx context.Context, a *boundary.Adapter, cmd string, args []string, out io.Writer) (bool, error) {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	start := fs.String("start", "", "range start")
	end := fs.String("end", "", "range end")
	session := fs.String("session", "", "session id")
	attendee := fs.Bool("attendee", false, "invite the trainee")
	if err := fs.Parse(args); err != nil {
		return false, err
	}
	if *session == "" && fs.NArg() > 0 {
		*session = fs.Arg(0)
	}
	rng := boundary.RangeRequest{Start: *start, End: *end}

	var res any
	var envelope func() boundary.Envelope
	switch cmd {
	case "sessions":
		r := a.ListSessions(ctx, rng)
		res, envelope = r, func() boundary.Envelope { return r.Envelope }
	case "send":
		r := a.SendInvite(ctx, boundary.SessionRequest{SessionID: *session})
		res, envelope = r, func() boundary.Envelope { return r.Envelope }
	case "send-all":
		r := a.SendAll(ctx, rng)
		res, envelope = r, func() boundary.Envelope { return r.Envelope }
		if r.OK {
			slog.Info("invitations sent", "sent", r.Sent, "total", r.Total)
		}
	case "events":
		r := a.ListEvents(ctx, rng)
		res, envelope = r, func() boundary.Envelope { return r.Envelope }
	case "upsert":
		r := a.Upsert(ctx, boundary.UpsertRequest{SessionID: *session, IncludeAttendee: *attendee})
		res, envelope = r, func() boundary.Envelope { return r.Envelope }
	case "delete":
		r := a.Delete(ctx, boundary.SessionRequest{SessionID: *session})
		res, envelope = r, func() boundary.Envelope { return r.Envelope }
	case "disconnect":
		r := a.Disconnect(ctx)
		res, envelope = r, func() boundary.Envelope { return r }
	case "history":
		r := a.ListSentHistory(ctx, rng)
		res, envelope = r, func() boundary.Envelope { return r.Envelope }
	case "export":
		r := a.ExportCalendar(ctx, rng)
		if r.OK {
			_, err := io.WriteString(out, r.Calendar)
			return err == nil, err
		}
		res, envelope = r.Envelope, func() boundary.Envelope { return r.Envelope }
	default:
		return false, fmt.Errorf("unknown command %q", cmd)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return false, err
	}
	return envelope().OK, nil
}

func runServer(injector do.Injector) int {
	server, err := do.Invoke[*httpapi.Server](injector)
	if err != nil {
		slog.Error("failed to resolve dependency", "error", err)
		return exitFailure
	}
	sched, err := do.Invoke[*scheduler.Scheduler](injector)
	if err != nil {
		slog.Error("failed to resolve dependency", "error", err)
		return exitFailure
	}
	sched.Start()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	code := exitOK
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			slog.Error("http api failed", "error", err)
			code = exitFailure
		}
	}

	sched.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("http api shutdown failed", "error", err)
	}
	return code
}
