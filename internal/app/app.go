package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/five82/newsdesk/internal/backend"
	"github.com/five82/newsdesk/internal/config"
	"github.com/five82/newsdesk/internal/credential"
	"github.com/five82/newsdesk/internal/desk"
	"github.com/five82/newsdesk/internal/feedimport"
	"github.com/five82/newsdesk/internal/logging"
	"github.com/five82/newsdesk/internal/mirror"
	"github.com/five82/newsdesk/internal/prefs"
	"github.com/five82/newsdesk/internal/retry"
	"github.com/five82/newsdesk/internal/ui"
	"github.com/five82/newsdesk/internal/workflow"
)

// Options configure the newsdesk application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/newsdesk/prefs.toml
	PollEvery  int    // seconds; zero uses the configured interval
	// ImportURL, when set, imports that feed and exits instead of starting
	// the TUI.
	ImportURL string
	// Stdout receives the import report.
	Stdout io.Writer
}

// Services are the wired components behind every front end.
type Services struct {
	Config   config.Config
	Desk     *desk.Desk
	Importer *feedimport.Importer

	closers []io.Closer
}

// Close releases the mirror and anything else Build opened.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Build wires configuration into a ready Desk. Component loggers write to
// logOut.
func Build(cfg config.Config, logOut io.Writer) (*Services, error) {
	svc := &Services{Config: cfg}

	resolver := credential.NewResolver([]credential.Tier{
		{Name: "durable", Store: credential.NewFileStore(cfg.Credentials.File)},
		{Name: "session", Store: credential.NewEnvStore(cfg.Credentials.EnvPrefix)},
	}, cfg.Credentials.Keys, logging.New("credential", logOut))

	client, err := backend.NewClient(backend.Options{
		BaseURL:        cfg.BaseURL,
		UserAgent:      cfg.UserAgent,
		AttemptTimeout: cfg.AttemptTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init backend client: %w", err)
	}

	cascadeLog := logging.New("cascade", logOut)
	sched := retry.New(cfg.Retry.MaxAttempts, cfg.Retry.InitialDelay)
	if cfg.Retry.MaxDelay > 0 {
		sched.MaxDelay = cfg.Retry.MaxDelay
	}
	sched.OnRetry = func(attempt int, delay time.Duration, err error) {
		cascadeLog.Printf("attempt %d failed, retrying in %s: %v", attempt, delay, err)
	}
	cascade := backend.NewCascade(client, sched, cascadeLog)

	cache, err := openMirror(cfg.Mirror)
	if err != nil {
		return nil, err
	}
	if closer, ok := cache.(io.Closer); ok {
		svc.closers = append(svc.closers, closer)
	}

	deskLog := logging.New("desk", logOut)
	svc.Desk = desk.New(resolver, cascade, cache, desk.Options{
		Catalog:        cfg.Endpoints,
		CascadeRetries: cfg.Retry.CascadeRetries,
		RetryDelay:     cfg.Retry.InitialDelay,
		Actor:          workflow.Actor{ID: cfg.Actor.ID, Role: workflow.ParseRole(cfg.Actor.Role)},
		Markers:        cfg.Markers,
		Logger:         deskLog,
	})
	svc.Importer = feedimport.New(svc.Desk, feedimport.Options{Logger: logging.New("import", logOut)})
	return svc, nil
}

func openMirror(m config.Mirror) (mirror.Cache, error) {
	switch m.Driver {
	case "memory":
		return mirror.NewMemoryCache(), nil
	default:
		cache, err := mirror.OpenSQLite(m.Path)
		if err != nil {
			return nil, fmt.Errorf("open mirror: %w", err)
		}
		return cache, nil
	}
}

// Run boots newsdesk until the context is cancelled or the user quits.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logFile, err := logging.OpenFile(cfg.LogPath())
	if err != nil {
		return err
	}
	defer logFile.Close()

	svc, err := Build(cfg, logFile)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	if opts.ImportURL != "" {
		return runImport(ctx, svc, opts.ImportURL, opts.Stdout)
	}

	interval := cfg.PollInterval
	if opts.PollEvery > 0 {
		interval = time.Duration(opts.PollEvery) * time.Second
	}
	pollLog := logging.New("poller", logFile)

	// Populate the store before the UI draws its first frame.
	if err := svc.Desk.Refresh(ctx); err != nil {
		pollLog.Printf("initial refresh: %v", err)
	}
	StartPoller(ctx, svc.Desk, interval, pollLog)

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	userPrefs, _ := prefs.Load(prefsPath)
	return ui.Run(ui.Options{
		Context:   ctx,
		Desk:      svc.Desk,
		LogPath:   cfg.LogPath(),
		ThemeName: userPrefs.Theme,
		Queue:     userPrefs.Queue,
		PrefsPath: prefsPath,
	})
}

func runImport(ctx context.Context, svc *Services, feedURL string, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	report, err := svc.Importer.ImportURL(ctx, feedURL)
	printReport(out, report)
	if err != nil {
		return fmt.Errorf("import %s: %w", feedURL, err)
	}
	if report.Failed() > 0 {
		return fmt.Errorf("import %s: %d of %d entries failed", feedURL, report.Failed(), len(report.Outcomes))
	}
	return nil
}

func printReport(out io.Writer, report feedimport.Report) {
	w := log.New(out, "", 0)
	for _, o := range report.Outcomes {
		switch {
		case o.Skipped:
			w.Printf("skip  %s (duplicate)", o.Title)
		case o.Err != nil:
			w.Printf("fail  %s: %v", o.Title, o.Err)
		default:
			w.Printf("ok    %s -> %s (%s)", o.Title, o.ItemID, o.Rung)
			for _, warning := range o.Warnings {
				w.Printf("      warning: %s", warning)
			}
		}
	}
	w.Printf("%s: %d created, %d failed", report.Feed, report.Created(), report.Failed())
}
