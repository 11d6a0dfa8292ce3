package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/five82/newsdesk/internal/app"
	"github.com/five82/newsdesk/internal/devserver"
	"github.com/five82/newsdesk/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "override newsdesk config path (optional)")
	prefsPath := flag.String("prefs", "", "override UI preferences path (optional)")
	pollSeconds := flag.Int("poll", 0, "refresh interval in seconds (optional, defaults to the configured poll_interval)")
	importURL := flag.String("import", "", "import an RSS or Atom feed as drafts and exit")
	devAddr := flag.String("devserver", "", "serve an in-memory content backend on this address and exit on interrupt")
	devToken := flag.String("devserver-token", "", "bearer token the dev server requires (optional)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if addr := strings.TrimSpace(*devAddr); addr != "" {
		srv := devserver.New(devserver.Options{
			Seed:   true,
			Rotate: true,
			Token:  *devToken,
			Logger: logging.New("devserver", os.Stderr),
		})
		if err := srv.ListenAndServe(ctx, addr); err != nil {
			fmt.Fprintf(os.Stderr, "newsdesk: %v\n", err)
			return 1
		}
		return 0
	}

	opts := app.Options{
		ConfigPath: *configPath,
		PrefsPath:  *prefsPath,
		ImportURL:  strings.TrimSpace(*importURL),
		Stdout:     os.Stdout,
	}
	if poll := *pollSeconds; poll > 0 {
		opts.PollEvery = poll
	}

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "newsdesk: %v\n", err)
		return 1
	}
	return 0
}
