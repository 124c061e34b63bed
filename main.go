// Command labdesk is the desktop client of the laboratory reservation
// service.
package main

import (
	"fmt"
	"os"

	fyneapp "fyne.io/fyne/v2/app"
	"go.uber.org/zap"

	"github.com/labdesk/v2/assets"
	"github.com/labdesk/v2/internal/app"
	"github.com/labdesk/v2/internal/config"
	"github.com/labdesk/v2/internal/logging"
	"github.com/labdesk/v2/ui"
)

const appID = "io.labdesk.desktop"

func main() {
	cfg, err := config.Load(config.DefaultConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel, logging.EncodingConsole)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	stack, err := app.Open(cfg, log)
	if err != nil {
		log.Fatal("failed to open local data", zap.Error(err))
	}
	defer stack.Close()

	ctx, cancel := stack.RequestContext()
	if err := stack.ValidateSession(ctx); err != nil {
		log.Warn("starting logged out", zap.Error(err))
	}
	cancel()

	a := fyneapp.NewWithID(appID)
	a.SetIcon(assets.Icon())

	unsubscribe := ui.NewRouter(a, stack, log.Named("ui")).Start()
	defer unsubscribe()

	// Blocks until the user quits from the tray or closes the login window.
	a.Run()
	log.Info("application exited")
}
