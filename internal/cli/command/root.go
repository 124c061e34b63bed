// Package command defines the labdesk-cli command tree on urfave/cli/v2.
package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/labdesk/v2/internal/app"
	"github.com/labdesk/v2/internal/cli/output"
	"github.com/labdesk/v2/internal/config"
	"github.com/labdesk/v2/internal/logging"
	"github.com/labdesk/v2/services"
)

// Build information, set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

const appKey = "app"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "labdesk-cli",
		Usage:   "Laboratory reservation desk from the command line",
		Version: fmt.Sprintf("%s (commit: %s)", Version, Commit),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			LoginCommand(),
			LogoutCommand(),
			StatusCommand(),
			RegisterCommand(),
			ReservationCommand(),
			RoomCommand(),
			EquipmentCommand(),
			MemberCommand(),
			BookingCommand(),
			SettingsCommand(),
			CalendarCommand(),
			AskCommand(),
			AuditCommand(),
		},
		Before: setup,
		After:  teardown,
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the YAML config file",
			Value:   config.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:  "api-url",
			Usage: "Reservation API base URL (overrides config and LABDESK_API_URL)",
		},
		&cli.StringFlag{
			Name:  "data-dir",
			Usage: "Directory for the local database and token",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   string(output.FormatTable),
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show every column in table output",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Log debug output to stderr",
		},
	}
}

func setup(c *cli.Context) error {
	if _, err := output.ParseFormat(c.String("output")); err != nil {
		return err
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("api-url") {
		cfg.APIURL = c.String("api-url")
	}
	if c.IsSet("data-dir") {
		cfg.DataDir = c.String("data-dir")
	}
	if c.Bool("verbose") {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, logging.EncodingJSON)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a, err := app.Open(cfg, log)
	if err != nil {
		return err
	}
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[appKey] = a
	return nil
}

func teardown(c *cli.Context) error {
	if a, ok := c.App.Metadata[appKey].(*app.App); ok {
		return a.Close()
	}
	return nil
}

func getApp(c *cli.Context) *app.App {
	return c.App.Metadata[appKey].(*app.App)
}

func commandContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return getApp(c).RequestContext()
}

// render writes data in the --output format.
func render(c *cli.Context, data any) error {
	format, _ := output.ParseFormat(c.String("output"))
	return output.NewFormatter(format, c.Bool("wide")).Format(c.App.Writer, data)
}

func idArg(c *cli.Context) (int64, error) {
	raw := c.Args().First()
	if raw == "" {
		return 0, errors.New("ID required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ID %q", raw)
	}
	return id, nil
}

// Describe turns a command error into the line printed before exiting.
func Describe(err error) string {
	if errors.Is(err, services.ErrUnauthorized) {
		return "session expired, please log in again"
	}
	if msg := services.UserMessage(err); msg != "" {
		return msg
	}
	return err.Error()
}

func logFor(c *cli.Context) *zap.Logger {
	return getApp(c).Log
}
