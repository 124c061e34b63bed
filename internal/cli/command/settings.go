package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/labdesk/v2/core"
)

// SettingsCommand shows and edits the lab configuration.
func SettingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Show or change the lab configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the current configuration",
				Action: func(c *cli.Context) error {
					ctx, cancel := commandContext(c)
					defer cancel()
					settings, err := getApp(c).Settings.Load(ctx)
					if err != nil {
						return err
					}
					return render(c, settings)
				},
			},
			{
				Name:  "set",
				Usage: "Change the configuration",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "lab-name"},
					&cli.StringFlag{Name: "open", Usage: "Opening time, HH:MM"},
					&cli.StringFlag{Name: "close", Usage: "Closing time, HH:MM"},
				},
				Action: func(c *cli.Context) error {
					ctx, cancel := commandContext(c)
					defer cancel()
					store := getApp(c).Settings
					settings, err := store.Load(ctx)
					if err != nil {
						return err
					}
					setString(c, "lab-name", &settings.LabName, false)
					setString(c, "open", &settings.OpenTime, false)
					setString(c, "close", &settings.CloseTime, false)
					if err := store.Save(ctx, settings); err != nil {
						return err
					}
					return render(c, settings)
				},
			},
		},
	}
}

// CalendarCommand prints a month grid, marking days with reservations when
// asked to.
func CalendarCommand() *cli.Command {
	return &cli.Command{
		Name:  "calendar",
		Usage: "Print a month calendar",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "month", Usage: "Month to show, YYYY-MM (default: current month)"},
			&cli.BoolFlag{Name: "reservations", Aliases: []string{"r"}, Usage: "Mark days with reservations"},
		},
		Action: func(c *cli.Context) error {
			month := time.Now()
			if raw := c.String("month"); raw != "" {
				parsed, err := time.Parse("2006-01", raw)
				if err != nil {
					return fmt.Errorf("invalid --month %q: want YYYY-MM", raw)
				}
				month = parsed
			}
			grid := core.NewMonthGrid(month.Year(), month.Month())

			marked := map[int]bool{}
			if c.Bool("reservations") {
				ctx, cancel := commandContext(c)
				defer cancel()
				items, err := getApp(c).Reservations.List(ctx)
				if err != nil {
					return err
				}
				for _, r := range items {
					start := r.StartTime.UTC()
					if start.Year() == grid.Year && start.Month() == grid.Month {
						marked[start.Day()] = true
					}
				}
			}

			fmt.Fprint(c.App.Writer, formatMonth(grid, marked))
			return nil
		},
	}
}

func formatMonth(grid core.MonthGrid, marked map[int]bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d\n", grid.Month, grid.Year)
	b.WriteString(" Su  Mo  Tu  We  Th  Fr  Sa\n")
	for _, week := range grid.Weeks() {
		for i, day := range week {
			if i > 0 {
				b.WriteByte(' ')
			}
			switch {
			case day == 0:
				b.WriteString("   ")
			case marked[day]:
				fmt.Fprintf(&b, "%2d*", day)
			default:
				fmt.Fprintf(&b, "%2d ", day)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
