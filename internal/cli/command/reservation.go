package command

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/labdesk/v2/internal/types"
)

func reservationFlags(create bool) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "lab", Usage: "Laboratory name", Required: create},
		&cli.StringFlag{Name: "by", Usage: "Person reserving", Required: create},
		&cli.StringFlag{Name: "purpose", Usage: "Purpose of the reservation", Required: create},
		&cli.StringFlag{Name: "start", Usage: "Start time, RFC3339 or YYYY-MM-DDTHH:MM (UTC)", Required: create},
		&cli.BoolFlag{Name: "active", Usage: "Whether the reservation is active", Value: true},
	}
}

// ReservationCommand groups the remote reservation operations.
func ReservationCommand() *cli.Command {
	return &cli.Command{
		Name:    "reservation",
		Aliases: []string{"res"},
		Usage:   "Manage lab reservations",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List your reservations",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "lab", Usage: "Only labs whose name contains this text"},
					&cli.StringFlag{Name: "date", Usage: "Only reservations starting on this day (YYYY-MM-DD)"},
				},
				Action: reservationList,
			},
			{
				Name:      "get",
				Usage:     "Show one reservation",
				ArgsUsage: "ID",
				Action:    reservationGet,
			},
			{
				Name:   "create",
				Usage:  "Create a reservation",
				Flags:  reservationFlags(true),
				Action: reservationCreate,
			},
			{
				Name:      "update",
				Usage:     "Change fields of a reservation",
				ArgsUsage: "ID",
				Flags:     reservationFlags(false),
				Action:    reservationUpdate,
			},
			{
				Name:      "delete",
				Usage:     "Delete a reservation",
				ArgsUsage: "ID",
				Action:    reservationDelete,
			},
			{
				Name:   "analysis",
				Usage:  "Show the most popular hours and labs",
				Action: reservationAnalysis,
			},
		},
	}
}

func reservationList(c *cli.Context) error {
	filter := types.ReservationFilter{LabName: c.String("lab")}
	if raw := c.String("date"); raw != "" {
		day, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", raw)
		}
		filter.StartDate = day
	}

	ctx, cancel := commandContext(c)
	defer cancel()

	items, err := getApp(c).Reservations.ListFiltered(ctx, filter)
	if err != nil {
		return err
	}
	return render(c, items)
}

func reservationGet(c *cli.Context) error {
	id, err := idArg(c)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(c)
	defer cancel()

	item, err := getApp(c).Reservations.Get(ctx, id)
	if err != nil {
		return err
	}
	return render(c, item)
}

// applyReservationFlags copies the flags that were given onto in. With all
// set every flag is applied, defaults included.
func applyReservationFlags(c *cli.Context, in *types.ReservationInput, all bool) error {
	if all || c.IsSet("lab") {
		in.LabName = c.String("lab")
	}
	if all || c.IsSet("by") {
		in.ReservedBy = c.String("by")
	}
	if all || c.IsSet("purpose") {
		in.Purpose = c.String("purpose")
	}
	if all || c.IsSet("active") {
		in.Active = c.Bool("active")
	}
	if all || c.IsSet("start") {
		start, err := types.ParseTimestamp(c.String("start"))
		if err != nil {
			return err
		}
		in.StartTime = types.NewTimestamp(start)
	}
	return nil
}

func reservationCreate(c *cli.Context) error {
	var in types.ReservationInput
	if err := applyReservationFlags(c, &in, true); err != nil {
		return err
	}
	ctx, cancel := commandContext(c)
	defer cancel()

	created, err := getApp(c).Reservations.CreateReservation(ctx, in)
	if err != nil {
		return err
	}
	return render(c, created)
}

func reservationUpdate(c *cli.Context) error {
	id, err := idArg(c)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(c)
	defer cancel()

	reservations := getApp(c).Reservations
	current, err := reservations.Get(ctx, id)
	if err != nil {
		return err
	}
	in := current.Input()
	if err := applyReservationFlags(c, &in, false); err != nil {
		return err
	}
	updated, err := reservations.UpdateReservation(ctx, id, in)
	if err != nil {
		return err
	}
	return render(c, updated)
}

func reservationDelete(c *cli.Context) error {
	id, err := idArg(c)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(c)
	defer cancel()

	if err := getApp(c).Reservations.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Reservation %d deleted\n", id)
	return nil
}

func reservationAnalysis(c *cli.Context) error {
	ctx, cancel := commandContext(c)
	defer cancel()

	analysis, err := getApp(c).Reservations.PopularTimes(ctx)
	if err != nil {
		return err
	}
	if c.String("output") != "table" {
		return render(c, analysis)
	}
	fmt.Fprintln(c.App.Writer, "Popular hours:")
	if err := render(c, analysis.PopularHours); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "\nPopular labs:")
	return render(c, analysis.PopularLabs)
}
