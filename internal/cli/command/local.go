package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/labdesk/v2/core"
	"github.com/labdesk/v2/internal/app"
	"github.com/labdesk/v2/internal/types"
)

type validatable[T any] interface {
	types.Entity[T]
	Validate() error
}

// localEntity describes a CRUD command group over a locally stored
// collection.
type localEntity[T validatable[T]] struct {
	name    string
	aliases []string
	usage   string
	repo    func(*app.App) *core.LocalRepository[T]
	flags   func(add bool) []cli.Flag
	// apply copies flags onto item; with all set, defaults are applied too.
	apply func(c *cli.Context, item T, all bool) T
}

func localCommand[T validatable[T]](e localEntity[T]) *cli.Command {
	return &cli.Command{
		Name:    e.name,
		Aliases: e.aliases,
		Usage:   e.usage,
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List every " + e.name,
				Action: func(c *cli.Context) error {
					ctx, cancel := commandContext(c)
					defer cancel()
					items, err := e.repo(getApp(c)).List(ctx)
					if err != nil {
						return err
					}
					return render(c, items)
				},
			},
			{
				Name:  "add",
				Usage: "Add a " + e.name,
				Flags: e.flags(true),
				Action: func(c *cli.Context) error {
					var zero T
					item := e.apply(c, zero, true)
					if err := item.Validate(); err != nil {
						return err
					}
					ctx, cancel := commandContext(c)
					defer cancel()
					created, err := e.repo(getApp(c)).Create(ctx, item)
					if err != nil {
						return err
					}
					return render(c, created)
				},
			},
			{
				Name:      "update",
				Usage:     "Change fields of a " + e.name,
				ArgsUsage: "ID",
				Flags:     e.flags(false),
				Action: func(c *cli.Context) error {
					id, err := idArg(c)
					if err != nil {
						return err
					}
					ctx, cancel := commandContext(c)
					defer cancel()
					repo := e.repo(getApp(c))
					current, err := repo.Get(ctx, id)
					if err != nil {
						return err
					}
					item := e.apply(c, current, false)
					if err := item.Validate(); err != nil {
						return err
					}
					updated, err := repo.Update(ctx, id, item)
					if err != nil {
						return err
					}
					return render(c, updated)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a " + e.name,
				ArgsUsage: "ID",
				Action: func(c *cli.Context) error {
					id, err := idArg(c)
					if err != nil {
						return err
					}
					ctx, cancel := commandContext(c)
					defer cancel()
					if err := e.repo(getApp(c)).Delete(ctx, id); err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "Deleted %s %d\n", e.name, id)
					return nil
				},
			},
		},
	}
}

func setString(c *cli.Context, name string, dst *string, all bool) {
	if all || c.IsSet(name) {
		*dst = c.String(name)
	}
}

// RoomCommand manages the locally stored rooms.
func RoomCommand() *cli.Command {
	return localCommand(localEntity[types.Room]{
		name:  "room",
		usage: "Manage laboratory rooms",
		repo:  func(a *app.App) *core.LocalRepository[types.Room] { return a.Rooms },
		flags: func(add bool) []cli.Flag {
			return []cli.Flag{
				&cli.StringFlag{Name: "name", Required: add},
				&cli.IntFlag{Name: "capacity", Required: add},
				&cli.StringFlag{Name: "status", Value: types.RoomAvailable, Usage: "available, occupied or maintenance"},
			}
		},
		apply: func(c *cli.Context, r types.Room, all bool) types.Room {
			setString(c, "name", &r.Name, all)
			setString(c, "status", &r.Status, all)
			if all || c.IsSet("capacity") {
				r.Capacity = c.Int("capacity")
			}
			return r
		},
	})
}

// EquipmentCommand manages the locally stored equipment.
func EquipmentCommand() *cli.Command {
	return localCommand(localEntity[types.Equipment]{
		name:    "equipment",
		aliases: []string{"eq"},
		usage:   "Manage laboratory equipment",
		repo:    func(a *app.App) *core.LocalRepository[types.Equipment] { return a.Equipment },
		flags: func(add bool) []cli.Flag {
			return []cli.Flag{
				&cli.StringFlag{Name: "name", Required: add},
				&cli.StringFlag{Name: "kind", Required: add},
				&cli.StringFlag{Name: "status", Value: types.EquipmentAvailable, Usage: "available, in_use or maintenance"},
			}
		},
		apply: func(c *cli.Context, e types.Equipment, all bool) types.Equipment {
			setString(c, "name", &e.Name, all)
			setString(c, "kind", &e.Kind, all)
			setString(c, "status", &e.Status, all)
			return e
		},
	})
}

// MemberCommand manages the locally stored lab members.
func MemberCommand() *cli.Command {
	return localCommand(localEntity[types.Member]{
		name:  "member",
		usage: "Manage registered lab members",
		repo:  func(a *app.App) *core.LocalRepository[types.Member] { return a.Members },
		flags: func(add bool) []cli.Flag {
			return []cli.Flag{
				&cli.StringFlag{Name: "name", Required: add},
				&cli.StringFlag{Name: "email", Required: add},
				&cli.StringFlag{Name: "role", Value: types.RoleUser, Usage: "user or admin"},
			}
		},
		apply: func(c *cli.Context, m types.Member, all bool) types.Member {
			setString(c, "name", &m.Name, all)
			setString(c, "email", &m.Email, all)
			setString(c, "role", &m.Role, all)
			return m
		},
	})
}

// BookingCommand shows the historical bookings.
func BookingCommand() *cli.Command {
	return &cli.Command{
		Name:  "booking",
		Usage: "Browse historical bookings",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List bookings",
				Action: func(c *cli.Context) error {
					ctx, cancel := commandContext(c)
					defer cancel()
					items, err := getApp(c).Bookings.List(ctx)
					if err != nil {
						return err
					}
					return render(c, items)
				},
			},
		},
	}
}
