package command

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
)

// AskCommand sends a question to the AI assistant.
func AskCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Ask the AI assistant about reservations",
		ArgsUsage: "QUESTION...",
		Action: func(c *cli.Context) error {
			question := strings.Join(c.Args().Slice(), " ")
			ctx, cancel := commandContext(c)
			defer cancel()

			answer, err := getApp(c).Chat.Ask(ctx, question)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, answer)
			return nil
		},
	}
}

// AuditCommand lists the server's audit log.
func AuditCommand() *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "Show the audit log, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "skip", Usage: "Entries to skip"},
			&cli.IntFlag{Name: "limit", Value: 100, Usage: "Maximum entries to show"},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := commandContext(c)
			defer cancel()

			entries, err := getApp(c).Audit.List(ctx, c.Int("skip"), c.Int("limit"))
			if err != nil {
				return err
			}
			return render(c, entries)
		},
	}
}
