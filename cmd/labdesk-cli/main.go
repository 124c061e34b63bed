// Command labdesk-cli manages lab reservations, rooms, equipment and members
// from the terminal. It shares its session and local data with the desktop app.
package main

import (
	"fmt"
	"os"

	"github.com/labdesk/v2/internal/cli/command"
)

func main() {
	if err := command.App().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", command.Describe(err))
		os.Exit(1)
	}
}
