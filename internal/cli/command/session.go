package command

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/labdesk/v2/internal/auth"
	"github.com/labdesk/v2/services"
)

// LoginCommand exchanges credentials for a token and stores it.
func LoginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Log in to the reservation API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "username",
				Aliases:  []string{"u"},
				Usage:    "Account username",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "Account password (read from stdin when omitted)",
			},
		},
		Action: login,
	}
}

func login(c *cli.Context) error {
	password := c.String("password")
	if !c.IsSet("password") {
		line, err := readLine(c)
		if err != nil {
			return err
		}
		password = line
	}

	ctx, cancel := commandContext(c)
	defer cancel()

	a := getApp(c)
	err := a.Session.Login(ctx, auth.Credentials{Username: c.String("username"), Password: password})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Logged in as %s\n", c.String("username"))
	return nil
}

func readLine(c *cli.Context) (string, error) {
	fmt.Fprint(c.App.ErrWriter, "Password: ")
	line, err := bufio.NewReader(c.App.Reader).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.New("password required")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// LogoutCommand ends the session and forgets the token.
func LogoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Log out and remove the stored token",
		Action: func(c *cli.Context) error {
			a := getApp(c)
			if !a.Session.IsAuthenticated() {
				fmt.Fprintln(c.App.Writer, "Not logged in")
				return nil
			}
			a.Session.Logout()
			fmt.Fprintln(c.App.Writer, "Logged out")
			return nil
		},
	}
}

type statusView struct {
	State        string `json:"state" yaml:"state"`
	APIURL       string `json:"api_url" yaml:"api_url"`
	DataDir      string `json:"data_dir" yaml:"data_dir"`
	TokenBackend string `json:"token_backend" yaml:"token_backend"`
	Checked      bool   `json:"checked" yaml:"checked"`
}

// StatusCommand reports the session state, optionally checking the token
// against the server.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show session and configuration status",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "check",
				Usage: "Verify the stored token with the server",
			},
		},
		Action: func(c *cli.Context) error {
			a := getApp(c)
			view := statusView{
				APIURL:       a.Config.APIURL,
				DataDir:      a.Config.DataDir,
				TokenBackend: a.Config.TokenBackend,
			}
			if c.Bool("check") && a.Session.IsAuthenticated() {
				ctx, cancel := commandContext(c)
				defer cancel()
				err := a.Session.Validate(ctx, a.API)
				if err != nil && !errors.Is(err, services.ErrUnauthorized) {
					return err
				}
				view.Checked = true
			}
			view.State = a.Session.State().String()
			return render(c, view)
		},
	}
}

// RegisterCommand creates an account and logs in with it.
func RegisterCommand() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Create an API account and log in",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Required: true},
			&cli.StringFlag{Name: "full-name"},
			&cli.StringFlag{Name: "email"},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := commandContext(c)
			defer cancel()

			reg := auth.Registration{
				Username: c.String("username"),
				Password: c.String("password"),
				FullName: c.String("full-name"),
				Email:    c.String("email"),
			}
			if err := getApp(c).Session.Register(ctx, reg); err != nil {
				logFor(c).Debug("registration failed", zap.Error(err))
				return err
			}
			fmt.Fprintf(c.App.Writer, "Registered and logged in as %s\n", reg.Username)
			return nil
		},
	}
}
