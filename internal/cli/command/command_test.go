package command

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/labdesk/v2/internal/labapitest"
	"github.com/labdesk/v2/internal/types"
	"github.com/labdesk/v2/services"
)

type harness struct {
	api     *labapitest.Server
	dataDir string
	config  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	api := labapitest.New()
	t.Cleanup(api.Close)
	dir := t.TempDir()
	return &harness{
		api:     api,
		dataDir: filepath.Join(dir, "data"),
		config:  filepath.Join(dir, "config.yaml"),
	}
}

// run executes one CLI invocation and returns its stdout.
func (h *harness) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := App()
	app.Writer = &out
	app.ErrWriter = &errOut
	app.Reader = strings.NewReader(stdin)

	full := append([]string{"labdesk-cli",
		"--config", h.config,
		"--api-url", h.api.URL,
		"--data-dir", h.dataDir,
	}, args...)
	err := app.Run(full)
	return out.String(), err
}

func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := h.run(t, "", args...)
	require.NoError(t, err, "labdesk-cli %s", strings.Join(args, " "))
	return out
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	h.mustRun(t, "login", "-u", labapitest.DefaultUsername, "-p", labapitest.DefaultPassword)
}

func TestLoginStatusLogout(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun(t, "-o", "json", "status")
	assert.Contains(t, out, `"state": "anonymous"`)

	_, err := h.run(t, "", "login", "-u", "admin", "-p", "wrong")
	require.ErrorIs(t, err, services.ErrInvalidCredentials)
	assert.Equal(t, "invalid username or password", Describe(err))

	out = h.mustRun(t, "login", "-u", labapitest.DefaultUsername, "-p", labapitest.DefaultPassword)
	assert.Contains(t, out, "Logged in as admin")

	out = h.mustRun(t, "-o", "json", "status", "--check")
	assert.Contains(t, out, `"state": "authenticated"`)
	assert.Contains(t, out, `"checked": true`)

	assert.Contains(t, h.mustRun(t, "logout"), "Logged out")
	assert.Contains(t, h.mustRun(t, "logout"), "Not logged in")
}

func TestLoginReadsPasswordFromStdin(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, labapitest.DefaultPassword+"\n", "login", "-u", labapitest.DefaultUsername)
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in")
}

func TestReservationLifecycle(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	out := h.mustRun(t, "-o", "json", "reservation", "create",
		"--lab", "Lab Química", "--by", "Ana Pérez", "--purpose", "Titration",
		"--start", "2025-03-01T14:00")
	var created types.Reservation
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "Lab Química", created.LabName)
	assert.Equal(t, "2025-03-01T14:00:00.000Z", created.StartTime.String())

	id := jsonID(created.ID)
	out = h.mustRun(t, "-o", "json", "reservation", "update", id, "--purpose", "Spectroscopy", "--active=false")
	var updated types.Reservation
	require.NoError(t, json.Unmarshal([]byte(out), &updated))
	assert.Equal(t, "Spectroscopy", updated.Purpose)
	assert.Equal(t, "Lab Química", updated.LabName)
	assert.False(t, updated.Active)

	out = h.mustRun(t, "reservation", "list", "--lab", "química", "--date", "2025-03-01")
	assert.Contains(t, out, "LAB_NAME")
	assert.Contains(t, out, "Spectroscopy")
	assert.NotContains(t, out, "OWNER_ID")
	assert.Contains(t, h.mustRun(t, "--wide", "reservation", "list"), "OWNER_ID")

	out = h.mustRun(t, "reservation", "analysis")
	assert.Contains(t, out, "Popular hours:")
	assert.Contains(t, out, "Lab Química")

	assert.Contains(t, h.mustRun(t, "reservation", "delete", id), "deleted")
	_, err := h.run(t, "", "reservation", "get", id)
	require.Error(t, err)
	assert.Equal(t, "Reserva no encontrada o sin permisos", Describe(err))
}

func TestReservationCreateValidatesLocally(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	before := h.api.Requests()

	_, err := h.run(t, "", "reservation", "create", "--lab", "AB", "--by", "Ana", "--purpose", "Test", "--start", "2025-03-01T14:00")
	var validationErr *types.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, before, h.api.Requests())
}

func TestExpiredSession(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.api.ExpireTokens()

	_, err := h.run(t, "", "reservation", "list")
	require.ErrorIs(t, err, services.ErrUnauthorized)
	assert.Equal(t, "session expired, please log in again", Describe(err))

	before := h.api.Requests()
	_, err = h.run(t, "", "reservation", "list")
	require.ErrorIs(t, err, services.ErrUnauthorized)
	assert.Equal(t, before, h.api.Requests())

	assert.Contains(t, h.mustRun(t, "-o", "json", "status"), `"state": "anonymous"`)
}

func TestLocalCollections(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun(t, "-o", "json", "room", "add", "--name", "Lab A", "--capacity", "20")
	var room types.Room
	require.NoError(t, json.Unmarshal([]byte(out), &room))
	assert.Equal(t, types.RoomAvailable, room.Status)

	out = h.mustRun(t, "-o", "json", "room", "update", jsonID(room.ID), "--status", "maintenance")
	require.NoError(t, json.Unmarshal([]byte(out), &room))
	assert.Equal(t, types.RoomMaintenance, room.Status)
	assert.Equal(t, 20, room.Capacity)

	_, err := h.run(t, "", "room", "add", "--name", "Lab B", "--capacity", "0")
	var validationErr *types.ValidationError
	require.ErrorAs(t, err, &validationErr)

	h.mustRun(t, "equipment", "add", "--name", "Microscope", "--kind", "optics")
	h.mustRun(t, "member", "add", "--name", "Ana", "--email", "ana@lab.test", "--role", "admin")

	out = h.mustRun(t, "-o", "yaml", "member", "list")
	assert.Contains(t, out, "email: ana@lab.test")
	assert.Contains(t, h.mustRun(t, "equipment", "list"), "Microscope")

	assert.Contains(t, h.mustRun(t, "room", "delete", jsonID(room.ID)), "Deleted room")
	_, err = h.run(t, "", "room", "delete", jsonID(room.ID))
	assert.ErrorIs(t, err, types.ErrNotFound)

	assert.Equal(t, "[]\n", h.mustRun(t, "-o", "json", "booking", "list"))
	assert.Zero(t, h.api.Requests())
}

func TestSettings(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun(t, "settings", "show")
	assert.Contains(t, out, "Laboratorio Central")

	out = h.mustRun(t, "-o", "yaml", "settings", "set", "--open", "07:00")
	assert.Regexp(t, `open_time: "?07:00"?`, out)
	assert.Regexp(t, `close_time: "?18:00"?`, out)

	_, err := h.run(t, "", "settings", "set", "--close", "06:00")
	require.Error(t, err)
	assert.Contains(t, h.mustRun(t, "settings", "show"), "07:00")
}

func TestCalendar(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.mustRun(t, "reservation", "create", "--lab", "Lab A", "--by", "Ana", "--purpose", "Demo", "--start", "2025-03-14T10:00")

	out := h.mustRun(t, "calendar", "--month", "2025-03", "-r")
	assert.True(t, strings.HasPrefix(out, "March 2025\n"))
	assert.Contains(t, out, "14*")
	assert.Contains(t, out, "                         1 \n")
}

func TestAskAndAudit(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.api.SetChatReply("answer", "Lab A is the busiest.")

	assert.Equal(t, "Lab A is the busiest.\n", h.mustRun(t, "ask", "which", "lab", "is", "busiest?"))

	_, err := h.run(t, "", "ask")
	assert.ErrorIs(t, err, services.ErrEmptyQuestion)

	h.mustRun(t, "reservation", "create", "--lab", "Lab A", "--by", "Ana", "--purpose", "Demo", "--start", "2025-03-14T10:00")
	out := h.mustRun(t, "audit", "--limit", "1")
	assert.Contains(t, out, "ACTION")
	assert.Contains(t, out, "create")
}

func TestUnknownOutputFormat(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "", "-o", "xml", "status")
	assert.ErrorContains(t, err, "unknown output format")
}

func jsonID(id int64) string {
	data, _ := json.Marshal(id)
	return string(data)
}

func TestCommandContextFollowsConfiguredTimeout(t *testing.T) {
	deadlineOf := func(t *testing.T) (time.Time, bool) {
		h := newHarness(t)
		var (
			deadline time.Time
			bounded  bool
		)
		app := App()
		app.Commands = append(app.Commands, &cli.Command{
			Name: "deadline",
			Action: func(c *cli.Context) error {
				ctx, cancel := commandContext(c)
				defer cancel()
				deadline, bounded = ctx.Deadline()
				return ctx.Err()
			},
		})
		require.NoError(t, app.Run([]string{"labdesk-cli",
			"--config", h.config,
			"--api-url", h.api.URL,
			"--data-dir", h.dataDir,
			"deadline",
		}))
		return deadline, bounded
	}

	_, bounded := deadlineOf(t)
	assert.False(t, bounded)

	t.Setenv("LABDESK_REQUEST_TIMEOUT_SECONDS", "7")
	deadline, bounded := deadlineOf(t)
	require.True(t, bounded)
	assert.WithinDuration(t, time.Now().Add(7*time.Second), deadline, 2*time.Second)
}
