package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labdesk/v2/internal/auth"
	"github.com/labdesk/v2/internal/config"
	"github.com/labdesk/v2/internal/labapitest"
)

func openTestApp(t *testing.T, apiURL string, mutate func(*config.Config)) *App {
	t.Helper()
	cfg := config.Default()
	cfg.APIURL = apiURL
	cfg.DataDir = t.TempDir()
	if mutate != nil {
		mutate(cfg)
	}
	a, err := Open(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestRequestContext_NoTimeoutByDefault(t *testing.T) {
	a := openTestApp(t, config.DefaultAPIURL, nil)

	ctx, cancel := a.RequestContext()
	defer cancel()
	_, ok := ctx.Deadline()
	assert.False(t, ok)
	assert.NoError(t, ctx.Err())

	cancel()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestRequestContext_ConfiguredTimeout(t *testing.T) {
	a := openTestApp(t, config.DefaultAPIURL, func(c *config.Config) { c.RequestTimeoutSec = 5 })

	ctx, cancel := a.RequestContext()
	defer cancel()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(5*time.Second), deadline, time.Second)
	assert.NoError(t, ctx.Err())
}

func TestValidateSession_RejectedTokenEndsSession(t *testing.T) {
	api := labapitest.New()
	t.Cleanup(api.Close)
	a := openTestApp(t, api.URL, func(c *config.Config) { c.ValidateOnStartup = true })

	require.NoError(t, a.Session.Login(context.Background(), auth.Credentials{
		Username: labapitest.DefaultUsername,
		Password: labapitest.DefaultPassword,
	}))
	api.ExpireTokens()

	ctx, cancel := a.RequestContext()
	defer cancel()
	err := a.ValidateSession(ctx)
	require.Error(t, err)
	assert.ErrorContains(t, err, "stored session rejected")
	assert.False(t, a.Session.IsAuthenticated())
	assert.Equal(t, 1, api.RequestsTo("/reservations/"))

	token, err := a.Tokens.Get()
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestValidateSession_Disabled(t *testing.T) {
	api := labapitest.New()
	t.Cleanup(api.Close)
	a := openTestApp(t, api.URL, nil)

	require.NoError(t, a.Session.Login(context.Background(), auth.Credentials{
		Username: labapitest.DefaultUsername,
		Password: labapitest.DefaultPassword,
	}))
	api.ExpireTokens()

	ctx, cancel := a.RequestContext()
	defer cancel()
	require.NoError(t, a.ValidateSession(ctx))
	assert.True(t, a.Session.IsAuthenticated())
	assert.Zero(t, api.RequestsTo("/reservations/"))
}
