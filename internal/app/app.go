// Package app assembles the client stack shared by the desktop app and the
// CLI: storage, the token store, the dispatcher, the session and the
// services built on them.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/labdesk/v2/core"
	"github.com/labdesk/v2/internal/config"
	"github.com/labdesk/v2/internal/types"
	"github.com/labdesk/v2/services"
)

type App struct {
	Config *config.Config
	Log    *zap.Logger

	DB      *core.Database
	Tokens  services.TokenStore
	API     *services.APIClient
	Session *services.AuthService

	Reservations *services.ReservationService
	Chat         *services.ChatService
	Audit        *services.AuditService

	Rooms     *core.LocalRepository[types.Room]
	Equipment *core.LocalRepository[types.Equipment]
	Members   *core.LocalRepository[types.Member]
	Bookings  *core.LocalRepository[types.Booking]
	Settings  *core.SettingsStore
	Dashboard *core.DashboardManager
}

// Open connects the local database and wires every component. The caller
// must Close the returned App.
func Open(cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	db := core.NewDatabase(cfg.DatabasePath())
	if err := db.Connect(); err != nil {
		return nil, err
	}

	var tokens services.TokenStore
	switch cfg.TokenBackend {
	case config.TokenBackendFile:
		tokens = core.NewFileTokenStore(cfg.TokenFilePath())
	default:
		tokens = core.NewKVTokenStore(db)
	}

	api := services.NewAPIClient(cfg.APIURL, tokens,
		services.WithTimeout(cfg.RequestTimeout()),
		services.WithLogger(log.Named("api")))
	session := services.NewAuthService(cfg.APIURL, tokens,
		services.WithAuthLogger(log.Named("session")))
	session.Bind(api)

	a := &App{
		Config:       cfg,
		Log:          log,
		DB:           db,
		Tokens:       tokens,
		API:          api,
		Session:      session,
		Reservations: services.NewReservationService(api),
		Chat:         services.NewChatService(api),
		Audit:        services.NewAuditService(api),
		Rooms:        core.NewLocalRepository[types.Room](db, core.RoomsKey, log),
		Equipment:    core.NewLocalRepository[types.Equipment](db, core.EquipmentKey, log),
		Members:      core.NewLocalRepository[types.Member](db, core.MembersKey, log),
		Bookings:     core.NewLocalRepository[types.Booking](db, core.BookingsKey, log),
		Settings:     core.NewSettingsStore(db, log),
	}
	a.Dashboard = core.NewDashboardManager(a.Reservations, a.Rooms, a.Equipment, a.Members, log.Named("dashboard"))
	a.Dashboard.Bind(session)

	log.Debug("client stack ready",
		zap.String("api_url", cfg.APIURL),
		zap.String("data_dir", cfg.DataDir),
		zap.String("token_backend", cfg.TokenBackend))
	return a, nil
}

// ValidateSession runs the eager token check when the configuration asks
// for it. Only a rejected token is reported; an unreachable server leaves
// the optimistic session in place.
func (a *App) ValidateSession(ctx context.Context) error {
	if !a.Config.ValidateOnStartup || !a.Session.IsAuthenticated() {
		return nil
	}
	err := a.Session.Validate(ctx, a.API)
	if err != nil && !a.Session.IsAuthenticated() {
		return fmt.Errorf("stored session rejected: %w", err)
	}
	return nil
}

// RequestContext returns a context bounded by the configured request
// timeout. With no timeout configured it never expires on its own.
func (a *App) RequestContext() (context.Context, context.CancelFunc) {
	if d := a.Config.RequestTimeout(); d > 0 {
		return context.WithTimeout(context.Background(), d)
	}
	return context.WithCancel(context.Background())
}

func (a *App) Close() error {
	_ = a.Log.Sync()
	return a.DB.Close()
}
