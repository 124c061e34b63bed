package ui

import (
	"fyne.io/fyne/v2"
	"go.uber.org/zap"

	"github.com/labdesk/v2/internal/app"
	"github.com/labdesk/v2/internal/auth"
)

// Router shows the login window while the session is anonymous and the
// dashboard while it is authenticated, following every session transition.
type Router struct {
	fyneApp fyne.App
	stack   *app.App
	log     *zap.Logger

	login     fyne.Window
	dashboard *DashboardWindow
}

func NewRouter(a fyne.App, stack *app.App, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{fyneApp: a, stack: stack, log: log}
}

// Start shows the view for the current state and subscribes to changes.
// Transitions may be reported from any goroutine.
func (r *Router) Start() func() {
	unsubscribe := r.stack.Session.Subscribe(func(state auth.State) {
		fyne.Do(func() { r.show(state) })
	})
	r.show(r.stack.Session.State())
	return unsubscribe
}

func (r *Router) show(state auth.State) {
	r.log.Info("switching view", zap.Stringer("state", state))
	if state == auth.Authenticated {
		if r.dashboard == nil {
			r.dashboard = NewDashboardWindow(r.fyneApp, r.stack, r.log.Named("dashboard"))
		}
		r.dashboard.Show()
		if r.login != nil {
			r.login.Hide()
		}
		return
	}

	if r.login == nil {
		r.login = NewLoginWindow(r.fyneApp, r.stack.Session, r.stack.RequestContext, r.log.Named("login"))
		r.login.SetCloseIntercept(r.fyneApp.Quit)
	}
	r.login.Show()
	if r.dashboard != nil {
		r.dashboard.Reset()
	}
}
