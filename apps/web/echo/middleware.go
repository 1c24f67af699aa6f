package echoweb

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/placementcell/portal/core"
	"github.com/placementcell/portal/core/portal"
	"github.com/placementcell/portal/core/session"
	"github.com/placementcell/portal/services/api"
)

const (
	ctxSessionKey = "session"
	ctxManagerKey = "sessions"
	ctxClearedKey = "sessionCleared"
)

// sessionMiddleware loads the session of the cookie into the context.
// The session is saved right before the response is written when it changed,
// or when half of its lifetime is gone.
func sessionMiddleware(m *session.Manager, conf *core.Config, logger core.Logger) echo.MiddlewareFunc {
	cookieName := conf.Session.CookieName
	ttl := conf.Session.TTL

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			var id string
			if cookie, err := ctx.Cookie(cookieName); err == nil {
				id = cookie.Value
			}
			s, err := m.Load(ctx.Request().Context(), id)
			if err != nil {
				return err
			}
			s.Toasts.Duration = conf.Toast.Duration
			loaded, _ := session.Marshal(s)

			ctx.Set(ctxSessionKey, s)
			ctx.Set(ctxManagerKey, m)

			ctx.Response().Before(func() {
				if ctx.Get(ctxClearedKey) != nil {
					ctx.SetCookie(&http.Cookie{Name: cookieName, Path: "/", MaxAge: -1, HttpOnly: true})
					return
				}
				data, err := session.Marshal(s)
				if err != nil {
					logger.Error(fmt.Sprintf("encoding session: %v", err), err, s.LogUser())
					return
				}
				stale := !s.ExpiresAt.IsZero() && s.ExpiresAt.Sub(m.Now()) < ttl/2
				if bytes.Equal(loaded, data) && !stale {
					return
				}
				if err := m.Save(ctx.Request().Context(), s); err != nil {
					logger.Error(fmt.Sprintf("saving session: %v", err), err, s.LogUser())
					return
				}
				ctx.SetCookie(&http.Cookie{
					Name:     cookieName,
					Value:    s.ID,
					Path:     "/",
					Expires:  s.ExpiresAt,
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			})
			return next(ctx)
		}
	}
}

// authMiddleware requires a logged-in session.
func authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if s := getSession(ctx); s != nil && s.IsAuthenticated() {
			return next(ctx)
		}
		if wantsJSON(ctx) {
			return errUnauthenticated
		}
		return ctx.Redirect(http.StatusSeeOther, loginURL)
	}
}

// adminMiddleware sends the non-admin users back home.
func adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if s := getSession(ctx); s != nil && s.IsAdmin() {
			return next(ctx)
		}
		if wantsJSON(ctx) {
			return errHttpForbidden
		}
		return ctx.Redirect(http.StatusSeeOther, "/")
	}
}

// tabMiddleware requires the role of the session to see the admin tab.
func tabMiddleware(tabID string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, err := contextTab(ctx, tabID); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}

// contextTab returns the admin tab if the session role may see it.
func contextTab(ctx echo.Context, tabID string) (portal.Tab, error) {
	tab, ok := portal.FindTab(tabID)
	if !ok {
		return tab, errHttpNotFound
	}
	if !tab.Allows(getSession(ctx).Role()) {
		return tab, errHttpForbidden
	}
	return tab, nil
}

func getSession(ctx echo.Context) *session.Session {
	s, _ := ctx.Get(ctxSessionKey).(*session.Session)
	return s
}

func now(ctx echo.Context) time.Time {
	if m, ok := ctx.Get(ctxManagerKey).(*session.Manager); ok {
		return m.Now()
	}
	return time.Now()
}

// contextClient returns the API client authenticated as the session user.
func contextClient(ctx echo.Context, client *api.Client) *api.Client {
	if s := getSession(ctx); s != nil {
		return client.WithToken(s.AuthToken)
	}
	return client
}

// Toasts

func toastSuccess(ctx echo.Context, msg string) { getSession(ctx).Toasts.Success(now(ctx), msg) }
func toastError(ctx echo.Context, msg string)   { getSession(ctx).Toasts.Error(now(ctx), msg) }
func toastWarning(ctx echo.Context, msg string) { getSession(ctx).Toasts.Warning(now(ctx), msg) }
func toastInfo(ctx echo.Context, msg string)    { getSession(ctx).Toasts.Info(now(ctx), msg) }

// seeOther redirects after a successful POST.
func seeOther(ctx echo.Context, url string) error {
	return ctx.Redirect(http.StatusSeeOther, url)
}
