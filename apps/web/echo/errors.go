package echoweb

import (
	"fmt"
	"net/http"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/placementcell/portal/core"
	"github.com/placementcell/portal/core/session"
	"github.com/placementcell/portal/services/api"
)

var (
	errUnauthenticated = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden   = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound    = echo.NewHTTPError(http.StatusNotFound, "not found")
)

const (
	loginURL           = "/login"
	sessionExpiredURL  = "/login?expired=1"
	sessionExpiredText = "session expired"
)

type errorPage struct {
	Code    int
	Message string
	Fields  map[string]string
	URL     string
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(
	logger core.Logger,
	sessions *session.Manager,
	translator ut.Translator,
	signalShutdown func(),
) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		// the backend rejected the token: the whole session goes
		if errors.Is(err, api.ErrUnauthorized) {
			expireSession(ctx, sessions, logger)
			return
		}

		var code int
		var message string
		var fields map[string]string

		if errors.Cause(err) == core.ErrNotFound {
			err = errHttpNotFound
		}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = fmt.Sprint(origErr.Message)
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			message = "invalid data"
			fields = core.TranslateErrors(origErr, translator)
		case *core.ValidationError:
			code = http.StatusBadRequest
			message = origErr.Error()
			if len(origErr.Fields) > 0 {
				fields = origErr.FieldMap()
			}
		case *api.Error:
			code = http.StatusBadGateway
			if origErr.Status == http.StatusNotFound {
				code = http.StatusNotFound
			}
			message = origErr.Error()
			logger.Warn(fmt.Sprintf("backend error: %v", err), err, userOf(ctx))
		default: // any other error is a server error
			code = http.StatusInternalServerError
			message = http.StatusText(http.StatusInternalServerError)
			logger.Error(message, errors.Wrap(err, message), userOf(ctx))

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}

		// Send response
		if ctx.Response().Committed {
			return
		}
		switch {
		case ctx.Request().Method == http.MethodHead: // Issue #608
			err = ctx.NoContent(code)
		case wantsJSON(ctx):
			if fields != nil {
				err = ctx.JSON(code, fields)
			} else {
				err = ctx.JSON(code, echo.Map{"error": message})
			}
		default:
			reload := ctx.Request().URL.String()
			if ctx.Request().Method != http.MethodGet {
				reload = backURL(ctx, "/")
			}
			err = render(ctx, code, "error", view{
				Title: http.StatusText(code),
				Data:  errorPage{Code: code, Message: message, Fields: fields, URL: reload},
			})
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}

// expireSession clears the whole session and sends the user to the login page.
func expireSession(ctx echo.Context, sessions *session.Manager, logger core.Logger) {
	clearSession(ctx, sessions, logger)

	var err error
	if wantsJSON(ctx) {
		err = ctx.JSON(http.StatusUnauthorized, echo.Map{"error": sessionExpiredText, "login": loginURL})
	} else {
		err = ctx.Redirect(http.StatusSeeOther, sessionExpiredURL)
	}
	if err != nil {
		ctx.Echo().Logger.Error(err)
	}
}

func clearSession(ctx echo.Context, sessions *session.Manager, logger core.Logger) {
	ctx.Set(ctxClearedKey, true)
	s := getSession(ctx)
	if s == nil {
		return
	}
	if err := sessions.Clear(ctx.Request().Context(), s); err != nil {
		logger.Error(fmt.Sprintf("clearing session: %v", err), err, s.LogUser())
	}
}

// wantsJSON tells API-like requests (fetch, htmx) from page navigations.
func wantsJSON(ctx echo.Context) bool {
	req := ctx.Request()
	return req.Header.Get("HX-Request") != "" ||
		strings.Contains(req.Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON) ||
		strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
}

func userOf(ctx echo.Context) core.LogUser {
	if s := getSession(ctx); s != nil {
		return s.LogUser()
	}
	return core.LogUser{}
}
