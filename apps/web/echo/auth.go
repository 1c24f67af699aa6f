package echoweb

import (
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/placementcell/portal/core"
	"github.com/placementcell/portal/core/portal"
	"github.com/placementcell/portal/core/session"
	"github.com/placementcell/portal/services/api"
)

const (
	errLoginFailed  = "Login failed. Please check your credentials."
	errLoginNoToken = "Login succeeded but no token received. Please contact support."
	errLoginNetwork = "Network error. Please try again later."
	errAdminsOnly   = "Access denied. This login is for administrators only. Please use the student login page."
)

type authApi struct {
	logger     core.Logger
	sessions   *session.Manager
	client     *api.Client
	validate   *validator.Validate
	translator ut.Translator
}

func registerAuthRoutes(e *echo.Echo, deps ServerDeps) {
	h := authApi{
		logger:     deps.Logger,
		sessions:   deps.Sessions,
		client:     deps.Client,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	e.GET("/login", h.loginPage)
	e.POST("/login", h.login)
	e.POST("/logout", h.logout)
	e.POST("/toasts/:id/dismiss", h.dismissToast)
	e.POST("/recover/reset", h.resetSession)
	e.POST("/admin/settings/notifications", h.toggleNotifications, authMiddleware, adminMiddleware)
}

type loginPage struct {
	Expired bool
}

func (h *authApi) loginPage(ctx echo.Context) error {
	s := getSession(ctx)
	mode := session.LoginMode(ctx.QueryParam("mode"))
	if mode != session.LoginAdmin {
		mode = session.LoginStudent
	}
	form := loginRequest{
		Mode:       string(mode),
		Identifier: s.SavedIdentifier(mode),
		Remember:   s.SavedIdentifier(mode) != "",
	}
	return h.renderLogin(ctx, http.StatusOK, form, nil)
}

func (h *authApi) renderLogin(ctx echo.Context, code int, form loginRequest, errs map[string]string) error {
	return render(ctx, code, "login", view{
		Title:  "Login",
		Form:   form,
		Errors: errs,
		Data:   loginPage{Expired: ctx.QueryParam("expired") != ""},
	})
}

func (h *authApi) login(ctx echo.Context) error {
	var data loginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to loginRequest")
	}
	data.Identifier = core.CleanString(data.Identifier)
	if err := h.validate.Struct(data); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			return h.renderLogin(ctx, http.StatusBadRequest, data.clean(), core.TranslateErrors(vErrs, h.translator))
		}
		return errors.Wrap(err, "validating loginRequest")
	}
	mode := session.LoginMode(data.Mode)

	res, err := h.client.Login(ctx.Request().Context(), mode == session.LoginStudent, data.Identifier, data.Password)
	if err != nil {
		var apiErr *api.Error
		if !errors.As(err, &apiErr) {
			h.logger.Warn(fmt.Sprintf("login: %v", err), err)
			return h.renderLogin(ctx, http.StatusBadGateway, data.clean(), formError(errLoginNetwork))
		}
		msg := apiErr.Message
		if msg == "" || msg == http.StatusText(apiErr.Status) {
			msg = errLoginFailed
		}
		return h.renderLogin(ctx, http.StatusUnauthorized, data.clean(), formError(msg))
	}
	if res.Token == "" {
		return h.renderLogin(ctx, http.StatusBadGateway, data.clean(), formError(errLoginNoToken))
	}
	role := portal.RoleFromClaims(res.Roles)
	if mode == session.LoginAdmin && !role.IsAdmin() {
		return h.renderLogin(ctx, http.StatusForbidden, data.clean(), formError(errAdminsOnly))
	}

	s := getSession(ctx)
	if err := h.sessions.Rotate(ctx.Request().Context(), s); err != nil {
		return err
	}
	s.SetAuth(res)
	s.Remember(mode, data.Identifier, data.Remember)
	h.sessions.LoggedIn(s)

	if role.IsAdmin() {
		return seeOther(ctx, "/admin")
	}
	return seeOther(ctx, "/")
}

func (h *authApi) logout(ctx echo.Context) error {
	h.sessions.Logout(getSession(ctx))
	toastInfo(ctx, "You have been logged out.")
	return seeOther(ctx, loginURL)
}

func (h *authApi) dismissToast(ctx echo.Context) error {
	getSession(ctx).Toasts.Dismiss(ctx.Param("id"))
	if wantsJSON(ctx) {
		return ctx.NoContent(http.StatusNoContent)
	}
	return seeOther(ctx, backURL(ctx, "/"))
}

// resetSession is the "clear storage and reload" action of the recovery page.
func (h *authApi) resetSession(ctx echo.Context) error {
	clearSession(ctx, h.sessions, h.logger)
	return seeOther(ctx, "/")
}

func (h *authApi) toggleNotifications(ctx echo.Context) error {
	s := getSession(ctx)
	s.SendEmailNotifications = !s.SendEmailNotifications
	if s.SendEmailNotifications {
		toastInfo(ctx, "Email notifications enabled")
	} else {
		toastInfo(ctx, "Email notifications disabled")
	}
	if wantsJSON(ctx) {
		return ctx.JSON(http.StatusOK, echo.Map{"sendEmailNotifications": s.SendEmailNotifications})
	}
	return seeOther(ctx, backURL(ctx, "/admin"))
}
