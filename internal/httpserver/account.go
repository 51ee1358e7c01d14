package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shopfront/internal/logging"
	"github.com/Skotchmaster/shopfront/internal/models"
	"github.com/Skotchmaster/shopfront/internal/reconcile"
	"github.com/Skotchmaster/shopfront/internal/remote"
	"github.com/Skotchmaster/shopfront/internal/validate"
)

// AccountHTTP forwards account management to the backend after checking the
// request shape locally.
type AccountHTTP struct {
	Remote *remote.Client
	Tokens reconcile.TokenReader
}

func (h *AccountHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "register")

	var req models.RegisterRequest
	if err := bindValid(c, &req); err != nil {
		return fail(c, l, "register_error", err)
	}
	if err := h.Remote.Register(ctx, req); err != nil {
		return fail(c, l, "register_error", err)
	}
	l.Info("account registered", "username", req.Username)
	return c.NoContent(http.StatusCreated)
}

func (h *AccountHTTP) ForgotPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "forgot.password")

	var req models.ForgotPasswordRequest
	if err := bindValid(c, &req); err != nil {
		return fail(c, l, "forgot_password_error", err)
	}
	if err := h.Remote.ForgotPassword(ctx, req); err != nil {
		return fail(c, l, "forgot_password_error", err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (h *AccountHTTP) ResetPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "reset.password")

	var req models.ResetPasswordRequest
	if err := bindValid(c, &req); err != nil {
		return fail(c, l, "reset_password_error", err)
	}
	if err := h.Remote.ResetPassword(ctx, req); err != nil {
		return fail(c, l, "reset_password_error", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AccountHTTP) ChangePassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "change.password")

	var req models.ChangePasswordRequest
	if err := bindValid(c, &req); err != nil {
		return fail(c, l, "change_password_error", err)
	}
	token, _ := h.Tokens.ReadToken(ctx)
	if err := h.Remote.ChangePassword(ctx, token, req); err != nil {
		return fail(c, l, "change_password_error", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func bindValid(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return remote.Validation("invalid body")
	}
	if err := validate.Check(dst); err != nil {
		return remote.Validation(err.Error())
	}
	return nil
}
