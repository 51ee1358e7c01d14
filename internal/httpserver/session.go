package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shopfront/internal/localstore"
	"github.com/Skotchmaster/shopfront/internal/logging"
	"github.com/Skotchmaster/shopfront/internal/reconcile"
	"github.com/Skotchmaster/shopfront/internal/session"
)

type SessionHTTP struct {
	Local    *localstore.Adapter
	Cart     *reconcile.CartStore
	Wishlist *reconcile.WishlistStore
	Notices  *reconcile.Notices
	Now      func() time.Time
}

type sessionView struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
	Role          string `json:"role,omitempty"`
	Admin         bool   `json:"admin"`
	CartState     string `json:"cartState"`
	WishlistState string `json:"wishlistState"`
}

func (h *SessionHTTP) view(c echo.Context) sessionView {
	v := sessionView{
		CartState:     h.Cart.State().String(),
		WishlistState: h.Wishlist.State().String(),
	}
	token, ok := h.Local.ReadToken(c.Request().Context())
	if !ok {
		return v
	}
	v.Authenticated = true
	if claims, err := session.Inspect(token); err == nil {
		v.Username = claims.Username
		v.Role = claims.Role
		v.Admin = claims.IsAdmin()
	}
	return v
}

func (h *SessionHTTP) GetSession(c echo.Context) error {
	return c.JSON(http.StatusOK, h.view(c))
}

// SignIn stores the tokens handed out by the backend and reconciles both
// stores, which merges the guest cart and wishlist into the account.
func (h *SessionHTTP) SignIn(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "sign.in")

	var req struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "sign_in_error", "invalid body")
	}
	if err := session.Check(req.Token, h.now()); err != nil {
		msg := "invalid token"
		if errors.Is(err, session.ErrExpired) {
			msg = "token expired"
		}
		return badRequest(c, l, "sign_in_error", msg)
	}

	h.Local.SetCookie(ctx, session.AccessCookie, req.Token)
	if req.RefreshToken != "" {
		h.Local.SetCookie(ctx, session.RefreshCookie, req.RefreshToken)
	}
	h.sync(c)

	l.Info("signed in")
	return c.JSON(http.StatusOK, h.view(c))
}

// SignOut drops the cookies only; the guest cart stays on the machine.
func (h *SessionHTTP) SignOut(c echo.Context) error {
	ctx := c.Request().Context()
	h.Local.ClearCookies(ctx)
	h.sync(c)

	logging.FromContext(ctx).With("handler", "sign.out").Info("signed out")
	return c.JSON(http.StatusOK, h.view(c))
}

func (h *SessionHTTP) sync(c echo.Context) {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx)
	if err := h.Cart.Sync(ctx); err != nil {
		l.Warn("cart_sync_degraded", "error", err)
	}
	if err := h.Wishlist.Sync(ctx); err != nil {
		l.Warn("wishlist_sync_degraded", "error", err)
	}
}

func (h *SessionHTTP) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *SessionHTTP) ListNotices(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Notices.List())
}

func (h *SessionHTTP) DismissNotice(c echo.Context) error {
	if !h.Notices.Dismiss(c.Param("id")) {
		return echo.NewHTTPError(http.StatusNotFound, "notice not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *SessionHTTP) GetTheme(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"dark": h.Local.LoadDarkMode(c.Request().Context())})
}

func (h *SessionHTTP) SetTheme(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "set.theme")

	var req struct {
		Dark *bool `json:"dark"`
	}
	if err := c.Bind(&req); err != nil || req.Dark == nil {
		return badRequest(c, l, "set_theme_error", "dark required")
	}
	h.Local.SaveDarkMode(ctx, *req.Dark)
	return c.JSON(http.StatusOK, map[string]bool{"dark": *req.Dark})
}
