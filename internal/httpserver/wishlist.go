package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shopfront/internal/logging"
	"github.com/Skotchmaster/shopfront/internal/models"
	"github.com/Skotchmaster/shopfront/internal/reconcile"
)

type WishlistHTTP struct {
	Store *reconcile.WishlistStore
}

type wishlistView struct {
	Products models.WishlistSet `json:"products"`
	State    string             `json:"state"`
}

func (h *WishlistHTTP) GetWishlist(c echo.Context) error {
	return c.JSON(http.StatusOK, wishlistView{Products: h.Store.IDs(), State: h.Store.State().String()})
}

func (h *WishlistHTTP) Toggle(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "toggle.wishlist")

	id := c.Param("id")
	member, err := h.Store.Toggle(ctx, id)
	if err != nil {
		return fail(c, l, "toggle_wishlist_error", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"productId": id, "inWishlist": member})
}

func (h *WishlistHTTP) Sync(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.Store.Sync(ctx); err != nil {
		logging.FromContext(ctx).With("handler", "sync.wishlist").Warn("wishlist_sync_degraded", "error", err)
	}
	return h.GetWishlist(c)
}
