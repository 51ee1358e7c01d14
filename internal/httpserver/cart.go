package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shopfront/internal/logging"
	"github.com/Skotchmaster/shopfront/internal/models"
	"github.com/Skotchmaster/shopfront/internal/reconcile"
)

type ProductSource interface {
	Product(ctx context.Context, id string) (models.Product, error)
}

type CartHTTP struct {
	Store   *reconcile.CartStore
	Catalog ProductSource
}

type cartView struct {
	ID    string            `json:"_id,omitempty"`
	Items []models.CartLine `json:"items"`
	Total float64           `json:"total"`
	Count int               `json:"count"`
	State string            `json:"state"`
}

func (h *CartHTTP) view() cartView {
	snap := h.Store.Snapshot()
	count := 0
	for _, l := range snap.Lines {
		count += l.Quantity
	}
	return cartView{
		ID:    snap.ID,
		Items: snap.Lines,
		Total: snap.Total(),
		Count: count,
		State: h.Store.State().String(),
	}
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	return c.JSON(http.StatusOK, h.view())
}

func (h *CartHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "add.cart.item")

	var req struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "add_cart_item_error", "invalid body")
	}
	if req.ProductID == "" {
		return badRequest(c, l, "add_cart_item_error", "product_id required")
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	product, err := h.Catalog.Product(ctx, req.ProductID)
	if err != nil {
		return fail(c, l, "add_cart_item_error", err)
	}
	if err := h.Store.Add(ctx, product, req.Quantity); err != nil {
		return fail(c, l, "add_cart_item_error", err)
	}

	l.Info("item added to cart", "product_id", req.ProductID, "quantity", req.Quantity)
	return c.JSON(http.StatusOK, h.view())
}

func (h *CartHTTP) UpdateItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "update.cart.item")

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "update_cart_item_error", "invalid body")
	}
	if err := h.Store.SetQuantity(ctx, c.Param("id"), req.Quantity); err != nil {
		return fail(c, l, "update_cart_item_error", err)
	}
	return c.JSON(http.StatusOK, h.view())
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "remove.cart.item")

	if err := h.Store.Remove(ctx, c.Param("id")); err != nil {
		return fail(c, l, "remove_cart_item_error", err)
	}
	return c.JSON(http.StatusOK, h.view())
}

// Sync always answers with the cart being displayed; a failed sync has
// already left a notice and fallen back to the saved copy.
func (h *CartHTTP) Sync(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "sync.cart")

	if err := h.Store.Sync(ctx); err != nil {
		l.Warn("cart_sync_degraded", "error", err)
	}
	return c.JSON(http.StatusOK, h.view())
}
