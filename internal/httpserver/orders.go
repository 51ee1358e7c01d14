package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shopfront/internal/checkout"
	"github.com/Skotchmaster/shopfront/internal/logging"
	"github.com/Skotchmaster/shopfront/internal/models"
)

type CheckoutHTTP struct {
	Svc *checkout.Service
}

func (h *CheckoutHTTP) PlaceOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "place.order")

	var req struct {
		Shipping models.ShippingDetails `json:"shipping"`
		Payment  checkout.Payment       `json:"payment"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "place_order_error", "invalid body")
	}

	order, err := h.Svc.PlaceOrder(ctx, req.Shipping, req.Payment)
	if err != nil {
		return fail(c, l, "place_order_error", err)
	}
	return c.JSON(http.StatusCreated, order)
}

func (h *CheckoutHTTP) MyOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "my.orders")

	orders, err := h.Svc.MyOrders(ctx)
	if err != nil {
		return fail(c, l, "my_orders_error", err)
	}
	return c.JSON(http.StatusOK, orders)
}
