package remote

import (
	"context"
	"net/http"

	"github.com/Skotchmaster/shopfront/internal/models"
)

func (c *Client) PlaceOrder(ctx context.Context, token string, req models.OrderRequest) (models.Order, error) {
	var out models.Order
	if token == "" {
		return out, &Error{Kind: KindUnauthorized, Message: "sign in required"}
	}
	err := c.do(ctx, http.MethodPost, "/orders/", token, req, &out)
	return out, err
}

func (c *Client) MyOrders(ctx context.Context, token string) ([]models.Order, error) {
	if token == "" {
		return nil, &Error{Kind: KindUnauthorized, Message: "sign in required"}
	}
	var out []models.Order
	if err := c.do(ctx, http.MethodGet, "/orders/me", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
