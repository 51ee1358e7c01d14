package remote

import (
	"context"
	"errors"
	"net/http"

	"github.com/Skotchmaster/shopfront/internal/models"
)

type AddItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity"  validate:"gte=1"`
}

type UpdateQuantityRequest struct {
	CartID    string `json:"cartId"    validate:"required"`
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity"  validate:"gte=1"`
}

type RemoveItemRequest struct {
	ProductID string `json:"productId"        validate:"required"`
	CartID    string `json:"cartId,omitempty"`
}

// FetchCart returns the signed-in user's cart. A missing cart is an empty
// snapshot, not an error.
func (c *Client) FetchCart(ctx context.Context, token string) (models.CartSnapshot, error) {
	var cart models.CartSnapshot
	err := c.do(ctx, http.MethodGet, "/carts/", token, nil, &cart)
	if errors.Is(err, ErrNotFound) {
		return models.EmptyCart(), nil
	}
	if err != nil {
		return models.EmptyCart(), err
	}
	return cart.Normalize(), nil
}

// AddItem appends or increments a line and returns the cart id.
func (c *Client) AddItem(ctx context.Context, token, productID string, quantity int) (string, error) {
	if token == "" {
		return "", &Error{Kind: KindUnauthorized, Message: "sign in required"}
	}
	var cart models.CartSnapshot
	if err := c.do(ctx, http.MethodPost, "/carts/add", token, AddItemRequest{ProductID: productID, Quantity: quantity}, &cart); err != nil {
		return "", err
	}
	return cart.ID, nil
}

func (c *Client) UpdateQuantity(ctx context.Context, token, cartID, productID string, quantity int) error {
	if token == "" {
		return &Error{Kind: KindUnauthorized, Message: "sign in required"}
	}
	req := UpdateQuantityRequest{CartID: cartID, ProductID: productID, Quantity: quantity}
	return c.do(ctx, http.MethodPatch, "/carts/update", token, req, nil)
}

func (c *Client) RemoveItem(ctx context.Context, token, cartID, productID string) error {
	if token == "" {
		return &Error{Kind: KindUnauthorized, Message: "sign in required"}
	}
	return c.do(ctx, http.MethodDelete, "/carts/remove", token, RemoveItemRequest{ProductID: productID, CartID: cartID}, nil)
}
