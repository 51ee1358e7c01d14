package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/Skotchmaster/shopfront/internal/models"
)

type WishlistRequest struct {
	ProductID string `json:"productId" validate:"required"`
}

// wishlistEntry accepts either a bare product id or a populated product object.
type wishlistEntry string

func (w *wishlistEntry) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*w = wishlistEntry(id)
		return nil
	}
	var obj struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*w = wishlistEntry(obj.ID)
	return nil
}

type wishlistResponse struct {
	Products []wishlistEntry `json:"products"`
}

func (c *Client) FetchWishlist(ctx context.Context, token string) (models.WishlistSet, error) {
	var resp wishlistResponse
	err := c.do(ctx, http.MethodGet, "/wishlist/me", token, nil, &resp)
	if errors.Is(err, ErrNotFound) {
		return models.WishlistSet{}, nil
	}
	if err != nil {
		return models.WishlistSet{}, err
	}
	ids := make([]string, 0, len(resp.Products))
	for _, p := range resp.Products {
		ids = append(ids, string(p))
	}
	return models.NewWishlistSet(ids...), nil
}

// AddToWishlist is idempotent: an already-wishlisted product is a success.
func (c *Client) AddToWishlist(ctx context.Context, token, productID string) error {
	if token == "" {
		return &Error{Kind: KindUnauthorized, Message: "sign in required"}
	}
	err := c.do(ctx, http.MethodPost, "/wishlist/add", token, WishlistRequest{ProductID: productID}, nil)
	var re *Error
	if errors.As(err, &re) && re.Status == http.StatusConflict {
		return nil
	}
	return err
}

// RemoveFromWishlist is idempotent: removing an absent product is a success.
func (c *Client) RemoveFromWishlist(ctx context.Context, token, productID string) error {
	if token == "" {
		return &Error{Kind: KindUnauthorized, Message: "sign in required"}
	}
	if productID == "" {
		return Validation("product id is required")
	}
	err := c.do(ctx, http.MethodDelete, "/wishlist/remove/"+url.PathEscape(productID), token, nil, nil)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
