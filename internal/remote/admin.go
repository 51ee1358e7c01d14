package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// Resource names an admin-managed collection on the backend.
type Resource string

const (
	ResourceProducts        Resource = "products"
	ResourceBanners         Resource = "banners"
	ResourceBrandCategories Resource = "brand-categories"
	ResourceServices        Resource = "services"
	ResourceBlogPosts       Resource = "blog-posts"
)

func ParseResource(name string) (Resource, bool) {
	switch r := Resource(name); r {
	case ResourceProducts, ResourceBanners, ResourceBrandCategories, ResourceServices, ResourceBlogPosts:
		return r, true
	}
	return "", false
}

func (c *Client) AdminCreate(ctx context.Context, token string, res Resource, body any) (json.RawMessage, error) {
	if token == "" {
		return nil, &Error{Kind: KindUnauthorized, Message: "sign in required"}
	}
	var out json.RawMessage
	err := c.do(ctx, http.MethodPost, "/"+string(res), token, body, &out)
	return out, err
}

func (c *Client) AdminUpdate(ctx context.Context, token string, res Resource, id string, body any) (json.RawMessage, error) {
	if token == "" {
		return nil, &Error{Kind: KindUnauthorized, Message: "sign in required"}
	}
	if id == "" {
		return nil, Validation("id is required")
	}
	var out json.RawMessage
	err := c.do(ctx, http.MethodPatch, "/"+string(res)+"/"+url.PathEscape(id), token, body, &out)
	return out, err
}

func (c *Client) AdminDelete(ctx context.Context, token string, res Resource, id string) error {
	if token == "" {
		return &Error{Kind: KindUnauthorized, Message: "sign in required"}
	}
	if id == "" {
		return Validation("id is required")
	}
	return c.do(ctx, http.MethodDelete, "/"+string(res)+"/"+url.PathEscape(id), token, nil, nil)
}
