package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Skotchmaster/shopfront/internal/models"
)

func (c *Client) Products(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	if err := c.do(ctx, http.MethodGet, "/products", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Product(ctx context.Context, id string) (models.Product, error) {
	var out models.Product
	if id == "" {
		return out, Validation("product id is required")
	}
	err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(id), "", nil, &out)
	return out, err
}

func (c *Client) BrandCategories(ctx context.Context) ([]models.BrandCategory, error) {
	var out []models.BrandCategory
	if err := c.do(ctx, http.MethodGet, "/brand-categories", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Banners(ctx context.Context) ([]models.Banner, error) {
	var out []models.Banner
	if err := c.do(ctx, http.MethodGet, "/banners", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Services(ctx context.Context) ([]models.Service, error) {
	var out []models.Service
	if err := c.do(ctx, http.MethodGet, "/services", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) BlogPosts(ctx context.Context) ([]models.BlogPost, error) {
	var out []models.BlogPost
	if err := c.do(ctx, http.MethodGet, "/blog-posts", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) BlogPost(ctx context.Context, id string) (models.BlogPost, error) {
	var out models.BlogPost
	if id == "" {
		return out, Validation("blog post id is required")
	}
	err := c.do(ctx, http.MethodGet, "/blog-posts/"+url.PathEscape(id), "", nil, &out)
	return out, err
}
