package httpserver

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shopfront/internal/logging"
	"github.com/Skotchmaster/shopfront/internal/models"
	"github.com/Skotchmaster/shopfront/internal/reconcile"
	"github.com/Skotchmaster/shopfront/internal/remote"
)

// CatalogHTTP passes catalog reads through to the backend.
type CatalogHTTP struct {
	Remote *remote.Client
}

type productPage struct {
	Items []models.Product `json:"items"`
	Page  int              `json:"page"`
	Size  int              `json:"size"`
	Total int              `json:"total"`
}

// Products returns the whole catalog, or one page of it when ?page= is given.
func (h *CatalogHTTP) Products(c echo.Context) error {
	return respond(c, "list.products", func() (any, error) {
		products, err := h.Remote.Products(c.Request().Context())
		if err != nil || c.QueryParam("page") == "" {
			return products, err
		}

		page, _ := strconv.Atoi(c.QueryParam("page"))
		size, _ := strconv.Atoi(c.QueryParam("size"))
		from, limit := pageWindow(page, size)
		out := productPage{Items: []models.Product{}, Page: from/limit + 1, Size: limit, Total: len(products)}
		if from < len(products) {
			out.Items = products[from:min(from+limit, len(products))]
		}
		return out, nil
	})
}

func pageWindow(page, size int) (from, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 10
	}
	return (page - 1) * size, size
}

func (h *CatalogHTTP) Product(c echo.Context) error {
	return respond(c, "get.product", func() (any, error) { return h.Remote.Product(c.Request().Context(), c.Param("id")) })
}

func (h *CatalogHTTP) BrandCategories(c echo.Context) error {
	return respond(c, "list.brand.categories", func() (any, error) { return h.Remote.BrandCategories(c.Request().Context()) })
}

func (h *CatalogHTTP) Banners(c echo.Context) error {
	return respond(c, "list.banners", func() (any, error) { return h.Remote.Banners(c.Request().Context()) })
}

func (h *CatalogHTTP) Services(c echo.Context) error {
	return respond(c, "list.services", func() (any, error) { return h.Remote.Services(c.Request().Context()) })
}

func (h *CatalogHTTP) BlogPosts(c echo.Context) error {
	return respond(c, "list.blog.posts", func() (any, error) { return h.Remote.BlogPosts(c.Request().Context()) })
}

func (h *CatalogHTTP) BlogPost(c echo.Context) error {
	return respond(c, "get.blog.post", func() (any, error) { return h.Remote.BlogPost(c.Request().Context(), c.Param("id")) })
}

func respond(c echo.Context, handler string, call func() (any, error)) error {
	out, err := call()
	if err != nil {
		l := logging.FromContext(c.Request().Context()).With("handler", handler)
		return fail(c, l, "backend_call_failed", err)
	}
	return c.JSON(http.StatusOK, out)
}

// AdminHTTP forwards dashboard writes for the managed collections.
type AdminHTTP struct {
	Remote *remote.Client
	Tokens reconcile.TokenReader
}

func (h *AdminHTTP) resource(c echo.Context) (remote.Resource, bool) {
	return remote.ParseResource(c.Param("resource"))
}

func (h *AdminHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.create")

	res, ok := h.resource(c)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown resource")
	}
	body, ok := readJSON(c)
	if !ok {
		return badRequest(c, l, "admin_create_error", "invalid body")
	}
	token, _ := h.Tokens.ReadToken(ctx)
	out, err := h.Remote.AdminCreate(ctx, token, res, body)
	if err != nil {
		return fail(c, l, "admin_create_error", err)
	}
	l.Info("resource created", "resource", string(res), "by", c.Get(CtxUsername))
	return c.JSONBlob(http.StatusCreated, nonEmpty(out))
}

func (h *AdminHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.update")

	res, ok := h.resource(c)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown resource")
	}
	body, ok := readJSON(c)
	if !ok {
		return badRequest(c, l, "admin_update_error", "invalid body")
	}
	token, _ := h.Tokens.ReadToken(ctx)
	out, err := h.Remote.AdminUpdate(ctx, token, res, c.Param("id"), body)
	if err != nil {
		return fail(c, l, "admin_update_error", err)
	}
	l.Info("resource updated", "resource", string(res), "id", c.Param("id"))
	return c.JSONBlob(http.StatusOK, nonEmpty(out))
}

func (h *AdminHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.delete")

	res, ok := h.resource(c)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown resource")
	}
	token, _ := h.Tokens.ReadToken(ctx)
	if err := h.Remote.AdminDelete(ctx, token, res, c.Param("id")); err != nil {
		return fail(c, l, "admin_delete_error", err)
	}
	l.Info("resource deleted", "resource", string(res), "id", c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

func readJSON(c echo.Context) (json.RawMessage, bool) {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil || len(data) == 0 || !json.Valid(data) {
		return nil, false
	}
	return data, true
}

func nonEmpty(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("{}")
	}
	return raw
}
