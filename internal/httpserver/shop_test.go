package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/shopfront/internal/checkout"
	"github.com/Skotchmaster/shopfront/internal/localstore"
	"github.com/Skotchmaster/shopfront/internal/logging"
	"github.com/Skotchmaster/shopfront/internal/models"
	"github.com/Skotchmaster/shopfront/internal/reconcile"
	"github.com/Skotchmaster/shopfront/internal/remote"
	"github.com/Skotchmaster/shopfront/internal/session"
)

// fakeShop is an in-memory storefront backend speaking the REST contract.
type fakeShop struct {
	mu       sync.Mutex
	products map[string]models.Product
	cart     models.CartSnapshot
	wishlist models.WishlistSet
	orders   []models.Order
	created  []json.RawMessage
	failCart bool
}

func newFakeShop() *fakeShop {
	return &fakeShop{
		products: map[string]models.Product{
			"p1": {ID: "p1", Name: "Desk lamp", Price: 10, InStock: true, Quantity: 5},
			"p2": {ID: "p2", Name: "Chair", Price: 40, InStock: true, Quantity: 1},
		},
		cart:     models.CartSnapshot{ID: "cart-1", Lines: []models.CartLine{}},
		wishlist: models.WishlistSet{},
	}
}

func (s *fakeShop) cartQuantity(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Quantity(id)
}

func (s *fakeShop) wishlisted(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wishlist.Contains(id)
}

func (s *fakeShop) createdCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.created)
}

func (s *fakeShop) setFailCart(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCart = fail
}

func decode(c echo.Context, dst any) error {
	return json.NewDecoder(c.Request().Body).Decode(dst)
}

func authed(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !strings.HasPrefix(c.Request().Header.Get("Authorization"), "Bearer ") {
			return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		}
		return next(c)
	}
}

func (s *fakeShop) register(e *echo.Echo) {
	e.GET("/products", func(c echo.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		out := make([]models.Product, 0, len(s.products))
		for _, p := range s.products {
			out = append(out, p)
		}
		return c.JSON(http.StatusOK, out)
	})
	e.GET("/products/:id", func(c echo.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		p, ok := s.products[c.Param("id")]
		if !ok {
			return c.JSON(http.StatusNotFound, map[string]string{"message": "Product not found"})
		}
		return c.JSON(http.StatusOK, p)
	})
	e.POST("/products", func(c echo.Context) error {
		var body json.RawMessage
		if err := decode(c, &body); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"message": "bad body"})
		}
		s.mu.Lock()
		s.created = append(s.created, body)
		s.mu.Unlock()
		return c.JSONBlob(http.StatusCreated, body)
	}, authed)

	e.GET("/carts/", func(c echo.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.failCart {
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "database is down"})
		}
		return c.JSON(http.StatusOK, s.cart)
	}, authed)
	e.POST("/carts/add", func(c echo.Context) error {
		var req remote.AddItemRequest
		if err := decode(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"message": "bad body"})
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		p, ok := s.products[req.ProductID]
		if !ok {
			return c.JSON(http.StatusNotFound, map[string]string{"message": "Product not found"})
		}
		s.cart = s.cart.WithAdded(p, req.Quantity)
		return c.JSON(http.StatusOK, s.cart)
	}, authed)
	e.PATCH("/carts/update", func(c echo.Context) error {
		var req remote.UpdateQuantityRequest
		if err := decode(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"message": "bad body"})
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.cart = s.cart.WithQuantity(req.ProductID, req.Quantity)
		return c.JSON(http.StatusOK, s.cart)
	}, authed)
	e.DELETE("/carts/remove", func(c echo.Context) error {
		var req remote.RemoveItemRequest
		if err := decode(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"message": "bad body"})
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.cart = s.cart.Without(req.ProductID)
		return c.JSON(http.StatusOK, s.cart)
	}, authed)

	e.GET("/wishlist/me", func(c echo.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return c.JSON(http.StatusOK, map[string]any{"products": s.wishlist})
	}, authed)
	e.POST("/wishlist/add", func(c echo.Context) error {
		var req remote.WishlistRequest
		if err := decode(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"message": "bad body"})
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.wishlist.Contains(req.ProductID) {
			return c.JSON(http.StatusConflict, map[string]string{"message": "already in wishlist"})
		}
		s.wishlist = s.wishlist.With(req.ProductID)
		return c.NoContent(http.StatusOK)
	}, authed)
	e.DELETE("/wishlist/remove/:id", func(c echo.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.wishlist = s.wishlist.Without(c.Param("id"))
		return c.NoContent(http.StatusOK)
	}, authed)

	e.POST("/orders/", func(c echo.Context) error {
		var req models.OrderRequest
		if err := decode(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"message": "bad body"})
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		order := models.Order{
			ID:            "order-1",
			Items:         req.Items,
			Shipping:      req.Shipping,
			PaymentMethod: req.PaymentMethod,
			Total:         req.Total,
			Status:        "pending",
			CreatedAt:     time.Now().UTC(),
		}
		s.orders = append(s.orders, order)
		s.cart = models.CartSnapshot{ID: s.cart.ID, Lines: []models.CartLine{}}
		return c.JSON(http.StatusCreated, order)
	}, authed)
	e.GET("/orders/me", func(c echo.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return c.JSON(http.StatusOK, s.orders)
	}, authed)

	e.POST("/user/register", func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	})
}

type testEnv struct {
	e     *echo.Echo
	shop  *fakeShop
	local *localstore.Adapter
	cart  *reconcile.CartStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	shop := newFakeShop()
	backend := echo.New()
	shop.register(backend)
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	kv, err := localstore.OpenSQLite(ctx, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	local := localstore.NewAdapter(kv)
	client := remote.NewClient(srv.URL)
	notices := reconcile.NewNotices(0)
	cart := reconcile.NewCartStore(local, client, reconcile.WithNotices(notices))
	wishlist := reconcile.NewWishlistStore(local, client, reconcile.WithNotices(notices))

	e := echo.New()
	for _, m := range Common(logging.Discard()) {
		e.Use(m)
	}
	Register(e, &Deps{
		Local:    local,
		Remote:   client,
		Cart:     cart,
		Wishlist: wishlist,
		Notices:  notices,
		Checkout: checkout.NewService(cart, client, local),
	})

	return &testEnv{e: e, shop: shop, local: local, cart: cart}
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) signIn(t *testing.T, token string) {
	t.Helper()
	rec := env.do(t, http.MethodPut, "/api/session", map[string]string{"token": token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func signedToken(t *testing.T, role, username string) string {
	t.Helper()
	claims := session.Claims{
		Role:     role,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-" + username,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
