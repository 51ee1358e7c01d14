// Package httpserver exposes the reconciled cart, wishlist and session to
// the view layer over HTTP.
package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shopfront/internal/checkout"
	"github.com/Skotchmaster/shopfront/internal/localstore"
	"github.com/Skotchmaster/shopfront/internal/reconcile"
	"github.com/Skotchmaster/shopfront/internal/remote"
)

type Deps struct {
	Local    *localstore.Adapter
	Remote   *remote.Client
	Cart     *reconcile.CartStore
	Wishlist *reconcile.WishlistStore
	Notices  *reconcile.Notices
	Checkout *checkout.Service
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	cartH := &CartHTTP{Store: d.Cart, Catalog: d.Remote}
	wishlistH := &WishlistHTTP{Store: d.Wishlist}
	sessionH := &SessionHTTP{Local: d.Local, Cart: d.Cart, Wishlist: d.Wishlist, Notices: d.Notices}
	catalogH := &CatalogHTTP{Remote: d.Remote}
	adminH := &AdminHTTP{Remote: d.Remote, Tokens: d.Local}
	accountH := &AccountHTTP{Remote: d.Remote, Tokens: d.Local}
	checkoutH := &CheckoutHTTP{Svc: d.Checkout}

	api := e.Group("/api")

	cart := api.Group("/cart")
	cart.GET("", cartH.GetCart)
	cart.POST("/items", cartH.AddItem)
	cart.PATCH("/items/:id", cartH.UpdateItem)
	cart.DELETE("/items/:id", cartH.RemoveItem)
	cart.POST("/sync", cartH.Sync)

	wishlist := api.Group("/wishlist")
	wishlist.GET("", wishlistH.GetWishlist)
	wishlist.POST("/sync", wishlistH.Sync)
	wishlist.POST("/:id/toggle", wishlistH.Toggle)

	api.GET("/session", sessionH.GetSession)
	api.PUT("/session", sessionH.SignIn)
	api.DELETE("/session", sessionH.SignOut)
	api.GET("/notices", sessionH.ListNotices)
	api.DELETE("/notices/:id", sessionH.DismissNotice)
	api.GET("/dashboard/theme", sessionH.GetTheme)
	api.PUT("/dashboard/theme", sessionH.SetTheme)

	catalog := api.Group("/catalog")
	catalog.GET("/products", catalogH.Products)
	catalog.GET("/products/:id", catalogH.Product)
	catalog.GET("/brand-categories", catalogH.BrandCategories)
	catalog.GET("/banners", catalogH.Banners)
	catalog.GET("/services", catalogH.Services)
	catalog.GET("/blog-posts", catalogH.BlogPosts)
	catalog.GET("/blog-posts/:id", catalogH.BlogPost)

	account := api.Group("/account")
	account.POST("/register", accountH.Register)
	account.POST("/forgot-password", accountH.ForgotPassword)
	account.POST("/reset-password", accountH.ResetPassword)
	account.POST("/change-password", accountH.ChangePassword)

	api.POST("/checkout", checkoutH.PlaceOrder)
	api.GET("/orders", checkoutH.MyOrders)

	admin := api.Group("/admin", RequireAdmin(d.Local))
	admin.POST("/:resource", adminH.Create)
	admin.PATCH("/:resource/:id", adminH.Update)
	admin.DELETE("/:resource/:id", adminH.Delete)
}
