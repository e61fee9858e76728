package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/pkg/metrics"
	middleware "github.com/Skotchmaster/storefront/pkg/middleware/auth"
)

type Deps struct {
	Catalog *CatalogHTTP
	Cart    *CartHTTP
	Orders  *OrderHTTP
	Health  *HealthHTTP
	Metrics *metrics.Metrics

	JWTSecret  []byte
	AuthClient middleware.Refresher
}

func Register(e *echo.Echo, d *Deps) {
	e.HTTPErrorHandler = ErrorHandler
	e.Use(d.Metrics.Middleware())

	e.GET("/health/live", d.Health.Live)
	e.GET("/health/ready", d.Health.Ready)
	e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))

	authMW := middleware.NewAutoRefreshMiddleware(d.JWTSecret, d.AuthClient)

	api := e.Group("/api/v1")
	api.GET("/categories", d.Catalog.ListCategories)
	api.GET("/products", d.Catalog.GetProducts)
	api.GET("/products/:id", d.Catalog.GetProduct)

	cart := api.Group("/cart", authMW.RequireAuth)
	cart.GET("", d.Cart.GetCart)
	cart.DELETE("", d.Cart.Clear)
	cart.POST("/items", d.Cart.AddToCart)
	cart.PUT("/items/:id", d.Cart.UpdateItem)
	cart.DELETE("/items/:id", d.Cart.RemoveItem)

	orders := api.Group("/orders", authMW.RequireAuth)
	orders.GET("", d.Orders.ListOrders)
	orders.POST("", d.Orders.PlaceOrder)
	orders.GET("/:id", d.Orders.GetOrder)

	admin := api.Group("/admin", authMW.RequireAdmin)
	admin.GET("/products", d.Catalog.AdminListProducts)
	admin.POST("/products", d.Catalog.CreateProduct)
	admin.GET("/products/:id", d.Catalog.GetProduct)
	admin.PATCH("/products/:id", d.Catalog.PatchProduct)
	admin.DELETE("/products/:id", d.Catalog.DeleteProduct)
	admin.GET("/orders", d.Orders.AdminListOrders)
	admin.GET("/orders/:id", d.Orders.AdminGetOrder)
	admin.PUT("/orders/:id/status", d.Orders.UpdateStatus)
}
