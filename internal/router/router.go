package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/rentora/device-booking/internal/config"
	"github.com/rentora/device-booking/internal/handler"
	"github.com/rentora/device-booking/internal/middleware"
	"github.com/rentora/device-booking/internal/model"
)

// RegisterRoutes registers routes that do not require authentication:
// the health check and the public availability endpoint.  The
// availability GET sits behind the Redis response cache and the rate
// limiter; both degrade to pass-through when rdb is nil.
func RegisterRoutes(e *echo.Echo, a *handler.AvailabilityHandler, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	limit := middleware.NewRateLimiter(config.LoadRateLimitConfig(), rdb)
	e.GET("/v1/device-models/:id/availability", a.GetAvailability, limit, cache)
}

// RegisterAuth registers the authentication endpoints and the
// token-protected profile route.  Unauthenticated operations live under
// /v1/auth; /v1/me requires a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)

	me := e.Group("/v1")
	me.Use(middleware.JWTAuth(jwtSecret))
	me.Use(middleware.RequireRole(model.RoleStaff, model.RoleCustomer))
	me.GET("/me", a.Me)
}

// RegisterOrders registers the customer-facing order orchestration
// endpoints.  Both roles may place orders; ownership checks inside the
// handlers keep customers away from each other's orders.
func RegisterOrders(e *echo.Echo, o *handler.OrderHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleStaff, model.RoleCustomer))

	g.POST("/orders", o.CreateOrder)
	g.GET("/my-orders", o.ListMyOrders)
	g.GET("/orders/:id", o.GetOrder)
	g.PUT("/orders/:id", o.UpdateOrder)
	g.DELETE("/orders/:id", o.DeleteOrder)
}

// RegisterStaff registers the staff-only lifecycle endpoints: review,
// confirm/reject, and the physical allocation flow.
func RegisterStaff(e *echo.Echo, s *handler.StaffHandler, jwtSecret string) {
	g := e.Group("/v1/orders/:id")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleStaff))

	g.POST("/review", s.StartReview)
	g.POST("/confirm", s.Confirm)
	g.POST("/reject", s.Reject)
	g.POST("/allocate", s.Allocate)
	g.POST("/handover", s.Handover)
	g.POST("/return", s.Return)
}
