package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/parking-reservation-bot/internal/config"     // cache and rate limit configuration
	"github.com/iliyamo/parking-reservation-bot/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/parking-reservation-bot/internal/middleware" // import middleware for JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance: the health check, the Telegram webhook and the
// sensor ingestion endpoint.  The webhook and sensor endpoints carry their
// own header-based authentication inside the handler.
func RegisterRoutes(e *echo.Echo, wh *handler.WebhookHandler, sh *handler.SensorHandler) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
	// Telegram delivers every update of the bot to this endpoint.  The
	// handler checks the secret token header itself and always answers 200
	// for authenticated, well-formed requests.
	e.POST("/webhook/telegram", wh.Receive)
	// Lot sensors report occupancy changes here, authenticated by the
	// X-Sensor-Token header.
	e.POST("/v1/sensors/occupancy", sh.ReportOccupancy)
}

// RegisterAdmin registers the admin login endpoint and the protected
// read-only dashboard API.  Authenticated routes require a valid ADMIN
// access token; reads are rate limited and cached through Redis when a
// client is available (rdb may be nil, both middlewares then pass
// requests through unchanged).
func RegisterAdmin(e *echo.Echo, a *handler.AuthHandler, ad *handler.AdminHandler, jwtSecret string, rdb *redis.Client) {
	// The login endpoint issues tokens and therefore sits outside the
	// protected group.
	e.POST("/v1/auth/login", a.Login)

	// All dashboard reads require a valid access token with role ADMIN.
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("ADMIN"))
	auth.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	auth.Use(middleware.NewRedisCache(config.LoadCacheConfig(), rdb))

	auth.GET("/spaces", ad.ListSpaces)
	auth.GET("/spaces/:id", ad.GetSpace)
	auth.GET("/zones", ad.ListZones)
	auth.GET("/reservations", ad.ListReservations)
	auth.GET("/reservations/:reference", ad.GetReservation)
	auth.GET("/payments/review", ad.ReviewPayments)
}
