package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/octobees/directory-search/internal/auth"
	"github.com/octobees/directory-search/internal/config"
	"github.com/octobees/directory-search/internal/handler"
	middlewarepkg "github.com/octobees/directory-search/internal/middleware"
)

// AdminRole is the identity-provider role allowed to manage the service.
const AdminRole = "admin"

// Handlers aggregates HTTP handlers used by the router.
type Handlers struct {
	Search *handler.SearchHandler
}

// Register wires all HTTP routes for the API.
func Register(e *echo.Echo, cfg *config.Config, jwtManager *auth.JWTManager, handlers Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return handler.Success(c, http.StatusOK, "service healthy", map[string]any{"status": "ok"})
	})

	e.GET("/businesses/search", handlers.Search.Search, middlewarepkg.SearchRateLimiter(cfg.RateLimitSearch))
	e.GET("/places/nearby", handlers.Search.NearbyPlaces)
	e.POST("/businesses/:id/views", handlers.Search.RecordView)
	e.POST("/businesses/:id/clicks", handlers.Search.RecordClick)

	admin := e.Group("/admin", middlewarepkg.JWT(jwtManager), middlewarepkg.RequireRole(AdminRole))
	admin.DELETE("/cache/references", handlers.Search.InvalidateReferences)
}
