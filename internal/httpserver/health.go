package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	pkgdb "github.com/Skotchmaster/storefront/pkg/db"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type HealthHTTP struct {
	DB    *gorm.DB
	Redis redis.UniversalClient
}

func (h *HealthHTTP) Live(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// Ready reports unavailable while PostgreSQL or, when configured, Redis
// does not answer a ping.
func (h *HealthHTTP) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	l := logging.FromContext(ctx).With("handler", "health.ready")

	checks := map[string]string{"database": "ok"}
	status := http.StatusOK

	if err := pkgdb.Ping(ctx, h.DB); err != nil {
		l.Warn("readiness_failed", "dependency", "database", "error", err)
		checks["database"] = "down"
		status = http.StatusServiceUnavailable
	}
	if h.Redis != nil {
		checks["redis"] = "ok"
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			l.Warn("readiness_failed", "dependency", "redis", "error", err)
			checks["redis"] = "down"
			status = http.StatusServiceUnavailable
		}
	}

	return c.JSON(status, checks)
}
