package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const readinessTimeout = 2 * time.Second

func RegisterHealthRoutes(app fiber.Router, sqlDB *sql.DB, rdb *redis.Client) {
	app.Get("/healthz", HealthzHandler())
	app.Get("/readyz", ReadyzHandler(sqlDB, rdb))
}

func HealthzHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	}
}

// ReadyzHandler reports backing-store health. Redis is an optional
// dependency; a nil client is skipped rather than reported down.
func ReadyzHandler(sqlDB *sql.DB, rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), readinessTimeout)
		defer cancel()

		checks := fiber.Map{}
		failed := false

		pgStatus := "ok"
		if err := sqlDB.PingContext(ctx); err != nil {
			pgStatus = "down"
			failed = true
		}
		checks["postgres"] = pgStatus

		if rdb != nil {
			redisStatus := "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				redisStatus = "down"
				failed = true
			}
			checks["redis"] = redisStatus
		}

		status := "ready"
		statusCode := fiber.StatusOK
		if failed {
			status = "not_ready"
			statusCode = fiber.StatusServiceUnavailable
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
