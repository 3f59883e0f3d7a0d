package web

import (
	"fmt"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"stakehub/internal/metrics"
)

// RequestID returns the id set by the requestid middleware.
func RequestID(c *fiber.Ctx) string {
	id, _ := c.Locals("requestid").(string)
	return id
}

// AccessLog logs every request and feeds the HTTP metrics.
func AccessLog() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			// let the error handler write the status before logging it
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		elapsed := time.Since(start)

		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		metrics.HTTPResponseTime.WithLabelValues(c.Method(), route).Observe(elapsed.Seconds())

		entry := log.WithFields(log.Fields{
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"latency":    elapsed.String(),
			"request_id": RequestID(c),
		})
		if uid := UserID(c); uid != 0 {
			entry = entry.WithField("user_id", uid)
		}
		if status >= fiber.StatusInternalServerError {
			entry.Warn("HTTP request")
		} else {
			entry.Debug("HTTP request")
		}
		return nil
	}
}

// Recover turns a handler panic into a 500 and logs the stack.
func Recover() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(log.Fields{
					"component":  "panic_recovery",
					"panic":      fmt.Sprintf("%v", r),
					"stack":      string(debug.Stack()),
					"request_id": RequestID(c),
				}).Error("Panic in handler recovered")
				err = WriteError(c, fiber.StatusInternalServerError, "internal error", "")
			}
		}()
		return c.Next()
	}
}

// RateLimit rejects clients above the limiter's budget, keyed by client IP.
func RateLimit(rl *RateLimiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !rl.Allow(c.IP()) {
			return WriteError(c, fiber.StatusTooManyRequests, "too many requests", "rate_limited")
		}
		return c.Next()
	}
}
