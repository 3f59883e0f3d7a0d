// Package web is the HTTP boundary: fiber app, JSON envelope, JWT auth and
// shared middleware. Feature packages register their own routes.
package web

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"stakehub/internal/config"
)

// Routes is implemented by every feature handler.
type Routes interface {
	Register(api fiber.Router, g Guards)
}

// Server owns the fiber app.
type Server struct {
	app     *fiber.App
	limiter *RateLimiter
	tokens  *Tokens
}

// NewServer builds the app with the shared middleware chain.
func NewServer(cfg *config.Config, tokens *Tokens) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "stakehub",
		BodyLimit:             1 << 20,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          ErrorHandler,
		DisableStartupMessage: true,
	})

	s := &Server{
		app:     app,
		limiter: NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		tokens:  tokens,
	}

	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(AccessLog())
	app.Use(Recover())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(splitOrigins(cfg.CORSOrigins), ","),
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		MaxAge:       86400,
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return WriteSuccess(c, fiber.StatusOK, "ok", nil)
	})
	if cfg.FeatureMetricsEnabled {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}
	return s
}

// Mount registers feature routes under /api/v1.
func (s *Server) Mount(routes ...Routes) {
	api := s.app.Group("/api/v1", RateLimit(s.limiter))
	g := Guards{Auth: AuthRequired(s.tokens), Admin: AdminOnly()}
	for _, r := range routes {
		r.Register(api, g)
	}
}

// App exposes the fiber app (tests use App().Test).
func (s *Server) App() *fiber.App { return s.app }

// Listen serves HTTP on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	log.WithField("addr", addr).Info("HTTP server listening")
	return s.app.Listen(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Close()
	return s.app.ShutdownWithContext(ctx)
}

func splitOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
