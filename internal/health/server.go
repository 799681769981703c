package health

import (
	"net/http"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
)

// Server is the fiber HTTP surface this process exposes (§3 Non-goals:
// never dashboard/query routes, only /healthz, /health and /metrics).
type Server struct {
	app     *fiber.App
	checker *Checker
}

// NewServer wires a liveness/readiness handler against checker and mounts
// metricsHandler (internal/metrics.Handler) at /metrics, the same
// fiber.New/setupRoutes shape as the teacher's signal server.
func NewServer(checker *Checker, metricsHandler http.Handler) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           5 * time.Second,
		WriteTimeout:          5 * time.Second,
	})

	s := &Server{app: app, checker: checker}
	s.setupRoutes(metricsHandler)
	return s
}

func (s *Server) setupRoutes(metricsHandler http.Handler) {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "time": time.Now().Unix()})
	})

	s.app.Get("/health", func(c *fiber.Ctx) error {
		statuses := s.checker.Statuses()
		code := fiber.StatusOK
		if !s.checker.Ready() {
			code = fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"ready":  s.checker.Ready(),
			"checks": statuses,
			"time":   time.Now().Unix(),
		})
	})

	if metricsHandler != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(metricsHandler))
	}
}

// Listen blocks serving on addr until the listener is closed.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server, releasing the listener.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
