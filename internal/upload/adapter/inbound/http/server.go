package http_handler

import (
	"context"
	"strconv"
	"time"

	"github.com/anthanhphan/go-resumable-upload/internal/upload/config"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/metrics"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/port"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// TokenIssuer hands out CSRF tokens bound to a client identity.
type TokenIssuer interface {
	Issue(clientIdentity string) string
}

// Options carries the optional collaborators of the HTTP server.
type Options struct {
	Issuer   TokenIssuer
	Gatherer prometheus.Gatherer
	Metrics  *metrics.Metrics
	// Now is overridable in tests.
	Now func() time.Time
}

type Server struct {
	app     *fiber.App
	cfg     *config.Config
	service port.UploadService
	opts    Options
}

func NewServer(cfg *config.Config, service port.UploadService, opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	app := fiber.New(fiber.Config{
		BodyLimit:             int(cfg.Server.MaxChunkSize),
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency} ${respHeader:X-Request-ID}\n",
	}))

	s := &Server{
		app:     app,
		cfg:     cfg,
		service: service,
		opts:    opts,
	}

	app.Use(s.observe)

	// Routes
	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	base := s.cfg.Server.BasePath

	files := s.app.Group(base, s.tusHeaders)
	files.Options("", s.handleOptions)
	files.Post("", s.handleCreate)
	files.Options("/:id", s.handleOptions)
	files.Patch("/:id", s.handlePatch)
	files.Head("/:id", s.handleHead)

	s.app.Get("/csrf-token", s.handleCSRFToken)
	s.app.Get("/healthz", s.handleHealth)
	if s.opts.Gatherer != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))
	}
}

// App exposes the fiber app for in-process testing.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Start() error {
	return s.app.Listen(s.cfg.Server.Addr)
}

func (s *Server) Stop(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// tusHeaders stamps the protocol version on every upload response.
func (s *Server) tusHeaders(c *fiber.Ctx) error {
	c.Set(headerTusResumable, tusVersion)
	return c.Next()
}

func (s *Server) observe(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
	}
	s.opts.Metrics.RecordRequest(c.Method(), strconv.Itoa(status), time.Since(start).Seconds())
	return err
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
