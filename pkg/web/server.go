// Package web serves the drone's MJPEG stream, a command API and live
// status over HTTP and websockets.
package web

import (
	"context"
	_ "embed"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-tello/pkg/drone"
	"github.com/teslashibe/go-tello/pkg/hub"
	"github.com/teslashibe/go-tello/pkg/snapshot"
)

// DefaultStatusInterval is how often status is pushed to /ws/status.
const DefaultStatusInterval = time.Second

//go:embed static/index.html
var indexHTML []byte

// Controller is what the server needs from the drone controller.
type Controller interface {
	Execute(ctx context.Context, cmd drone.Command) error
	ExecuteString(ctx context.Context, s string) error
	Snapshot() ([]byte, error)
	Subscribe(buffer int) (<-chan []byte, func())
	Status() drone.Status
	History() *drone.History
}

// Config holds server configuration.
type Config struct {
	// Port to listen on, e.g. "8080".
	Port string

	// StatusInterval controls /ws/status pushes. Default: 1s.
	StatusInterval time.Duration

	// Pictures, if enabled, backs POST /api/picture.
	Pictures *snapshot.Store

	Logger *slog.Logger
}

// Server is the web front end of a drone controller.
type Server struct {
	app    *fiber.App
	cfg    Config
	ctrl   Controller
	logger *slog.Logger

	statusHub *hub.Hub
	cameraHub *hub.Hub

	// ctx is cancelled on shutdown; it ends video streams and websocket
	// command sessions.
	ctx    context.Context
	cancel context.CancelFunc

	wg sync.WaitGroup
}

// NewServer creates a server for ctrl. Nothing listens until Run.
func NewServer(ctrl Controller, cfg Config) *Server {
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = DefaultStatusInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "web")

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       cfg,
		ctrl:      ctrl,
		logger:    logger,
		statusHub: hub.NewWithLogger("status", logger),
		cameraHub: hub.NewWithLogger("camera", logger),
		ctx:       ctx,
		cancel:    cancel,
	}

	app := fiber.New(fiber.Config{
		AppName:               "Tello",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/", s.handleIndex)
	app.Get("/video", s.handleVideo)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/snapshot", s.handleSnapshot)
	api.Post("/picture", s.handlePicture)
	api.Get("/commands", s.handleListCommands)
	api.Get("/history", s.handleHistory)
	api.Post("/command", s.handleCommand)
	api.Post("/phrase", s.handlePhrase)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/camera", websocket.New(s.handleCameraWS))
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/command", websocket.New(s.handleCommandWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the hubs and background publishers, then serves until ctx is
// cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	s.startBackground()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("web server listening", "url", "http://localhost:"+s.cfg.Port)
		errCh <- s.app.Listen(":" + s.cfg.Port)
	}()

	select {
	case err := <-errCh:
		s.stop()
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown ends open streams and stops the server.
func (s *Server) Shutdown() error {
	s.stop()
	return s.app.ShutdownWithTimeout(5 * time.Second)
}

func (s *Server) stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Server) startBackground() {
	s.wg.Add(4)
	go func() {
		defer s.wg.Done()
		s.statusHub.Run(s.ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.cameraHub.Run(s.ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.pumpCamera()
	}()
	go func() {
		defer s.wg.Done()
		s.pumpStatus()
	}()
}

// pumpCamera forwards every encoded frame to /ws/camera clients.
func (s *Server) pumpCamera() {
	frames, unsubscribe := s.ctrl.Subscribe(4)
	defer unsubscribe()

	for {
		select {
		case <-s.ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if s.cameraHub.ClientCount() > 0 {
				s.cameraHub.BroadcastBinary(frame)
			}
		}
	}
}

// pumpStatus pushes the controller status to /ws/status clients.
func (s *Server) pumpStatus() {
	ticker := time.NewTicker(s.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if s.statusHub.ClientCount() == 0 {
				continue
			}
			if err := s.statusHub.BroadcastJSON(s.ctrl.Status()); err != nil {
				s.logger.Warn("encode status", "error", err)
			}
		}
	}
}
