// Package server exposes the control dashboard: a small Fiber app with a
// JSON API over the bot host and a DevTools websocket proxy for the live
// browser view.
package server

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/chelton/forumbot/internal/bot"
)

// Controller is the bot surface the dashboard drives. Implemented by
// bot.Bot; faked in tests.
type Controller interface {
	Start(ctx context.Context, username, password string) error
	Stop() error
	RunOnce(ctx context.Context) error
	CheckLogin(ctx context.Context, username, password string) error
	Status() bot.Status
	SubmitCode(code string)
}

// LogSource supplies the recent log tail.
type LogSource interface {
	Lines() []string
}

// Credentials are the fallback used when a request omits its own.
type Credentials struct {
	Username string
	Password string
}

type Server struct {
	app     *fiber.App
	ctrl    Controller
	logs    LogSource
	creds   Credentials
	cdpPort string
	logger  *slog.Logger
}

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type codeRequest struct {
	Code string `json:"code"`
}

// New builds the dashboard app. cdpPort is the Chrome remote-debugging port
// the websocket proxy dials.
func New(ctrl Controller, logs LogSource, creds Credentials, cdpPort string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		app: fiber.New(fiber.Config{
			ReduceMemoryUsage:     true,
			DisableStartupMessage: true,
		}),
		ctrl:    ctrl,
		logs:    logs,
		creds:   creds,
		cdpPort: cdpPort,
		logger:  logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTML)
		return c.SendString(dashboardHTML)
	})

	api := s.app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/start", s.handleStart)
	api.Post("/stop", s.handleStop)
	api.Post("/run-once", s.handleRunOnce)
	api.Post("/login", s.handleLogin)
	api.Post("/captcha", s.handleCaptcha)
	api.Get("/logs", s.handleLogs)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws/:id", websocket.New(s.handleDevtools))
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves the dashboard until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("dashboard listening", slog.String("addr", addr))
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Status())
}

// credentials parses the optional request body and falls back to the
// configured defaults.
func (s *Server) credentials(c *fiber.Ctx) (string, string, error) {
	req := credentialsRequest{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return "", "", err
		}
	}
	if req.Username == "" {
		req.Username = s.creds.Username
	}
	if req.Password == "" {
		req.Password = s.creds.Password
	}
	if req.Username == "" || req.Password == "" {
		return "", "", errors.New("username and password are required")
	}
	return req.Username, req.Password, nil
}

func (s *Server) handleStart(c *fiber.Ctx) error {
	username, password, err := s.credentials(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(apiResponse{Message: err.Error()})
	}
	if err := s.ctrl.Start(c.Context(), username, password); err != nil {
		if errors.Is(err, bot.ErrAlreadyRunning) {
			return c.Status(fiber.StatusConflict).JSON(apiResponse{Message: err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(apiResponse{Message: err.Error()})
	}
	return c.JSON(apiResponse{Success: true, Message: "bot started"})
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	if err := s.ctrl.Stop(); err != nil {
		if errors.Is(err, bot.ErrNotRunning) {
			return c.Status(fiber.StatusConflict).JSON(apiResponse{Message: err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(apiResponse{Message: err.Error()})
	}
	return c.JSON(apiResponse{Success: true, Message: "bot stopped"})
}

func (s *Server) handleRunOnce(c *fiber.Ctx) error {
	if err := s.ctrl.RunOnce(c.Context()); err != nil {
		if errors.Is(err, bot.ErrNotRunning) {
			return c.Status(fiber.StatusConflict).JSON(apiResponse{Message: err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(apiResponse{Message: err.Error()})
	}
	return c.JSON(apiResponse{Success: true, Message: "cycle finished"})
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	username, password, err := s.credentials(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(apiResponse{Message: err.Error()})
	}
	if err := s.ctrl.CheckLogin(c.Context(), username, password); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(apiResponse{Message: err.Error()})
	}
	return c.JSON(apiResponse{Success: true, Message: "login succeeded"})
}

func (s *Server) handleCaptcha(c *fiber.Ctx) error {
	var req codeRequest
	if err := c.BodyParser(&req); err != nil || req.Code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(apiResponse{Message: "code is required"})
	}
	s.ctrl.SubmitCode(req.Code)
	return c.JSON(apiResponse{Success: true, Message: "code submitted"})
}

func (s *Server) handleLogs(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"lines": s.logs.Lines()})
}

// handleDevtools proxies a dashboard websocket to the tab's DevTools
// endpoint so the live view can screencast and forward input.
func (s *Server) handleDevtools(conn *websocket.Conn) {
	proxy, err := dialDevtools(s.cdpPort, conn.Params("id"), conn)
	if err != nil {
		s.logger.Warn("devtools dial failed", slog.Any("error", err))
		return
	}
	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if err = proxy.WriteMessage(messageType, message); err != nil {
			break
		}
	}
	_ = proxy.Close()
}
