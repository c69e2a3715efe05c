package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/doorlink/intercom-core/internal/events"
	"github.com/doorlink/intercom-core/internal/helios"
	"github.com/doorlink/intercom-core/internal/infrastructure/config"
	"github.com/doorlink/intercom-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown. Enrollment requests can legitimately run for
// a minute, so this is longer than a typical API would use.
const gracefulShutdownTimeout = 65 * time.Second

// DeviceGateway is the device-facing surface the handlers need. It is
// satisfied by *helios.Intercom; tests substitute a fake.
type DeviceGateway interface {
	Log(ctx context.Context, windowDays int) ([]helios.AccessEntry, error)
	DoorStatus(ctx context.Context, switchID int) (helios.SwitchState, error)
	ControlDoor(ctx context.Context, action helios.SwitchAction, switchID int) error
	Users(ctx context.Context) ([]helios.User, error)
	User(ctx context.Context, uuid string) (*helios.User, error)
	AddUser(ctx context.Context, name, email string, pin int) error
	RemoveUser(ctx context.Context, uuid string) error
	UpdateUserAccess(ctx context.Context, uuid string, upd helios.AccessUpdate) error
	EnrollFingerprint(ctx context.Context, uuid string, finger, reader int) (helios.EnrollmentResult, error)
}

// EventArchive is the archive surface the handlers need. Satisfied by
// *events.Store.
type EventArchive interface {
	Recent(ctx context.Context, limit int) ([]events.ArchivedEvent, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Security    config.SecurityConfig
	Logger      *logging.Logger
	Device      DeviceGateway
	Archive     EventArchive // optional: /events returns 503 without it
	ExternalHub *Hub         // if set, the server uses this hub instead of creating its own
	Version     string

	// OnDoorState, if set, receives every door state observed after a
	// command. OnEnrollment receives every completed enrollment outcome.
	// Both are called synchronously from the handler; keep them fast.
	OnDoorState  func(door int, state string)
	OnEnrollment func(userUUID, status string)
}

// Server is the daemon's HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	wsCfg   config.WebSocketConfig
	secCfg  config.SecurityConfig
	logger  *logging.Logger
	device  DeviceGateway
	archive EventArchive
	version string

	onDoorState  func(door int, state string)
	onEnrollment func(userUUID, status string)

	server  *http.Server
	hub     *Hub
	tickets *ticketStore
	cancel  context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, device gateway)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Device == nil {
		return nil, fmt.Errorf("device gateway is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	s := &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		secCfg:  deps.Security,
		logger:  deps.Logger,
		device:  deps.Device,
		archive: deps.Archive,
		version: deps.Version,
		tickets: newTicketStore(),

		onDoorState:  deps.OnDoorState,
		onEnrollment: deps.OnEnrollment,
	}

	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
	}

	return s, nil
}

// Hub returns the server's WebSocket hub for external broadcasters (the
// event recorder publishes archived events through it). Available after
// Start(), or immediately when a hub was injected.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, and launches the HTTP
// listener in a background goroutine. The server is stopped with Close().
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	go s.cleanTicketsLoop(srvCtx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits for in-flight requests (including a running enrollment) to
// complete, then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
