package server

import (
	"context"
	"encoding/base64"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"

	"github.com/voicebridge/vad-engine/pkg/events"
	"github.com/voicebridge/vad-engine/pkg/metrics"
	"github.com/voicebridge/vad-engine/pkg/session"
	"github.com/voicebridge/vad-engine/pkg/trace"
)

// ServerConfig holds the configuration for the VAD server.
type ServerConfig struct {
	// Addr is the address to listen on (e.g., ":8080").
	Addr string

	// WSPath is the WebSocket endpoint path.
	WSPath string

	// AuthToken is the bearer token for authentication.
	// If empty, authentication is disabled.
	AuthToken string

	// ControlTimeout bounds how long a control operation (init, config
	// update, recalibration, debug) may wait on a busy session.
	ControlTimeout time.Duration

	// ReadBufferSize is the WebSocket read buffer size.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	WriteBufferSize int
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		WSPath:          "/ws",
		ControlTimeout:  5 * time.Second,
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
}

// Server is the VAD WebSocket and HTTP server.
type Server struct {
	config  ServerConfig
	manager *session.Manager
	mets    *metrics.Metrics

	httpServer *http.Server
	upgrader   websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a server on top of an existing session manager.
func NewServer(config ServerConfig, manager *session.Manager, mets *metrics.Metrics) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		config:  config,
		manager: manager,
		mets:    mets,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins; customize for production
			},
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the server.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.config.WSPath, s.handleWebSocket)
	s.registerHTTPHandlers(mux)

	s.httpServer = &http.Server{
		Addr:    s.config.Addr,
		Handler: mux,
	}

	log.Printf("VAD server starting on %s (ws: %s)", s.config.Addr, s.config.WSPath)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Stop stops the server gracefully. Sessions are left to the manager.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Handler returns the server's HTTP handler for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.config.WSPath, s.handleWebSocket)
	s.registerHTTPHandlers(mux)
	return mux
}

func (s *Server) authorize(r *http.Request) bool {
	if s.config.AuthToken == "" {
		return true
	}
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return false
	}
	return strings.TrimPrefix(authHeader, "Bearer ") == s.config.AuthToken
}

// handleWebSocket upgrades the connection and runs its read loop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.mets.WSConnected()
	defer s.mets.WSDisconnected()

	c := &connection{
		id:        "conn_" + uuid.NewString()[:8],
		server:    s,
		transport: NewWebSocketTransport(conn),
		conn:      conn,
		sessions:  make(map[string]struct{}),
	}
	c.run()
}

// connection tracks one WebSocket client and the sessions it speaks
// for. When the connection drops, its sessions are detached but stay
// alive for a later resume until the idle janitor evicts them.
type connection struct {
	id        string
	server    *Server
	transport *WebSocketTransport
	conn      *websocket.Conn
	sessions  map[string]struct{}
}

func (c *connection) run() {
	defer c.close()

	c.send(events.NewConnectedEvent(c.id))

	for {
		select {
		case <-c.server.ctx.Done():
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[conn %s] WebSocket read error: %v", c.id, err)
			}
			return
		}

		event, err := events.ParseClientEvent(data)
		if err != nil {
			c.send(events.NewErrorEvent(err.Error()))
			continue
		}

		c.handleClientEvent(event)
	}
}

func (c *connection) close() {
	for id := range c.sessions {
		c.server.manager.Detach(id)
	}
	c.transport.Close()
	log.Printf("[conn %s] closed", c.id)
}

func (c *connection) send(ev events.ServerEvent) {
	if err := c.transport.SendEvent(ev); err != nil {
		log.Printf("[conn %s] send error: %v", c.id, err)
	}
}

// sink delivers session events over this connection.
func (c *connection) sink() session.EventSink {
	return func(ev events.ServerEvent) {
		c.send(ev)
	}
}

func (c *connection) controlContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.server.ctx, c.server.config.ControlTimeout)
}

func (c *connection) handleClientEvent(event events.ClientEvent) {
	switch e := event.(type) {
	case *events.InitEvent:
		c.handleInit(e)
	case *events.ProcessAudioEvent:
		c.handleProcessAudio(e)
	case *events.UpdateConfigEvent:
		c.handleUpdateConfig(e)
	case *events.ForceRecalibrationEvent:
		c.handleForceRecalibration(e)
	case *events.GetDebugStateEvent:
		c.handleGetDebugState(e)
	default:
		c.send(events.NewErrorEvent("unsupported event type"))
	}
}

func (c *connection) handleInit(e *events.InitEvent) {
	ctx, cancel := c.controlContext()
	defer cancel()

	ctx, span := trace.StartSpan(ctx, "vad.session_init")
	defer span.End()
	span.SetAttributes(trace.ConnectionAttrs(c.id, "websocket")...)

	sess, isNew, err := c.server.manager.Init(ctx, e.SessionID, e.Config, c.sink())
	if err != nil {
		trace.RecordError(span, err)
		c.send(events.NewErrorEvent("init failed: " + err.Error()))
		return
	}
	c.sessions[sess.ID] = struct{}{}
	span.SetAttributes(trace.SessionAttrs(sess.ID)...)
	span.SetAttributes(attribute.Bool(trace.AttrSessionNew, isNew))

	cfg, err := sess.Config(ctx)
	if err != nil {
		c.send(events.NewErrorEvent("init failed: " + err.Error()))
		return
	}
	profile, err := sess.Profile(ctx)
	if err != nil {
		c.send(events.NewErrorEvent("init failed: " + err.Error()))
		return
	}

	c.send(events.NewVADInitializedEvent(sess.ID, isNew, profile, cfg))
	if isNew {
		c.send(events.NewCalibrationStartedEvent(sess.ID))
	}
}

func (c *connection) handleProcessAudio(e *events.ProcessAudioEvent) {
	payload, err := base64.StdEncoding.DecodeString(e.Audio)
	if err != nil {
		c.send(events.NewErrorEvent("audio is not valid base64"))
		return
	}
	if err := c.server.manager.ProcessAudio(e.SessionID, payload); err != nil {
		c.send(events.NewErrorEvent(err.Error()))
	}
}

func (c *connection) handleUpdateConfig(e *events.UpdateConfigEvent) {
	ctx, cancel := c.controlContext()
	defer cancel()

	cfg, err := c.server.manager.UpdateConfig(ctx, e.SessionID, e.Config)
	if err != nil {
		c.send(events.NewErrorEvent("config update rejected: " + err.Error()))
		return
	}
	c.send(events.NewConfigUpdatedEvent(e.SessionID, cfg))
}

func (c *connection) handleForceRecalibration(e *events.ForceRecalibrationEvent) {
	ctx, cancel := c.controlContext()
	defer cancel()

	if err := c.server.manager.ForceRecalibration(ctx, e.SessionID); err != nil {
		c.send(events.NewErrorEvent(err.Error()))
	}
}

func (c *connection) handleGetDebugState(e *events.GetDebugStateEvent) {
	ctx, cancel := c.controlContext()
	defer cancel()

	state, err := c.server.manager.DebugState(ctx, e.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrDebugDisabled) {
			c.send(events.NewErrorEvent("debug state is disabled"))
		} else {
			c.send(events.NewErrorEvent(err.Error()))
		}
		return
	}
	c.send(events.NewDebugStateEvent(state))
}
