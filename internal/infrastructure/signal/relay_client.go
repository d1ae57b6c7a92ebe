package signal

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"peercam/internal/core/domain"
	"peercam/internal/core/ports"
	"peercam/internal/core/services"
	httphandlers "peercam/internal/handlers/http"
	"peercam/internal/infrastructure/middleware"
	"peercam/internal/infrastructure/monitoring"
	"peercam/pkg/config"
	"peercam/pkg/retry"
	"peercam/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// RelayClient is the relay broker backend. It keeps one outbound
// signaling connection to the relay host and, when a relay port is
// configured, a loopback control API for on-demand connect and
// disconnect. With --auto the connection is dialed as soon as Run is
// called.
type RelayClient struct {
	rx        ports.Dispatcher
	settings  *config.Settings
	cfg       *config.Config
	handle    ports.ManagerHandle
	collector *monitoring.Collector
	tokens    *services.TokenService
	checker   *monitoring.HealthChecker

	apiListener net.Listener
	apiServer   *http.Server

	mu        sync.Mutex
	conn      *safeConn
	connected bool
	clientID  domain.ClientID
	sessionID domain.SessionID

	logger *zap.SugaredLogger
}

func NewRelayClient(
	rx ports.Dispatcher,
	settings *config.Settings,
	cfg *config.Config,
	handle ports.ManagerHandle,
	collector *monitoring.Collector,
	tokens *services.TokenService,
	checker *monitoring.HealthChecker,
	logger *zap.SugaredLogger,
) (*RelayClient, error) {
	c := &RelayClient{
		rx:        rx,
		settings:  settings,
		cfg:       cfg,
		handle:    handle,
		collector: collector,
		tokens:    tokens,
		checker:   checker,
		clientID:  domain.ClientID(utils.GenerateClientID()),
		logger:    logger,
	}

	if settings.RelayPort >= 0 {
		listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", settings.RelayPort))
		if err != nil {
			return nil, fmt.Errorf("failed to bind control api port %d: %w", settings.RelayPort, err)
		}
		c.apiListener = listener
	}

	return c, nil
}

func (c *RelayClient) Name() string { return "relay" }

// Run starts the control API when one is configured and, under --auto,
// dials the relay host. It returns immediately.
func (c *RelayClient) Run() error {
	if c.apiListener != nil {
		c.startControlAPI()
	}

	go func() {
		<-c.rx.Context().Done()
		c.Disconnect()
		if c.apiServer != nil {
			c.apiServer.Close()
		}
	}()

	// The dial happens off the caller's stack so an unreachable broker
	// never delays the rest of startup.
	if c.settings.AutoConnect {
		go func() {
			if err := c.Connect(); err != nil {
				// Connection faults never kill the run; the control API
				// can retry later.
				c.logger.Errorw("auto connect failed", "host", c.settings.SignalingHost, "error", err)
				c.collector.RecordSignalingError(c.Name())
			}
		}()
	}

	return nil
}

func (c *RelayClient) startControlAPI() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(
		middleware.Recovery(c.logger),
		middleware.ErrorHandler(c.logger),
		middleware.Tracing(),
		middleware.RateLimit(middleware.NewIPLimiter(rateLimitPerMinute(c.cfg.Signal.UpgradesPerMinute), c.cfg.Signal.UpgradesPerMinute)),
	)

	handler := httphandlers.NewControlHandler(c, c.checker, c.collector)
	handler.SetupRoutes(router, middleware.Auth(c.tokens))

	c.apiServer = &http.Server{Handler: router}
	go func() {
		if err := c.apiServer.Serve(c.apiListener); err != nil && err != http.ErrServerClosed {
			c.logger.Errorw("control api stopped", "error", err)
		}
	}()

	c.logger.Infow("relay control api listening", "addr", c.apiListener.Addr().String())
}

// ControlAddr returns the loopback address of the control API, or ""
// when none is configured.
func (c *RelayClient) ControlAddr() string {
	if c.apiListener == nil {
		return ""
	}
	return c.apiListener.Addr().String()
}

// Connect dials the relay host and registers the channel. Idempotent
// while a connection is up.
func (c *RelayClient) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	wsURL := brokerURL(c.settings.SignalingHost)
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	var raw *websocket.Conn
	err := retry.Do(c.rx.Context(), retry.DefaultConfig(), func() error {
		var dialErr error
		raw, _, dialErr = dialer.DialContext(c.rx.Context(), wsURL, nil)
		return dialErr
	})
	if err != nil {
		return fmt.Errorf("failed to dial relay host %s: %w", wsURL, err)
	}

	conn := newSafeConn(raw, 10*time.Second)

	if err := conn.WriteJSON(c.registerMessage()); err != nil {
		conn.Close()
		return fmt.Errorf("failed to register channel: %w", err)
	}

	c.conn = conn
	c.connected = true
	c.collector.RecordSignalingMessage(c.Name(), msgRegister)
	c.logger.Infow("relay connected", "host", c.settings.SignalingHost, "channel_id", c.settings.ChannelID)

	go c.readLoop(raw, conn)
	return nil
}

func (c *RelayClient) registerMessage() *Message {
	msg := &Message{
		Type:         msgRegister,
		ChannelID:    c.settings.ChannelID,
		ClientID:     string(c.clientID),
		SignalingKey: c.settings.SignalingKey,
		Metadata:     c.settings.Metadata,
		Video: &MediaDescription{
			Enabled: !c.settings.NoVideo,
			Codec:   c.settings.VideoCodec,
			Bitrate: c.settings.VideoBitrate,
		},
		Audio: &MediaDescription{
			Enabled: !c.settings.NoAudio,
			Codec:   c.settings.AudioCodec,
			Bitrate: c.settings.AudioBitrate,
		},
	}

	if c.tokens != nil {
		token, err := c.tokens.GenerateToken(domain.ChannelID(c.settings.ChannelID), c.clientID)
		if err != nil {
			c.logger.Warnw("failed to mint signaling token", "error", err)
		} else {
			msg.AuthToken = token
		}
	}
	return msg
}

// Disconnect tears down the outbound connection and its session.
// Idempotent.
func (c *RelayClient) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	conn.WriteJSON(&Message{Type: msgBye})
	conn.Close()
	c.rx.Post(c.teardownSession)
	c.logger.Infow("relay disconnected", "host", c.settings.SignalingHost)
	return nil
}

func (c *RelayClient) Status() ports.BrokerStatus {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()

	sessions := 0
	if mgr, release, ok := c.handle.Acquire(); ok {
		sessions = mgr.ActiveSessions()
		release()
	}

	return ports.BrokerStatus{
		Backend:   c.Name(),
		Connected: connected,
		ChannelID: domain.ChannelID(c.settings.ChannelID),
		Sessions:  sessions,
	}
}

func (c *RelayClient) readLoop(raw *websocket.Conn, conn *safeConn) {
	if c.cfg.Signal.MaxMessageSizeBytes > 0 {
		raw.SetReadLimit(c.cfg.Signal.MaxMessageSizeBytes)
	}

	for {
		_, data, err := raw.ReadMessage()
		if err != nil {
			c.mu.Lock()
			wasCurrent := c.conn == conn
			if wasCurrent {
				c.conn = nil
				c.connected = false
			}
			c.mu.Unlock()

			if wasCurrent {
				c.logger.Infow("relay connection closed", "error", err)
				c.rx.Post(c.teardownSession)
			}
			return
		}

		msg, err := decodeMessage(data)
		if err != nil {
			c.logger.Warnw("undecodable relay message", "error", err)
			c.collector.RecordSignalingError(c.Name())
			continue
		}

		c.collector.RecordSignalingMessage(c.Name(), msg.Type)
		c.rx.Post(func() { c.handleMessage(conn, msg) })
	}
}

func (c *RelayClient) handleMessage(conn *safeConn, msg *Message) {
	var err error
	switch msg.Type {
	case msgAccept:
		err = c.handleAccept(conn)
	case msgReject:
		err = fmt.Errorf("channel rejected: %s", msg.Reason)
	case msgAnswer:
		err = c.handleAnswer(msg)
	case msgCandidate:
		err = c.handleCandidate(msg)
	case msgPing:
		err = conn.WriteJSON(&Message{Type: msgPong})
	case msgBye:
		c.teardownSession()
	default:
		err = fmt.Errorf("unknown message type: %s", msg.Type)
	}

	if err != nil {
		c.collector.RecordSignalingError(c.Name())
		c.logger.Warnw("relay message failed", "type", msg.Type, "error", err)
	}
}

// handleAccept opens the session and pushes the offer to the relay.
func (c *RelayClient) handleAccept(conn *safeConn) error {
	mgr, release, ok := c.handle.Acquire()
	if !ok {
		return fmt.Errorf("connection manager is shut down")
	}
	defer release()

	ctx := c.rx.Context()

	if c.sessionID == "" {
		sess, err := mgr.CreateSession(ctx, ports.SessionOptions{
			ClientID:  c.clientID,
			ChannelID: domain.ChannelID(c.settings.ChannelID),
			Backend:   c.Name(),
			Metadata:  c.settings.Metadata,
			OnCandidate: func(candidate string) {
				conn.WriteJSON(&Message{Type: msgCandidate, ICE: &ICECandidate{Candidate: candidate}})
			},
		})
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		c.sessionID = sess.ID
	}

	offer, err := mgr.CreateOffer(ctx, c.sessionID)
	if err != nil {
		return err
	}
	return conn.WriteJSON(&Message{Type: msgOffer, SDP: offer})
}

func (c *RelayClient) handleAnswer(msg *Message) error {
	if c.sessionID == "" {
		return fmt.Errorf("answer before accept")
	}
	if !strings.HasPrefix(msg.SDP, "v=") {
		return fmt.Errorf("invalid SDP in answer")
	}

	mgr, release, ok := c.handle.Acquire()
	if !ok {
		return fmt.Errorf("connection manager is shut down")
	}
	defer release()

	return mgr.HandleAnswer(c.rx.Context(), c.sessionID, msg.SDP)
}

func (c *RelayClient) handleCandidate(msg *Message) error {
	if c.sessionID == "" {
		return fmt.Errorf("candidate before accept")
	}
	if msg.ICE == nil || msg.ICE.Candidate == "" {
		return fmt.Errorf("candidate payload is empty")
	}

	mgr, release, ok := c.handle.Acquire()
	if !ok {
		return fmt.Errorf("connection manager is shut down")
	}
	defer release()

	return mgr.AddCandidate(c.rx.Context(), c.sessionID, msg.ICE.Candidate)
}

func (c *RelayClient) teardownSession() {
	if c.sessionID == "" {
		return
	}
	id := c.sessionID
	c.sessionID = ""

	mgr, release, ok := c.handle.Acquire()
	if !ok {
		return
	}
	defer release()

	if err := mgr.CloseSession(c.rx.Context(), id); err != nil {
		c.logger.Debugw("session already gone", "session_id", id, "error", err)
	}
}

// brokerURL normalizes a signaling host argument into a websocket URL.
func brokerURL(host string) string {
	if strings.Contains(host, "://") {
		return host
	}
	return "ws://" + host + "/signaling"
}
