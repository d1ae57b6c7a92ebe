package signal

import (
	"fmt"
	"strings"
	"time"

	"peercam/internal/core/domain"
	"peercam/internal/core/ports"
	"peercam/internal/core/services"
	"peercam/internal/infrastructure/monitoring"
	"peercam/pkg/config"
	"peercam/pkg/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// RendezvousClient is the rendezvous broker backend. It dials the
// rendezvous host once on Run, registers the channel, and pairs with
// whichever peer the broker matches it to: the side that finds an
// existing client sends the offer, the other answers. A closed
// connection is not redialed; the backend stays idle until shutdown.
type RendezvousClient struct {
	rx        ports.Dispatcher
	settings  *config.Settings
	cfg       *config.Config
	handle    ports.ManagerHandle
	collector *monitoring.Collector
	tokens    *services.TokenService

	clientID  domain.ClientID
	sessionID domain.SessionID

	logger *zap.SugaredLogger
}

func NewRendezvousClient(
	rx ports.Dispatcher,
	settings *config.Settings,
	cfg *config.Config,
	handle ports.ManagerHandle,
	collector *monitoring.Collector,
	tokens *services.TokenService,
	logger *zap.SugaredLogger,
) *RendezvousClient {
	return &RendezvousClient{
		rx:        rx,
		settings:  settings,
		cfg:       cfg,
		handle:    handle,
		collector: collector,
		tokens:    tokens,
		clientID:  domain.ClientID(utils.GenerateClientID()),
		logger:    logger,
	}
}

func (c *RendezvousClient) Name() string { return "rendezvous" }

// Run starts the one-shot dial to the rendezvous host off the caller's
// stack and returns immediately. A failed dial is logged and leaves the
// backend idle.
func (c *RendezvousClient) Run() error {
	go c.connect()
	return nil
}

func (c *RendezvousClient) connect() {
	wsURL := brokerURL(c.settings.SignalingHost)
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	raw, _, err := dialer.DialContext(c.rx.Context(), wsURL, nil)
	if err != nil {
		c.logger.Errorw("rendezvous dial failed", "host", c.settings.SignalingHost, "error", err)
		c.collector.RecordSignalingError(c.Name())
		return
	}

	conn := newSafeConn(raw, 10*time.Second)

	if err := conn.WriteJSON(c.registerMessage()); err != nil {
		conn.Close()
		c.logger.Errorw("rendezvous register failed", "error", err)
		c.collector.RecordSignalingError(c.Name())
		return
	}
	c.collector.RecordSignalingMessage(c.Name(), msgRegister)
	c.logger.Infow("rendezvous connected", "host", c.settings.SignalingHost, "channel_id", c.settings.ChannelID)

	go func() {
		<-c.rx.Context().Done()
		conn.Close()
	}()
	go c.readLoop(raw, conn)
}

func (c *RendezvousClient) registerMessage() *Message {
	msg := &Message{
		Type:         msgRegister,
		ChannelID:    c.settings.ChannelID,
		ClientID:     string(c.clientID),
		SignalingKey: c.settings.SignalingKey,
		Metadata:     c.settings.Metadata,
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

func (c *RendezvousClient) readLoop(raw *websocket.Conn, conn *safeConn) {
	if c.cfg.Signal.MaxMessageSizeBytes > 0 {
		raw.SetReadLimit(c.cfg.Signal.MaxMessageSizeBytes)
	}

	for {
		_, data, err := raw.ReadMessage()
		if err != nil {
			// No reconnect: tear the session down and go idle.
			c.logger.Infow("rendezvous connection closed", "error", err)
			c.rx.Post(c.teardownSession)
			return
		}

		msg, err := decodeMessage(data)
		if err != nil {
			c.logger.Warnw("undecodable rendezvous message", "error", err)
			c.collector.RecordSignalingError(c.Name())
			continue
		}

		c.collector.RecordSignalingMessage(c.Name(), msg.Type)
		c.rx.Post(func() { c.handleMessage(conn, msg) })
	}
}

func (c *RendezvousClient) handleMessage(conn *safeConn, msg *Message) {
	var err error
	switch msg.Type {
	case msgAccept:
		err = c.handleAccept(conn, msg)
	case msgReject:
		err = fmt.Errorf("channel rejected: %s", msg.Reason)
	case msgOffer:
		err = c.handleOffer(conn, msg)
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
		c.logger.Warnw("rendezvous message failed", "type", msg.Type, "error", err)
	}
}

// handleAccept opens the session; when the broker reports an existing
// peer on the channel this side starts the exchange with an offer.
func (c *RendezvousClient) handleAccept(conn *safeConn, msg *Message) error {
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

	if !msg.IsExistClient {
		// First on the channel; the peer's offer arrives later.
		return nil
	}

	offer, err := mgr.CreateOffer(ctx, c.sessionID)
	if err != nil {
		return err
	}
	return conn.WriteJSON(&Message{Type: msgOffer, SDP: offer})
}

func (c *RendezvousClient) handleOffer(conn *safeConn, msg *Message) error {
	if c.sessionID == "" {
		return fmt.Errorf("offer before accept")
	}
	if !strings.HasPrefix(msg.SDP, "v=") {
		return fmt.Errorf("invalid SDP in offer")
	}

	mgr, release, ok := c.handle.Acquire()
	if !ok {
		return fmt.Errorf("connection manager is shut down")
	}
	defer release()

	answer, err := mgr.HandleOffer(c.rx.Context(), c.sessionID, msg.SDP)
	if err != nil {
		return err
	}
	return conn.WriteJSON(&Message{Type: msgAnswer, SDP: answer})
}

func (c *RendezvousClient) handleAnswer(msg *Message) error {
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

func (c *RendezvousClient) handleCandidate(msg *Message) error {
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

func (c *RendezvousClient) teardownSession() {
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
