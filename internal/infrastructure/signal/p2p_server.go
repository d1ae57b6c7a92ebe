package signal

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"peercam/internal/core/domain"
	"peercam/internal/core/ports"
	"peercam/internal/infrastructure/middleware"
	"peercam/internal/infrastructure/monitoring"
	"peercam/pkg/cache"
	"peercam/pkg/config"
	"peercam/pkg/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func rateLimitPerMinute(n int) rate.Limit {
	return rate.Limit(float64(n) / 60.0)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // camera endpoint, clients connect from file:// pages too
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// P2PServer is the direct-peer signaling surface: it serves the player
// page over HTTP and negotiates sessions over a websocket endpoint on
// the same wildcard-bound port. Construction takes the listen socket;
// Run starts serving and returns.
type P2PServer struct {
	rx        ports.Dispatcher
	settings  *config.Settings
	handle    ports.ManagerHandle
	collector *monitoring.Collector

	listener net.Listener
	server   *http.Server
	docRoot  string
	files    *cache.FileCache
	limiter  *middleware.IPLimiter

	pingInterval time.Duration
	pongTimeout  time.Duration
	writeTimeout time.Duration
	maxMsgSize   int64

	logger *zap.SugaredLogger
}

func NewP2PServer(
	rx ports.Dispatcher,
	settings *config.Settings,
	cfg *config.Config,
	handle ports.ManagerHandle,
	collector *monitoring.Collector,
	logger *zap.SugaredLogger,
) (*P2PServer, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", settings.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to bind port %d: %w", settings.Port, err)
	}

	docRoot := settings.DocumentRoot
	if docRoot == "" {
		docRoot = cfg.DocumentRoot
	}

	var limiter *middleware.IPLimiter
	if perMinute := cfg.Signal.UpgradesPerMinute; perMinute > 0 {
		limiter = middleware.NewIPLimiter(rateLimitPerMinute(perMinute), perMinute)
	}

	return &P2PServer{
		rx:           rx,
		settings:     settings,
		handle:       handle,
		collector:    collector,
		listener:     listener,
		docRoot:      docRoot,
		files:        cache.New(time.Minute),
		limiter:      limiter,
		pingInterval: cfg.Signal.PingInterval,
		pongTimeout:  cfg.Signal.PongTimeout,
		writeTimeout: 10 * time.Second,
		maxMsgSize:   cfg.Signal.MaxMessageSizeBytes,
		logger:       logger,
	}, nil
}

func (s *P2PServer) Name() string { return "direct-peer" }

// Run starts serving on the already-bound socket. It returns
// immediately; the server dies when the reactor's context is cancelled.
func (s *P2PServer) Run() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	mux.HandleFunc("/", s.handleStatic)

	s.server = &http.Server{Handler: mux}

	go func() {
		if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			s.logger.Errorw("direct-peer server stopped", "error", err)
		}
	}()

	go func() {
		<-s.rx.Context().Done()
		s.server.Close()
		s.files.Stop()
	}()

	s.logger.Infow("direct-peer signaling listening", "addr", s.listener.Addr().String(), "doc_root", s.docRoot)
	return nil
}

// Addr returns the bound listen address.
func (s *P2PServer) Addr() string {
	return s.listener.Addr().String()
}

func (s *P2PServer) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		WriteBadRequest(w, r, fmt.Sprintf("%s %s", r.Method, r.URL.Path))
		return
	}

	reqPath := path.Clean(r.URL.Path)
	if strings.Contains(reqPath, "..") {
		WriteBadRequest(w, r, r.URL.Path)
		return
	}
	if reqPath == "/" {
		reqPath = "/index.html"
	}

	if entry, ok := s.files.Get(reqPath); ok {
		s.writeFile(w, r, entry.MIME, entry.Data)
		return
	}

	data, err := os.ReadFile(filepath.Join(s.docRoot, filepath.FromSlash(reqPath)))
	if err != nil {
		if os.IsNotExist(err) {
			WriteNotFound(w, r, r.URL.Path)
			return
		}
		WriteServerError(w, r, err.Error())
		return
	}

	mime := MIMEType(reqPath)
	s.files.Put(reqPath, data, mime)
	s.writeFile(w, r, mime, data)
}

func (s *P2PServer) writeFile(w http.ResponseWriter, r *http.Request, mime string, data []byte) {
	w.Header().Set("Content-Type", mime)
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(data)
	}
}

func (s *P2PServer) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ip := middleware.ClientIP(r)
	if !s.limiter.Allow(ip) {
		s.logger.Warnw("upgrade rate limit exceeded", "ip", ip)
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	clientID := domain.ClientID(utils.GenerateClientID())
	s.logger.Infow("peer connected", "client_id", clientID, "ip", ip)
	go s.serveConn(raw, clientID)
}

// peerConn is the per-connection negotiation state. Everything in it
// is touched only from reactor tasks.
type peerConn struct {
	server    *P2PServer
	conn      *safeConn
	clientID  domain.ClientID
	sessionID domain.SessionID
}

func (s *P2PServer) serveConn(raw *websocket.Conn, clientID domain.ClientID) {
	conn := newSafeConn(raw, s.writeTimeout)
	defer conn.Close()

	if s.maxMsgSize > 0 {
		raw.SetReadLimit(s.maxMsgSize)
	}
	raw.SetReadDeadline(time.Now().Add(s.pongTimeout))
	raw.SetPongHandler(func(string) error {
		raw.SetReadDeadline(time.Now().Add(s.pongTimeout))
		return nil
	})

	pc := &peerConn{server: s, conn: conn, clientID: clientID}

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	messageChan := make(chan *Message, 10)
	errorChan := make(chan error, 1)
	// Closed when the select loop exits so a reader blocked on a full
	// messageChan can bail out; conn.Close only unblocks ReadMessage.
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			_, data, err := raw.ReadMessage()
			if err != nil {
				errorChan <- err
				return
			}
			raw.SetReadDeadline(time.Now().Add(s.pongTimeout))

			msg, err := decodeMessage(data)
			if err != nil {
				errorChan <- err
				return
			}
			select {
			case messageChan <- msg:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case msg := <-messageChan:
			s.collector.RecordSignalingMessage(s.Name(), msg.Type)
			if !s.rx.Post(func() { pc.handleMessage(msg) }) {
				goto cleanup
			}

		case <-pingTicker.C:
			if err := conn.Ping(); err != nil {
				s.logger.Infow("ping failed", "client_id", clientID, "error", err)
				goto cleanup
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Infow("read failed", "client_id", clientID, "error", err)
			}
			goto cleanup

		case <-s.rx.Context().Done():
			goto cleanup
		}
	}

cleanup:
	s.rx.Post(pc.teardown)
	s.logger.Infow("peer disconnected", "client_id", clientID)
}

func (pc *peerConn) handleMessage(msg *Message) {
	s := pc.server

	var err error
	switch msg.Type {
	case msgOffer:
		err = pc.handleOffer(msg)
	case msgCandidate:
		err = pc.handleCandidate(msg)
	case msgClose, msgBye:
		pc.teardown()
	case msgPing:
		err = pc.conn.WriteJSON(&Message{Type: msgPong})
	default:
		err = fmt.Errorf("unknown message type: %s", msg.Type)
	}

	if err != nil {
		s.collector.RecordSignalingError(s.Name())
		s.logger.Warnw("signaling message failed", "client_id", pc.clientID, "type", msg.Type, "error", err)
		pc.conn.WriteJSON(errorMessage(err.Error()))
	}
}

func (pc *peerConn) handleOffer(msg *Message) error {
	s := pc.server

	if msg.SDP == "" || !strings.HasPrefix(msg.SDP, "v=") {
		return fmt.Errorf("invalid SDP in offer")
	}

	mgr, release, ok := s.handle.Acquire()
	if !ok {
		return fmt.Errorf("connection manager is shut down")
	}
	defer release()

	ctx := s.rx.Context()

	if pc.sessionID == "" {
		conn := pc.conn
		sess, err := mgr.CreateSession(ctx, ports.SessionOptions{
			ClientID: pc.clientID,
			Backend:  s.Name(),
			Metadata: s.settings.Metadata,
			OnCandidate: func(candidate string) {
				conn.WriteJSON(&Message{Type: msgCandidate, ICE: &ICECandidate{Candidate: candidate}})
			},
		})
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		pc.sessionID = sess.ID
	}

	answer, err := mgr.HandleOffer(ctx, pc.sessionID, msg.SDP)
	if err != nil {
		return err
	}
	return pc.conn.WriteJSON(&Message{Type: msgAnswer, SDP: answer})
}

func (pc *peerConn) handleCandidate(msg *Message) error {
	if pc.sessionID == "" {
		return fmt.Errorf("candidate before offer")
	}
	if msg.ICE == nil || msg.ICE.Candidate == "" {
		return fmt.Errorf("candidate payload is empty")
	}

	mgr, release, ok := pc.server.handle.Acquire()
	if !ok {
		return fmt.Errorf("connection manager is shut down")
	}
	defer release()

	return mgr.AddCandidate(pc.server.rx.Context(), pc.sessionID, msg.ICE.Candidate)
}

func (pc *peerConn) teardown() {
	if pc.sessionID == "" {
		return
	}
	id := pc.sessionID
	pc.sessionID = ""

	mgr, release, ok := pc.server.handle.Acquire()
	if !ok {
		return
	}
	defer release()

	if err := mgr.CloseSession(pc.server.rx.Context(), id); err != nil {
		pc.server.logger.Debugw("session already gone", "session_id", id, "error", err)
	}
}
