package signal

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"peercam/internal/core/domain"
	"peercam/internal/core/ports"
	"peercam/internal/infrastructure/monitoring"
	"peercam/internal/reactor"
	"peercam/pkg/config"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubManager struct {
	mu         sync.Mutex
	sessions   int
	offers     []string
	answers    []string
	candidates []string
	closed     []domain.SessionID
}

func (m *stubManager) CreateSession(ctx context.Context, opts ports.SessionOptions) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions++
	return &domain.Session{
		ID:       domain.SessionID(fmt.Sprintf("sess-%d", m.sessions)),
		ClientID: opts.ClientID,
		Backend:  opts.Backend,
		State:    domain.SessionNew,
	}, nil
}

func (m *stubManager) HandleOffer(ctx context.Context, id domain.SessionID, sdp string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offers = append(m.offers, sdp)
	return "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n", nil
}

func (m *stubManager) CreateOffer(ctx context.Context, id domain.SessionID) (string, error) {
	return "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n", nil
}

func (m *stubManager) HandleAnswer(ctx context.Context, id domain.SessionID, sdp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = append(m.answers, sdp)
	return nil
}

func (m *stubManager) AddCandidate(ctx context.Context, id domain.SessionID, candidate string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates = append(m.candidates, candidate)
	return nil
}

func (m *stubManager) CloseSession(ctx context.Context, id domain.SessionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = append(m.closed, id)
	return nil
}

func (m *stubManager) RequestKeyframes(ctx context.Context) {}

func (m *stubManager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions - len(m.closed)
}

type stubHandle struct {
	mgr ports.ConnectionManager
}

func (h *stubHandle) Acquire() (ports.ConnectionManager, func(), bool) {
	return h.mgr, func() {}, true
}

func newTestServer(t *testing.T, docRoot string) (*P2PServer, *stubManager, *reactor.Reactor) {
	t.Helper()

	rx := reactor.New(zap.NewNop().Sugar())
	go rx.Run()
	t.Cleanup(rx.Stop)

	mgr := &stubManager{}
	settings := &config.Settings{Port: 0, DocumentRoot: docRoot}
	cfg := config.DefaultConfig()

	srv, err := NewP2PServer(rx, settings, cfg, &stubHandle{mgr: mgr}, monitoring.NewCollector(), zap.NewNop().Sugar())
	require.NoError(t, err)
	require.NoError(t, srv.Run())

	return srv, mgr, rx
}

func baseURL(t *testing.T, srv *P2PServer) string {
	t.Helper()
	_, port, err := net.SplitHostPort(srv.Addr())
	require.NoError(t, err)
	return "127.0.0.1:" + port
}

func TestP2PServer_ServesStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>player</html>"), 0o644))

	srv, _, _ := newTestServer(t, dir)
	addr := baseURL(t, srv)

	resp, err := http.Get("http://" + addr + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html", resp.Header.Get("Content-Type"))

	// Second hit comes from the file cache.
	resp2, err := http.Get("http://" + addr + "/index.html")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestP2PServer_NotFound(t *testing.T) {
	srv, _, _ := newTestServer(t, t.TempDir())
	addr := baseURL(t, srv)

	resp, err := http.Get("http://" + addr + "/missing.html")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "text/html", resp.Header.Get("Content-Type"))
}

func TestP2PServer_BadMethod(t *testing.T) {
	srv, _, _ := newTestServer(t, t.TempDir())
	addr := baseURL(t, srv)

	resp, err := http.Post("http://"+addr+"/index.html", "text/plain", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestP2PServer_OfferAnswer(t *testing.T) {
	srv, mgr, _ := newTestServer(t, t.TempDir())
	addr := baseURL(t, srv)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	offer := &Message{Type: "offer", SDP: "v=0\r\no=- 1 1 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"}
	require.NoError(t, conn.WriteJSON(offer))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var reply Message
	require.NoError(t, conn.ReadJSON(&reply))

	assert.Equal(t, "answer", reply.Type)
	assert.Contains(t, reply.SDP, "v=0")

	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	assert.Len(t, mgr.offers, 1)
	assert.Equal(t, 1, mgr.sessions)
}

func TestP2PServer_CandidateBeforeOfferRejected(t *testing.T) {
	srv, _, _ := newTestServer(t, t.TempDir())
	addr := baseURL(t, srv)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	msg := &Message{Type: "candidate", ICE: &ICECandidate{Candidate: "candidate:1 1 udp 1 127.0.0.1 5000 typ host"}}
	require.NoError(t, conn.WriteJSON(msg))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var reply Message
	require.NoError(t, conn.ReadJSON(&reply))

	assert.Equal(t, "error", reply.Type)
	assert.Contains(t, reply.Reason, "candidate before offer")
}

func TestP2PServer_DisconnectClosesSession(t *testing.T) {
	srv, mgr, _ := newTestServer(t, t.TempDir())
	addr := baseURL(t, srv)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	require.NoError(t, err)

	offer := &Message{Type: "offer", SDP: "v=0\r\no=- 1 1 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"}
	require.NoError(t, conn.WriteJSON(offer))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var reply Message
	require.NoError(t, conn.ReadJSON(&reply))
	conn.Close()

	assert.Eventually(t, func() bool {
		mgr.mu.Lock()
		defer mgr.mu.Unlock()
		return len(mgr.closed) == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestP2PServer_ReaderExitsWhenLoopStops(t *testing.T) {
	srv, _, rx := newTestServer(t, t.TempDir())
	addr := baseURL(t, srv)

	baseline := runtime.NumGoroutine()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	rx.Stop()

	// Flood well past the inbound buffer: a reader with no exit path
	// would block on the channel send once the loop is gone.
	for i := 0; i < 32; i++ {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
			break
		}
	}

	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= baseline
	}, 3*time.Second, 50*time.Millisecond)
}
