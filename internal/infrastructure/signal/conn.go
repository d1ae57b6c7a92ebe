package signal

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// safeConn serializes writes on a websocket connection. Replies are
// written from reactor tasks while pings come from the connection's
// keepalive loop, so writes need a lock.
type safeConn struct {
	mu           sync.Mutex
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func newSafeConn(conn *websocket.Conn, writeTimeout time.Duration) *safeConn {
	return &safeConn{conn: conn, writeTimeout: writeTimeout}
}

func (c *safeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteJSON(v)
}

func (c *safeConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

func (c *safeConn) Close() error {
	return c.conn.Close()
}
