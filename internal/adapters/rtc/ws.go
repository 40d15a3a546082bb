package rtc

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var errBackpressure = errors.New("backpressure")

// wsClient is the signaling connection with its outbound queue. Writes
// go through the send channel so only the write pump touches the
// socket.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte

	readLimit  int64
	pingPeriod time.Duration

	mu     sync.RWMutex
	closed bool
}

func newWSClient(conn *websocket.Conn, readLimit int64, pingPeriod time.Duration) *wsClient {
	return &wsClient{
		conn:       conn,
		send:       make(chan []byte, 32),
		readLimit:  readLimit,
		pingPeriod: pingPeriod,
	}
}

func (c *wsClient) trySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- data:
	default:
		return errBackpressure
	}
	return nil
}

func (c *wsClient) sendJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("sendJSON marshal")
		return
	}
	if err := c.trySend(b); err != nil {
		log.Warn().Err(err).Str("module", "rtc").Msg("sendJSON dropped")
	}
}

func (c *wsClient) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "rtc").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "rtc").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump delivers every inbound frame to handle in arrival order and
// reports the terminal read error through onClosed.
func (c *wsClient) readPump(handle func(data []byte), onClosed func(err error)) {
	c.conn.SetReadLimit(c.readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pingPeriod + 10*time.Second))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pingPeriod + 10*time.Second))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.close()
			if onClosed != nil {
				onClosed(err)
			}
			return
		}
		handle(data)
	}
}
