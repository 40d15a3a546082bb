package devserver

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/medbridge/consult/internal/config"
	"github.com/medbridge/consult/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// member is one relay participant with its outbound queue. Only the
// write pump touches the socket.
type member struct {
	sid      string
	identity domain.Identity
	conn     *websocket.Conn
	send     chan []byte

	mu     sync.Mutex
	closed bool
}

func (m *member) trySend(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	select {
	case m.send <- data:
	default:
		log.Warn().Str("module", "devserver").Str("sid", m.sid).Msg("relay backpressure, dropping")
	}
}

func (m *member) sendJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "devserver").Msg("sendJSON marshal")
		return
	}
	m.trySend(b)
}

func (m *member) close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.send)
	_ = m.conn.Close()
	m.mu.Unlock()
}

// relayRoom holds at most the two parties of one consultation.
type relayRoom struct {
	name    string
	members []*member
}

// hub owns the rooms and the join path. Everything that mutates room
// membership runs under the hub lock.
type hub struct {
	store *store
	cfg   *config.Config

	mu    sync.Mutex
	rooms map[string]*relayRoom
}

func newHub(st *store, cfg *config.Config) *hub {
	return &hub{store: st, cfg: cfg, rooms: make(map[string]*relayRoom)}
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimPrefix(h, prefix)
}

func (h *hub) handleJoin(c *gin.Context) {
	roomName := c.Param("room")
	identity, ok := h.store.identityFor(bearerToken(c))
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "bad token"})
		return
	}

	// Membership is decided before the upgrade so a full room refuses
	// with a plain status code the client can read from the handshake.
	h.mu.Lock()
	room, okRoom := h.rooms[roomName]
	if !okRoom {
		room = &relayRoom{name: roomName}
		h.rooms[roomName] = room
	}
	if len(room.members) >= 2 {
		h.mu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": "room full"})
		return
	}
	h.mu.Unlock()

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "devserver").Msg("ws upgrade")
		return
	}

	m := &member{
		sid:      uuid.NewString(),
		identity: identity,
		conn:     ws,
		send:     make(chan []byte, 32),
	}

	h.mu.Lock()
	if len(room.members) >= 2 {
		h.mu.Unlock()
		m.close()
		return
	}
	room.members = append(room.members, m)
	peer := room.other(m)
	h.mu.Unlock()

	log.Info().
		Str("module", "devserver").
		Str("room", roomName).
		Str("sid", m.sid).
		Str("identity", string(identity)).
		Msg("relay join")

	go h.writePump(m)

	ack := gin.H{
		"type":  "joined",
		"self":  gin.H{"sid": m.sid, "identity": string(m.identity)},
		"peers": []gin.H{},
	}
	if peer != nil {
		ack["peers"] = []gin.H{{"sid": peer.sid, "identity": string(peer.identity)}}
		peer.sendJSON(gin.H{
			"type": "peer_joined",
			"peer": gin.H{"sid": m.sid, "identity": string(m.identity)},
		})
	}
	m.sendJSON(ack)

	go h.readPump(room, m)
}

func (r *relayRoom) other(m *member) *member {
	for _, o := range r.members {
		if o != m {
			return o
		}
	}
	return nil
}

func (h *hub) writePump(m *member) {
	for data := range m.send {
		if err := m.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
			return
		}
		if err := m.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Error().Err(err).Str("module", "devserver").Str("sid", m.sid).Msg("relay write")
			return
		}
	}
}

// readPump forwards every inbound frame to the other member verbatim.
// The relay never inspects SDP or candidates.
func (h *hub) readPump(room *relayRoom, m *member) {
	defer h.leave(room, m)
	m.conn.SetReadLimit(h.cfg.ReadLimit)
	for {
		_, data, err := m.conn.ReadMessage()
		if err != nil {
			return
		}
		h.mu.Lock()
		peer := room.other(m)
		h.mu.Unlock()
		if peer != nil {
			peer.trySend(data)
		}
	}
}

func (h *hub) leave(room *relayRoom, m *member) {
	h.mu.Lock()
	for i, o := range room.members {
		if o == m {
			room.members = append(room.members[:i], room.members[i+1:]...)
			break
		}
	}
	peer := room.other(m)
	if len(room.members) == 0 {
		delete(h.rooms, room.name)
	}
	h.mu.Unlock()

	m.close()
	log.Info().
		Str("module", "devserver").
		Str("room", room.name).
		Str("sid", m.sid).
		Msg("relay leave")
	if peer != nil {
		peer.sendJSON(gin.H{"type": "peer_left", "sid": m.sid})
	}
}
