package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stockmarket/internal/lobby"
)

const (
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 25 * time.Second
	sendBuffer   = 64
)

// Hub fans lobby events out to websocket subscribers, grouped by game.
type Hub struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

type subscriber struct {
	gameID string
	out    chan []byte
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		subs: make(map[string]map[*subscriber]struct{}),
	}
}

// Publish implements lobby.Broadcaster. A subscriber whose buffer is full is
// dropped instead of stalling the table.
func (h *Hub) Publish(ev lobby.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("encode event failed", "game_id", ev.GameID, "type", ev.Type, "err", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[ev.GameID] {
		select {
		case sub.out <- b:
		default:
			h.log.Warn("dropping slow subscriber", "game_id", ev.GameID)
			h.removeLocked(sub)
		}
	}
}

// Subscribers reports how many connections are watching a game.
func (h *Hub) Subscribers(gameID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[gameID])
}

// Serve upgrades the request and streams the game's events until either side
// closes. first is queued ahead of any live event.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, gameID string, first lobby.Event) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := &subscriber{gameID: gameID, out: make(chan []byte, sendBuffer)}
	if b, err := json.Marshal(first); err == nil {
		sub.out <- b
	}
	h.add(sub)
	defer h.remove(sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(conn, sub)
		// unblocks the read loop below
		_ = conn.Close()
	}()

	conn.SetReadLimit(4 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(sub)
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, sub *subscriber) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case b, ok := <-sub.out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *Hub) add(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sub.gameID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[sub.gameID] = set
	}
	set[sub] = struct{}{}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

// removeLocked closes sub.out exactly once: only a subscriber still in the set
// is closed.
func (h *Hub) removeLocked(sub *subscriber) {
	set := h.subs[sub.gameID]
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	close(sub.out)
	if len(set) == 0 {
		delete(h.subs, sub.gameID)
	}
}
