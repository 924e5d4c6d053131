package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/wonny/edgefactory/internal/contracts"
	"github.com/wonny/edgefactory/internal/events"
	"github.com/wonny/edgefactory/pkg/logger"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
)

// EventFeed streams lifecycle events (signals, promotions, rejections) to
// WebSocket clients. Each connection gets its own bus subscription so a slow
// client never stalls another.
// ⭐ SSOT: 이벤트 WebSocket 전송은 여기서만
type EventFeed struct {
	bus      *events.Bus
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewEventFeed creates a WebSocket event feed backed by the bus.
func NewEventFeed(bus *events.Bus, log *logger.Logger) *EventFeed {
	return &EventFeed{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: log.Component("event-feed"),
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

// wsEnvelope is the wire frame for one event.
type wsEnvelope struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    contracts.Event `json:"payload"`
}

// ServeHTTP upgrades the connection and streams events until the client
// disconnects.
// GET /api/events/ws
func (f *EventFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	f.mu.Lock()
	f.conns[conn] = struct{}{}
	f.mu.Unlock()

	eventCh, cancel := f.bus.Subscribe()

	go f.readLoop(conn)
	f.writeLoop(conn, eventCh, cancel)
}

// readLoop drains client frames so pongs are processed; clients never send
// meaningful data.
func (f *EventFeed) readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			conn.Close()
			return
		}
	}
}

func (f *EventFeed) writeLoop(conn *websocket.Conn, eventCh <-chan contracts.Event, cancel func()) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		cancel()
		f.mu.Lock()
		delete(f.conns, conn)
		f.mu.Unlock()
		conn.Close()
	}()

	for {
		select {
		case event, ok := <-eventCh:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
					time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			frame := wsEnvelope{
				Type:       event.EventType(),
				OccurredAt: event.OccurredAt(),
				Payload:    event,
			}
			if err := conn.WriteJSON(frame); err != nil {
				f.logger.Debug().Err(err).Msg("WebSocket write failed, dropping client")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (f *EventFeed) ClientCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}
