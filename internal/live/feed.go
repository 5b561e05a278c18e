package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix = "checkins:"
	writeWait     = 10 * time.Second
	publishWait   = 5 * time.Second
)

// CheckInEvent is broadcast to admin dashboards when an attendee checks in.
type CheckInEvent struct {
	EventID        uuid.UUID `json:"event_id"`
	RegistrationID uuid.UUID `json:"registration_id"`
	AttendeeName   string    `json:"attendee_name"`
	CheckedInBy    string    `json:"checked_in_by"`
	CheckedInAt    time.Time `json:"checked_in_at"`
}

// Feed fans check-in events out to admin dashboard sockets. Redis pub/sub
// carries events across instances; each instance broadcasts to its own
// connected clients.
type Feed struct {
	client *redis.Client
	logger *zap.Logger

	mu    sync.RWMutex
	rooms map[uuid.UUID]map[*websocket.Conn]struct{}
	subs  map[uuid.UUID]func()
}

// NewFeed creates the check-in live feed.
func NewFeed(client *redis.Client, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{
		client: client,
		logger: logger,
		rooms:  make(map[uuid.UUID]map[*websocket.Conn]struct{}),
		subs:   make(map[uuid.UUID]func()),
	}
}

// Publish announces a check-in to all subscribed dashboards.
func (f *Feed) Publish(event CheckInEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishWait)
	defer cancel()
	if err := f.client.Publish(ctx, channelPrefix+event.EventID.String(), body).Err(); err != nil {
		f.logger.Warn("checkin feed publish failed", zap.Error(err))
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin policy is enforced by the CORS middleware upstream.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS handles GET /ws/checkins?event_id=... for authenticated admins.
func (f *Feed) ServeWS(c *gin.Context) {
	eventID, err := uuid.Parse(c.Query("event_id"))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		f.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	f.register(eventID, conn)
	go f.readLoop(eventID, conn)
}

func (f *Feed) register(eventID uuid.UUID, conn *websocket.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rooms[eventID] == nil {
		f.rooms[eventID] = make(map[*websocket.Conn]struct{})
		if cancel, err := f.subscribe(eventID); err == nil {
			f.subs[eventID] = cancel
		} else {
			f.logger.Warn("checkin feed subscribe failed", zap.Error(err))
		}
	}
	f.rooms[eventID][conn] = struct{}{}
}

func (f *Feed) unregister(eventID uuid.UUID, conn *websocket.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok := f.rooms[eventID]; ok {
		delete(room, conn)
		if len(room) == 0 {
			delete(f.rooms, eventID)
			if cancel, ok := f.subs[eventID]; ok {
				cancel()
				delete(f.subs, eventID)
			}
		}
	}
	conn.Close()
}

// readLoop drains (and discards) client frames so pings are answered and
// closed connections are detected.
func (f *Feed) readLoop(eventID uuid.UUID, conn *websocket.Conn) {
	defer f.unregister(eventID, conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (f *Feed) subscribe(eventID uuid.UUID) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := f.client.Subscribe(ctx, channelPrefix+eventID.String())
	if _, err := pubsub.Receive(ctx); err != nil {
		cancelCtx()
		return nil, err
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				f.broadcast(eventID, []byte(msg.Payload))
			}
		}
	}()
	return cancelCtx, nil
}

func (f *Feed) broadcast(eventID uuid.UUID, payload []byte) {
	f.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(f.rooms[eventID]))
	for conn := range f.rooms[eventID] {
		conns = append(conns, conn)
	}
	f.mu.RUnlock()
	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			f.unregister(eventID, conn)
		}
	}
}
