// Package ws serves the call websocket. Each connection owns one call session
// for its lifetime.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"companion-call-demo/backend/internal/call"
	"companion-call-demo/backend/internal/models"
	"companion-call-demo/backend/internal/rooms"
	apperrors "companion-call-demo/backend/pkg/errors"
	"companion-call-demo/backend/pkg/logger"
	"companion-call-demo/backend/pkg/middleware"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 16 * 1024

	sendBuffer = 256
)

// Opener creates call sessions
type Opener interface {
	Open(ctx context.Context, req rooms.OpenRequest) (*call.Session, error)
}

// Gauge tracks open connections
type Gauge interface {
	WSOpened()
	WSClosed()
}

// Handler upgrades /ws/call/:roomId requests
type Handler struct {
	rooms    Opener
	gauge    Gauge
	log      *logger.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates the handler. Only origins in allowed may connect; "*"
// allows any. gauge may be nil.
func NewHandler(opener Opener, allowed []string, gauge Gauge, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &Handler{
		rooms: opener,
		gauge: gauge,
		log:   log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return middleware.OriginAllowed(allowed, r.Header.Get("Origin"))
			},
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
	}
}

// RegisterRoutes mounts the websocket route
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/ws/call/:roomId", h.ServeCall)
}

// ServeCall opens the session, upgrades the connection and starts the call.
// Problems found before the upgrade are answered as plain HTTP errors.
func (h *Handler) ServeCall(c *gin.Context) {
	roomID := c.Param("roomId")

	var companion models.CompanionProfile
	if err := json.Unmarshal([]byte(c.Query("companion")), &companion); err != nil {
		c.Error(apperrors.NewBadRequestError(apperrors.CodeInvalidCompanion, "companion must be a JSON companion profile").
			WithDetails(err.Error()))
		return
	}

	captions := false
	if v := c.Query("captions"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.Error(apperrors.NewBadRequestError(apperrors.CodeBadRequest, "captions must be a boolean"))
			return
		}
		captions = b
	}

	client := &Client{
		ID:   "client-" + uuid.NewString(),
		send: make(chan Message, sendBuffer),
		done: make(chan struct{}),
	}
	client.log = &logger.Logger{Logger: h.log.WithRoom(roomID).With("client_id", client.ID)}

	sess, err := h.rooms.Open(c.Request.Context(), rooms.OpenRequest{
		RoomID:        roomID,
		ParticipantID: c.Query("participantId"),
		Companion:     companion,
		Captions:      captions,
		OnEvent:       client.onEvent,
	})
	if err != nil {
		c.Error(err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already answered the request
		h.log.LogError(err, "websocket upgrade failed", "room_id", roomID)
		sess.End()
		return
	}

	client.conn = conn
	client.session = sess
	if h.gauge != nil {
		h.gauge.WSOpened()
	}

	client.log.Info("call websocket connected", "participant_id", sess.ParticipantID())
	client.enqueue(Message{Type: TypeState, Content: StateContent{State: sess.State()}})

	go client.writePump()
	go func() {
		client.readPump()
		if h.gauge != nil {
			h.gauge.WSClosed()
		}
	}()
	go func() {
		if err := sess.Start(context.Background()); err != nil && !errors.Is(err, call.ErrSessionEnded) {
			client.log.LogError(err, "call did not start")
		}
	}()
}

// Client is one websocket bound to one session
type Client struct {
	ID      string
	conn    *websocket.Conn
	session *call.Session
	log     *logger.Logger

	mu     sync.Mutex
	send   chan Message
	closed bool
	done   chan struct{}
}

// onEvent runs inside the session's event delivery and must not block or
// call back into the session.
func (c *Client) onEvent(ev call.Event) {
	for _, m := range eventMessages(ev) {
		c.enqueue(m)
	}
	if ev.Kind == call.EventEnded {
		c.closeSend()
	}
}

// enqueue hands m to the write pump. A client that cannot keep up is
// disconnected.
func (c *Client) enqueue(m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- m:
	default:
		c.closed = true
		close(c.send)
		c.log.Warn("client too slow, disconnecting", "pending", len(c.send))
	}
}

// closeSend lets the write pump flush what is queued and close the socket
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) readPump() {
	defer func() {
		close(c.done)
		c.session.End()
		c.conn.Close()
		c.log.Info("call websocket closed")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.LogError(err, "websocket read failed")
			}
			return
		}

		var in Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			c.enqueue(errorMessage(apperrors.NewBadRequestError(apperrors.CodeBadRequest, "malformed message")))
			continue
		}
		c.handle(in)
	}
}

func (c *Client) handle(in Inbound) {
	switch in.Type {
	case TypeChat:
		var body ChatContent
		if err := json.Unmarshal(in.Content, &body); err != nil {
			c.enqueue(errorMessage(apperrors.NewBadRequestError(apperrors.CodeBadRequest, "chat needs {text}")))
			return
		}
		if err := c.session.SendUserMessage(body.Text); errors.Is(err, call.ErrSessionEnded) {
			c.enqueue(errorMessage(apperrors.NewConflictError(apperrors.CodeCallEnded, "The call has ended")))
		}

	case TypeToggle:
		var body ToggleContent
		if err := json.Unmarshal(in.Content, &body); err != nil {
			c.enqueue(errorMessage(apperrors.NewBadRequestError(apperrors.CodeBadRequest, "toggle needs {control}")))
			return
		}
		if _, ok := c.session.Toggle(body.Control); !ok {
			c.enqueue(errorMessage(apperrors.NewBadRequestError(apperrors.CodeBadRequest, "unknown control: "+string(body.Control))))
		}

	case TypeEnd:
		c.session.End()

	case TypePing:
		c.enqueue(Message{Type: TypePong})

	default:
		c.enqueue(errorMessage(apperrors.NewBadRequestError(apperrors.CodeBadRequest, "unknown message type: "+in.Type)))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "call ended"))
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}
