package http

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/Wyydra/callbridge/internal/core/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// implements ws.Client
type WSClient struct {
	id   domain.ConnectionID
	conn *websocket.Conn
	opts Options
	l    zerolog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newWSClient(id domain.ConnectionID, conn *websocket.Conn, opts Options, l zerolog.Logger) *WSClient {
	return &WSClient{
		id:   id,
		conn: conn,
		opts: opts,
		l:    l,
		send: make(chan []byte, opts.SendBuffer),
		done: make(chan struct{}),
	}
}

func (c *WSClient) ID() domain.ConnectionID {
	return c.id
}

func (c *WSClient) Enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		c.l.Warn().Msg("Send buffer full, dropping frame")
		return false
	}
}

func (c *WSClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.l.Debug().Err(err).Msg("Write failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.l.Debug().Err(err).Msg("Ping failed")
				return
			}
		case <-c.done:
			return
		}
	}
}

// HTTP handler
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Error while upgrading ws")
		return
	}

	id := domain.NewConnectionID()
	l := log.With().Str("connection_id", id.String()).Logger()
	client := newWSClient(id, conn, h.opts, l)

	h.Hub.Register(client)
	h.Router.Connect(id)
	l.Info().Str("remote", r.RemoteAddr).Msg("New client connected")

	go client.writePump()

	ctx := context.WithoutCancel(r.Context())
	defer func() {
		h.Router.Disconnect(ctx, id)
		h.Hub.Unregister(client)
		l.Info().Msg("Client disconnected")
	}()

	conn.SetReadLimit(h.opts.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	// listening for browser
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l.Error().Err(err).Msg("Unexpected close error")
			}
			break
		}
		h.Router.HandleFrame(ctx, id, frame)
	}
}
