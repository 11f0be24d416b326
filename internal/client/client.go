// Package client is a Go signaling client for the callbridge WebSocket
// endpoint. It reconnects with capped exponential backoff and replays the
// last registration after a reconnect.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Wyydra/callbridge/internal/core/codec"
	"github.com/Wyydra/callbridge/internal/core/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrNotConnected = errors.New("not connected")

const timestampLayout = "2006-01-02T15:04:05.000Z"

type Config struct {
	URL              string
	MaxAttempts      int           // Dial attempts per connect, including the first
	BackoffTimeReset time.Duration // Wait after the first failed attempt
	BackoffTimeMax   time.Duration // Upper bound on the wait between attempts
	Dialer           *websocket.Dialer
}

func DefaultConfig(url string) *Config {
	return &Config{
		URL:              url,
		MaxAttempts:      5,
		BackoffTimeReset: 1 * time.Second,
		BackoffTimeMax:   32 * time.Second,
		Dialer:           websocket.DefaultDialer,
	}
}

type Handler func(domain.Event)

// Subscription identifies a handler added with On.
type Subscription struct {
	typ domain.EventType
	id  uint64
}

type subscriber struct {
	id uint64
	fn Handler
}

type Client struct {
	config *Config

	mu           sync.Mutex
	conn         *websocket.Conn
	handlers     map[domain.EventType][]subscriber
	nextID       uint64
	registration *domain.Register
	closed       bool

	writeMu sync.Mutex
}

func New(config *Config) *Client {
	if config.Dialer == nil {
		config.Dialer = websocket.DefaultDialer
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	return &Client{
		config:   config,
		handlers: make(map[domain.EventType][]subscriber),
	}
}

// Backoff returns the wait after the given failed attempt (1-based):
// reset, 2*reset, 4*reset... capped at limit.
func Backoff(reset, limit time.Duration, attempt int) time.Duration {
	d := reset
	for i := 1; i < attempt && d < limit; i++ {
		d *= 2
	}
	if d > limit {
		d = limit
	}
	return d
}

// Connect dials the server, retrying with backoff up to MaxAttempts times.
func (c *Client) Connect(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		conn, _, err := c.config.Dialer.DialContext(ctx, c.config.URL, nil)
		if err == nil {
			return c.attach(conn)
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Str("url", c.config.URL).Msg("Connection attempt failed")

		if attempt == c.config.MaxAttempts {
			break
		}
		select {
		case <-time.After(Backoff(c.config.BackoffTimeReset, c.config.BackoffTimeMax, attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("connect to %s after %d attempts: %w", c.config.URL, c.config.MaxAttempts, lastErr)
}

func (c *Client) attach(conn *websocket.Conn) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrNotConnected
	}
	c.conn = conn
	reg := c.registration
	c.mu.Unlock()

	log.Info().Str("url", c.config.URL).Msg("Connected")
	if reg != nil {
		return c.Send(*reg)
	}
	return nil
}

// Run reads events and hands them to subscribers until ctx is cancelled or
// Close is called. Dropped connections are redialed.
func (c *Client) Run(ctx context.Context) error {
	for {
		c.mu.Lock()
		conn, closed := c.conn, c.closed
		c.mu.Unlock()
		if closed {
			return nil
		}
		if conn == nil {
			return ErrNotConnected
		}

		stop := context.AfterFunc(ctx, func() { conn.Close() })
		err := c.readLoop(conn)
		stop()

		c.mu.Lock()
		closed = c.closed
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()

		if closed {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		log.Warn().Err(err).Msg("Connection lost, reconnecting")
		if err := c.Connect(ctx); err != nil {
			return err
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		ev, err := codec.Decode(frame)
		if err != nil {
			log.Debug().Err(err).Msg("Skipping frame")
			continue
		}
		c.dispatch(ev)
	}
}

// dispatch runs the handlers for the event type in subscription order.
func (c *Client) dispatch(ev domain.Event) {
	c.mu.Lock()
	subs := make([]subscriber, len(c.handlers[ev.Type()]))
	copy(subs, c.handlers[ev.Type()])
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(ev)
	}
}

func (c *Client) On(typ domain.EventType, fn Handler) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	c.handlers[typ] = append(c.handlers[typ], subscriber{id: c.nextID, fn: fn})
	return Subscription{typ: typ, id: c.nextID}
}

func (c *Client) Off(sub Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	subs := c.handlers[sub.typ]
	for i, s := range subs {
		if s.id == sub.id {
			c.handlers[sub.typ] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Client) Send(ev domain.Event) error {
	frame, err := codec.Encode(ev)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// Register announces the role and user id. It is sent again after every
// reconnect.
func (c *Client) Register(role domain.Role, userID domain.UserID) error {
	reg := domain.Register{Role: role, UserID: userID}

	c.mu.Lock()
	c.registration = &reg
	c.mu.Unlock()

	return c.Send(reg)
}

// RequestCall asks every registered agent for a call and returns the new
// call id.
func (c *Client) RequestCall(customerName string, meetingID domain.MeetingID) (domain.CallID, error) {
	id := domain.NewCallID()
	err := c.Send(domain.CallRequest{
		ID:           id,
		CustomerName: customerName,
		MeetingID:    meetingID,
		Timestamp:    time.Now().UTC().Format(timestampLayout),
	})
	return id, err
}

func (c *Client) RespondCall(id domain.CallID, accepted bool, agentID domain.UserID, meetingID domain.MeetingID) error {
	return c.Send(domain.CallResponse{ID: id, Accepted: accepted, AgentID: agentID, MeetingID: meetingID})
}

func (c *Client) EndCall(id domain.CallID, meetingID domain.MeetingID) error {
	return c.Send(domain.CallEnded{CallID: id, MeetingID: meetingID})
}

func (c *Client) AgentJoined(agentID domain.UserID, meetingID domain.MeetingID) error {
	return c.Send(domain.AgentJoined{AgentID: agentID, MeetingID: meetingID})
}

func (c *Client) CustomerJoined(customerID domain.UserID, meetingID domain.MeetingID) error {
	return c.Send(domain.CustomerJoined{CustomerID: customerID, MeetingID: meetingID})
}

// Close disconnects for good; Run returns nil afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return conn.Close()
}
