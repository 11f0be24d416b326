package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Wyydra/callbridge/internal/core/codec"
	"github.com/Wyydra/callbridge/internal/core/domain"
	"github.com/Wyydra/callbridge/internal/core/port"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Option func(*Router)

// WithFirstAcceptWins makes the first call_response final: later responses
// for a call that is no longer pending are dropped.
func WithFirstAcceptWins(enabled bool) Option {
	return func(r *Router) {
		r.firstAcceptWins = enabled
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		r.now = now
	}
}

// Router owns every live connection, the agent and customer indices and the
// active calls. Each event is handled under a single lock so handlers are
// atomic with respect to each other.
type Router struct {
	mu          sync.Mutex
	connections map[domain.ConnectionID]*domain.Connection
	agents      map[domain.UserID]domain.ConnectionID
	customers   map[domain.UserID]domain.ConnectionID
	calls       map[domain.CallID]*domain.Call

	gateway         port.Gateway
	firstAcceptWins bool
	now             func() time.Time
}

func NewRouter(gateway port.Gateway, opts ...Option) *Router {
	r := &Router{
		connections: make(map[domain.ConnectionID]*domain.Connection),
		agents:      make(map[domain.UserID]domain.ConnectionID),
		customers:   make(map[domain.UserID]domain.ConnectionID),
		calls:       make(map[domain.CallID]*domain.Call),
		gateway:     gateway,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) Connect(id domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.connections[id] = domain.NewConnection(id, r.now())
	log.Debug().Str("connection_id", id.String()).Int("count", len(r.connections)).Msg("Connection added")
}

// Disconnect drops the connection and ends every call it takes part in,
// telling the other party when it is still around.
func (r *Router) Disconnect(ctx context.Context, id domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[id]
	if !ok {
		return
	}
	l := log.With().Str("connection_id", id.String()).Logger()

	r.unindex(conn)

	for callID, call := range r.calls {
		if !call.Involves(id) {
			continue
		}
		if peer, ok := call.Peer(id); ok {
			r.emit(ctx, l, peer, domain.CallEnded{
				CallID:    callID,
				MeetingID: call.MeetingID,
				Reason:    domain.EndReasonDisconnection,
			})
		}
		delete(r.calls, callID)
		l.Info().Str("call_id", callID.String()).Msg("Call ended by disconnection")
	}

	delete(r.connections, id)
	l.Debug().Int("count", len(r.connections)).Msg("Connection removed")
}

// HandleFrame decodes a raw frame and dispatches it. Bad frames are logged
// and dropped; the connection stays usable.
func (r *Router) HandleFrame(ctx context.Context, id domain.ConnectionID, frame []byte) {
	ev, err := codec.Decode(frame)
	if err != nil {
		l := log.With().Str("connection_id", id.String()).Logger()
		if errors.Is(err, codec.ErrUnknownEvent) {
			l.Warn().Err(err).Msg("Ignoring unknown event")
			return
		}
		l.Warn().Err(err).Msg("Dropping malformed frame")
		return
	}
	r.Dispatch(ctx, id, ev)
}

func (r *Router) Dispatch(ctx context.Context, id domain.ConnectionID, ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := log.With().Str("connection_id", id.String()).Str("event", string(ev.Type())).Logger()

	conn, ok := r.connections[id]
	if !ok {
		l.Warn().Msg("Event from unknown connection")
		return
	}
	l.Debug().Msg("Received event")

	switch e := ev.(type) {
	case domain.Register:
		r.register(l, conn, e)
	case domain.CallRequest:
		r.requestCall(ctx, l, conn, e)
	case domain.CallResponse:
		r.respondCall(ctx, l, conn, e)
	case domain.CallEnded:
		r.endCall(ctx, l, conn, e)
	case domain.AgentJoined:
		r.agentJoined(ctx, l, e)
	case domain.CustomerJoined:
		r.customerJoined(ctx, l, e)
	default:
		l.Warn().Msg("Ignoring unknown event")
	}
}

func (r *Router) register(l zerolog.Logger, conn *domain.Connection, reg domain.Register) {
	r.unindex(conn)

	conn.Role = reg.Role
	conn.UserID = reg.UserID

	if idx := r.index(reg.Role); idx != nil {
		if prev, ok := idx[reg.UserID]; ok && prev != conn.ID {
			l.Warn().Str("user_id", reg.UserID.String()).Str("previous_connection_id", prev.String()).Msg("User id already registered, replacing")
		}
		idx[reg.UserID] = conn.ID
	}

	l.Info().Str("role", string(reg.Role)).Str("user_id", reg.UserID.String()).Msg("Registered")
}

// unindex removes the connection's reverse entry, but only while it still
// points at this connection.
func (r *Router) unindex(conn *domain.Connection) {
	idx := r.index(conn.Role)
	if idx == nil {
		return
	}
	if idx[conn.UserID] == conn.ID {
		delete(idx, conn.UserID)
	}
}

func (r *Router) index(role domain.Role) map[domain.UserID]domain.ConnectionID {
	switch role {
	case domain.RoleAgent:
		return r.agents
	case domain.RoleCustomer:
		return r.customers
	}
	return nil
}

// emit must be called with mu held. Gateway sends never block, so delivery
// order to a peer follows event processing order.
func (r *Router) emit(ctx context.Context, l zerolog.Logger, to domain.ConnectionID, ev domain.Event) {
	if _, ok := r.connections[to]; !ok {
		l.Debug().Str("to", to.String()).Str("out", string(ev.Type())).Msg("Peer gone, not delivering")
		return
	}
	frame, err := codec.Encode(ev)
	if err != nil {
		l.Error().Err(err).Msg("Failed to encode event")
		return
	}
	if err := r.gateway.Send(ctx, to, frame); err != nil {
		l.Warn().Err(err).Str("to", to.String()).Str("out", string(ev.Type())).Msg("Failed to deliver event")
	}
}

func (r *Router) Stats() domain.Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return domain.Stats{
		TotalConnections: len(r.connections),
		Agents:           len(r.agents),
		Customers:        len(r.customers),
		ActiveCalls:      len(r.calls),
	}
}

// Call returns a copy of the call, so callers cannot touch router state.
func (r *Router) Call(id domain.CallID) (domain.Call, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	call, ok := r.calls[id]
	if !ok {
		return domain.Call{}, false
	}
	return *call, true
}

// Calls returns copies of all active calls, oldest first.
func (r *Router) Calls() []domain.Call {
	r.mu.Lock()
	out := make([]domain.Call, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, *c)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ReportStats logs the router counters every interval while they change,
// until ctx is cancelled.
func (r *Router) ReportStats(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var prev domain.Stats
	for {
		select {
		case <-ticker.C:
			s := r.Stats()
			if s == prev {
				continue
			}
			log.Info().
				Int("connections", s.TotalConnections).
				Int("agents", s.Agents).
				Int("customers", s.Customers).
				Int("active_calls", s.ActiveCalls).
				Msg("Router stats")
			prev = s
		case <-ctx.Done():
			return
		}
	}
}
