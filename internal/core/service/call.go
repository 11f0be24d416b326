package service

import (
	"context"

	"github.com/Wyydra/callbridge/internal/core/domain"
	"github.com/rs/zerolog"
)

func (r *Router) requestCall(ctx context.Context, l zerolog.Logger, conn *domain.Connection, req domain.CallRequest) {
	l = l.With().Str("call_id", req.ID.String()).Logger()

	// Reused ids replace the previous call.
	if _, ok := r.calls[req.ID]; ok {
		l.Warn().Msg("Call id already in use, overwriting")
	}
	r.calls[req.ID] = domain.NewCall(req, conn.ID, r.now())

	for _, agent := range r.agents {
		r.emit(ctx, l, agent, req)
	}
	l.Info().Str("meeting_id", req.MeetingID.String()).Int("agents", len(r.agents)).Msg("Call requested")
}

// respondCall records the agent's answer and forwards it to the customer.
// Without first-accept-wins the last response processed wins, even over an
// earlier accept.
func (r *Router) respondCall(ctx context.Context, l zerolog.Logger, conn *domain.Connection, resp domain.CallResponse) {
	l = l.With().Str("call_id", resp.ID.String()).Logger()

	call, ok := r.calls[resp.ID]
	if !ok {
		l.Error().Msg("Call not found")
		return
	}
	if r.firstAcceptWins && call.Status != domain.CallPending {
		l.Warn().Str("status", string(call.Status)).Str("agent_id", resp.AgentID.String()).Msg("Call already answered, dropping response")
		return
	}
	if call.Status == domain.CallAccepted {
		l.Warn().Str("previous_agent_id", call.AgentID.String()).Str("agent_id", resp.AgentID.String()).Msg("Overwriting answered call")
	}

	call.Respond(resp, conn.ID)
	r.emit(ctx, l, call.CustomerConnectionID, resp)

	if !resp.Accepted {
		delete(r.calls, resp.ID)
	}
	l.Info().Bool("accepted", resp.Accepted).Str("agent_id", resp.AgentID.String()).Msg("Call answered")
}

func (r *Router) endCall(ctx context.Context, l zerolog.Logger, conn *domain.Connection, ended domain.CallEnded) {
	l = l.With().Str("call_id", ended.CallID.String()).Logger()

	call, ok := r.calls[ended.CallID]
	if !ok {
		l.Debug().Msg("Ended call not found")
		return
	}

	notice := domain.CallEnded{CallID: ended.CallID, MeetingID: ended.MeetingID}
	for _, party := range []domain.ConnectionID{call.CustomerConnectionID, call.AgentConnectionID} {
		if party != "" && party != conn.ID {
			r.emit(ctx, l, party, notice)
		}
	}

	delete(r.calls, ended.CallID)
	l.Info().Msg("Call ended")
}

func (r *Router) agentJoined(ctx context.Context, l zerolog.Logger, joined domain.AgentJoined) {
	call := r.acceptedCall(joined.MeetingID)
	if call == nil {
		l.Debug().Str("meeting_id", joined.MeetingID.String()).Msg("No accepted call for meeting")
		return
	}
	r.emit(ctx, l, call.CustomerConnectionID, joined)
}

func (r *Router) customerJoined(ctx context.Context, l zerolog.Logger, joined domain.CustomerJoined) {
	call := r.acceptedCall(joined.MeetingID)
	if call == nil {
		l.Debug().Str("meeting_id", joined.MeetingID.String()).Msg("No accepted call for meeting")
		return
	}
	r.emit(ctx, l, call.AgentConnectionID, joined)
}

// acceptedCall returns the first accepted call for the meeting. Meeting ids
// are expected to be unique among accepted calls.
func (r *Router) acceptedCall(meetingID domain.MeetingID) *domain.Call {
	for _, call := range r.calls {
		if call.MeetingID == meetingID && call.Status == domain.CallAccepted {
			return call
		}
	}
	return nil
}
