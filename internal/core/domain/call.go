package domain

import "time"

type CallStatus string

const (
	CallPending  CallStatus = "pending"
	CallAccepted CallStatus = "accepted"
	CallDeclined CallStatus = "declined"
)

type EndReason string

const EndReasonDisconnection EndReason = "disconnection"

// Call tracks a customer request from call_request until it is declined,
// ended or one of its parties disconnects.
type Call struct {
	ID                   CallID       `json:"id"`
	Status               CallStatus   `json:"status"`
	CustomerName         string       `json:"customerName"`
	MeetingID            MeetingID    `json:"meetingId"`
	Timestamp            string       `json:"timestamp"`
	CustomerConnectionID ConnectionID `json:"customerConnectionId"`
	AgentConnectionID    ConnectionID `json:"agentConnectionId,omitempty"`
	AgentID              UserID       `json:"agentId,omitempty"`
	CreatedAt            time.Time    `json:"createdAt"`
}

func NewCall(req CallRequest, customer ConnectionID, now time.Time) *Call {
	return &Call{
		ID:                   req.ID,
		Status:               CallPending,
		CustomerName:         req.CustomerName,
		MeetingID:            req.MeetingID,
		Timestamp:            req.Timestamp,
		CustomerConnectionID: customer,
		CreatedAt:            now,
	}
}

// Respond records the outcome together with the answering connection, so a
// call is never accepted without an agent side.
func (c *Call) Respond(resp CallResponse, agent ConnectionID) {
	if resp.Accepted {
		c.Status = CallAccepted
	} else {
		c.Status = CallDeclined
	}
	c.AgentConnectionID = agent
	c.AgentID = resp.AgentID
}

func (c *Call) Involves(id ConnectionID) bool {
	return c.CustomerConnectionID == id || (c.AgentConnectionID != "" && c.AgentConnectionID == id)
}

// Peer returns the other party of the call. ok is false when that side is not
// known yet.
func (c *Call) Peer(id ConnectionID) (peer ConnectionID, ok bool) {
	if c.CustomerConnectionID == id {
		peer = c.AgentConnectionID
	} else {
		peer = c.CustomerConnectionID
	}
	return peer, peer != "" && peer != id
}
