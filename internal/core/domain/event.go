package domain

type EventType string

const (
	EventRegister       EventType = "register"
	EventCallRequest    EventType = "call_request"
	EventCallResponse   EventType = "call_response"
	EventCallEnded      EventType = "call_ended"
	EventAgentJoined    EventType = "agent_joined"
	EventCustomerJoined EventType = "customer_joined"
)

// Event is the payload of one signaling envelope. The concrete type tells
// which kind it is.
type Event interface {
	Type() EventType
}

type Register struct {
	Role   Role   `json:"type"`
	UserID UserID `json:"userId"`
}

type CallRequest struct {
	ID           CallID    `json:"id"`
	CustomerName string    `json:"customerName"`
	MeetingID    MeetingID `json:"meetingId"`
	Timestamp    string    `json:"timestamp"`
}

type CallResponse struct {
	ID        CallID    `json:"id"`
	Accepted  bool      `json:"accepted"`
	AgentID   UserID    `json:"agentId"`
	MeetingID MeetingID `json:"meetingId"`
}

type CallEnded struct {
	CallID    CallID    `json:"callId"`
	MeetingID MeetingID `json:"meetingId"`
	Reason    EndReason `json:"reason,omitempty"`
}

type AgentJoined struct {
	AgentID   UserID    `json:"agentId"`
	MeetingID MeetingID `json:"meetingId"`
}

type CustomerJoined struct {
	CustomerID UserID    `json:"customerId"`
	MeetingID  MeetingID `json:"meetingId"`
}

func (Register) Type() EventType       { return EventRegister }
func (CallRequest) Type() EventType    { return EventCallRequest }
func (CallResponse) Type() EventType   { return EventCallResponse }
func (CallEnded) Type() EventType      { return EventCallEnded }
func (AgentJoined) Type() EventType    { return EventAgentJoined }
func (CustomerJoined) Type() EventType { return EventCustomerJoined }
