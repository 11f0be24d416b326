// Package codec translates between wire frames and domain events.
//
// A frame is a JSON envelope {"type": string, "data": object}.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Wyydra/callbridge/internal/core/domain"
	"github.com/tidwall/gjson"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownEvent   = errors.New("unknown event type")
)

type envelope struct {
	Type domain.EventType `json:"type"`
	Data domain.Event     `json:"data"`
}

// Decode parses a frame. Frames with an unrecognized type return
// ErrUnknownEvent so the caller can tell them apart from garbage.
func Decode(frame []byte) (domain.Event, error) {
	if !gjson.ValidBytes(frame) {
		return nil, ErrMalformedFrame
	}

	res := gjson.GetManyBytes(frame, "type", "data")
	typ, data := res[0], res[1]
	if typ.Type != gjson.String {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}

	var decode func(string) (domain.Event, error)
	switch domain.EventType(typ.Str) {
	case domain.EventRegister:
		decode = decodeData[domain.Register]
	case domain.EventCallRequest:
		decode = decodeData[domain.CallRequest]
	case domain.EventCallResponse:
		decode = decodeData[domain.CallResponse]
	case domain.EventCallEnded:
		decode = decodeData[domain.CallEnded]
	case domain.EventAgentJoined:
		decode = decodeData[domain.AgentJoined]
	case domain.EventCustomerJoined:
		decode = decodeData[domain.CustomerJoined]
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, typ.Str)
	}

	if !data.IsObject() {
		return nil, fmt.Errorf("%w: %s without data object", ErrMalformedFrame, typ.Str)
	}
	return decode(data.Raw)
}

func decodeData[T domain.Event](raw string) (domain.Event, error) {
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return v, nil
}

func Encode(ev domain.Event) ([]byte, error) {
	if ev == nil {
		return nil, errors.New("cannot encode nil event")
	}
	return json.Marshal(envelope{Type: ev.Type(), Data: ev})
}
