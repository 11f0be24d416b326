package domain

import "fmt"

type ProvisionRequest struct {
	Role      Role
	MeetingID MeetingID
}

// MeetingCredentials are opaque to the server and forwarded verbatim to the
// conferencing SDK in the browser.
type MeetingCredentials struct {
	Meeting  any `json:"Meeting"`
	Attendee any `json:"Attendee"`
}

type ProvisionStage string

const (
	StageCreateMeeting  ProvisionStage = "create meeting"
	StageCreateAttendee ProvisionStage = "create attendee"
)

// ProvisionError is returned when the conferencing provider rejects one of
// the provisioning steps.
type ProvisionError struct {
	Stage ProvisionStage
	Err   error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Stage, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// Summary is the human readable message shown to the caller.
func (e *ProvisionError) Summary() string {
	return fmt.Sprintf("Failed to %s", e.Stage)
}
