package memory

import (
	"context"
	"sync"

	"github.com/Wyydra/callbridge/internal/core/domain"
	"github.com/google/uuid"
)

type Meeting struct {
	MeetingID         string `json:"MeetingId"`
	ExternalMeetingID string `json:"ExternalMeetingId"`
	MediaRegion       string `json:"MediaRegion"`
}

type Attendee struct {
	AttendeeID     string `json:"AttendeeId"`
	ExternalUserID string `json:"ExternalUserId"`
	JoinToken      string `json:"JoinToken"`
}

// Provisioner hands out local meeting descriptors for development. The same
// meeting id always maps to the same meeting; every call gets a new attendee.
type Provisioner struct {
	mu       sync.Mutex
	region   string
	meetings map[domain.MeetingID]Meeting
}

func NewProvisioner(region string) *Provisioner {
	return &Provisioner{
		region:   region,
		meetings: make(map[domain.MeetingID]Meeting),
	}
}

func (p *Provisioner) Provision(ctx context.Context, req domain.ProvisionRequest) (*domain.MeetingCredentials, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.ProvisionError{Stage: domain.StageCreateMeeting, Err: err}
	}

	meeting := p.meeting(req.MeetingID)
	attendee := Attendee{
		AttendeeID:     uuid.NewString(),
		ExternalUserID: domain.NewExternalUserID(req.Role),
		JoinToken:      uuid.NewString(),
	}
	return &domain.MeetingCredentials{Meeting: meeting, Attendee: attendee}, nil
}

func (p *Provisioner) meeting(id domain.MeetingID) Meeting {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.meetings[id]
	if !ok {
		m = Meeting{
			MeetingID:         uuid.NewString(),
			ExternalMeetingID: id.String(),
			MediaRegion:       p.region,
		}
		p.meetings[id] = m
	}
	return m
}
