package service

import (
	"context"

	"github.com/Wyydra/callbridge/internal/core/domain"
	"github.com/Wyydra/callbridge/internal/core/port"
	"github.com/rs/zerolog/log"
)

const DefaultMeetingID domain.MeetingID = "demo-meeting"

// MeetingService hands out conferencing credentials. It keeps no state; the
// router never calls it.
type MeetingService struct {
	provisioner      port.Provisioner
	defaultMeetingID domain.MeetingID
}

func NewMeetingService(provisioner port.Provisioner, defaultMeetingID string) *MeetingService {
	id := domain.MeetingID(defaultMeetingID)
	if id == "" {
		id = DefaultMeetingID
	}
	return &MeetingService{
		provisioner:      provisioner,
		defaultMeetingID: id,
	}
}

// Join provisions credentials for role in meetingID. Empty values fall back
// to the customer role and the default meeting.
func (s *MeetingService) Join(ctx context.Context, role, meetingID string) (*domain.MeetingCredentials, error) {
	if role == "" {
		role = string(domain.RoleCustomer)
	}
	r, err := domain.ParseRole(role)
	if err != nil {
		return nil, err
	}

	id := domain.MeetingID(meetingID)
	if id == "" {
		id = s.defaultMeetingID
	}

	l := log.With().Str("role", string(r)).Str("meeting_id", id.String()).Logger()
	l.Info().Msg("Provisioning meeting")

	creds, err := s.provisioner.Provision(ctx, domain.ProvisionRequest{Role: r, MeetingID: id})
	if err != nil {
		l.Error().Err(err).Msg("Provisioning failed")
		return nil, err
	}
	return creds, nil
}
