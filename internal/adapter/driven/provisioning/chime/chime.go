// Package chime provisions meetings and attendees through Amazon Chime SDK
// Meetings.
package chime

import (
	"context"
	"errors"

	"github.com/Wyydra/callbridge/internal/core/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/chimesdkmeetings"
	"github.com/rs/zerolog/log"
)

// MeetingsAPI is the part of the Chime SDK Meetings client we call.
type MeetingsAPI interface {
	CreateMeeting(ctx context.Context, params *chimesdkmeetings.CreateMeetingInput, optFns ...func(*chimesdkmeetings.Options)) (*chimesdkmeetings.CreateMeetingOutput, error)
	CreateAttendee(ctx context.Context, params *chimesdkmeetings.CreateAttendeeInput, optFns ...func(*chimesdkmeetings.Options)) (*chimesdkmeetings.CreateAttendeeOutput, error)
}

type Provisioner struct {
	api    MeetingsAPI
	region string
}

func New(api MeetingsAPI, region string) *Provisioner {
	return &Provisioner{api: api, region: region}
}

// NewFromEnv builds a client from the default AWS credential chain
// (environment, shared config, instance role).
func NewFromEnv(ctx context.Context, region string) (*Provisioner, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return New(chimesdkmeetings.NewFromConfig(cfg), region), nil
}

// Provision creates the meeting, or gets the existing one since the meeting
// id doubles as the idempotency token, then adds an attendee for the role.
func (p *Provisioner) Provision(ctx context.Context, req domain.ProvisionRequest) (*domain.MeetingCredentials, error) {
	id := req.MeetingID.String()

	mres, err := p.api.CreateMeeting(ctx, &chimesdkmeetings.CreateMeetingInput{
		ClientRequestToken: aws.String(id),
		ExternalMeetingId:  aws.String(id),
		MediaRegion:        aws.String(p.region),
	})
	if err != nil {
		return nil, &domain.ProvisionError{Stage: domain.StageCreateMeeting, Err: err}
	}
	if mres.Meeting == nil || mres.Meeting.MeetingId == nil {
		return nil, &domain.ProvisionError{Stage: domain.StageCreateMeeting, Err: errors.New("empty meeting in response")}
	}
	log.Debug().Str("meeting_id", id).Str("chime_meeting_id", aws.ToString(mres.Meeting.MeetingId)).Msg("Meeting ready")

	ares, err := p.api.CreateAttendee(ctx, &chimesdkmeetings.CreateAttendeeInput{
		MeetingId:      mres.Meeting.MeetingId,
		ExternalUserId: aws.String(domain.NewExternalUserID(req.Role)),
	})
	if err != nil {
		return nil, &domain.ProvisionError{Stage: domain.StageCreateAttendee, Err: err}
	}
	if ares.Attendee == nil {
		return nil, &domain.ProvisionError{Stage: domain.StageCreateAttendee, Err: errors.New("empty attendee in response")}
	}
	log.Debug().Str("meeting_id", id).Str("attendee_id", aws.ToString(ares.Attendee.AttendeeId)).Msg("Attendee created")

	return &domain.MeetingCredentials{Meeting: mres.Meeting, Attendee: ares.Attendee}, nil
}
