package chime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Wyydra/callbridge/internal/core/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/chimesdkmeetings"
	"github.com/aws/aws-sdk-go-v2/service/chimesdkmeetings/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type fakeAPI struct {
	meetingIn   *chimesdkmeetings.CreateMeetingInput
	attendeeIn  *chimesdkmeetings.CreateAttendeeInput
	meetingErr  error
	attendeeErr error
}

func (f *fakeAPI) CreateMeeting(ctx context.Context, in *chimesdkmeetings.CreateMeetingInput, _ ...func(*chimesdkmeetings.Options)) (*chimesdkmeetings.CreateMeetingOutput, error) {
	f.meetingIn = in
	if f.meetingErr != nil {
		return nil, f.meetingErr
	}
	return &chimesdkmeetings.CreateMeetingOutput{Meeting: &types.Meeting{
		MeetingId:         aws.String("chime-1"),
		ExternalMeetingId: in.ExternalMeetingId,
		MediaRegion:       in.MediaRegion,
	}}, nil
}

func (f *fakeAPI) CreateAttendee(ctx context.Context, in *chimesdkmeetings.CreateAttendeeInput, _ ...func(*chimesdkmeetings.Options)) (*chimesdkmeetings.CreateAttendeeOutput, error) {
	f.attendeeIn = in
	if f.attendeeErr != nil {
		return nil, f.attendeeErr
	}
	return &chimesdkmeetings.CreateAttendeeOutput{Attendee: &types.Attendee{
		AttendeeId:     aws.String("att-1"),
		ExternalUserId: in.ExternalUserId,
		JoinToken:      aws.String("token"),
	}}, nil
}

func TestProvision(t *testing.T) {
	api := &fakeAPI{}
	p := New(api, "us-east-1")

	creds, err := p.Provision(context.Background(), domain.ProvisionRequest{Role: domain.RoleAgent, MeetingID: "demo-meeting"})
	require.NoError(t, err)

	assert.Equal(t, "demo-meeting", aws.ToString(api.meetingIn.ClientRequestToken))
	assert.Equal(t, "demo-meeting", aws.ToString(api.meetingIn.ExternalMeetingId))
	assert.Equal(t, "us-east-1", aws.ToString(api.meetingIn.MediaRegion))
	assert.Equal(t, "chime-1", aws.ToString(api.attendeeIn.MeetingId))
	assert.Regexp(t, `^agent-[0-9a-f]{13}$`, aws.ToString(api.attendeeIn.ExternalUserId))

	body, err := json.Marshal(creds)
	require.NoError(t, err)
	assert.Equal(t, "chime-1", gjson.GetBytes(body, "Meeting.MeetingId").String())
	assert.Equal(t, "att-1", gjson.GetBytes(body, "Attendee.AttendeeId").String())
}

func TestProvisionErrors(t *testing.T) {
	upstream := errors.New("throttled")

	tests := []struct {
		name  string
		api   *fakeAPI
		stage domain.ProvisionStage
	}{
		{"meeting", &fakeAPI{meetingErr: upstream}, domain.StageCreateMeeting},
		{"attendee", &fakeAPI{attendeeErr: upstream}, domain.StageCreateAttendee},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.api, "us-east-1").Provision(context.Background(), domain.ProvisionRequest{Role: domain.RoleCustomer, MeetingID: "m1"})

			var perr *domain.ProvisionError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.stage, perr.Stage)
			assert.ErrorIs(t, err, upstream)
		})
	}
}
