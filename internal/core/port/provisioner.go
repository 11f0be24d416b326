package port

import (
	"context"

	"github.com/Wyydra/callbridge/internal/core/domain"
)

// Provisioner creates (or reuses) a conferencing session and an attendee for it.
type Provisioner interface {
	Provision(ctx context.Context, req domain.ProvisionRequest) (*domain.MeetingCredentials, error)
}
