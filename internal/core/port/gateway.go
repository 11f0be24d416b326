package port

import (
	"context"

	"github.com/Wyydra/callbridge/internal/core/domain"
)

// Gateway delivers encoded frames to live connections. Send must not block:
// a slow or vanished peer is the transport's problem, not the caller's.
type Gateway interface {
	Send(ctx context.Context, id domain.ConnectionID, frame []byte) error
}
