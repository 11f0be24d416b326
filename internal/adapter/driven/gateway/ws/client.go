package ws

import "github.com/Wyydra/callbridge/internal/core/domain"

type Client interface {
	ID() domain.ConnectionID
	// Enqueue queues a frame for writing. It must not block and reports
	// false when the client cannot take the frame.
	Enqueue(frame []byte) bool
	Close() error
}
