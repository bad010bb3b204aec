package core

import (
	"context"

	"github.com/dkeye/rtcworker/internal/domain"
)

// Frame is one whole message as delivered by a Channel.
type Frame []byte

// Channel abstracts the ordered message transport to the host process.
// Owned by the bootstrap; the dispatcher closes it on shutdown.
type Channel interface {
	// Receive blocks for the next frame. It returns io.EOF once the peer is gone.
	Receive(ctx context.Context) (Frame, error)
	// Send writes one frame atomically with respect to framing.
	Send(ctx context.Context, f Frame) error
	Close() error
}

// Notifier pushes fire-and-forget notifications to the host.
type Notifier interface {
	Notify(target any, event domain.Event, data any)
}
