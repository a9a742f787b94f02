// Package transport provides the voice session transport client for PrepVox.
//
// The real-time audio path is owned by the external session service; this
// package only carries session lifecycle and transcript events over the
// service's websocket event stream.
package transport

import (
	"context"

	"github.com/prepvox/PrepVox/internal/models"
)

// Service defines a pluggable session transport abstraction.
// It supports starting and stopping a session, and provides a channel of
// typed session events consumed by the interview lifecycle controller.
type Service interface {
	// Start begins a session against the given target (assistant or workflow
	// identifier), passing the variables through to the session service.
	Start(ctx context.Context, target string, variables map[string]string) error

	// Stop terminates the session. To the consumer this is indistinguishable
	// from a remote hang-up: a call-end event is still delivered.
	Stop() error

	// Events returns the channel of session events. The channel is closed
	// after the session ends and the event stream drains.
	Events() <-chan models.SessionEvent
}
