package ports

import (
	"context"

	"github.com/ghalamif/BrewFlow/internal/session"
)

// SessionSink archives finalized brew sessions.
type SessionSink interface {
	WriteSessions(ctx context.Context, sessions []*session.BrewSession) error
	Name() string
}
