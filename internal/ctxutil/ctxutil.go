package ctxutil

import (
	"context"
	"time"

	"github.com/kmelentyev/rosterd/internal/models"
)

// private key type to avoid collisions
type key int

const (
	keyActorID key = iota
	keyActorRole
)

// WithActor — who is performing the operation; flows into activity events.
func WithActor(ctx context.Context, userID int64, role models.Role) context.Context {
	ctx = context.WithValue(ctx, keyActorID, userID)
	return context.WithValue(ctx, keyActorRole, role)
}

func ActorID(ctx context.Context) (int64, bool) {
	v := ctx.Value(keyActorID)
	if v == nil {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

func ActorRole(ctx context.Context) (models.Role, bool) {
	v := ctx.Value(keyActorRole)
	if v == nil {
		return "", false
	}
	r, ok := v.(models.Role)
	return r, ok
}

var DefaultDBTimeout = 5 * time.Second

// WithDBTimeout — standard DB timeout; if the parent deadline is closer, the
// remainder wins.
func WithDBTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if dl, ok := parent.Deadline(); ok {
		remain := time.Until(dl)
		if remain < DefaultDBTimeout {
			return context.WithTimeout(parent, remain)
		}
	}
	return context.WithTimeout(parent, DefaultDBTimeout)
}
