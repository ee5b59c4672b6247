package rbac

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/sorumcars/sorum/pkg/apperrors"
	"github.com/sorumcars/sorum/pkg/auth"
	"github.com/sorumcars/sorum/pkg/storage"
	"golang.org/x/sync/singleflight"
)

// Denial messages returned to callers of admin routes
const (
	MsgUnauthenticated = "This route can access only authorized users"
	MsgForbidden       = "Admin can access only this route"
)

// Decision labels reported to the DecisionRecorder
const (
	DecisionAllowed         = "allowed"
	DecisionUnauthenticated = "unauthenticated"
	DecisionForbidden       = "forbidden"
	DecisionUnknownAccount  = "unknown_account"
	DecisionError           = "error"
)

// DecisionRecorder observes gate outcomes
type DecisionRecorder interface {
	RecordAuthzDecision(decision string)
}

// Gate admits only callers whose stored user carries the admin role
type Gate struct {
	users    storage.Collection
	cache    RoleCache
	recorder DecisionRecorder
	log      logrus.FieldLogger
	lookups  singleflight.Group
}

// Option configures a Gate
type Option func(*Gate)

// WithCache puts a role cache in front of the users collection
func WithCache(cache RoleCache) Option {
	return func(g *Gate) {
		g.cache = cache
	}
}

// WithRecorder reports every decision to r
func WithRecorder(r DecisionRecorder) Option {
	return func(g *Gate) {
		g.recorder = r
	}
}

// WithLogger sets the gate logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(g *Gate) {
		g.log = log
	}
}

// NewGate creates a gate that reads roles from users
func NewGate(users storage.Collection, opts ...Option) *Gate {
	g := &Gate{
		users: users,
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authorize returns nil when id may use an admin route. Anonymous callers
// are Unauthenticated. Verified callers without a stored account, or
// without the admin role, are Forbidden.
func (g *Gate) Authorize(ctx context.Context, id auth.Identity) error {
	email, ok := id.Email()
	if !ok {
		g.record(DecisionUnauthenticated)
		return apperrors.Unauthenticated(MsgUnauthenticated)
	}

	role, exists, err := g.lookup(ctx, email)
	if err != nil {
		g.record(DecisionError)
		return apperrors.Internal("failed to look up caller role", err)
	}

	if !exists {
		g.log.WithField("email", email).Warn("verified identity has no stored user")
		g.record(DecisionUnknownAccount)
		return apperrors.Forbidden(MsgForbidden)
	}

	if role != storage.RoleAdmin {
		g.record(DecisionForbidden)
		return apperrors.Forbidden(MsgForbidden)
	}

	g.record(DecisionAllowed)
	return nil
}

// Run invokes op only when Authorize admits id
func (g *Gate) Run(ctx context.Context, id auth.Identity, op func(context.Context) error) error {
	if err := g.Authorize(ctx, id); err != nil {
		return err
	}
	return op(ctx)
}

// IsAdmin reports whether the user stored under email is an admin. An
// absent user is not.
func (g *Gate) IsAdmin(ctx context.Context, email string) (bool, error) {
	role, exists, err := g.lookup(ctx, email)
	if err != nil {
		return false, err
	}
	return exists && role == storage.RoleAdmin, nil
}

// Invalidate drops any cached role for email. Call after every role change.
// Lookups started afterwards read the store again instead of joining one
// already in flight.
func (g *Gate) Invalidate(ctx context.Context, email string) {
	g.lookups.Forget(email)
	if g.cache == nil {
		return
	}
	if err := g.cache.Invalidate(ctx, email); err != nil {
		g.log.WithError(err).WithField("email", email).Warn("failed to invalidate cached role")
	}
}

type roleLookup struct {
	role   string
	exists bool
}

// lookup coalesces concurrent reads of the same user
func (g *Gate) lookup(ctx context.Context, email string) (string, bool, error) {
	if g.cache != nil {
		role, hit, err := g.cache.Get(ctx, email)
		if err != nil {
			g.log.WithError(err).Warn("role cache read failed")
		} else if hit {
			return role, true, nil
		}
	}

	v, err, _ := g.lookups.Do(email, func() (interface{}, error) {
		user, found, err := g.users.FindOne(ctx, storage.ByEmail(email))
		if err != nil {
			return nil, err
		}
		if !found {
			return roleLookup{}, nil
		}

		role, _ := user[storage.FieldRole].(string)
		if g.cache != nil {
			if err := g.cache.Set(ctx, email, role); err != nil {
				g.log.WithError(err).Warn("role cache write failed")
			}
		}
		return roleLookup{role: role, exists: true}, nil
	})
	if err != nil {
		return "", false, err
	}

	res := v.(roleLookup)
	return res.role, res.exists, nil
}

func (g *Gate) record(decision string) {
	if g.recorder != nil {
		g.recorder.RecordAuthzDecision(decision)
	}
}
