package policy

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sorumcars/sorum/pkg/apperrors"
	"github.com/sorumcars/sorum/pkg/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Messages returned when a guard vetoes a mutation
const (
	MsgDuplicateTitle = "This Car Already Added"
	MsgMainCar        = "You can delete only your added products!"
	MsgCarNotFound    = "Car Not Found"
	MsgUserNotFound   = "User Not Found"
	MsgMainAdmin      = "Main Admin Can Not Delete!"
	MsgTitleRequired  = "Car title is required"
	MsgEmailRequired  = "Email is required"
)

// Guard names reported to the VetoRecorder
const (
	GuardCatalogInsert = "catalog_insert"
	GuardCatalogDelete = "catalog_delete"
	GuardAdminGrant    = "admin_grant"
	GuardAdminRevoke   = "admin_revoke"
)

// VetoRecorder observes vetoed mutations
type VetoRecorder interface {
	RecordPolicyVeto(guard string)
}

// RoleInvalidator is told about every role change
type RoleInvalidator interface {
	Invalidate(ctx context.Context, email string)
}

// Guards run the checks that protect the main catalog entry, the main
// admin and catalog title uniqueness. Each check and its mutation hold a
// per-key lock, so they cannot interleave with another guarded call on the
// same key in this process. Other processes sharing the store are not
// excluded.
type Guards struct {
	cars     storage.Collection
	users    storage.Collection
	locks    *KeyedMutex
	roles    RoleInvalidator
	recorder VetoRecorder
	log      logrus.FieldLogger
}

// Option configures Guards
type Option func(*Guards)

// WithRoleInvalidator registers the cache to flush on role changes
func WithRoleInvalidator(r RoleInvalidator) Option {
	return func(g *Guards) {
		g.roles = r
	}
}

// WithVetoRecorder reports every veto to r
func WithVetoRecorder(r VetoRecorder) Option {
	return func(g *Guards) {
		g.recorder = r
	}
}

// WithLogger sets the guard logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(g *Guards) {
		g.log = log
	}
}

// NewGuards creates guards over the cars and users collections of store
func NewGuards(store storage.Store, opts ...Option) *Guards {
	g := &Guards{
		cars:  store.Collection(storage.CollectionCars),
		users: store.Collection(storage.CollectionUsers),
		locks: NewKeyedMutex(),
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// InsertCatalogEntry stores car unless another entry already has its title
func (g *Guards) InsertCatalogEntry(ctx context.Context, car storage.Document) (*storage.InsertResult, error) {
	title, _ := car[storage.FieldTitle].(string)
	if strings.TrimSpace(title) == "" {
		return nil, apperrors.InvalidArgument(MsgTitleRequired)
	}

	unlock := g.locks.Lock("cars/title/" + title)
	defer unlock()

	_, exists, err := g.cars.FindOne(ctx, storage.Filter{storage.FieldTitle: title})
	if err != nil {
		return nil, apperrors.Internal("failed to check catalog title", err)
	}
	if exists {
		g.veto(GuardCatalogInsert, logrus.Fields{"title": title})
		return nil, apperrors.Conflict(MsgDuplicateTitle)
	}

	result, err := g.cars.InsertOne(ctx, storage.Without(car, storage.FieldID))
	if err != nil {
		return nil, apperrors.Internal("failed to add car", err)
	}
	return result, nil
}

// DeleteCatalogEntry removes the entry with id unless it is the main entry
func (g *Guards) DeleteCatalogEntry(ctx context.Context, id primitive.ObjectID) (*storage.DeleteResult, error) {
	unlock := g.locks.Lock("cars/id/" + id.Hex())
	defer unlock()

	car, found, err := g.cars.FindOne(ctx, storage.ByID(id))
	if err != nil {
		return nil, apperrors.Internal("failed to load car", err)
	}
	if !found {
		return nil, apperrors.NotFound(MsgCarNotFound)
	}
	if storage.Flag(car, storage.FieldMain) {
		g.veto(GuardCatalogDelete, logrus.Fields{"car_id": id.Hex()})
		return nil, apperrors.PolicyViolation(MsgMainCar)
	}

	result, err := g.cars.DeleteOne(ctx, storage.ByID(id))
	if err != nil {
		return nil, apperrors.Internal("failed to delete car", err)
	}
	return result, nil
}

// GrantAdmin gives the admin role to an existing user
func (g *Guards) GrantAdmin(ctx context.Context, email string) (*storage.UpdateResult, error) {
	if email == "" {
		return nil, apperrors.InvalidArgument(MsgEmailRequired)
	}

	unlock := g.locks.Lock("users/" + email)
	defer unlock()

	_, found, err := g.users.FindOne(ctx, storage.ByEmail(email))
	if err != nil {
		return nil, apperrors.Internal("failed to load user", err)
	}
	if !found {
		g.veto(GuardAdminGrant, logrus.Fields{"email": email})
		return nil, apperrors.NotFound(MsgUserNotFound)
	}

	result, err := storage.GrantAdmin(ctx, g.users, email)
	if err != nil {
		return nil, apperrors.Internal("failed to grant admin", err)
	}
	g.invalidate(ctx, email)
	return result, nil
}

// RevokeAdmin removes the role field from a user unless it is the main
// admin. Every other field of the user survives.
func (g *Guards) RevokeAdmin(ctx context.Context, email string) (*storage.UpdateResult, error) {
	if email == "" {
		return nil, apperrors.InvalidArgument(MsgEmailRequired)
	}

	unlock := g.locks.Lock("users/" + email)
	defer unlock()

	user, found, err := g.users.FindOne(ctx, storage.ByEmail(email))
	if err != nil {
		return nil, apperrors.Internal("failed to load user", err)
	}
	if !found {
		return nil, apperrors.NotFound(MsgUserNotFound)
	}
	if storage.Flag(user, storage.FieldMainAdmin) {
		g.veto(GuardAdminRevoke, logrus.Fields{"email": email})
		return nil, apperrors.PolicyViolation(MsgMainAdmin)
	}

	result, err := storage.RevokeRole(ctx, g.users, user)
	if err != nil {
		return nil, apperrors.Internal("failed to revoke admin", err)
	}
	if result.MatchedCount == 0 {
		return nil, apperrors.NotFound(MsgUserNotFound)
	}
	g.invalidate(ctx, email)
	return result, nil
}

func (g *Guards) veto(guard string, fields logrus.Fields) {
	g.log.WithFields(fields).WithField("guard", guard).Info("mutation vetoed")
	if g.recorder != nil {
		g.recorder.RecordPolicyVeto(guard)
	}
}

func (g *Guards) invalidate(ctx context.Context, email string) {
	if g.roles != nil {
		g.roles.Invalidate(ctx, email)
	}
}
