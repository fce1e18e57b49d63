package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/davrell/trekbackend/apperr"
	"github.com/davrell/trekbackend/models"
	"github.com/davrell/trekbackend/query"
)

// UserStore is the principal store consumed by the auth controller and
// the middleware chain. Every mutation on a single user record is atomic
// at the store level; the reset flow and password-change invalidation
// depend on that.
type UserStore interface {
	Create(ctx context.Context, user models.User) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindActiveByID(ctx context.Context, id string) (models.User, error)
	SetResetToken(ctx context.Context, id string, hash string, until time.Time) error
	ClearResetToken(ctx context.Context, id string) error
	ConsumeResetToken(ctx context.Context, hash, newPasswordHash string, changedAt time.Time) (models.User, error)
	UpdatePassword(ctx context.Context, id, newPasswordHash string, changedAt time.Time) error
	UpdateProfile(ctx context.Context, id string, patch bson.M) (models.User, error)
	Deactivate(ctx context.Context, id string) error
}

// ActiveOnly is the scoping filter excluding soft-deleted principals.
// It is composed explicitly wherever users are read, never injected
// implicitly by the store machinery.
func ActiveOnly() bson.M {
	return bson.M{"active": bson.M{"$ne": false}}
}

// Users is the mongo-backed principal store. It also satisfies
// Repository[models.User] for the admin CRUD routes, with ActiveOnly
// composed into every read.
type Users struct {
	*Collection[models.User]
	col *mongo.Collection
}

func NewUsers(col *mongo.Collection) *Users {
	return &Users{Collection: NewCollection[models.User](col), col: col}
}

func (u *Users) Create(ctx context.Context, user models.User) (models.User, error) {
	user.Email = CanonicalEmail(user.Email)
	created, err := u.Collection.Create(ctx, user)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			return models.User{}, apperr.Conflict("email address already in use")
		}
		return models.User{}, err
	}
	return created, nil
}

// FindByEmail returns the active user with that email, password hash
// included. Absence surfaces as NotFound; login collapses it into a
// generic credentials error.
func (u *Users) FindByEmail(ctx context.Context, email string) (models.User, error) {
	filter := ActiveOnly()
	filter["email"] = CanonicalEmail(email)
	return u.findUser(ctx, filter)
}

func (u *Users) FindActiveByID(ctx context.Context, id string) (models.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return models.User{}, apperr.NotFound("user no longer exists")
	}
	filter := ActiveOnly()
	filter["_id"] = oid
	return u.findUser(ctx, filter)
}

func (u *Users) SetResetToken(ctx context.Context, id string, hash string, until time.Time) error {
	return u.updateByHexID(ctx, id, bson.M{
		"$set": bson.M{
			"passwordResetToken":   hash,
			"passwordResetExpires": until,
			"updatedAt":            time.Now().UTC(),
		},
	})
}

// ClearResetToken rolls back an outstanding reset token, e.g. after the
// delivery step failed. Both fields go together, keeping the invariant
// that they are set and cleared as a pair.
func (u *Users) ClearResetToken(ctx context.Context, id string) error {
	return u.updateByHexID(ctx, id, bson.M{
		"$unset": bson.M{"passwordResetToken": "", "passwordResetExpires": ""},
		"$set":   bson.M{"updatedAt": time.Now().UTC()},
	})
}

// ConsumeResetToken applies a new password to the user holding an
// unexpired reset token with the given hash, clearing the token in the
// same single-record update. A second consume with the same token finds
// nothing. Invalid and expired collapse into one NotFound so callers
// cannot distinguish the two.
func (u *Users) ConsumeResetToken(ctx context.Context, hash, newPasswordHash string, changedAt time.Time) (models.User, error) {
	filter := ActiveOnly()
	filter["passwordResetToken"] = hash
	filter["passwordResetExpires"] = bson.M{"$gt": time.Now().UTC()}

	var user models.User
	err := u.col.FindOneAndUpdate(ctx, filter, bson.M{
		"$set": bson.M{
			"passwordHash":      newPasswordHash,
			"passwordChangedAt": changedAt,
			"updatedAt":         time.Now().UTC(),
		},
		"$unset": bson.M{"passwordResetToken": "", "passwordResetExpires": ""},
	}, afterUpdate()).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, apperr.NotFound("reset token is invalid or has expired")
		}
		return models.User{}, apperr.Internal(err)
	}
	return user, nil
}

func (u *Users) UpdatePassword(ctx context.Context, id, newPasswordHash string, changedAt time.Time) error {
	return u.updateByHexID(ctx, id, bson.M{
		"$set": bson.M{
			"passwordHash":      newPasswordHash,
			"passwordChangedAt": changedAt,
			"updatedAt":         time.Now().UTC(),
		},
		"$unset": bson.M{"passwordResetToken": "", "passwordResetExpires": ""},
	})
}

func (u *Users) UpdateProfile(ctx context.Context, id string, patch bson.M) (models.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return models.User{}, apperr.NotFound("user no longer exists")
	}
	patch["updatedAt"] = time.Now().UTC()

	var user models.User
	err = u.col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": patch}, afterUpdate()).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, apperr.NotFound("user no longer exists")
		}
		if IsDuplicateKey(err) {
			return models.User{}, apperr.Conflict("email address already in use")
		}
		return models.User{}, apperr.Internal(err)
	}
	return user, nil
}

// Deactivate is the soft delete: the record stays, default reads skip it.
func (u *Users) Deactivate(ctx context.Context, id string) error {
	return u.updateByHexID(ctx, id, bson.M{
		"$set": bson.M{"active": false, "updatedAt": time.Now().UTC()},
	})
}

// FindMany scopes listing to active users before applying the plan.
func (u *Users) FindMany(ctx context.Context, plan query.Plan, ambient bson.M) ([]models.User, error) {
	scoped := ActiveOnly()
	for k, v := range ambient {
		scoped[k] = v
	}
	return u.Collection.FindMany(ctx, plan, scoped)
}

// FindByID scopes single reads to active users.
func (u *Users) FindByID(ctx context.Context, id string, fields ...string) (models.User, error) {
	return u.FindActiveByID(ctx, id)
}

// EnsureAdmin seeds the bootstrap admin account if it does not exist yet.
func (u *Users) EnsureAdmin(ctx context.Context, email, passwordHash string) error {
	now := time.Now().UTC()
	filter := bson.M{"email": CanonicalEmail(email)}
	update := bson.M{
		"$setOnInsert": bson.M{
			"name":         "Administrator",
			"email":        CanonicalEmail(email),
			"photo":        "default.jpg",
			"passwordHash": passwordHash,
			"role":         models.RoleAdmin,
			"active":       true,
			"createdAt":    now,
			"updatedAt":    now,
		},
	}
	_, err := u.col.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (u *Users) findUser(ctx context.Context, filter bson.M) (models.User, error) {
	var user models.User
	if err := u.col.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, apperr.NotFound("user no longer exists")
		}
		return models.User{}, apperr.Internal(err)
	}
	return user, nil
}

func (u *Users) updateByHexID(ctx context.Context, id string, update bson.M) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return apperr.NotFound("user no longer exists")
	}
	res, err := u.col.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return apperr.Internal(err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("user no longer exists")
	}
	return nil
}

// CanonicalEmail is the stored form of an email address.
func CanonicalEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
