package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/diagnosis/luxsuv-tours/internal/domain"
)

// UsersRepo is the typed identity store used by authentication. Every
// lookup excludes deactivated users.
type UsersRepo interface {
	Create(ctx context.Context, u *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error)
	SetPassword(ctx context.Context, id bson.ObjectID, hash string, changedAt time.Time) error
	// ConsumeResetToken sets the password only while tokenHash is still the
	// pending, unexpired reset token. ErrNotFound otherwise.
	ConsumeResetToken(ctx context.Context, id bson.ObjectID, tokenHash string, now time.Time, hash string, changedAt time.Time) error
	SetResetToken(ctx context.Context, id bson.ObjectID, tokenHash string, expires time.Time) error
	ClearResetToken(ctx context.Context, id bson.ObjectID) error
	UpdateProfile(ctx context.Context, id bson.ObjectID, name, email *string) (*domain.User, error)
	Deactivate(ctx context.Context, id bson.ObjectID) error
}

type usersRepo struct {
	coll *mongo.Collection
}

func NewUsersRepo(db *mongo.Database) UsersRepo {
	return &usersRepo{coll: db.Collection(UsersCollection)}
}

func active(filter bson.M) bson.M {
	return bson.M{"$and": bson.A{domain.ActiveUsers(), filter}}
}

func (r *usersRepo) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if u.ID.IsZero() {
		u.ID = bson.NewObjectID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	u.Active = true

	if _, err := r.coll.InsertOne(ctx, u); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *usersRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *usersRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": domain.NormalizeEmail(email)})
}

func (r *usersRepo) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error) {
	return r.findOne(ctx, bson.M{
		domain.UserFieldPasswordResetToken:   tokenHash,
		domain.UserFieldPasswordResetExpires: bson.M{"$gt": now},
	})
}

func (r *usersRepo) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var u domain.User
	err := r.coll.FindOne(ctx, active(filter)).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

// SetPassword stores a new hash, stamps the change time and drops any
// pending reset token.
func (r *usersRepo) SetPassword(ctx context.Context, id bson.ObjectID, hash string, changedAt time.Time) error {
	return r.update(ctx, id, passwordUpdate(hash, changedAt))
}

func (r *usersRepo) ConsumeResetToken(ctx context.Context, id bson.ObjectID, tokenHash string, now time.Time, hash string, changedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	filter := active(bson.M{
		"_id":                                id,
		domain.UserFieldPasswordResetToken:   tokenHash,
		domain.UserFieldPasswordResetExpires: bson.M{"$gt": now},
	})
	res, err := r.coll.UpdateOne(ctx, filter, passwordUpdate(hash, changedAt))
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func passwordUpdate(hash string, changedAt time.Time) bson.M {
	return bson.M{
		"$set": bson.M{
			domain.UserFieldPassword:          hash,
			domain.UserFieldPasswordChangedAt: changedAt,
		},
		"$unset": bson.M{
			domain.UserFieldPasswordResetToken:   "",
			domain.UserFieldPasswordResetExpires: "",
		},
	}
}

func (r *usersRepo) SetResetToken(ctx context.Context, id bson.ObjectID, tokenHash string, expires time.Time) error {
	return r.update(ctx, id, bson.M{"$set": bson.M{
		domain.UserFieldPasswordResetToken:   tokenHash,
		domain.UserFieldPasswordResetExpires: expires,
	}})
}

func (r *usersRepo) ClearResetToken(ctx context.Context, id bson.ObjectID) error {
	return r.update(ctx, id, bson.M{"$unset": bson.M{
		domain.UserFieldPasswordResetToken:   "",
		domain.UserFieldPasswordResetExpires: "",
	}})
}

func (r *usersRepo) UpdateProfile(ctx context.Context, id bson.ObjectID, name, email *string) (*domain.User, error) {
	set := bson.M{}
	if name != nil {
		set["name"] = *name
	}
	if email != nil {
		set["email"] = domain.NormalizeEmail(*email)
	}
	if len(set) == 0 {
		return r.findOne(ctx, bson.M{"_id": id})
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var u domain.User
	err := r.coll.FindOneAndUpdate(ctx, active(bson.M{"_id": id}), bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update user profile: %w", err)
	}
	return &u, nil
}

func (r *usersRepo) Deactivate(ctx context.Context, id bson.ObjectID) error {
	return r.update(ctx, id, bson.M{"$set": bson.M{domain.UserFieldActive: false}})
}

func (r *usersRepo) update(ctx context.Context, id bson.ObjectID, update bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, active(bson.M{"_id": id}), update)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
