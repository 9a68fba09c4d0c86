package mongodb

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/diagnosis/luxsuv-tours/internal/domain"
	"github.com/diagnosis/luxsuv-tours/pkg/database"
)

func setupMongoContainer(ctx context.Context, t *testing.T) *mongo.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping MongoDB container tests in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor: wait.ForAll(
				wait.ForLog("Waiting for connections"),
				wait.ForListeningPort("27017/tcp"),
			).WithDeadline(2 * time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := ctr.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate mongo container: %v", err)
		}
	})

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "27017/tcp")
	require.NoError(t, err)

	client, _, err := database.Connect(ctx, fmt.Sprintf("mongodb://%s:%s", host, port.Port()), "tours_test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	return client
}

// freshDB gives each subtest its own indexed database.
func freshDB(ctx context.Context, t *testing.T, client *mongo.Client) *mongo.Database {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db := client.Database(name)
	require.NoError(t, EnsureIndexes(ctx, db))
	return db
}

func point(lng, lat float64) bson.M {
	return bson.M{"type": "Point", "coordinates": bson.A{lng, lat}}
}

func TestMongoRepositories(t *testing.T) {
	ctx := context.Background()
	client := setupMongoContainer(ctx, t)

	t.Run("secret tours are outside every tour query", func(t *testing.T) {
		tours := NewToursRepo(freshDB(ctx, t, client))

		visible, err := tours.Insert(ctx, bson.M{"name": "The Forest Hiker", "price": 397, "startLocation": point(-115.57, 51.17)})
		require.NoError(t, err)
		secret, err := tours.Insert(ctx, bson.M{"name": "The Secret Tour", "price": 997, "secretTour": true, "startLocation": point(-115.56, 51.18)})
		require.NoError(t, err)
		secretID := secret["_id"].(bson.ObjectID).Hex()

		_, err = tours.FindByID(ctx, secretID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = tours.UpdateByID(ctx, secretID, bson.M{"price": 1})
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = tours.DeleteByID(ctx, secretID)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		n, err := tours.Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		near, err := tours.Distances(ctx, -115.57, 51.17, domain.UnitKilometers)
		require.NoError(t, err)
		require.Len(t, near, 1)
		assert.Equal(t, visible["_id"], near[0].ID)

		within, err := tours.Within(ctx, -115.57, 51.17, 50, domain.UnitKilometers)
		require.NoError(t, err)
		require.Len(t, within, 1)
		assert.Equal(t, "The Forest Hiker", within[0]["name"])
	})

	t.Run("populate resolves refs and virtuals with their scopes", func(t *testing.T) {
		db := freshDB(ctx, t, client)
		users := NewUsersRepo(db)
		tours := NewToursRepo(db)
		reviews := NewReviewsCollection(db)

		guide, err := users.Create(ctx, &domain.User{Name: "Miyah Myles", Email: "miyah@example.com", Role: domain.RoleGuide, PasswordHash: "h"})
		require.NoError(t, err)
		gone, err := users.Create(ctx, &domain.User{Name: "Old Guide", Email: "old@example.com", Role: domain.RoleGuide, PasswordHash: "h"})
		require.NoError(t, err)
		require.NoError(t, users.Deactivate(ctx, gone.ID))

		tour, err := tours.Insert(ctx, bson.M{"name": "The Sea Explorer", "price": 497, "guides": bson.A{guide.ID, gone.ID}})
		require.NoError(t, err)
		tourID := tour["_id"].(bson.ObjectID)
		_, err = reviews.Insert(ctx, bson.M{"review": "Loved it", "rating": 5, "tour": tourID, "user": guide.ID})
		require.NoError(t, err)

		doc, err := tours.FindByID(ctx, tourID.Hex(), TourGuides, TourReviews)
		require.NoError(t, err)

		guides := doc["guides"].([]bson.M)
		require.Len(t, guides, 1)
		assert.Equal(t, "Miyah Myles", guides[0]["name"])
		assert.NotContains(t, guides[0], "password")

		tourReviews := doc["reviews"].([]bson.M)
		require.Len(t, tourReviews, 1)
		assert.Equal(t, "Loved it", tourReviews[0]["review"])
	})

	t.Run("users collection hides secrets and soft-deleted users", func(t *testing.T) {
		db := freshDB(ctx, t, client)
		users := NewUsersRepo(db)
		coll := NewUsersCollection(db)

		u, err := users.Create(ctx, &domain.User{Name: "Leo Gillespie", Email: "leo@example.com", PasswordHash: "$argon2id$secret"})
		require.NoError(t, err)

		doc, err := coll.FindByID(ctx, u.IDHex())
		require.NoError(t, err)
		assert.NotContains(t, doc, "password")

		_, err = users.Create(ctx, &domain.User{Name: "Leo Again", Email: "leo@example.com", PasswordHash: "h"})
		assert.True(t, mongo.IsDuplicateKeyError(err), "%v", err)

		require.NoError(t, users.Deactivate(ctx, u.ID))
		_, err = users.FindByEmail(ctx, "leo@example.com")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = coll.FindByID(ctx, u.IDHex())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("a reset token is consumed once", func(t *testing.T) {
		users := NewUsersRepo(freshDB(ctx, t, client))
		now := time.Now().UTC().Truncate(time.Millisecond)

		u, err := users.Create(ctx, &domain.User{Name: "Sophie Louise Hart", Email: "sophie@example.com", PasswordHash: "old"})
		require.NoError(t, err)
		require.NoError(t, users.SetResetToken(ctx, u.ID, "token-hash", now.Add(10*time.Minute)))

		err = users.ConsumeResetToken(ctx, u.ID, "other-hash", now, "new", now)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		err = users.ConsumeResetToken(ctx, u.ID, "token-hash", now.Add(11*time.Minute), "new", now)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		require.NoError(t, users.ConsumeResetToken(ctx, u.ID, "token-hash", now, "new", now))
		err = users.ConsumeResetToken(ctx, u.ID, "token-hash", now, "newer", now)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		stored, err := users.FindByID(ctx, u.IDHex())
		require.NoError(t, err)
		assert.Equal(t, "new", stored.PasswordHash)
		assert.Nil(t, stored.PasswordResetToken)
		assert.Nil(t, stored.PasswordResetExpires)
	})

	t.Run("a checkout session records one booking", func(t *testing.T) {
		bookings := NewBookingsRepo(freshDB(ctx, t, client))
		b := func() *domain.Booking {
			paid := true
			return &domain.Booking{Tour: bson.NewObjectID(), User: bson.NewObjectID(), Price: 397, Paid: &paid,
				SessionID: "cs_test_1", CreatedAt: time.Now().UTC()}
		}

		first, created, err := bookings.Record(ctx, b())
		require.NoError(t, err)
		assert.True(t, created)
		again, created, err := bookings.Record(ctx, b())
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first["_id"], again["_id"])
		assert.Equal(t, "cs_test_1", again["sessionId"])

		n, err := bookings.Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}
