package repository

import (
	"context"
	"testing"
	"time"

	"github.com/lumen-shop/cart-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupMongoCartRepository(t *testing.T) (*MongoCartRepository, *fakeClock) {
	t.Helper()
	if testing.Short() {
		t.Skip("skip mongo container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate mongo container failed: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	client, err := ConnectMongo(ctx, uri)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Disconnect(context.Background())
	})

	clock := &fakeClock{now: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)}
	repo := NewMongoCartRepository(client.Database("cart_test"), "carts", testCartTTL).WithClock(clock.Now)
	require.NoError(t, repo.EnsureIndexes(ctx))
	return repo, clock
}

func TestMongoCartLifecycle(t *testing.T) {
	repo, clock := setupMongoCartRepository(t)
	ctx := context.Background()

	_, err := repo.Load(ctx, "u1")
	assert.ErrorIs(t, err, ErrCartNotFound)

	cart, err := repo.CreateEmpty(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())

	_, err = repo.CreateEmpty(ctx, "u1")
	assert.ErrorIs(t, err, ErrCartExists)

	cart.Items = append(cart.Items, testItem("P1", 2, "10.00"), testItem("P2", 1, "0.99"))
	clock.now = clock.now.Add(time.Hour)
	saved, err := repo.Persist(ctx, cart)
	require.NoError(t, err)
	assert.Equal(t, 3, saved.TotalItems)
	assert.Equal(t, "20.99", saved.TotalAmount.String())

	loaded, err := repo.Load(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, loaded.Items, 2)
	assert.Equal(t, "P1", loaded.Items[0].ProductRef)
	assert.Equal(t, "10.00", loaded.Items[0].UnitPrice.String())
	assert.Equal(t, "20.99", loaded.TotalAmount.String())
	assert.Equal(t, saved.Version, loaded.Version)
	assert.WithinDuration(t, clock.now.Add(testCartTTL), loaded.ExpiresAt, time.Millisecond)
}

func TestMongoCartPersistVersionConflict(t *testing.T) {
	repo, _ := setupMongoCartRepository(t)
	ctx := context.Background()

	cart, err := repo.CreateEmpty(ctx, "u1")
	require.NoError(t, err)
	stale := cart.Clone()

	cart.Items = append(cart.Items, testItem("P1", 1, "1"))
	_, err = repo.Persist(ctx, cart)
	require.NoError(t, err)

	stale.Items = append(stale.Items, testItem("P2", 1, "1"))
	_, err = repo.Persist(ctx, stale)
	assert.ErrorIs(t, err, ErrVersionConflict)

	_, err = repo.Persist(ctx, models.NewCart("ghost", time.Now(), testCartTTL))
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestMongoCartPurgeAndList(t *testing.T) {
	repo, clock := setupMongoCartRepository(t)
	ctx := context.Background()

	for _, owner := range []string{"alice", "alina", "bob"} {
		clock.now = clock.now.Add(time.Minute)
		_, err := repo.CreateEmpty(ctx, owner)
		require.NoError(t, err)
	}

	carts, total, err := repo.List(ctx, CartListFilter{Page: 1, PageSize: 10, Owner: "ALI"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, carts, 2)
	assert.Equal(t, "alina", carts[0].Owner)

	purged, err := repo.PurgeExpired(ctx, clock.now.Add(testCartTTL))
	require.NoError(t, err)
	assert.EqualValues(t, 3, purged)
}
