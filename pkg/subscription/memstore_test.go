package subscription_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lessonkit/lessonkit/pkg/subscription"
)

func TestMemStoreCreateAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := subscription.NewMemStore()

	rec := subscription.NewTrialRecord(uuid.New(), testCatalog(), testEpoch)
	require.NoError(t, store.Create(ctx, rec))
	assert.ErrorIs(t, store.Create(ctx, rec), subscription.ErrRecordExists)

	got, err := store.Get(ctx, rec.AccountID)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	assert.NotSame(t, rec, got, "store must hand out copies")

	_, err = store.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, subscription.ErrRecordNotFound)
}

func TestMemStoreGetByCustomerRef(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := subscription.NewMemStore()

	rec := subscription.NewTrialRecord(uuid.New(), testCatalog(), testEpoch)
	rec.ExternalCustomerRef = "ctm_777"
	require.NoError(t, store.Create(ctx, rec))

	got, err := store.GetByCustomerRef(ctx, "ctm_777")
	require.NoError(t, err)
	assert.Equal(t, rec.AccountID, got.AccountID)

	_, err = store.GetByCustomerRef(ctx, "ctm_missing")
	assert.ErrorIs(t, err, subscription.ErrRecordNotFound)

	// An empty ref never matches trial records that have no customer yet.
	_, err = store.GetByCustomerRef(ctx, "")
	assert.ErrorIs(t, err, subscription.ErrRecordNotFound)
}

func TestMemStoreSaveCAS(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := subscription.NewMemStore()

	rec := subscription.NewTrialRecord(uuid.New(), testCatalog(), testEpoch)
	require.NoError(t, store.Create(ctx, rec))

	next := rec.Clone()
	next.Status = subscription.StatusExpired
	next.UpdatedAt = testEpoch.Add(time.Hour)
	require.NoError(t, store.Save(ctx, next, rec.UpdatedAt))

	// A writer holding the stale UpdatedAt loses the race.
	stale := rec.Clone()
	stale.PaymentFailureCount = 1
	err := store.Save(ctx, stale, rec.UpdatedAt)
	assert.ErrorIs(t, err, subscription.ErrPersistenceConflict)

	got, err := store.Get(ctx, rec.AccountID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusExpired, got.Status)
	assert.Equal(t, 0, got.PaymentFailureCount)
}

func TestMemStoreSaveMissing(t *testing.T) {
	t.Parallel()
	store := subscription.NewMemStore()

	rec := subscription.NewTrialRecord(uuid.New(), testCatalog(), testEpoch)
	err := store.Save(context.Background(), rec, rec.UpdatedAt)
	assert.ErrorIs(t, err, subscription.ErrRecordNotFound)
}

func TestMemStoreDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := subscription.NewMemStore()

	rec := subscription.NewTrialRecord(uuid.New(), testCatalog(), testEpoch)
	require.NoError(t, store.Create(ctx, rec))
	require.NoError(t, store.Delete(ctx, rec.AccountID))

	_, err := store.Get(ctx, rec.AccountID)
	assert.ErrorIs(t, err, subscription.ErrRecordNotFound)
	assert.ErrorIs(t, store.Delete(ctx, rec.AccountID), subscription.ErrRecordNotFound)
}
