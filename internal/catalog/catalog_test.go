package catalog

import (
	"context"
	"io"
	"testing"
	"time"

	"innoviahub/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	resources []models.Resource
	listCalls int
}

func (f *fakeStore) ListResources(context.Context, time.Time) ([]models.Resource, error) {
	f.listCalls++
	return append([]models.Resource(nil), f.resources...), nil
}

func (f *fakeStore) GetResource(_ context.Context, id int64) (*models.Resource, error) {
	for _, r := range f.resources {
		if r.ID == id {
			copied := r
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func newFakeStore() *fakeStore {
	return &fakeStore{resources: []models.Resource{
		{ID: 1, Name: "Desk 1", ResourceTypeID: 1, IsBooked: false},
		{ID: 2, Name: "Meeting Room A", ResourceTypeID: 2, IsBooked: true},
	}}
}

func TestCatalog_Summary(t *testing.T) {
	logger := zerolog.New(io.Discard)
	cat := New(newFakeStore(), &logger)

	summary, err := cat.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Desk 1 (Type ID: 1) - Available\nMeeting Room A (Type ID: 2) - Booked", summary)
}

func TestCatalog_SummaryCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	logger := zerolog.New(io.Discard)
	store := newFakeStore()
	cat := New(store, &logger)
	cat.UseRedisCache(client, time.Minute)
	ctx := context.Background()

	first, err := cat.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, store.listCalls)

	// Second call is served from redis.
	second, err := cat.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.listCalls)

	// Invalidation forces a fresh read, as after a reservation commit.
	cat.Invalidate(ctx)
	_, err = cat.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, store.listCalls)
}

func TestCatalog_Get(t *testing.T) {
	logger := zerolog.New(io.Discard)
	cat := New(newFakeStore(), &logger)

	resource, err := cat.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Meeting Room A", resource.Name)

	_, err = cat.Get(context.Background(), 99)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
