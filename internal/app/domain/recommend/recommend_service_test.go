package recommend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/models"
)

// stubStore counts TopPOIs calls so the caching behavior is observable.
type stubStore struct {
	calls int
	top   []models.Recommendation
	err   error
}

func (s *stubStore) Init(context.Context) error                       { return nil }
func (s *stubStore) SeedFromReferenceIfEmpty(context.Context) error   { return nil }
func (s *stubStore) SeedPOIs(context.Context, []models.POI) error     { return nil }
func (s *stubStore) SaveLocation(context.Context, models.LocationUpdate) error {
	return nil
}

func (s *stubStore) TopPOIs(context.Context, models.RecommendationQuery) ([]models.Recommendation, error) {
	s.calls++
	return s.top, s.err
}

func (s *stubStore) Summary(context.Context) (models.StoreSummary, error) {
	return models.StoreSummary{}, nil
}
func (s *stubStore) PruneExpired(context.Context) (int64, error) { return 0, nil }
func (s *stubStore) EnsureUser(context.Context, string, models.UserPatch) error {
	return nil
}

func (s *stubStore) SaveChatTurn(context.Context, string, string, string, string) (string, error) {
	return "", nil
}

func (s *stubStore) GetChatHistory(context.Context, string, int) ([]models.ChatTurn, error) {
	return nil, nil
}

func (s *stubStore) GetChatTurn(context.Context, string) (*models.ChatTurn, error) {
	return nil, models.ErrNotFound
}
func (s *stubStore) Close(context.Context) error { return nil }

func TestServiceTopPOIs_CachesIdenticalQueries(t *testing.T) {
	store := &stubStore{top: []models.Recommendation{{ID: "poi_sol", Name: "Puerta del Sol"}}}
	svc := NewService(store, zap.NewNop())
	q := models.RecommendationQuery{Latitude: 40.4169, Longitude: -3.7035, RadiusM: 1000, K: 3}

	first, err := svc.TopPOIs(context.Background(), q)
	require.NoError(t, err)
	second, err := svc.TopPOIs(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.calls)
}

func TestServiceTopPOIs_DistinctQueriesMiss(t *testing.T) {
	store := &stubStore{}
	svc := NewService(store, zap.NewNop())

	_, err := svc.TopPOIs(context.Background(), models.RecommendationQuery{Latitude: 40.4169, Longitude: -3.7035, RadiusM: 1000, K: 3})
	require.NoError(t, err)
	_, err = svc.TopPOIs(context.Background(), models.RecommendationQuery{Latitude: 40.4169, Longitude: -3.7035, RadiusM: 500, K: 3})
	require.NoError(t, err)

	assert.Equal(t, 2, store.calls)
}

func TestServiceTopPOIs_ErrorsAreNotCached(t *testing.T) {
	store := &stubStore{err: models.ErrStorageUnavailable}
	svc := NewService(store, zap.NewNop())
	q := models.RecommendationQuery{Latitude: 40.4169, Longitude: -3.7035, RadiusM: 1000, K: 3}

	_, err := svc.TopPOIs(context.Background(), q)
	assert.ErrorIs(t, err, models.ErrStorageUnavailable)

	store.err = nil
	_, err = svc.TopPOIs(context.Background(), q)
	assert.NoError(t, err)
	assert.Equal(t, 2, store.calls)
}

func TestCacheKey_RoundsCoordinates(t *testing.T) {
	base := models.RecommendationQuery{Latitude: 40.41691, Longitude: -3.70351, RadiusM: 1000, K: 3}
	near := models.RecommendationQuery{Latitude: 40.41694, Longitude: -3.70353, RadiusM: 1000, K: 3}
	far := models.RecommendationQuery{Latitude: 40.42691, Longitude: -3.70351, RadiusM: 1000, K: 3}

	assert.Equal(t, cacheKey(base), cacheKey(near))
	assert.NotEqual(t, cacheKey(base), cacheKey(far))
}
