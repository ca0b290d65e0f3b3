// Package recommend serves ranked POI queries on top of the storage
// abstraction, with a short-lived response cache in front.
package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/domain/storage"
	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/models"
	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/observability/metrics"
)

type Service interface {
	TopPOIs(ctx context.Context, q models.RecommendationQuery) ([]models.Recommendation, error)
}

type ServiceImpl struct {
	store  storage.Store
	cache  *cache.Cache
	group  singleflight.Group
	logger *zap.Logger
}

var _ Service = (*ServiceImpl)(nil)

func NewService(store storage.Store, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		store:  store,
		cache:  cache.New(time.Minute, 5*time.Minute),
		logger: logger,
	}
}

// TopPOIs answers from the cache when an identical recent query exists;
// otherwise concurrent identical queries collapse into one storage call.
func (s *ServiceImpl) TopPOIs(ctx context.Context, q models.RecommendationQuery) ([]models.Recommendation, error) {
	key := cacheKey(q)
	if cached, found := s.cache.Get(key); found {
		s.logger.Debug("Recommendation cache hit", zap.String("key", key))
		return cached.([]models.Recommendation), nil
	}

	result, err, _ := s.group.Do(key, func() (any, error) {
		start := time.Now()
		recs, err := s.store.TopPOIs(ctx, q)
		if m := metrics.Get(); m != nil {
			m.StorageOpDurationSecs.Record(ctx, time.Since(start).Seconds())
		}
		if err != nil {
			return nil, err
		}
		s.cache.SetDefault(key, recs)
		return recs, nil
	})
	if err != nil {
		return nil, err
	}

	if m := metrics.Get(); m != nil {
		m.RecommendationsTotal.Add(ctx, 1)
	}
	return result.([]models.Recommendation), nil
}

// cacheKey rounds coordinates to ~10m so nearby repeat queries share an
// entry.
func cacheKey(q models.RecommendationQuery) string {
	age := ""
	if q.AgeRange != nil {
		age = *q.AgeRange
	}
	return fmt.Sprintf("%.4f:%.4f:%d:%t:%s:%d", q.Latitude, q.Longitude, q.RadiusM, q.PMR, age, q.K)
}
