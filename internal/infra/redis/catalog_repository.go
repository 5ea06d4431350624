package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"gechoice/internal/domain"
)

// CatalogLoader fetches catalog content from a backing store (config file,
// document DB).
type CatalogLoader interface {
	LoadCatalog(ctx context.Context, catalogID string) (domain.Catalog, error)
}

// CatalogRepository caches validated catalogs in Redis and falls back to a
// loader on cache miss. A catalog is stored as one JSON value under
// vote:catalog:{catalogID} with a jittered TTL.
type CatalogRepository struct {
	client *redis.Client
	loader CatalogLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewCatalogRepository(client *redis.Client, loader CatalogLoader, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *CatalogRepository) GetCatalog(ctx context.Context, catalogID string) (domain.Catalog, error) {
	key := r.catalogKey(catalogID)

	if catalog, ok := r.fromCache(ctx, key); ok {
		return catalog, nil
	}

	result, err, _ := r.sf.Do(catalogID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if catalog, ok := r.fromCache(ctx, key); ok {
			return catalog, nil
		}

		catalog, err := r.loader.LoadCatalog(ctx, catalogID)
		if err != nil {
			return domain.Catalog{}, err
		}

		if data, err := json.Marshal(catalog); err == nil {
			_ = r.client.Set(ctx, key, data, r.ttlWithJitter()).Err()
		}
		return catalog, nil
	})
	if err != nil {
		return domain.Catalog{}, err
	}
	return result.(domain.Catalog), nil
}

func (r *CatalogRepository) fromCache(ctx context.Context, key string) (domain.Catalog, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return domain.Catalog{}, false
	}
	var catalog domain.Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return domain.Catalog{}, false
	}
	return catalog, true
}

func (r *CatalogRepository) catalogKey(catalogID string) string {
	return "vote:catalog:" + catalogID
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
