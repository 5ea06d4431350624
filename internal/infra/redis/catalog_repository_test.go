package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"gechoice/internal/domain"
	"gechoice/internal/infra/memory"
)

func TestCatalogRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		CatalogLoader: memory.NewStaticCatalogLoader(map[string][]domain.RawQuestion{
			"default": sampleQuestions(),
		}),
	}
	repo := NewCatalogRepository(client, loader, time.Minute)

	catalog, err := repo.GetCatalog(context.Background(), "default")
	if err != nil {
		t.Fatalf("get catalog: %v", err)
	}
	if len(catalog.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(catalog.Questions))
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("vote:catalog:default") {
		t.Fatalf("expected catalog cached in redis")
	}

	// Second call should hit cache, loader not incremented.
	cached, err := repo.GetCatalog(context.Background(), "default")
	if err != nil {
		t.Fatalf("get catalog from cache: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if cached.Questions[1].CorrectOption != "C" {
		t.Fatalf("cached catalog must round-trip the correct option, got %+v", cached.Questions[1])
	}
}

type countingLoader struct {
	memory.CatalogLoader
	calls int
}

func (l *countingLoader) LoadCatalog(ctx context.Context, catalogID string) (domain.Catalog, error) {
	l.calls++
	return l.CatalogLoader.LoadCatalog(ctx, catalogID)
}

func sampleQuestions() []domain.RawQuestion {
	return []domain.RawQuestion{
		{Title: "Q1", Options: []string{"A", "B"}, Correct: "A"},
		{Title: "Q2", Options: []string{"A", "B", "C"}, Correct: "C"},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
