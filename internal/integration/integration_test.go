package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"gechoice/internal/domain"
	"gechoice/internal/game"
	pgloader "gechoice/internal/infra/postgres"
	pgmigrations "gechoice/internal/infra/postgres/migrations"
	infraredis "gechoice/internal/infra/redis"
)

func TestFullRoundEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedCatalog(t, ctx, pgURL, sampleCatalog())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := pgloader.NewCatalogLoader(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	catalogs := infraredis.NewCatalogRepository(redisClient, loader, 5*time.Minute)

	session, err := game.LoadSession(ctx, catalogs, "default", clockwork.NewRealClock())
	if err != nil {
		t.Fatalf("load session: %v", err)
	}

	mirror := infraredis.NewStateMirror(redisClient, 5*time.Minute)
	mirrorCtx, stopMirror := context.WithCancel(ctx)
	defer stopMirror()
	events, cancelSub := session.Subscribe()
	defer cancelSub()
	go mirror.Run(mirrorCtx, session.ID(), events)

	if err := session.StartVoting(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := session.SubmitWithWeight("p1", "Red", "A", 4); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := session.SubmitWithWeight("p2", "Blue", "B", 2); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := session.StopVoting(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	rows, err := session.ShowQuestionResults()
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	standings, err := session.RequestFinalResults()
	if err != nil {
		t.Fatalf("final results: %v", err)
	}
	if standings[0].TeamName != "Red" || standings[0].TotalPoints != 4 {
		t.Fatalf("expected Red leading with 4 points, got %+v", standings)
	}
	if standings[1].TeamName != "Blue" || standings[1].TotalPoints != 0 {
		t.Fatalf("expected Blue with 0 points, got %+v", standings)
	}

	// The mirror should have published a snapshot for dashboards.
	waitForKey(t, redisClient, "vote:state:"+session.ID())
}

func waitForKey(t *testing.T, client *goredis.Client, key string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		n, err := client.Exists(context.Background(), key).Result()
		if err == nil && n > 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("expected redis key %s", key)
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "vote", "POSTGRES_PASSWORD": "votepass", "POSTGRES_DB": "votedb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://vote:votepass@%s:%s/votedb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedCatalog(t *testing.T, ctx context.Context, dsn string, doc domain.CatalogDocument) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal catalog: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO catalogs (id, data) VALUES (? , ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, doc.ID, string(data)); err != nil {
		t.Fatalf("insert catalog: %v", err)
	}
}

func sampleCatalog() domain.CatalogDocument {
	return domain.CatalogDocument{
		ID: "default",
		Questions: []domain.RawQuestion{
			{Title: "What is 2 + 2?", Options: []string{"A", "B"}, Correct: "A"},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
