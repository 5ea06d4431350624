package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"gechoice/internal/config"
	"gechoice/internal/domain"
	"gechoice/internal/game"
	"gechoice/internal/infra/memory"
	pgloader "gechoice/internal/infra/postgres"
	redisinfra "gechoice/internal/infra/redis"
	transport "gechoice/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the vote session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.CatalogLoader = memory.NewStaticCatalogLoader(map[string][]domain.RawQuestion{
		cfg.CatalogID(): cfg.Questions,
	})
	if pool != nil {
		loader = pgloader.NewCatalogLoader(pool)
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	var catalogs game.CatalogRepository
	if redisClient != nil {
		catalogs = redisinfra.NewCatalogRepository(redisClient, loader, catalogTTL)
	} else {
		catalogs = memory.NewCatalogRepository(loader, catalogTTL)
	}

	session, err := game.LoadSession(ctx, catalogs, cfg.CatalogID(), clockwork.NewRealClock())
	if err != nil {
		return err
	}

	mirrorCtx, stopMirror := context.WithCancel(ctx)
	defer stopMirror()
	if redisClient != nil {
		mirror := redisinfra.NewStateMirror(redisClient, redisTTL)
		events, cancelSub := session.Subscribe()
		defer cancelSub()
		go mirror.Run(mirrorCtx, session.ID(), events)
	}

	if cfg.Host.Key == "" {
		log.Warn().Msg("host.key is empty; host operations are disabled")
	}
	wsHandler := transport.NewWSHandler(session, cfg.Host.Key)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Int("questions", session.GetState().QuestionCount).Msg("starting vote session server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
