package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/cinemasync/server/internal/controller"
	connInmemory "github.com/cinemasync/server/internal/repository/connection/inmemory"
	directoryMongo "github.com/cinemasync/server/internal/repository/directory/mongo"
	sessionRedis "github.com/cinemasync/server/internal/repository/session/redis"
	"github.com/cinemasync/server/internal/service/room"
	"github.com/cinemasync/server/internal/tasks"
	"github.com/cinemasync/server/internal/worker"
	"github.com/cinemasync/server/pkg/ctxlogger"
	"github.com/cinemasync/server/pkg/mongoclient"
	"github.com/cinemasync/server/pkg/redisclient"
)

type AppConfig struct {
	Secret            string `json:"-"`
	Host              string `json:"host"`
	Port              int    `json:"port"`
	LogLevel          string `json:"log_level"`
	MaxParticipants   int    `json:"max_participants"`
	RoomCodeLength    int    `json:"room_code_length"`
	DeactivationDelay int    `json:"deactivation_delay_seconds"`
	MongoURI          string `json:"-"`
	MongoDB           string `json:"mongo_db"`
	RedisHost         string `json:"redis_host"`
	RedisPort         int    `json:"redis_port"`
	RedisPassword     string `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.Secret == "" {
		return fmt.Errorf("secret must be set")
	}
	if cfg.MaxParticipants < 2 {
		return fmt.Errorf("max participants must be greater than 1")
	}
	if cfg.RoomCodeLength < 4 {
		return fmt.Errorf("room code length must be at least 4")
	}
	return nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		log.Fatal(err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	logger := slog.New(&h)

	rc, err := redisclient.NewRedisClient(&redisclient.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	mc, err := mongoclient.NewMongoClient(ctx, &mongoclient.Config{URI: cfg.MongoURI})
	if err != nil {
		return fmt.Errorf("failed to create mongo client: %w", err)
	}
	defer mc.Disconnect(context.Background())

	redisOpt := asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
	}
	taskQueue := tasks.NewQueue(redisOpt)
	defer taskQueue.Close()

	directoryRepo := directoryMongo.NewRepo(mc, cfg.MongoDB)
	sessionRepo := sessionRedis.NewRepo(rc, 24*time.Hour)
	connRepo := connInmemory.NewRepo()

	roomService := room.NewService(directoryRepo, sessionRepo, connRepo, taskQueue, &room.Config{
		RoomCodeLength:    cfg.RoomCodeLength,
		MaxParticipants:   cfg.MaxParticipants,
		DeactivationDelay: time.Duration(cfg.DeactivationDelay) * time.Second,
	})

	deactivationWorker := worker.New(redisOpt, roomService, logger)
	go func() {
		if err := deactivationWorker.Run(); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	controller := controller.NewController(roomService, cfg.Secret, logger)
	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: controller.GetMux()}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		deactivationWorker.Shutdown()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
