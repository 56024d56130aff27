package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/venispagina998/telegram-betting-app/internal/betting-api/auth"
	bhttp "github.com/venispagina998/telegram-betting-app/internal/betting-api/http"
	kpub "github.com/venispagina998/telegram-betting-app/internal/betting-api/producer"
	"github.com/venispagina998/telegram-betting-app/internal/betting-api/repo"
	"github.com/venispagina998/telegram-betting-app/internal/betting-api/results"
	"github.com/venispagina998/telegram-betting-app/internal/shared/cache"
	"github.com/venispagina998/telegram-betting-app/internal/shared/config"
	"github.com/venispagina998/telegram-betting-app/internal/shared/db"
	"github.com/venispagina998/telegram-betting-app/internal/shared/kafka"
	"github.com/venispagina998/telegram-betting-app/internal/shared/logger"
	"github.com/venispagina998/telegram-betting-app/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("config", zap.Error(err))
	}

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	if err := db.MigrateUp(pg); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	// Redis
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}

	// Kafka writers
	betWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlaced)
	defer betWriter.Close()
	eventWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicEventCreated)
	defer eventWriter.Close()

	// deps
	verifier, err := auth.NewVerifier(cfg.BotToken, cfg.AuthMaxAge, cfg.AdminIDs)
	if err != nil {
		log.Fatal("auth", zap.Error(err))
	}
	repository := repo.NewPostgres(pg)
	resultsCache := results.New(rdb, cfg.ResultsTTL)
	publ := kpub.NewKafkaPublisher(betWriter, eventWriter)

	// HTTP público
	api := bhttp.NewServer(log, repository, verifier, resultsCache, publ)
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: api.Router(),
	}

	// metrics/health
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	})

	log.Info("betting-api listening", zap.String("addr", fmt.Sprintf(":%s", cfg.HTTPPort)))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
