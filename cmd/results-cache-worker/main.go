package main

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/venispagina998/telegram-betting-app/internal/betting-api/dto"
	"github.com/venispagina998/telegram-betting-app/internal/betting-api/repo"
	"github.com/venispagina998/telegram-betting-app/internal/betting-api/results"
	"github.com/venispagina998/telegram-betting-app/internal/shared/cache"
	"github.com/venispagina998/telegram-betting-app/internal/shared/config"
	"github.com/venispagina998/telegram-betting-app/internal/shared/db"
	"github.com/venispagina998/telegram-betting-app/internal/shared/kafka"
	"github.com/venispagina998/telegram-betting-app/internal/shared/logger"
	"github.com/venispagina998/telegram-betting-app/internal/shared/metrics"
	ev "github.com/venispagina998/telegram-betting-app/pkg/contracts/events"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Postgres pra recalcular os agregados
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	// Redis onde o agregado cacheado vive
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}

	// Kafka consumer: consome bet_placed pra manter o cache de resultados quente
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  strings.Split(cfg.KafkaBrokers, ","),
		GroupID:  "results-cache",
		Topic:    cfg.TopicBetPlaced,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	var dlqWriter *kafkago.Writer
	if cfg.TopicBetPlacedDLQ != "" {
		dlqWriter = kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlacedDLQ)
		defer dlqWriter.Close()
	}

	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "results_worker_messages_consumed_total", Help: "mensagens consumidas"})
	refreshed := prometheus.NewCounter(prometheus.CounterOpts{Name: "results_worker_cache_refreshes_total", Help: "agregados recalculados"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "results_worker_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, refreshed, errorsBy)

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	})

	repository := repo.NewPostgres(pg)
	resultsCache := results.New(rdb, cfg.ResultsTTL)

	log.Info("results-cache-worker started", zap.String("consume", cfg.TopicBetPlaced))

	ctx := context.Background()

	// Loop principal: consome bet_placed e reaquece o agregado do evento
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			log.Warn("kafka read", zap.Error(err))
			errorsBy.WithLabelValues("consume").Inc()
			time.Sleep(time.Second)
			continue
		}
		consumed.Inc()

		var placed ev.BetPlaced
		if jerr := json.Unmarshal(msg.Value, &placed); jerr != nil {
			log.Error("unmarshal bet_placed", zap.Error(jerr))
			errorsBy.WithLabelValues("unmarshal").Inc()
			if dlqWriter != nil {
				_ = kafka.WriteJSON(ctx, dlqWriter, string(msg.Key), msg.Value)
			}
			continue
		}

		if err := refreshOne(ctx, repository, resultsCache, placed.EventID); err != nil {
			log.Error("refresh results", zap.Int64("eventId", placed.EventID), zap.Error(err))
			errorsBy.WithLabelValues("refresh").Inc()
			time.Sleep(500 * time.Millisecond)
			continue
		}
		refreshed.Inc()
	}
}

// refreshOne recalcula o agregado do evento no banco e grava no cache
func refreshOne(ctx context.Context, r *repo.Postgres, c *results.Cache, eventID int64) error {
	res, err := r.GetResults(ctx, eventID)
	if err != nil {
		return err
	}
	return c.Set(ctx, eventID, dto.EventResultsResponse{
		EventID:       res.EventID,
		TotalBets:     res.TotalBets,
		OutcomeCounts: res.OutcomeCounts,
	})
}
