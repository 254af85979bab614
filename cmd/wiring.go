package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/agent-tools/internal/cache"
	"github.com/akylbek/payment-system/agent-tools/internal/config"
	"github.com/akylbek/payment-system/agent-tools/internal/events"
	"github.com/akylbek/payment-system/agent-tools/internal/repository"
	"github.com/akylbek/payment-system/agent-tools/internal/service"
	"github.com/akylbek/payment-system/agent-tools/internal/telemetry"
	"github.com/akylbek/payment-system/agent-tools/internal/tools"
)

// stack holds the dispatcher and the connections opened to build it.
type stack struct {
	dispatcher *service.Dispatcher
	closers    []func() error
}

func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			telemetry.Logger.Warn("Failed to close resource", zap.Error(err))
		}
	}
}

// buildStack wires the adapter to whichever optional sinks are configured.
func buildStack(ctx context.Context, cfg *config.Config) (*stack, error) {
	s := &stack{}
	var opts []service.Option

	switch {
	case cfg.DatabaseURL != "":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		s.closers = append(s.closers, db.Close)

		repo := repository.NewInvocationRepository(db)
		if err := repo.InitDB(); err != nil {
			s.Close()
			return nil, fmt.Errorf("initialize database: %w", err)
		}
		opts = append(opts, service.WithInvocationRepository(repo))
		telemetry.Logger.Info("Auditing tool invocations to PostgreSQL")

	case cfg.AuditDBPath != "":
		repo, err := repository.NewBoltRepository(cfg.AuditDBPath)
		if err != nil {
			return nil, fmt.Errorf("open audit db: %w", err)
		}
		s.closers = append(s.closers, repo.Close)
		opts = append(opts, service.WithInvocationRepository(repo))
		telemetry.Logger.Info("Auditing tool invocations to BoltDB", zap.String("path", cfg.AuditDBPath))
	}

	if cfg.RedisURL != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisURL,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			telemetry.Logger.Warn("Redis unreachable, key journal may drop entries", zap.Error(err))
		}
		s.closers = append(s.closers, redisClient.Close)
		opts = append(opts, service.WithKeyJournal(cache.NewRedisKeyJournal(redisClient, cache.DefaultKeyTTL)))
	}

	if cfg.KafkaBrokers != "" {
		publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		s.closers = append(s.closers, publisher.Close)
		opts = append(opts, service.WithEventPublisher(publisher))
		telemetry.Logger.Info("Publishing tool events to Kafka", zap.String("topic", cfg.KafkaTopic))
	}

	adapter := tools.NewAdapter(tools.NewClientFactory(cfg.MiniPay()))
	s.dispatcher = service.NewDispatcher(adapter, opts...)
	return s, nil
}
