package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/akylbek/payment-system/agent-tools/internal/cache"
	"github.com/akylbek/payment-system/agent-tools/internal/config"
	"github.com/akylbek/payment-system/agent-tools/internal/models"
	"github.com/akylbek/payment-system/agent-tools/internal/repository"
)

type auditReader interface {
	ListByIdempotencyKey(ctx context.Context, key string) ([]models.Invocation, error)
}

type keyHistory struct {
	IdempotencyKey string              `json:"idempotency_key"`
	TransactionID  string              `json:"transaction_id,omitempty"`
	Invocations    []models.Invocation `json:"invocations"`
}

var historyCmd = &cobra.Command{
	Use:   "history <idempotency-key>",
	Short: "Show what the agent did with an idempotency key",
	Long: `Show the audit records and journaled transaction for an idempotency key.

Reads the audit trail from DATABASE_URL or AUDIT_DB_PATH and the key journal
from REDIS_URL; at least one of them must be configured.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		ctx := cmd.Context()
		out := keyHistory{IdempotencyKey: args[0], Invocations: []models.Invocation{}}
		found := false

		reader, closeReader, err := openAuditReader(cfg)
		if err != nil {
			return err
		}
		if reader != nil {
			defer closeReader()
			found = true
			invs, err := reader.ListByIdempotencyKey(ctx, args[0])
			if err != nil {
				return fmt.Errorf("read audit trail: %w", err)
			}
			if invs != nil {
				out.Invocations = invs
			}
		}

		if cfg.RedisURL != "" {
			found = true
			redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
			defer redisClient.Close()

			txnID, err := cache.NewRedisKeyJournal(redisClient, cache.DefaultKeyTTL).Lookup(ctx, args[0])
			if err != nil {
				return fmt.Errorf("read key journal: %w", err)
			}
			out.TransactionID = txnID
		}

		if !found {
			return errors.New("no audit store configured: set DATABASE_URL, AUDIT_DB_PATH or REDIS_URL")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func openAuditReader(cfg *config.Config) (auditReader, func(), error) {
	switch {
	case cfg.DatabaseURL != "":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		return repository.NewInvocationRepository(db), func() { db.Close() }, nil
	case cfg.AuditDBPath != "":
		repo, err := repository.NewBoltRepository(cfg.AuditDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open audit db: %w", err)
		}
		return repo, func() { repo.Close() }, nil
	}
	return nil, nil, nil
}
