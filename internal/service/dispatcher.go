package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/agent-tools/internal/events"
	"github.com/akylbek/payment-system/agent-tools/internal/interfaces"
	"github.com/akylbek/payment-system/agent-tools/internal/metrics"
	"github.com/akylbek/payment-system/agent-tools/internal/models"
	"github.com/akylbek/payment-system/agent-tools/internal/telemetry"
	"github.com/akylbek/payment-system/agent-tools/internal/tools"
)

// Dispatcher runs tools for the agent-facing transports and reports each
// invocation to the configured sinks. Sink failures are logged and counted
// but never change the envelope returned to the agent.
type Dispatcher struct {
	adapter   *tools.Adapter
	repo      interfaces.InvocationRepository
	publisher interfaces.EventPublisher
	journal   interfaces.KeyJournal
	now       func() time.Time
}

type Option func(*Dispatcher)

func WithInvocationRepository(repo interfaces.InvocationRepository) Option {
	return func(d *Dispatcher) { d.repo = repo }
}

func WithEventPublisher(p interfaces.EventPublisher) Option {
	return func(d *Dispatcher) { d.publisher = p }
}

func WithKeyJournal(j interfaces.KeyJournal) Option {
	return func(d *Dispatcher) { d.journal = j }
}

func NewDispatcher(adapter *tools.Adapter, opts ...Option) *Dispatcher {
	d := &Dispatcher{adapter: adapter, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Definitions() []models.ToolDefinition {
	return d.adapter.Definitions()
}

func (d *Dispatcher) Has(name string) bool {
	return d.adapter.Has(name)
}

// outcome is the subset of an envelope the sinks care about.
type outcome struct {
	Success        bool   `json:"success"`
	Error          string `json:"error"`
	TransactionID  string `json:"transaction_id"`
	IdempotencyKey string `json:"idempotency_key"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Status         string `json:"status"`
}

func (d *Dispatcher) Dispatch(ctx context.Context, name string, args json.RawMessage) string {
	// Pin the key before the call so failed charges are audited under the
	// key the backend saw.
	var sentKey string
	if name == tools.ToolCreateCharge {
		args, sentKey = d.adapter.PrepareCharge(args)
	}

	start := d.now()
	out := d.adapter.Invoke(ctx, name, args)
	elapsed := d.now().Sub(start)

	var res outcome
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		telemetry.Logger.Error("Tool returned a non-JSON envelope", zap.String("tool", name), zap.Error(err))
		return out
	}

	label := name
	if !d.adapter.Has(name) {
		label = "unknown"
	}
	metrics.ToolInvocations.WithLabelValues(label, metrics.Outcome(res.Success)).Inc()
	metrics.ToolDuration.WithLabelValues(label).Observe(elapsed.Seconds())

	telemetry.Logger.Info("Tool invoked",
		zap.String("tool", name),
		zap.Bool("success", res.Success),
		zap.String("transaction_id", res.TransactionID),
		zap.Duration("duration", elapsed),
	)

	if sentKey != "" {
		res.IdempotencyKey = sentKey
	}

	d.record(ctx, name, res, start, elapsed)
	if res.Success {
		d.publish(ctx, name, res)
		d.remember(ctx, name, res)
	}

	return out
}

func (d *Dispatcher) record(ctx context.Context, name string, res outcome, start time.Time, elapsed time.Duration) {
	if d.repo == nil {
		return
	}
	inv := &models.Invocation{
		ID:             uuid.New().String(),
		Tool:           name,
		Success:        res.Success,
		Error:          res.Error,
		IdempotencyKey: res.IdempotencyKey,
		TransactionID:  res.TransactionID,
		DurationMs:     elapsed.Milliseconds(),
		CreatedAt:      start.UTC(),
	}
	if err := d.repo.Record(ctx, inv); err != nil {
		metrics.SideEffectFailures.WithLabelValues("audit").Inc()
		telemetry.Logger.Error("Failed to record tool invocation",
			zap.String("invocation_id", inv.ID),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) publish(ctx context.Context, name string, res outcome) {
	if d.publisher == nil {
		return
	}

	var eventType string
	switch name {
	case tools.ToolCreateCharge:
		eventType = events.TypeChargeCreated
	case tools.ToolRefundCharge:
		eventType = events.TypeChargeRefunded
	default:
		return
	}

	event := &models.ToolEvent{
		EventType:      eventType,
		TransactionID:  res.TransactionID,
		Amount:         res.Amount,
		AmountDisplay:  events.FormatAmount(res.Amount, res.Currency),
		Currency:       res.Currency,
		Status:         res.Status,
		IdempotencyKey: res.IdempotencyKey,
		OccurredAt:     d.now().UTC(),
	}
	if err := d.publisher.Publish(ctx, event); err != nil {
		metrics.SideEffectFailures.WithLabelValues("events").Inc()
		telemetry.Logger.Error("Failed to publish tool event",
			zap.String("transaction_id", res.TransactionID),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) remember(ctx context.Context, name string, res outcome) {
	if d.journal == nil || name != tools.ToolCreateCharge || res.IdempotencyKey == "" {
		return
	}
	if err := d.journal.Remember(ctx, res.IdempotencyKey, res.TransactionID); err != nil {
		metrics.SideEffectFailures.WithLabelValues("journal").Inc()
		telemetry.Logger.Error("Failed to journal idempotency key",
			zap.String("idempotency_key", res.IdempotencyKey),
			zap.Error(err),
		)
	}
}
