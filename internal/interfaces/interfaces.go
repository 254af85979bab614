package interfaces

import (
	"context"
	"encoding/json"

	"github.com/akylbek/payment-system/agent-tools/internal/models"
)

// PaymentClient defines the contract for talking to the MiniPay backend
type PaymentClient interface {
	CreateCharge(ctx context.Context, req models.ChargeRequest) (*models.ChargeResult, error)
	Refund(ctx context.Context, transactionID string) (*models.RefundResult, error)
	GetBalance(ctx context.Context) (*models.BalanceResult, error)
	GetMetrics(ctx context.Context) (*models.MetricsResult, error)
	HealthCheck(ctx context.Context) bool
	Close() error
}

// InvocationRepository defines the contract for the tool audit trail
type InvocationRepository interface {
	Record(ctx context.Context, inv *models.Invocation) error
}

// EventPublisher defines the contract for tool event delivery
type EventPublisher interface {
	Publish(ctx context.Context, event *models.ToolEvent) error
}

// KeyJournal remembers which transaction an idempotency key produced
type KeyJournal interface {
	Remember(ctx context.Context, key, transactionID string) error
}

// ToolDispatcher is what the agent-facing transports depend on
type ToolDispatcher interface {
	Definitions() []models.ToolDefinition
	Has(name string) bool
	Dispatch(ctx context.Context, name string, args json.RawMessage) string
}
