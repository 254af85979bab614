// Package tools exposes the MiniPay client as named agent tools. Every tool
// returns a JSON string envelope and never an error: failures are reported
// as {"success":false,"error":"..."}.
package tools

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/agent-tools/internal/interfaces"
	"github.com/akylbek/payment-system/agent-tools/internal/minipay"
	"github.com/akylbek/payment-system/agent-tools/internal/models"
	"github.com/akylbek/payment-system/agent-tools/internal/telemetry"
)

const (
	ToolCreateCharge       = "create_charge"
	ToolRefundCharge       = "refund_charge"
	ToolGetAccountBalance  = "get_account_balance"
	ToolGetSystemMetrics   = "get_system_metrics"
	ToolCheckBackendHealth = "check_backend_health"
)

// ClientFactory acquires a client scoped to one tool invocation. The returned
// release func must be called exactly once when the invocation ends.
type ClientFactory func(ctx context.Context) (interfaces.PaymentClient, func(), error)

// NewClientFactory builds a fresh minipay.Client per invocation.
func NewClientFactory(cfg minipay.Config, opts ...minipay.Option) ClientFactory {
	return func(ctx context.Context) (interfaces.PaymentClient, func(), error) {
		client := minipay.NewClient(cfg, opts...)
		release := func() {
			if err := client.Close(); err != nil {
				telemetry.Logger.Warn("Failed to close MiniPay client", zap.Error(err))
			}
		}
		return client, release, nil
	}
}

type ChargeArgs struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Customer       string `json:"customer"`
	IdempotencyKey string `json:"idempotency_key"`
}

type RefundArgs struct {
	TransactionID string `json:"transaction_id"`
}

type Adapter struct {
	acquire ClientFactory
	newKey  func() string
	catalog map[string]*tool
}

type AdapterOption func(*Adapter)

// WithKeyGenerator replaces NewIdempotencyKey.
func WithKeyGenerator(fn func() string) AdapterOption {
	return func(a *Adapter) {
		a.newKey = fn
	}
}

func NewAdapter(factory ClientFactory, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		acquire: factory,
		newKey:  NewIdempotencyKey,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.catalog = buildCatalog(a)
	return a
}

// CreateCharge charges a customer. A missing idempotency key is generated so
// every charge issued by the agent can be deduplicated by the backend.
func (a *Adapter) CreateCharge(ctx context.Context, args ChargeArgs) string {
	if args.Amount < 0 {
		return Failure(errors.New("amount must be a non-negative integer in minor currency units"))
	}
	if args.Currency == "" {
		args.Currency = minipay.DefaultCurrency
	}
	if args.IdempotencyKey == "" {
		args.IdempotencyKey = a.newKey()
	}

	return a.run(ctx, ToolCreateCharge, func(ctx context.Context, client interfaces.PaymentClient) (any, error) {
		res, err := client.CreateCharge(ctx, models.ChargeRequest{
			Amount:         args.Amount,
			Currency:       args.Currency,
			Customer:       args.Customer,
			IdempotencyKey: args.IdempotencyKey,
		})
		if err != nil {
			return nil, err
		}

		if res.IdempotencyKey != "" && res.IdempotencyKey != args.IdempotencyKey {
			telemetry.Logger.Warn("Idempotency key mismatch",
				zap.String("sent", args.IdempotencyKey),
				zap.String("echoed", res.IdempotencyKey),
				zap.String("transaction_id", res.ID),
			)
		}

		return chargeEnvelope{
			Success:        true,
			TransactionID:  res.ID,
			Amount:         res.Amount,
			Currency:       res.Currency,
			Customer:       res.Customer,
			Status:         res.Status,
			IdempotencyKey: res.IdempotencyKey,
			CreatedAt:      res.CreatedAt,
		}, nil
	})
}

func (a *Adapter) RefundCharge(ctx context.Context, transactionID string) string {
	if transactionID == "" {
		return Failure(errors.New("transaction_id is required"))
	}
	return a.run(ctx, ToolRefundCharge, func(ctx context.Context, client interfaces.PaymentClient) (any, error) {
		res, err := client.Refund(ctx, transactionID)
		if err != nil {
			return nil, err
		}
		return refundEnvelope{
			Success:       true,
			TransactionID: res.ID,
			Amount:        res.Amount,
			Status:        res.Status,
			RefundedAt:    res.RefundedAt,
		}, nil
	})
}

func (a *Adapter) GetAccountBalance(ctx context.Context) string {
	return a.run(ctx, ToolGetAccountBalance, func(ctx context.Context, client interfaces.PaymentClient) (any, error) {
		res, err := client.GetBalance(ctx)
		if err != nil {
			return nil, err
		}
		return balanceEnvelope{
			Success:                true,
			Balance:                res.Balance,
			SuccessfulTransactions: res.SuccessfulTransactions,
			RefundedTransactions:   res.RefundedTransactions,
		}, nil
	})
}

func (a *Adapter) GetSystemMetrics(ctx context.Context) string {
	return a.run(ctx, ToolGetSystemMetrics, func(ctx context.Context, client interfaces.PaymentClient) (any, error) {
		res, err := client.GetMetrics(ctx)
		if err != nil {
			return nil, err
		}
		return metricsEnvelope{
			Success:           true,
			TotalCharges:      res.TotalCharges,
			TotalRefunds:      res.TotalRefunds,
			PendingWebhooks:   res.PendingWebhooks,
			DeliveredWebhooks: res.DeliveredWebhooks,
			FailedWebhooks:    res.FailedWebhooks,
			WebhookRetries:    res.WebhookRetries,
		}, nil
	})
}

// CheckBackendHealth always succeeds. Anything that goes wrong, including
// failing to acquire a client, is reported as healthy=false.
func (a *Adapter) CheckBackendHealth(ctx context.Context) string {
	healthy := a.probe(ctx)
	return render(healthEnvelope{
		Success: true,
		Healthy: healthy,
		Status:  healthStatus(healthy),
	})
}

func (a *Adapter) probe(ctx context.Context) (healthy bool) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.Logger.Error("Health check panicked", zap.Any("panic", r))
			healthy = false
		}
	}()

	client, release, err := a.acquire(ctx)
	if err != nil {
		telemetry.Logger.Warn("Failed to acquire MiniPay client for health check", zap.Error(err))
		return false
	}
	defer release()

	return client.HealthCheck(ctx)
}

// run acquires a client for one call, releases it on every exit path and
// turns any error or panic into a failure envelope.
func (a *Adapter) run(ctx context.Context, name string, call func(context.Context, interfaces.PaymentClient) (any, error)) (out string) {
	ctx, span := telemetry.Tracer().Start(ctx, "tool "+name)
	span.SetAttributes(attribute.String("tool.name", name))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			telemetry.Logger.Error("Tool panicked", zap.String("tool", name), zap.Any("panic", r))
			span.SetStatus(codes.Error, "panic")
			out = Failure(fmt.Errorf("%s: internal error: %v", name, r))
		}
	}()

	client, release, err := a.acquire(ctx)
	if err != nil {
		return a.fail(span, name, fmt.Errorf("acquire MiniPay client: %w", err))
	}
	defer release()

	result, err := call(ctx, client)
	if err != nil {
		return a.fail(span, name, err)
	}
	return render(result)
}

func (a *Adapter) fail(span trace.Span, name string, err error) string {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	telemetry.Logger.Warn("Tool call failed", zap.String("tool", name), zap.Error(err))
	return Failure(err)
}
