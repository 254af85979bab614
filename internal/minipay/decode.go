package minipay

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/akylbek/payment-system/agent-tools/internal/models"
)

// Wire shapes use pointers so that a missing or null field can be told apart
// from a zero value. Unknown fields are ignored.

type chargeWire struct {
	ID             *string `json:"id"`
	Amount         *int64  `json:"amount"`
	Currency       *string `json:"currency"`
	Customer       *string `json:"customer"`
	Status         *string `json:"status"`
	IdempotencyKey *string `json:"idempotency_key"`
	CreatedAt      *string `json:"created_at"`
}

type refundWire struct {
	ID         *string `json:"id"`
	Amount     *int64  `json:"amount"`
	Status     *string `json:"status"`
	RefundedAt *string `json:"refunded_at"`
}

type balanceWire struct {
	SuccessfulTransactions *int64 `json:"successful_transactions"`
	RefundedTransactions   *int64 `json:"refunded_transactions"`
	Balance                *int64 `json:"balance"`
}

type metricsWire struct {
	TotalCharges      *int64 `json:"total_charges"`
	TotalRefunds      *int64 `json:"total_refunds"`
	PendingWebhooks   *int64 `json:"pending_webhooks"`
	DeliveredWebhooks *int64 `json:"delivered_webhooks"`
	FailedWebhooks    *int64 `json:"failed_webhooks"`
	WebhookRetries    *int64 `json:"webhook_retries"`
}

type field struct {
	name    string
	present bool
}

func unmarshalRecord(record string, data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &ShapeError{
				Record: record,
				Field:  typeErr.Field,
				Reason: fmt.Sprintf("expected %s, got JSON %s", typeErr.Type, typeErr.Value),
			}
		}
		return &ShapeError{Record: record, Reason: "invalid JSON: " + err.Error()}
	}
	return nil
}

func requireFields(record string, fields ...field) error {
	for _, f := range fields {
		if !f.present {
			return &ShapeError{Record: record, Field: f.name, Reason: "missing"}
		}
	}
	return nil
}

func requireNonNegative(record, name string, v int64) error {
	if v < 0 {
		return &ShapeError{Record: record, Field: name, Reason: fmt.Sprintf("must not be negative, got %d", v)}
	}
	return nil
}

func decodeCharge(data []byte) (*models.ChargeResult, error) {
	const record = "charge"
	var w chargeWire
	if err := unmarshalRecord(record, data, &w); err != nil {
		return nil, err
	}
	if err := requireFields(record,
		field{"id", w.ID != nil},
		field{"amount", w.Amount != nil},
		field{"currency", w.Currency != nil},
		field{"customer", w.Customer != nil},
		field{"status", w.Status != nil},
		field{"idempotency_key", w.IdempotencyKey != nil},
		field{"created_at", w.CreatedAt != nil},
	); err != nil {
		return nil, err
	}
	if err := requireNonNegative(record, "amount", *w.Amount); err != nil {
		return nil, err
	}

	return &models.ChargeResult{
		ID:             *w.ID,
		Amount:         *w.Amount,
		Currency:       *w.Currency,
		Customer:       *w.Customer,
		Status:         *w.Status,
		IdempotencyKey: *w.IdempotencyKey,
		CreatedAt:      *w.CreatedAt,
	}, nil
}

func decodeRefund(data []byte) (*models.RefundResult, error) {
	const record = "refund"
	var w refundWire
	if err := unmarshalRecord(record, data, &w); err != nil {
		return nil, err
	}
	if err := requireFields(record,
		field{"id", w.ID != nil},
		field{"amount", w.Amount != nil},
		field{"status", w.Status != nil},
		field{"refunded_at", w.RefundedAt != nil},
	); err != nil {
		return nil, err
	}

	return &models.RefundResult{
		ID:         *w.ID,
		Amount:     *w.Amount,
		Status:     *w.Status,
		RefundedAt: *w.RefundedAt,
	}, nil
}

func decodeBalance(data []byte) (*models.BalanceResult, error) {
	const record = "balance"
	var w balanceWire
	if err := unmarshalRecord(record, data, &w); err != nil {
		return nil, err
	}
	if err := requireFields(record,
		field{"successful_transactions", w.SuccessfulTransactions != nil},
		field{"refunded_transactions", w.RefundedTransactions != nil},
		field{"balance", w.Balance != nil},
	); err != nil {
		return nil, err
	}
	if err := requireNonNegative(record, "successful_transactions", *w.SuccessfulTransactions); err != nil {
		return nil, err
	}
	if err := requireNonNegative(record, "refunded_transactions", *w.RefundedTransactions); err != nil {
		return nil, err
	}

	return &models.BalanceResult{
		SuccessfulTransactions: *w.SuccessfulTransactions,
		RefundedTransactions:   *w.RefundedTransactions,
		Balance:                *w.Balance,
	}, nil
}

func decodeMetrics(data []byte) (*models.MetricsResult, error) {
	const record = "metrics"
	var w metricsWire
	if err := unmarshalRecord(record, data, &w); err != nil {
		return nil, err
	}
	if err := requireFields(record,
		field{"total_charges", w.TotalCharges != nil},
		field{"total_refunds", w.TotalRefunds != nil},
		field{"pending_webhooks", w.PendingWebhooks != nil},
		field{"delivered_webhooks", w.DeliveredWebhooks != nil},
		field{"failed_webhooks", w.FailedWebhooks != nil},
		field{"webhook_retries", w.WebhookRetries != nil},
	); err != nil {
		return nil, err
	}

	return &models.MetricsResult{
		TotalCharges:      *w.TotalCharges,
		TotalRefunds:      *w.TotalRefunds,
		PendingWebhooks:   *w.PendingWebhooks,
		DeliveredWebhooks: *w.DeliveredWebhooks,
		FailedWebhooks:    *w.FailedWebhooks,
		WebhookRetries:    *w.WebhookRetries,
	}, nil
}
