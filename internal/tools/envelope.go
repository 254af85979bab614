package tools

import (
	"encoding/json"
)

// Success envelopes are structs so field order in the rendered JSON is
// stable.

type chargeEnvelope struct {
	Success        bool   `json:"success"`
	TransactionID  string `json:"transaction_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Customer       string `json:"customer"`
	Status         string `json:"status"`
	IdempotencyKey string `json:"idempotency_key"`
	CreatedAt      string `json:"created_at"`
}

type refundEnvelope struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
	Status        string `json:"status"`
	RefundedAt    string `json:"refunded_at"`
}

type balanceEnvelope struct {
	Success                bool  `json:"success"`
	Balance                int64 `json:"balance"`
	SuccessfulTransactions int64 `json:"successful_transactions"`
	RefundedTransactions   int64 `json:"refunded_transactions"`
}

type metricsEnvelope struct {
	Success           bool  `json:"success"`
	TotalCharges      int64 `json:"total_charges"`
	TotalRefunds      int64 `json:"total_refunds"`
	PendingWebhooks   int64 `json:"pending_webhooks"`
	DeliveredWebhooks int64 `json:"delivered_webhooks"`
	FailedWebhooks    int64 `json:"failed_webhooks"`
	WebhookRetries    int64 `json:"webhook_retries"`
}

type healthEnvelope struct {
	Success bool   `json:"success"`
	Healthy bool   `json:"healthy"`
	Status  string `json:"status"`
}

type failureEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

const (
	statusOperational = "The MiniPay backend is operational"
	statusUnavailable = "The MiniPay backend is unavailable"

	fallbackFailure = `{"success":false,"error":"failed to encode tool result"}`
)

func healthStatus(healthy bool) string {
	if healthy {
		return statusOperational
	}
	return statusUnavailable
}

func render(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return Failure(err)
	}
	return string(data)
}

// Failure renders err as {"success":false,"error":...}.
func Failure(err error) string {
	msg := "unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	data, mErr := json.Marshal(failureEnvelope{Success: false, Error: msg})
	if mErr != nil {
		return fallbackFailure
	}
	return string(data)
}
