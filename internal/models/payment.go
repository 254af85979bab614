package models

// ChargeRequest is the body of POST /api/v1/charges. The idempotency key
// travels as a header and is never serialized into the body.
type ChargeRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Customer       string `json:"customer"`
	IdempotencyKey string `json:"-"`
}

type RefundRequest struct {
	TransactionID string `json:"transaction_id"`
}

// ChargeResult is a charge as reported by the backend. Amount is in minor
// currency units.
type ChargeResult struct {
	ID             string `json:"id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Customer       string `json:"customer"`
	Status         string `json:"status"`
	IdempotencyKey string `json:"idempotency_key"`
	CreatedAt      string `json:"created_at"`
}

type RefundResult struct {
	ID         string `json:"id"`
	Amount     int64  `json:"amount"`
	Status     string `json:"status"`
	RefundedAt string `json:"refunded_at"`
}

// BalanceResult is computed by the backend. Balance may be negative when
// refunds exceed charges.
type BalanceResult struct {
	SuccessfulTransactions int64 `json:"successful_transactions"`
	RefundedTransactions   int64 `json:"refunded_transactions"`
	Balance                int64 `json:"balance"`
}

type MetricsResult struct {
	TotalCharges      int64 `json:"total_charges"`
	TotalRefunds      int64 `json:"total_refunds"`
	PendingWebhooks   int64 `json:"pending_webhooks"`
	DeliveredWebhooks int64 `json:"delivered_webhooks"`
	FailedWebhooks    int64 `json:"failed_webhooks"`
	WebhookRetries    int64 `json:"webhook_retries"`
}
