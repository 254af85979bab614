package models

import "time"

// ToolDefinition describes a tool to the calling agent. Parameters is a JSON
// Schema object for the tool's arguments.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Invocation is the audit record of a single tool call.
type Invocation struct {
	ID             string    `json:"id"`
	Tool           string    `json:"tool"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	TransactionID  string    `json:"transaction_id,omitempty"`
	DurationMs     int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// ToolEvent is published after a tool moved money.
type ToolEvent struct {
	EventType      string    `json:"event_type"`
	TransactionID  string    `json:"transaction_id"`
	Amount         int64     `json:"amount"`
	AmountDisplay  string    `json:"amount_display"`
	Currency       string    `json:"currency,omitempty"`
	Status         string    `json:"status"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}
