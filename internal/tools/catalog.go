package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/akylbek/payment-system/agent-tools/internal/models"
)

// MaxArgsBytes bounds the JSON arguments accepted for one tool call.
const MaxArgsBytes = 64 << 10

type tool struct {
	def    models.ToolDefinition
	schema *gojsonschema.Schema
	call   func(ctx context.Context, args json.RawMessage) string
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func buildCatalog(a *Adapter) map[string]*tool {
	defs := []struct {
		def  models.ToolDefinition
		call func(ctx context.Context, args json.RawMessage) string
	}{
		{
			def: models.ToolDefinition{
				Name: ToolCreateCharge,
				Description: "Create a new payment charge in the MiniPay system. " +
					"Amount is in minor currency units (1000 = $10.00). " +
					"If idempotency_key is omitted one is generated to prevent duplicate charges.",
				Parameters: objectSchema(map[string]any{
					"amount": map[string]any{
						"type":        "integer",
						"minimum":     0,
						"description": "Amount in cents (e.g. 1000 = $10.00)",
					},
					"currency": map[string]any{
						"type":        "string",
						"default":     "usd",
						"description": "Currency code",
					},
					"customer": map[string]any{
						"type":        "string",
						"default":     "",
						"description": "Customer identifier",
					},
					"idempotency_key": map[string]any{
						"type":        "string",
						"description": "Optional key that lets the backend deduplicate retried charges",
					},
				}, "amount"),
			},
			call: func(ctx context.Context, raw json.RawMessage) string {
				var args ChargeArgs
				if err := json.Unmarshal(raw, &args); err != nil {
					return Failure(fmt.Errorf("decode %s arguments: %w", ToolCreateCharge, err))
				}
				return a.CreateCharge(ctx, args)
			},
		},
		{
			def: models.ToolDefinition{
				Name:        ToolRefundCharge,
				Description: "Refund a previously created charge, identified by its transaction ID (starts with 'txn_').",
				Parameters: objectSchema(map[string]any{
					"transaction_id": map[string]any{
						"type":        "string",
						"minLength":   1,
						"description": "The transaction ID to refund",
					},
				}, "transaction_id"),
			},
			call: func(ctx context.Context, raw json.RawMessage) string {
				var args RefundArgs
				if err := json.Unmarshal(raw, &args); err != nil {
					return Failure(fmt.Errorf("decode %s arguments: %w", ToolRefundCharge, err))
				}
				return a.RefundCharge(ctx, args.TransactionID)
			},
		},
		{
			def: models.ToolDefinition{
				Name:        ToolGetAccountBalance,
				Description: "Get the current account balance: successful charges minus refunded amounts.",
				Parameters:  objectSchema(map[string]any{}),
			},
			call: func(ctx context.Context, _ json.RawMessage) string {
				return a.GetAccountBalance(ctx)
			},
		},
		{
			def: models.ToolDefinition{
				Name:        ToolGetSystemMetrics,
				Description: "Get MiniPay system metrics: charges, refunds, webhook delivery and retries.",
				Parameters:  objectSchema(map[string]any{}),
			},
			call: func(ctx context.Context, _ json.RawMessage) string {
				return a.GetSystemMetrics(ctx)
			},
		},
		{
			def: models.ToolDefinition{
				Name:        ToolCheckBackendHealth,
				Description: "Check whether the MiniPay backend is healthy and operational.",
				Parameters:  objectSchema(map[string]any{}),
			},
			call: func(ctx context.Context, _ json.RawMessage) string {
				return a.CheckBackendHealth(ctx)
			},
		},
	}

	catalog := make(map[string]*tool, len(defs))
	for _, d := range defs {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(d.def.Parameters))
		if err != nil {
			// The schemas above are static; failing here is a programming error.
			panic(fmt.Sprintf("tools: invalid schema for %s: %v", d.def.Name, err))
		}
		catalog[d.def.Name] = &tool{def: d.def, schema: schema, call: d.call}
	}
	return catalog
}

// Definitions lists the tools in name order.
func (a *Adapter) Definitions() []models.ToolDefinition {
	defs := make([]models.ToolDefinition, 0, len(a.catalog))
	for _, t := range a.catalog {
		defs = append(defs, t.def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

func (a *Adapter) Has(name string) bool {
	_, ok := a.catalog[name]
	return ok
}

// Invoke validates args against the tool's schema and runs it. Empty or null
// args mean "no arguments".
func (a *Adapter) Invoke(ctx context.Context, name string, args json.RawMessage) string {
	t, ok := a.catalog[name]
	if !ok {
		return Failure(fmt.Errorf("unknown tool: %s", name))
	}

	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}

	result, err := t.schema.Validate(gojsonschema.NewBytesLoader(trimmed))
	if err != nil {
		return Failure(fmt.Errorf("invalid arguments for %s: %w", name, err))
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return Failure(fmt.Errorf("invalid arguments for %s: %s", name, strings.Join(msgs, "; ")))
	}

	return t.call(ctx, json.RawMessage(trimmed))
}
