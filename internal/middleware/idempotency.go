package middleware

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/akylbek/payment-system/agent-tools/internal/minipay"
	"github.com/akylbek/payment-system/agent-tools/internal/tools"
)

// IdempotencyMiddleware lets HTTP callers of create_charge pass their key as
// an Idempotency-Key header. The header fills in idempotency_key when the
// JSON arguments do not carry one; an explicit argument always wins.
func IdempotencyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(minipay.IdempotencyKeyHeader)
		if key == "" || c.Param("name") != tools.ToolCreateCharge {
			c.Next()
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, tools.MaxArgsBytes+1))
		if err != nil || len(body) > tools.MaxArgsBytes {
			// Hand the body back untouched; the handler rejects it.
			c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), c.Request.Body))
			c.Next()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(withIdempotencyKey(body, key)))
		c.Set("idempotency_key", key)
		c.Next()
	}
}

// withIdempotencyKey returns body unchanged unless it is a JSON object (or
// empty) without an idempotency_key member.
func withIdempotencyKey(body []byte, key string) []byte {
	args := map[string]json.RawMessage{}
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &args); err != nil {
			return body
		}
	}
	if _, ok := args["idempotency_key"]; ok {
		return body
	}

	encoded, err := json.Marshal(key)
	if err != nil {
		return body
	}
	args["idempotency_key"] = encoded

	merged, err := json.Marshal(args)
	if err != nil {
		return body
	}
	return merged
}
