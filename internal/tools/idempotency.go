package tools

import (
	"bytes"
	"encoding/hex"
	"encoding/json"

	"github.com/google/uuid"
)

const agentKeyPrefix = "agent_"

// NewIdempotencyKey returns "agent_" followed by 12 hex characters taken from
// a fresh random UUID. The leading 48 bits of a v4 UUID are all random.
func NewIdempotencyKey() string {
	id := uuid.New()
	return agentKeyPrefix + hex.EncodeToString(id[:6])
}

// PrepareCharge pins the idempotency key of a create_charge call before it
// runs, so callers know which key the backend will see whether or not the
// charge succeeds. A missing, null or empty idempotency_key is replaced with
// a generated one. Arguments that are not a JSON object, or whose key is not
// a string, are returned unchanged with an empty key and left for Invoke to
// reject.
func (a *Adapter) PrepareCharge(args json.RawMessage) (json.RawMessage, string) {
	fields := map[string]json.RawMessage{}
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return args, ""
		}
	}

	if raw, ok := fields["idempotency_key"]; ok {
		var key string
		if err := json.Unmarshal(raw, &key); err != nil {
			return args, ""
		}
		if key != "" {
			return args, key
		}
	}

	key := a.newKey()
	encoded, err := json.Marshal(key)
	if err != nil {
		return args, ""
	}
	fields["idempotency_key"] = encoded

	merged, err := json.Marshal(fields)
	if err != nil {
		return args, ""
	}
	return merged, key
}
