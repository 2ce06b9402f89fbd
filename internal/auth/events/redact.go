package events

import (
	"encoding/json"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
)

// Mask replaces redacted values.
const Mask = "********"

var redactedKeys = map[string]struct{}{
	"password": {},
}

// Redact returns a copy of e whose data and snapshot have every "password"
// field masked, at any depth. e is not modified.
func Redact(e domain.Event) domain.Event {
	e.Data = redactMap(e.Data)
	e.Snapshot = redactSnapshot(e.Snapshot)
	return e
}

// redactSnapshot converts a DTO into its JSON shape so its fields can be
// masked like data. A snapshot that cannot be encoded is dropped.
func redactSnapshot(v any) any {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil
	}
	return redactValue(generic)
}

func redactMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if _, ok := redactedKeys[k]; ok {
			out[k] = Mask
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return redactMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = redactValue(item)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, item := range t {
			out[i] = redactMap(item)
		}
		return out
	default:
		return v
	}
}
