package processor

import "encoding/json"

// The PLC bridge omits fields freely; a missing counter reads as 0 and
// missing metadata as absent, never as an error.

// IntField extracts an integer field from a parsed JSON document, returning
// 0 when the field is missing or not numeric.
func IntField(msg map[string]interface{}, key string) int {
	v, ok := msg[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0
		}
		return int(i)
	default:
		return 0
	}
}

// HasField reports whether the document carries the key at all, which is how
// the Calidad processor distinguishes payload generations.
func HasField(msg map[string]interface{}, key string) bool {
	_, ok := msg[key]
	return ok
}

// StringField extracts a string field, returning "" when missing.
func StringField(msg map[string]interface{}, key string) string {
	if s, ok := msg[key].(string); ok {
		return s
	}
	return ""
}
