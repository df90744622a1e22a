package domain

import (
	"encoding/json"
	"time"
)

// Publication is one outbound MQTT record produced by a processor.
// All publications go out at QoS 1, non-retained.
type Publication struct {
	Topic   string
	Payload []byte
}

// MakePublication serializes v and pairs it with its topic. Serialization of
// the payload structs used by the processors cannot fail; a marshal error
// here indicates a programming bug and yields an empty payload.
func MakePublication(topic string, v interface{}) Publication {
	b, err := json.Marshal(v)
	if err != nil {
		b = []byte("{}")
	}
	return Publication{Topic: topic, Payload: b}
}

// Timestamp renders t as an ISO-8601 UTC instant with millisecond precision,
// the `timestamp_device` wire format.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
