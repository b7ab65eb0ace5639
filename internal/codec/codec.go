package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// nullMarker is the reserved payload stored for a cached nil value. It is
// an ordinary JSON object so it round-trips through any JSON-capable
// backing column, but no user value deserializes into it by accident
// because Decode checks for it before unmarshalling.
const nullMarker = `{"marker":"NULL_MARKER"}`

// NullValue is the sentinel type returned for cached nils.
type NullValue struct{}

// Null is the singleton sentinel distinguishing "a nil was cached" from
// "no such entry". Callers compare against it directly.
var Null = &NullValue{}

func (*NullValue) String() string {
	return "<cached nil>"
}

// Encode serializes a value to its stored payload. A nil value becomes
// the reserved null-marker payload; callers that do not allow nil values
// must reject them before calling Encode.
func Encode(value any) ([]byte, error) {
	if value == nil || value == Null {
		return []byte(nullMarker), nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	return payload, nil
}

// IsNullPayload reports whether a stored payload is the null marker.
func IsNullPayload(payload []byte) bool {
	if bytes.Equal(payload, []byte(nullMarker)) {
		return true
	}
	// Tolerate formatting differences from other writers of the table.
	var m map[string]string
	if err := json.Unmarshal(payload, &m); err != nil {
		return false
	}
	return len(m) == 1 && m["marker"] == "NULL_MARKER"
}

// Decode unmarshals a stored payload into out. Callers must check
// IsNullPayload first; decoding the marker into a user type is an error
// like any other shape mismatch.
func Decode(payload []byte, out any) error {
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	return nil
}
