package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexibleField can hold either a string, a number or a boolean.
// A field that was absent or null holds nothing.
type FlexibleField struct {
	value any
}

// UnmarshalJSON implements custom JSON unmarshaling for FlexibleField
func (f *FlexibleField) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.value = nil
		return nil
	}

	// Try to unmarshal as a number first
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		f.value = num
		return nil
	}

	// If that fails, try to unmarshal as a string
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		f.value = str
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		f.value = b
		return nil
	}

	return fmt.Errorf("cannot unmarshal %s into FlexibleField", data)
}

// Present reports whether the field carried a value
func (f FlexibleField) Present() bool {
	return f.value != nil
}

// IsGround reports whether the field holds the readsb "ground" marker
func (f FlexibleField) IsGround() bool {
	s, ok := f.value.(string)
	return ok && strings.EqualFold(strings.TrimSpace(s), "ground")
}

// Number returns the numeric value, or nil when the field is absent or not numeric.
// The "ground" marker reads as zero.
func (f FlexibleField) Number() *float64 {
	switch v := f.value.(type) {
	case float64:
		return &v
	case string:
		if f.IsGround() {
			zero := 0.0
			return &zero
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		return &n
	default:
		return nil
	}
}

// Float64 returns the value as a float64, zero when absent
func (f FlexibleField) Float64() float64 {
	if n := f.Number(); n != nil {
		return *n
	}
	if b, ok := f.value.(bool); ok && b {
		return 1
	}
	return 0
}

// String returns the value as a string
func (f FlexibleField) String() string {
	switch v := f.value.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}
