package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// seconds is the document-store timestamp object. Both the client SDK
// ("seconds") and the admin SDK ("_seconds") spellings show up on the wire.
type seconds struct {
	Seconds      *int64 `json:"seconds"`
	Nanoseconds  int64  `json:"nanoseconds"`
	USeconds     *int64 `json:"_seconds"`
	UNanoseconds int64  `json:"_nanoseconds"`
}

// ParseTimestamp decodes a createdAt value. It accepts an RFC 3339 string,
// epoch milliseconds, and a {seconds, nanoseconds} object. null and a missing
// value decode to the zero time.
func ParseTimestamp(data json.RawMessage) (time.Time, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return time.Time{}, nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return time.Time{}, err
		}
		if s == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
		}
		return t, nil
	case '{':
		var obj seconds
		if err := json.Unmarshal(data, &obj); err != nil {
			return time.Time{}, fmt.Errorf("timestamp object: %w", err)
		}
		switch {
		case obj.Seconds != nil:
			return time.Unix(*obj.Seconds, obj.Nanoseconds).UTC(), nil
		case obj.USeconds != nil:
			return time.Unix(*obj.USeconds, obj.UNanoseconds).UTC(), nil
		}
		return time.Time{}, fmt.Errorf("timestamp object %s has no seconds", data)
	default:
		var ms float64
		if err := json.Unmarshal(data, &ms); err != nil {
			return time.Time{}, fmt.Errorf("timestamp %s: %w", data, err)
		}
		return time.UnixMilli(int64(ms)).UTC(), nil
	}
}
