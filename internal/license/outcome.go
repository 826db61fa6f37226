package license

import (
	"fmt"
	"strings"
)

// Origin tells where an Outcome came from.
type Origin int

const (
	// OriginUnavailable means neither the authority nor the cache could
	// answer. It is the zero value so an empty Outcome fails closed.
	OriginUnavailable Origin = iota
	// OriginOnline means the authority answered this call.
	OriginOnline
	// OriginOffline means a verified cached answer was used.
	OriginOffline
)

func (o Origin) String() string {
	switch o {
	case OriginOnline:
		return "online"
	case OriginOffline:
		return "offline"
	default:
		return "unavailable"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Origin) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Origin) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "online":
		*o = OriginOnline
	case "offline":
		*o = OriginOffline
	case "unavailable":
		*o = OriginUnavailable
	default:
		return fmt.Errorf("unknown origin %q", text)
	}
	return nil
}

// Outcome is the result of one validation.
type Outcome struct {
	Valid     bool   `json:"valid"`
	Code      string `json:"code,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Origin    Origin `json:"origin"`
}

// Unavailable is the fail-closed outcome.
func Unavailable() Outcome {
	return Outcome{Origin: OriginUnavailable}
}

// IsOnline reports whether the authority produced the outcome.
func (o Outcome) IsOnline() bool {
	return o.Origin == OriginOnline
}
