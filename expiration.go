package sharetoken

import (
	"fmt"
	"strings"
	"time"
)

// ExpirationChoice is the holder's choice of how long a shared token stays valid.
type ExpirationChoice int

const (
	Never ExpirationChoice = iota
	OneHour
	OneDay
	OneWeek
)

var expirationOffsets = map[ExpirationChoice]time.Duration{
	OneHour: 3600 * time.Second,
	OneDay:  86400 * time.Second,
	OneWeek: 604800 * time.Second,
}

var expirationNames = map[ExpirationChoice]string{
	Never:   "never",
	OneHour: "1h",
	OneDay:  "1d",
	OneWeek: "1w",
}

// Valid reports whether c is one of the defined choices.
func (c ExpirationChoice) Valid() bool {
	_, ok := expirationNames[c]
	return ok
}

// Duration returns the validity window, or zero for Never.
func (c ExpirationChoice) Duration() time.Duration {
	return expirationOffsets[c]
}

func (c ExpirationChoice) String() string {
	if name, ok := expirationNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ExpirationChoice(%d)", int(c))
}

// Label returns the text the wallet shows for the choice.
func (c ExpirationChoice) Label() string {
	switch c {
	case OneHour:
		return "1 Hour"
	case OneDay:
		return "1 Day"
	case OneWeek:
		return "1 Week"
	default:
		return "No Expiration"
	}
}

// ParseExpirationChoice accepts the short names (never, 1h, 1d, 1w) and the
// wallet labels (No Expiration, 1 Hour, 1 Day, 1 Week), case-insensitively.
func ParseExpirationChoice(s string) (ExpirationChoice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "never", "none", "no expiration":
		return Never, nil
	case "1h", "hour", "1 hour":
		return OneHour, nil
	case "1d", "day", "1 day":
		return OneDay, nil
	case "1w", "week", "1 week":
		return OneWeek, nil
	}
	return Never, fmt.Errorf("unknown expiration choice %q", s)
}

// UnmarshalText lets choices be read from flags and config files.
func (c *ExpirationChoice) UnmarshalText(text []byte) error {
	parsed, err := ParseExpirationChoice(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (c ExpirationChoice) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid expiration choice %d", int(c))
	}
	return []byte(c.String()), nil
}

// ResolveExpiration maps a choice to an absolute expiry. The boolean is false
// when the token never expires.
func ResolveExpiration(choice ExpirationChoice, now time.Time) (time.Time, bool) {
	offset, ok := expirationOffsets[choice]
	if !ok {
		return time.Time{}, false
	}
	return now.Add(offset), true
}
