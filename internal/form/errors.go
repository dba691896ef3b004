package form

import (
	"errors"
	"fmt"
)

// ErrConfig is matched by every configuration reference error.
var ErrConfig = errors.New("configuration error")

// ErrInvariant signals broken internal bookkeeping rather than bad input.
var ErrInvariant = errors.New("internal invariant violated")

// ConfigError reports a reference to something the configuration does not
// define, or that the record type hierarchy cannot reach.
type ConfigError struct {
	Kind   string // "state", "condition", "record type", "value type"
	ID     string
	Detail string
}

func (e *ConfigError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %q: %s", e.Kind, e.ID, e.Detail)
	}
	return fmt.Sprintf("missing %s %q", e.Kind, e.ID)
}

// Is makes errors.Is(err, ErrConfig) true for any ConfigError.
func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// DeadEndError is returned when no transition of the current state matches a
// fragment.
type DeadEndError struct {
	Page    int
	Preview string
	State   string
}

func (e *DeadEndError) Error() string {
	return fmt.Sprintf("page %d at %q - no valid transition from %s", e.Page, e.Preview, e.State)
}

const previewLength = 20

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLength {
		return s
	}
	return string(r[:previewLength]) + "..."
}
