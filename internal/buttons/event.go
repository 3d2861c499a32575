// Package buttons turns raw active-low GPIO inputs into discrete button
// events.
package buttons

import (
	"fmt"
	"strings"
)

// Kind is the event kind.
type Kind int

const (
	Press Kind = iota
	Release
	LongPress
)

func (k Kind) String() string {
	switch k {
	case Press:
		return "press"
	case Release:
		return "release"
	case LongPress:
		return "long_press"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind accepts "press", "release" and "long_press" (or "long-press").
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "press", "":
		return Press, nil
	case "release":
		return Release, nil
	case "long_press", "long-press", "longpress":
		return LongPress, nil
	}
	return 0, fmt.Errorf("buttons: unknown event kind %q", s)
}

// Event is one discrete input. Button ids start at 1.
type Event struct {
	Button int
	Kind   Kind
}

func (e Event) String() string {
	return fmt.Sprintf("button%d/%s", e.Button, e.Kind)
}
