// Package app runs the single-threaded main loop. Other goroutines never
// touch the screen state; they submit a Command. Each iteration applies
// what is pending and redraws at most once, then publishes a Snapshot.
package app

import (
	"errors"
	"fmt"

	"openeink/internal/battery"
	"openeink/internal/buttons"
)

// CommandKind selects what a Command does.
type CommandKind int

const (
	CmdButton CommandKind = iota
	CmdStatus
	CmdBattery
	CmdFullRefresh
	CmdSleep
)

func (k CommandKind) String() string {
	switch k {
	case CmdButton:
		return "button"
	case CmdStatus:
		return "status"
	case CmdBattery:
		return "battery"
	case CmdFullRefresh:
		return "full_refresh"
	case CmdSleep:
		return "sleep"
	default:
		return fmt.Sprintf("command(%d)", int(k))
	}
}

// Command is one request to the loop. Only the field matching Kind is used.
type Command struct {
	Kind    CommandKind
	Event   buttons.Event
	Text    string
	Battery battery.Status
}

// ErrInboxFull is returned by Submit when the loop is not keeping up.
var ErrInboxFull = errors.New("app: command inbox full")

// ErrTooManyFailures ends Run after consecutive failed cycles.
var ErrTooManyFailures = errors.New("app: too many consecutive failures")
