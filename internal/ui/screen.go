// Package ui is the screen and menu state machine. Button events move it
// between screens; a redraw happens only when something changed.
package ui

import (
	"fmt"
	"time"

	"openeink/internal/epd"
)

// Screen is the active screen.
type Screen int

const (
	Welcome Screen = iota
	MainMenu
	Settings
	About
	Error
	Sleep
)

var screenNames = [...]string{"welcome", "main_menu", "settings", "about", "error", "sleep"}

func (s Screen) String() string {
	if s < 0 || int(s) >= len(screenNames) {
		return fmt.Sprintf("screen(%d)", int(s))
	}
	return screenNames[s]
}

// Action is what a menu entry does when selected.
type Action int

const (
	ActionSettings Action = iota
	ActionAbout
	ActionSleep
)

func (a Action) String() string {
	switch a {
	case ActionSettings:
		return "settings"
	case ActionAbout:
		return "about"
	case ActionSleep:
		return "sleep"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// MenuItem is one main menu entry.
type MenuItem struct {
	Label  string
	Action Action
}

// DefaultMenu is the main menu.
var DefaultMenu = []MenuItem{
	{Label: "Settings", Action: ActionSettings},
	{Label: "About", Action: ActionAbout},
	{Label: "Sleep", Action: ActionSleep},
}

// Button ids on the main menu.
const (
	ButtonUp     = 1
	ButtonDown   = 2
	ButtonSelect = 3
)

// Info is the runtime information shown on the Welcome, Settings and About
// screens.
type Info struct {
	Version             string
	Build               string
	FullRefreshInterval int
	SleepAfter          time.Duration
	AboutURL            string
}

const (
	DefaultVersion = "1.0.0"

	// MaxStatusLen bounds the status text in bytes.
	MaxStatusLen = 63

	defaultStatus = "Ready"
	sleepStatus   = "Entering sleep mode..."
	lowStatus     = "Low battery"
	unknownError  = "Unknown Error"
	batterySteps  = 4
	defaultLowMv  = 2800
)

// Panel is what the machine draws into and presents with. *epd.Driver
// implements it.
type Panel interface {
	Framebuffer() *epd.Framebuffer
	Refresh(mode epd.RefreshMode) error
	Sleep() error
	Wakeup() error
}
