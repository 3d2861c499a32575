package ui

import (
	"unicode/utf8"

	"openeink/internal/battery"
	"openeink/internal/buttons"
	"openeink/internal/epd"
	"openeink/internal/gfx"
	appLog "openeink/internal/log"
)

// Options configures a Machine. Zero values select defaults.
type Options struct {
	Menu         []MenuItem
	Info         Info
	LowBatteryMv int
	// Glyph replaces the placeholder text glyphs.
	Glyph gfx.Glyph
}

// Machine owns the screen state, the menu cursor, the status text and the
// dirty flag. It is not safe for concurrent use: the main loop is its only
// caller.
type Machine struct {
	panel   Panel
	painter *gfx.Painter
	menu    []MenuItem
	info    Info
	lowMv   int

	screen    Screen
	cursor    int
	dirty     bool
	status    string
	forceFull bool

	battery      battery.Status
	hasBattery   bool
	batteryLevel int
	batteryLow   bool
}

// New returns a machine on the Welcome screen with a redraw pending.
func New(panel Panel, opts Options) *Machine {
	menu := opts.Menu
	if len(menu) == 0 {
		menu = DefaultMenu
	}
	info := opts.Info
	if info.Version == "" {
		info.Version = DefaultVersion
	}
	lowMv := opts.LowBatteryMv
	if lowMv <= 0 {
		lowMv = defaultLowMv
	}
	p := gfx.NewPainter(panel.Framebuffer())
	if opts.Glyph != nil {
		p.Glyph = opts.Glyph
	}
	return &Machine{
		panel:   panel,
		painter: p,
		menu:    append([]MenuItem(nil), menu...),
		info:    info,
		lowMv:   lowMv,
		screen:  Welcome,
		dirty:   true,
		status:  defaultStatus,
	}
}

func (m *Machine) Screen() Screen { return m.screen }
func (m *Machine) Cursor() int    { return m.cursor }
func (m *Machine) Dirty() bool    { return m.dirty }
func (m *Machine) Status() string { return m.status }
func (m *Machine) Menu() []MenuItem {
	return append([]MenuItem(nil), m.menu...)
}

// Battery returns the last battery sample and whether there was one.
func (m *Machine) Battery() (battery.Status, bool) { return m.battery, m.hasBattery }

// HandleButton applies one button event. Only presses are acted upon. The
// Sleep screen ignores buttons; use Wake.
//
// The returned error comes from the Sleep action, which presents and
// powers down the panel synchronously.
func (m *Machine) HandleButton(ev buttons.Event) error {
	if ev.Kind != buttons.Press {
		return nil
	}
	switch m.screen {
	case Welcome, Settings, About, Error:
		m.showMainMenu()
	case MainMenu:
		switch ev.Button {
		case ButtonUp:
			if m.cursor > 0 {
				m.cursor--
				m.dirty = true
			}
		case ButtonDown:
			if m.cursor < len(m.menu)-1 {
				m.cursor++
				m.dirty = true
			}
		case ButtonSelect:
			return m.run(m.menu[m.cursor].Action)
		}
	}
	return nil
}

func (m *Machine) run(a Action) error {
	appLog.Debug("menu action", "action", a)
	switch a {
	case ActionSettings:
		m.setScreen(Settings)
	case ActionAbout:
		m.setScreen(About)
	case ActionSleep:
		return m.EnterSleep()
	}
	return nil
}

func (m *Machine) showMainMenu() {
	m.setScreen(MainMenu)
	m.cursor = 0
}

func (m *Machine) setScreen(s Screen) {
	if m.screen != s {
		appLog.Debug("screen transition", "from", m.screen, "to", s)
	}
	m.screen = s
	m.dirty = true
}

// Process redraws and presents the current screen if it is dirty. A failed
// refresh leaves the machine dirty so the next call retries. Nothing is
// drawn while the panel sleeps.
func (m *Machine) Process() error {
	if !m.dirty || m.screen == Sleep {
		return nil
	}
	return m.present()
}

func (m *Machine) present() error {
	m.render()
	mode := epd.Partial
	if m.forceFull {
		mode = epd.Full
	}
	if err := m.panel.Refresh(mode); err != nil {
		return err
	}
	m.dirty = false
	m.forceFull = false
	return nil
}

// SetStatus replaces the status text, truncated to MaxStatusLen bytes, and
// marks the screen dirty.
func (m *Machine) SetStatus(text string) {
	m.status = truncate(text, MaxStatusLen)
	m.dirty = true
}

// ShowError switches to the Error screen with msg as its message.
func (m *Machine) ShowError(msg string) {
	if msg == "" {
		msg = unknownError
	}
	m.status = truncate(msg, MaxStatusLen)
	m.setScreen(Error)
}

// ShowWelcome switches back to the Welcome screen.
func (m *Machine) ShowWelcome() {
	m.setScreen(Welcome)
}

// ForceRefresh schedules a redraw presented with the full waveform.
func (m *Machine) ForceRefresh() {
	m.dirty = true
	m.forceFull = true
}

// EnterSleep shows the sleep notice on the main menu's status bar,
// presents it immediately and puts the panel into deep sleep. It is a no-op
// when already asleep.
func (m *Machine) EnterSleep() error {
	if m.screen == Sleep {
		return nil
	}
	if m.screen != MainMenu {
		m.setScreen(MainMenu)
	}
	m.SetStatus(sleepStatus)
	if err := m.present(); err != nil {
		return err
	}
	if err := m.panel.Sleep(); err != nil {
		return err
	}
	m.setScreen(Sleep)
	m.dirty = false
	return nil
}

// Wake leaves the Sleep screen: the panel is woken, the main menu is shown
// and the next refresh uses the full waveform.
func (m *Machine) Wake() error {
	if m.screen != Sleep {
		return nil
	}
	if err := m.panel.Wakeup(); err != nil {
		return err
	}
	m.status = defaultStatus
	if m.batteryLow {
		m.status = lowStatus
	}
	m.showMainMenu()
	m.forceFull = true
	return nil
}

// SetBattery records a battery sample. The screen is marked dirty only
// when the glyph level or the low-battery state changes.
func (m *Machine) SetBattery(s battery.Status) {
	level := s.Level(batterySteps)
	low := s.Low(m.lowMv)
	changed := !m.hasBattery || level != m.batteryLevel || low != m.batteryLow

	if low && !m.batteryLow {
		m.status = lowStatus
	}
	if !low && m.batteryLow && m.status == lowStatus {
		m.status = defaultStatus
	}

	m.battery = s
	m.hasBattery = true
	m.batteryLevel = level
	m.batteryLow = low
	if changed {
		m.dirty = true
	}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
