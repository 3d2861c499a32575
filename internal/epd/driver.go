package epd

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"

	appLog "openeink/internal/log"
)

// Opts tunes the refresh protocol. The zero value of each field selects the
// default.
type Opts struct {
	// FullRefreshInterval forces every Nth refresh to the full waveform.
	// Default 10.
	FullRefreshInterval int

	// ResetHold is the duration of each of the three reset pulse stages.
	// Default 200ms.
	ResetHold time.Duration

	// BusyPoll is the busy line polling interval. Default 10ms.
	BusyPoll time.Duration

	// BusyPolls bounds the busy wait. Default 500 (about 5s at 10ms).
	BusyPolls int

	// Delay replaces time.Sleep, mainly for tests.
	Delay func(time.Duration)
}

const (
	DefaultFullRefreshInterval = 10
	DefaultResetHold           = 200 * time.Millisecond
	DefaultBusyPoll            = 10 * time.Millisecond
	DefaultBusyPolls           = 500
)

func (o *Opts) withDefaults() Opts {
	out := Opts{}
	if o != nil {
		out = *o
	}
	if out.FullRefreshInterval <= 0 {
		out.FullRefreshInterval = DefaultFullRefreshInterval
	}
	if out.ResetHold <= 0 {
		out.ResetHold = DefaultResetHold
	}
	if out.BusyPoll <= 0 {
		out.BusyPoll = DefaultBusyPoll
	}
	if out.BusyPolls <= 0 {
		out.BusyPolls = DefaultBusyPolls
	}
	return out
}

// Driver is the refresh protocol driver. It owns the Framebuffer and moves
// between Uninitialized, Ready and Sleeping.
//
// A Driver is not safe for concurrent use; all calls block the caller for
// the duration of the bus traffic and busy waits.
type Driver struct {
	dev  *dev
	opts Opts
	fb   *Framebuffer

	state     State
	refreshes uint32
	lastMode  RefreshMode
}

// New returns an Uninitialized driver for a panel on bus c. Nothing is sent
// until Init.
func New(c conn.Conn, dc, rst gpio.PinOut, busy gpio.PinIn, opts *Opts) (*Driver, error) {
	if c == nil || dc == nil || rst == nil || busy == nil {
		return nil, fmt.Errorf("%w: bus and dc/rst/busy pins are required", ErrInvalidParameter)
	}
	o := opts.withDefaults()
	return &Driver{
		dev:  newDev(c, dc, rst, busy, o.Delay),
		opts: o,
		fb:   NewFramebuffer(),
	}, nil
}

// Framebuffer returns the driver-owned framebuffer.
func (d *Driver) Framebuffer() *Framebuffer { return d.fb }

// State returns the current lifecycle state.
func (d *Driver) State() State { return d.state }

// Refreshes returns the number of Refresh calls accepted since the last Init.
func (d *Driver) Refreshes() uint32 { return d.refreshes }

// LastMode returns the waveform used by the most recent refresh.
func (d *Driver) LastMode() RefreshMode { return d.lastMode }

// Init resets and configures the controller, loads the full waveform and
// clears the framebuffer. The refresh counter restarts at zero.
//
// Calling Init on an initialized driver (Ready or Sleeping) is a no-op.
// A failed Init leaves the driver Uninitialized and may be retried.
func (d *Driver) Init() error {
	if d.state != Uninitialized {
		return nil
	}
	if err := d.init(); err != nil {
		return fmt.Errorf("%w: %w", ErrInitFailed, err)
	}
	d.fb.Clear()
	d.refreshes = 0
	d.lastMode = Full
	d.state = Ready
	appLog.Info("epd initialized", "width", Width, "height", Height)
	return nil
}

func (d *Driver) init() error {
	if err := d.dev.setup(); err != nil {
		return err
	}
	if err := d.resetSequence(); err != nil {
		return err
	}

	steps := []struct {
		cmd  byte
		data []byte
	}{
		{cmdDriverOutputControl, []byte{byte((Height - 1) & 0xFF), byte(((Height - 1) >> 8) & 0xFF), 0x00}},
		{cmdBoosterSoftStartControl, []byte{boosterSoftStartA, boosterSoftStartB, boosterSoftStartC}},
		{cmdWriteVCOMRegister, []byte{vcomValue}},
		{cmdSetDummyLinePeriod, []byte{dummyLinePeriod}},
		{cmdSetGateTime, []byte{gateTime}},
		{cmdDataEntryModeSetting, []byte{dataEntryXYInc}},
	}
	for _, s := range steps {
		if err := d.dev.command(s.cmd, s.data...); err != nil {
			return err
		}
	}
	return d.setLUT(&lutFullUpdate)
}

// resetSequence is the hardware reset pulse followed by a software reset,
// each waiting for the controller.
func (d *Driver) resetSequence() error {
	if err := d.dev.reset(d.opts.ResetHold); err != nil {
		return err
	}
	d.waitBusy("reset")
	if err := d.dev.command(cmdSWReset); err != nil {
		return err
	}
	d.waitBusy("sw reset")
	return nil
}

// Refresh streams the framebuffer to the panel RAM and triggers a visible
// update. The full waveform is used when mode is Full or when this call is a
// multiple of the configured full-refresh interval; otherwise the partial
// waveform is used.
//
// A busy timeout is logged and the call still succeeds; the panel content
// is then undefined.
func (d *Driver) Refresh(mode RefreshMode) error {
	if d.state != Ready {
		return fmt.Errorf("%w: refresh while %s", ErrNotInitialized, d.state)
	}
	d.refreshes++
	n := d.refreshes

	if err := d.setMemoryArea(0, 0, Width-1, Height-1); err != nil {
		return err
	}
	if err := d.setMemoryPointer(0, 0); err != nil {
		return err
	}
	if err := d.dev.command(cmdWriteRAM, d.fb.Bytes()...); err != nil {
		return err
	}

	effective := Partial
	lut := &lutPartialUpdate
	if mode == Full || n%uint32(d.opts.FullRefreshInterval) == 0 {
		effective = Full
		lut = &lutFullUpdate
	}
	if err := d.setLUT(lut); err != nil {
		return err
	}
	d.lastMode = effective

	if err := d.dev.command(cmdDisplayUpdateControl2, updateSequence); err != nil {
		return err
	}
	if err := d.dev.command(cmdMasterActivation); err != nil {
		return err
	}
	if err := d.dev.command(cmdTerminateFrameReadWrite); err != nil {
		return err
	}
	d.waitBusy("refresh")

	appLog.Debug("epd refreshed", "requested", mode, "mode", effective, "counter", n)
	return nil
}

// Sleep puts the controller into deep sleep. Only a Ready driver can sleep;
// sleeping again is a no-op.
func (d *Driver) Sleep() error {
	switch d.state {
	case Sleeping:
		return nil
	case Uninitialized:
		return fmt.Errorf("%w: sleep", ErrNotInitialized)
	}
	if err := d.dev.command(cmdDeepSleepMode, deepSleepEnter); err != nil {
		return err
	}
	d.state = Sleeping
	appLog.Info("epd entered deep sleep")
	return nil
}

// Wakeup leaves deep sleep by repeating the hardware and software reset.
// Waveform tables are not reloaded: the first refresh after Wakeup should
// be Full.
func (d *Driver) Wakeup() error {
	switch d.state {
	case Ready:
		return nil
	case Uninitialized:
		return fmt.Errorf("%w: wakeup", ErrNotInitialized)
	}
	if err := d.resetSequence(); err != nil {
		return fmt.Errorf("%w: %w", ErrInitFailed, err)
	}
	d.state = Ready
	appLog.Info("epd woke up")
	return nil
}

// Halt puts an initialized panel to sleep so it keeps its image without
// power. It is meant for shutdown paths and ignores an uninitialized driver.
func (d *Driver) Halt() error {
	if err := d.Sleep(); err != nil && !errors.Is(err, ErrNotInitialized) {
		return err
	}
	return nil
}

func (d *Driver) String() string {
	return fmt.Sprintf("epd.Driver{%dx%d, %s}", Width, Height, d.state)
}

func (d *Driver) waitBusy(stage string) {
	if err := d.dev.waitBusy(d.opts.BusyPoll, d.opts.BusyPolls); err != nil {
		appLog.Warn("epd busy wait timed out, continuing",
			"stage", stage,
			"polls", d.opts.BusyPolls,
			"interval", d.opts.BusyPoll,
		)
	}
}

func (d *Driver) setLUT(lut *LUT) error {
	return d.dev.command(cmdWriteLUTRegister, lut[:]...)
}

// setMemoryArea sets the RAM window. X is addressed in bytes.
func (d *Driver) setMemoryArea(x0, y0, x1, y1 int) error {
	if err := d.dev.command(cmdSetRAMXAddressStartEnd,
		byte((x0>>3)&0xFF),
		byte((x1>>3)&0xFF),
	); err != nil {
		return err
	}
	return d.dev.command(cmdSetRAMYAddressStartEnd,
		byte(y0&0xFF), byte((y0>>8)&0xFF),
		byte(y1&0xFF), byte((y1>>8)&0xFF),
	)
}

// setMemoryPointer moves the RAM write pointer.
func (d *Driver) setMemoryPointer(x, y int) error {
	if err := d.dev.command(cmdSetRAMXAddressCounter, byte((x>>3)&0xFF)); err != nil {
		return err
	}
	return d.dev.command(cmdSetRAMYAddressCounter, byte(y&0xFF), byte((y>>8)&0xFF))
}
