package epd

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
)

// defaultMaxTx is used when the bus does not report conn.Limits. spidev
// defaults to a 4096 byte transfer buffer.
const defaultMaxTx = 4096

// dev is the low-level layer: the byte bus plus the reset, data/command and
// busy lines. Every interaction is a command byte (DC low) followed by zero
// or more data bytes (DC high).
type dev struct {
	c    conn.Conn
	dc   gpio.PinOut
	rst  gpio.PinOut
	busy gpio.PinIn

	maxTx int
	delay func(time.Duration)
}

func newDev(c conn.Conn, dc, rst gpio.PinOut, busy gpio.PinIn, delay func(time.Duration)) *dev {
	maxTx := defaultMaxTx
	if l, ok := c.(conn.Limits); ok && l.MaxTxSize() > 0 {
		maxTx = l.MaxTxSize()
	}
	if delay == nil {
		delay = time.Sleep
	}
	return &dev{c: c, dc: dc, rst: rst, busy: busy, maxTx: maxTx, delay: delay}
}

// setup configures the pins: DC and reset as outputs, busy as a floating
// input polled without edge detection.
func (d *dev) setup() error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return fmt.Errorf("epd: dc %s: %w", d.dc, err)
	}
	if err := d.rst.Out(gpio.High); err != nil {
		return fmt.Errorf("epd: rst %s: %w", d.rst, err)
	}
	if err := d.busy.In(gpio.Float, gpio.NoEdge); err != nil {
		return fmt.Errorf("epd: busy %s: %w", d.busy, err)
	}
	return nil
}

// reset pulses the active-low reset line: assert, hold, deassert, hold,
// reassert, hold.
func (d *dev) reset(hold time.Duration) error {
	for _, l := range []gpio.Level{gpio.High, gpio.Low, gpio.High} {
		if err := d.rst.Out(l); err != nil {
			return fmt.Errorf("epd: reset: %w", err)
		}
		d.delay(hold)
	}
	return nil
}

func (d *dev) sendCommand(cmd byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return err
	}
	return d.c.Tx([]byte{cmd}, nil)
}

// sendData streams data with DC high, split into bus-sized chunks.
func (d *dev) sendData(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := d.dc.Out(gpio.High); err != nil {
		return err
	}
	for len(data) > 0 {
		n := len(data)
		if n > d.maxTx {
			n = d.maxTx
		}
		if err := d.c.Tx(data[:n], nil); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// command sends cmd followed by its payload.
func (d *dev) command(cmd byte, data ...byte) error {
	if err := d.sendCommand(cmd); err != nil {
		return fmt.Errorf("epd: command 0x%02X: %w", cmd, err)
	}
	if err := d.sendData(data); err != nil {
		return fmt.Errorf("epd: data for 0x%02X: %w", cmd, err)
	}
	return nil
}

// waitBusy polls the busy line (high while the controller works) every
// interval, at most polls times. It returns ErrHardwareTimeout when the
// line never drops.
func (d *dev) waitBusy(interval time.Duration, polls int) error {
	for n := 0; d.busy.Read() == gpio.High; n++ {
		if n >= polls {
			return ErrHardwareTimeout
		}
		d.delay(interval)
	}
	return nil
}
