package epd

import (
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// simBus accepts every transfer and reads back zeros.
type simBus struct{}

func (simBus) String() string { return "epd-sim" }

func (simBus) Duplex() conn.Duplex { return conn.Half }

func (simBus) Halt() error { return nil }

func (simBus) Tx(w, r []byte) error {
	clear(r)
	return nil
}

// NewSimulated returns a driver wired to an in-memory bus whose busy line
// never asserts. It lets the whole stack run without panel hardware; the
// framebuffer stays the source of truth for previews.
func NewSimulated(opts *Opts) *Driver {
	d, _ := New(simBus{},
		&gpiotest.Pin{N: "SIM_DC"},
		&gpiotest.Pin{N: "SIM_RST", L: gpio.High},
		&gpiotest.Pin{N: "SIM_BUSY", L: gpio.Low},
		opts,
	)
	return d
}
