// Package battery samples the battery gauge of the board.
package battery

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Status is one battery sample.
type Status struct {
	// Percent is the charge level in 0-100%.
	Percent int `json:"percent"`
	// VoltageMv is the battery voltage in millivolts, 0 if unknown.
	VoltageMv int `json:"voltage_mv"`
}

// Low reports whether the voltage is known and below thresholdMv.
func (s Status) Low(thresholdMv int) bool {
	return s.VoltageMv > 0 && s.VoltageMv < thresholdMv
}

// Level quantizes Percent into steps of 0..steps, the granularity of the
// battery glyph.
func (s Status) Level(steps int) int {
	if steps <= 0 {
		return 0
	}
	p := s.Percent
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return (p*steps + 50) / 100
}

// Reader abstracts how battery information is obtained.
type Reader interface {
	Read(ctx context.Context) (Status, error)
}

// PiSugar-style gauge registers.
const (
	regVoltageHigh = 0x22
	regVoltageLow  = 0x23
	regPercent     = 0x2A
)

// DefaultAddr is the gauge's 7-bit I2C address.
const DefaultAddr = 0x57

// i2cReader talks to the gauge over I2C:
//   - 0x22 (high), 0x23 (low): battery voltage in millivolts
//   - 0x2A: battery percentage (0-100)
type i2cReader struct {
	busName string
	addr    uint16
}

// NewI2CReader returns a Reader for the gauge at addr on busName ("" for
// the default bus). The bus is opened on every Read.
func NewI2CReader(busName string, addr uint16) Reader {
	if addr == 0 {
		addr = DefaultAddr
	}
	return &i2cReader{busName: busName, addr: addr}
}

func (r *i2cReader) Read(_ context.Context) (Status, error) {
	if runtime.GOOS != "linux" {
		return Status{}, errors.New("battery: i2c reader unavailable on this platform")
	}
	if _, err := host.Init(); err != nil {
		return Status{}, fmt.Errorf("battery: periph host init failed: %w", err)
	}

	bus, err := i2creg.Open(r.busName)
	if err != nil {
		return Status{}, fmt.Errorf("battery: open i2c bus %q: %w", r.busName, err)
	}
	defer bus.Close()

	return readGauge(&i2c.Dev{Bus: bus, Addr: r.addr})
}

// readGauge reads the voltage and percentage registers from dev.
func readGauge(dev *i2c.Dev) (Status, error) {
	readReg := func(reg byte) (byte, error) {
		buf := []byte{0}
		if err := dev.Tx([]byte{reg}, buf); err != nil {
			return 0, fmt.Errorf("battery: read register 0x%02X: %w", reg, err)
		}
		return buf[0], nil
	}

	high, err := readReg(regVoltageHigh)
	if err != nil {
		return Status{}, err
	}
	low, err := readReg(regVoltageLow)
	if err != nil {
		return Status{}, err
	}
	pct, err := readReg(regPercent)
	if err != nil {
		return Status{}, err
	}
	if pct > 100 {
		pct = 100
	}
	return Status{
		Percent:   int(pct),
		VoltageMv: int(uint16(high)<<8 | uint16(low)),
	}, nil
}

// mockReader simulates a slowly draining cell: every Read drops one percent
// until floor is reached.
type mockReader struct {
	mu      sync.Mutex
	percent int
	floor   int
}

// NewMockReader returns a deterministic Reader starting at percent.
func NewMockReader(percent, floor int) Reader {
	return &mockReader{percent: percent, floor: floor}
}

func (m *mockReader) Read(_ context.Context) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Status{Percent: m.percent, VoltageMv: MillivoltsFor(m.percent)}
	if m.percent > m.floor {
		m.percent--
	}
	return s, nil
}

// MillivoltsFor maps a charge level onto a single Li-ion cell curve
// (0% = 2700mV, 100% = 4200mV), linearly.
func MillivoltsFor(percent int) int {
	return 2700 + percent*15
}

// DefaultReader probes the I2C gauge once and falls back to a mock reader
// when it is not reachable.
func DefaultReader(ctx context.Context, busName string, addr uint16) (Reader, bool) {
	if runtime.GOOS != "linux" {
		return NewMockReader(100, 5), false
	}
	r := NewI2CReader(busName, addr)
	if _, err := r.Read(ctx); err != nil {
		return NewMockReader(100, 5), false
	}
	return r, true
}
