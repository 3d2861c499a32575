package epd

import (
	"fmt"
	"io"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// HatConfig names the host resources the panel is wired to.
type HatConfig struct {
	SPIPort string // "" selects the first SPI port
	SPIHz   int64
	DCPin   string
	RSTPin  string
	BusyPin string
}

// OpenHat initializes periph.io, opens the SPI port and resolves the pins by
// name (e.g. "GPIO25"). The returned closer releases the SPI port. The
// driver is not initialized.
func OpenHat(cfg HatConfig, opts *Opts) (*Driver, io.Closer, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("epd: periph host init failed: %w", err)
	}

	port, err := spireg.Open(cfg.SPIPort)
	if err != nil {
		return nil, nil, fmt.Errorf("epd: failed to open SPI port %q: %w", cfg.SPIPort, err)
	}

	hz := cfg.SPIHz
	if hz <= 0 {
		hz = 4_000_000
	}
	c, err := port.Connect(physic.Frequency(hz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, nil, fmt.Errorf("epd: failed to connect SPI: %w", err)
	}

	dc, err := pinByName(cfg.DCPin)
	if err != nil {
		_ = port.Close()
		return nil, nil, err
	}
	rst, err := pinByName(cfg.RSTPin)
	if err != nil {
		_ = port.Close()
		return nil, nil, err
	}
	busy, err := pinByName(cfg.BusyPin)
	if err != nil {
		_ = port.Close()
		return nil, nil, err
	}

	d, err := New(c, dc, rst, busy, opts)
	if err != nil {
		_ = port.Close()
		return nil, nil, err
	}
	return d, port, nil
}

func pinByName(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("epd: gpio %q not found", name)
	}
	return p, nil
}
