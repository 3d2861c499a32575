package buttons

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// PinsByName resolves GPIO names (e.g. "GPIO5") through the periph.io
// registry. host.Init must have run.
func PinsByName(names []string) ([]gpio.PinIn, error) {
	pins := make([]gpio.PinIn, 0, len(names))
	for _, n := range names {
		p := gpioreg.ByName(n)
		if p == nil {
			return nil, fmt.Errorf("buttons: gpio %q not found", n)
		}
		pins = append(pins, p)
	}
	return pins, nil
}
