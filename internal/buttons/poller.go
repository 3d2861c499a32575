package buttons

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

const (
	DefaultDebounce  = 50 * time.Millisecond
	DefaultLongPress = time.Second
)

type button struct {
	pin gpio.PinIn

	// raw is the last sampled level and since the time it was first seen.
	raw   bool
	since time.Time

	pressed   bool
	pressedAt time.Time
	longSent  bool
}

// Poller samples button pins from the main loop. A level must be stable
// for the debounce period before it counts; a press held for the long-press
// period additionally emits LongPress once.
//
// A Poller is not safe for concurrent use.
type Poller struct {
	buttons   []*button
	debounce  time.Duration
	longPress time.Duration
}

// NewPoller configures pins as pulled-up inputs. Button ids follow the
// order of pins, starting at 1.
func NewPoller(pins []gpio.PinIn, debounce, longPress time.Duration) (*Poller, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if longPress <= 0 {
		longPress = DefaultLongPress
	}
	p := &Poller{debounce: debounce, longPress: longPress}
	for i, pin := range pins {
		if pin == nil {
			return nil, fmt.Errorf("buttons: pin %d is nil", i+1)
		}
		if err := pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("buttons: configure %s: %w", pin, err)
		}
		p.buttons = append(p.buttons, &button{pin: pin})
	}
	return p, nil
}

// Len returns the number of buttons.
func (p *Poller) Len() int { return len(p.buttons) }

// Poll samples every pin once and returns the events that became due at now.
func (p *Poller) Poll(now time.Time) []Event {
	var out []Event
	for i, b := range p.buttons {
		id := i + 1
		down := b.pin.Read() == gpio.Low

		if down != b.raw || b.since.IsZero() {
			b.raw = down
			b.since = now
		}
		if b.raw != b.pressed && now.Sub(b.since) >= p.debounce {
			b.pressed = b.raw
			if b.pressed {
				b.pressedAt = now
				b.longSent = false
				out = append(out, Event{Button: id, Kind: Press})
			} else {
				out = append(out, Event{Button: id, Kind: Release})
			}
		}
		if b.pressed && !b.longSent && now.Sub(b.pressedAt) >= p.longPress {
			b.longSent = true
			out = append(out, Event{Button: id, Kind: LongPress})
		}
	}
	return out
}
