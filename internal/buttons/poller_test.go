package buttons

import (
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func newTestPoller(t *testing.T, n int) (*Poller, []*gpiotest.Pin) {
	t.Helper()
	pins := make([]*gpiotest.Pin, n)
	in := make([]gpio.PinIn, n)
	for i := range pins {
		pins[i] = &gpiotest.Pin{N: "BTN"}
		in[i] = pins[i]
	}
	p, err := NewPoller(in, 50*time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("NewPoller() error = %v", err)
	}
	return p, pins
}

func TestNewPollerPullsUp(t *testing.T) {
	_, pins := newTestPoller(t, 3)
	for i, p := range pins {
		if p.P != gpio.PullUp || p.Read() != gpio.High {
			t.Errorf("pin %d pull = %s level = %s, want pulled-up high", i, p.P, p.Read())
		}
	}
}

func TestNewPollerRejectsNilPin(t *testing.T) {
	if _, err := NewPoller([]gpio.PinIn{nil}, 0, 0); err == nil {
		t.Error("NewPoller(nil pin) succeeded")
	}
}

func TestPollDebounce(t *testing.T) {
	p, pins := newTestPoller(t, 2)
	t0 := time.Unix(1000, 0)
	ms := func(n int) time.Time { return t0.Add(time.Duration(n) * time.Millisecond) }

	steps := []struct {
		at    int
		level gpio.Level
		want  []Event
	}{
		{0, gpio.High, nil},
		{10, gpio.Low, nil},
		{30, gpio.High, nil}, // bounce
		{40, gpio.Low, nil},
		{80, gpio.Low, nil},
		{90, gpio.Low, []Event{{Button: 2, Kind: Press}}},
		{95, gpio.Low, nil},
		{200, gpio.High, nil},
		{260, gpio.High, []Event{{Button: 2, Kind: Release}}},
		{300, gpio.High, nil},
	}
	for _, s := range steps {
		pins[1].L = s.level
		got := p.Poll(ms(s.at))
		if !sameEvents(got, s.want) {
			t.Errorf("t=%dms: events = %v, want %v", s.at, got, s.want)
		}
	}
}

func TestPollLongPress(t *testing.T) {
	p, pins := newTestPoller(t, 1)
	t0 := time.Unix(0, 0)
	p.Poll(t0)

	pins[0].L = gpio.Low
	var all []Event
	for ms := 10; ms <= 2500; ms += 10 {
		all = append(all, p.Poll(t0.Add(time.Duration(ms)*time.Millisecond))...)
	}
	pins[0].L = gpio.High
	for ms := 2510; ms <= 2700; ms += 10 {
		all = append(all, p.Poll(t0.Add(time.Duration(ms)*time.Millisecond))...)
	}

	want := []Event{
		{Button: 1, Kind: Press},
		{Button: 1, Kind: LongPress},
		{Button: 1, Kind: Release},
	}
	if !sameEvents(all, want) {
		t.Errorf("events = %v, want %v", all, want)
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"press", Press, false},
		{"", Press, false},
		{"Release", Release, false},
		{"long_press", LongPress, false},
		{"long-press", LongPress, false},
		{"double", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseKind(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseKind(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func sameEvents(a, b []Event) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPinsByName(t *testing.T) {
	if _, err := PinsByName([]string{"NO_SUCH_PIN_FOR_TEST"}); err == nil {
		t.Error("PinsByName() resolved an unknown pin")
	}
	pins, err := PinsByName(nil)
	if err != nil || len(pins) != 0 {
		t.Errorf("PinsByName(nil) = %v, %v", pins, err)
	}
}
