package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"openeink/internal/battery"
	"openeink/internal/buttons"
	"openeink/internal/epd"
	appLog "openeink/internal/log"
	"openeink/internal/ui"
)

// Panel is the display the loop presents to.
type Panel interface {
	ui.Panel
	Refreshes() uint32
}

// Options configures a Loop. Zero values select defaults.
type Options struct {
	Interval time.Duration
	// SleepAfter is the inactivity period before the panel sleeps. Zero
	// disables idle sleep.
	SleepAfter time.Duration
	InboxSize  int
	// MaxFailures is the number of consecutive failed cycles that ends Run.
	MaxFailures int
	// OnPresent is called with a copy of the frame after every refresh.
	OnPresent func(frame []byte)
}

const (
	DefaultInterval    = 50 * time.Millisecond
	DefaultInboxSize   = 64
	DefaultMaxFailures = 3
)

// Snapshot is the state published after every iteration.
type Snapshot struct {
	Screen    string          `json:"screen"`
	Cursor    int             `json:"cursor"`
	Dirty     bool            `json:"dirty"`
	Status    string          `json:"status"`
	Refreshes uint32          `json:"refreshes"`
	Battery   *battery.Status `json:"battery,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`

	// Frame is the last presented frame, packed.
	Frame []byte `json:"-"`
}

// Loop owns the Machine. Only Step and Run touch it; other goroutines use
// Submit and Snapshot.
type Loop struct {
	m      *ui.Machine
	panel  Panel
	poller *buttons.Poller
	opts   Options

	inbox chan Command

	lastActivity  time.Time
	failures      int
	lastRefreshes uint32
	frame         []byte

	mu   sync.RWMutex
	snap Snapshot
}

// New returns a loop driving m. poller may be nil when there are no GPIO
// buttons.
func New(m *ui.Machine, panel Panel, poller *buttons.Poller, opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = DefaultInboxSize
	}
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = DefaultMaxFailures
	}
	return &Loop{
		m:      m,
		panel:  panel,
		poller: poller,
		opts:   opts,
		inbox:  make(chan Command, opts.InboxSize),
	}
}

// Submit queues cmd without blocking. Safe for concurrent use.
func (l *Loop) Submit(cmd Command) error {
	select {
	case l.inbox <- cmd:
		return nil
	default:
		return ErrInboxFull
	}
}

// Snapshot returns the state published by the last Step.
func (l *Loop) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap
}

// Step runs one iteration: apply queued commands, poll the buttons, enter
// idle sleep if due, then redraw once if anything changed. Commands
// arriving between iterations are coalesced into that single redraw.
func (l *Loop) Step(now time.Time) error {
	if l.lastActivity.IsZero() {
		l.lastActivity = now
	}

	var errs []error
	for drained := false; !drained; {
		select {
		case cmd := <-l.inbox:
			if err := l.apply(cmd, now); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", cmd.Kind, err))
			}
		default:
			drained = true
		}
	}

	if l.poller != nil {
		for _, ev := range l.poller.Poll(now) {
			if err := l.button(ev, now); err != nil {
				errs = append(errs, fmt.Errorf("button: %w", err))
			}
		}
	}

	if l.opts.SleepAfter > 0 && l.m.Screen() != ui.Sleep && now.Sub(l.lastActivity) >= l.opts.SleepAfter {
		appLog.Info("idle timeout, entering sleep", "idle", now.Sub(l.lastActivity))
		if err := l.m.EnterSleep(); err != nil {
			errs = append(errs, fmt.Errorf("idle sleep: %w", err))
		}
	}

	if err := l.m.Process(); err != nil {
		errs = append(errs, fmt.Errorf("process: %w", err))
	}

	l.publish(now)
	return errors.Join(errs...)
}

func (l *Loop) apply(cmd Command, now time.Time) error {
	switch cmd.Kind {
	case CmdButton:
		return l.button(cmd.Event, now)
	case CmdStatus:
		l.m.SetStatus(cmd.Text)
	case CmdBattery:
		l.m.SetBattery(cmd.Battery)
	case CmdFullRefresh:
		l.m.ForceRefresh()
	case CmdSleep:
		return l.m.EnterSleep()
	default:
		return fmt.Errorf("app: unknown command %s", cmd.Kind)
	}
	return nil
}

// button routes a button event. A press while asleep wakes the panel and
// is consumed.
func (l *Loop) button(ev buttons.Event, now time.Time) error {
	if ev.Kind != buttons.Press {
		return nil
	}
	l.lastActivity = now
	if l.m.Screen() == ui.Sleep {
		appLog.Info("wake on button", "button", ev.Button)
		return l.m.Wake()
	}
	return l.m.HandleButton(ev)
}

func (l *Loop) publish(now time.Time) {
	// Frame stays nil until the panel has shown something.
	if n := l.panel.Refreshes(); n > 0 && n != l.lastRefreshes {
		l.lastRefreshes = n
		l.frame = l.panel.Framebuffer().Snapshot()
		if l.opts.OnPresent != nil {
			l.opts.OnPresent(l.frame)
		}
	}

	s := Snapshot{
		Screen:    l.m.Screen().String(),
		Cursor:    l.m.Cursor(),
		Dirty:     l.m.Dirty(),
		Status:    l.m.Status(),
		Refreshes: l.lastRefreshes,
		UpdatedAt: now,
		Frame:     l.frame,
	}
	if b, ok := l.m.Battery(); ok {
		s.Battery = &b
	}

	l.mu.Lock()
	l.snap = s
	l.mu.Unlock()
}

// Run steps the loop every Interval until ctx is done or MaxFailures
// consecutive iterations fail.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.opts.Interval)
	defer ticker.Stop()

	for {
		if err := l.Step(time.Now()); err != nil {
			l.failures++
			appLog.Error("loop iteration failed", err, "consecutive", l.failures)
			if l.failures >= l.opts.MaxFailures {
				return fmt.Errorf("%w: %w", ErrTooManyFailures, err)
			}
		} else {
			l.failures = 0
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// ShowFatal presents the system error screen with a full refresh. It must
// only be called after Run has returned.
func (l *Loop) ShowFatal(msg string) error {
	if l.m.Screen() == ui.Sleep {
		if err := l.m.Wake(); err != nil {
			return err
		}
	}
	l.m.ShowError(msg)
	l.m.ForceRefresh()
	return l.m.Process()
}

// Halt puts the panel to sleep on shutdown.
func (l *Loop) Halt() error {
	if h, ok := l.panel.(interface{ Halt() error }); ok {
		return h.Halt()
	}
	return l.panel.Sleep()
}

var _ Panel = (*epd.Driver)(nil)
