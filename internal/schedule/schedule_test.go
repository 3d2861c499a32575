package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"openeink/internal/app"
	"openeink/internal/battery"
)

type recorder struct {
	mu   sync.Mutex
	cmds []app.Command
	err  error
}

func (r *recorder) Submit(cmd app.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.cmds = append(r.cmds, cmd)
	return nil
}

func (r *recorder) snapshot() []app.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]app.Command(nil), r.cmds...)
}

type failingReader struct{}

func (failingReader) Read(context.Context) (battery.Status, error) {
	return battery.Status{}, errors.New("gauge offline")
}

func TestNewRegistersJobs(t *testing.T) {
	tests := []struct {
		name    string
		jobs    Jobs
		want    int
		wantErr bool
	}{
		{"both", Jobs{BatteryCheck: "@every 1m", Battery: battery.NewMockReader(90, 5), MaintenanceRefresh: "0 3 * * *"}, 2, false},
		{"disabled", Jobs{}, 0, false},
		{"battery without reader", Jobs{BatteryCheck: "@every 1m"}, 0, false},
		{"maintenance only", Jobs{MaintenanceRefresh: "@daily"}, 1, false},
		{"bad battery spec", Jobs{BatteryCheck: "every minute", Battery: battery.NewMockReader(90, 5)}, 0, true},
		{"bad maintenance spec", Jobs{MaintenanceRefresh: "61 * * * *"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(&recorder{}, tt.jobs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && s.Len() != tt.want {
				t.Errorf("Len() = %d, want %d", s.Len(), tt.want)
			}
		})
	}
}

func TestSampleBattery(t *testing.T) {
	rec := &recorder{}
	s, err := New(rec, Jobs{BatteryCheck: "@every 1h", Battery: battery.NewMockReader(42, 5)})
	if err != nil {
		t.Fatal(err)
	}
	s.sampleBattery()

	cmds := rec.snapshot()
	if len(cmds) != 1 || cmds[0].Kind != app.CmdBattery || cmds[0].Battery.Percent != 42 {
		t.Errorf("commands = %+v", cmds)
	}
}

func TestSampleBatteryReadError(t *testing.T) {
	rec := &recorder{}
	s, err := New(rec, Jobs{BatteryCheck: "@every 1h", Battery: failingReader{}})
	if err != nil {
		t.Fatal(err)
	}
	s.sampleBattery()
	if len(rec.snapshot()) != 0 {
		t.Error("failed read submitted a command")
	}
}

func TestMaintenanceRefresh(t *testing.T) {
	rec := &recorder{}
	s, err := New(rec, Jobs{MaintenanceRefresh: "@daily"})
	if err != nil {
		t.Fatal(err)
	}
	s.maintenanceRefresh()

	rec.err = app.ErrInboxFull
	s.maintenanceRefresh()

	cmds := rec.snapshot()
	if len(cmds) != 1 || cmds[0].Kind != app.CmdFullRefresh {
		t.Errorf("commands = %+v", cmds)
	}
}

func TestStartSamplesImmediately(t *testing.T) {
	rec := &recorder{}
	s, err := New(rec, Jobs{BatteryCheck: "@every 1h", Battery: battery.NewMockReader(77, 5)})
	if err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for len(rec.snapshot()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no battery sample after Start")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := rec.snapshot()[0]; got.Kind != app.CmdBattery || got.Battery.Percent != 77 {
		t.Errorf("first command = %+v", got)
	}
}
