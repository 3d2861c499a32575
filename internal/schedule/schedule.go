// Package schedule runs the periodic background jobs. Jobs never touch the
// display; they submit commands to the main loop.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"openeink/internal/app"
	"openeink/internal/battery"
	appLog "openeink/internal/log"
)

// Submitter accepts commands for the main loop.
type Submitter interface {
	Submit(cmd app.Command) error
}

// Jobs configures the scheduler. An empty spec disables its job.
type Jobs struct {
	// BatteryCheck is the cron spec for battery sampling.
	BatteryCheck string
	Battery      battery.Reader

	// MaintenanceRefresh is the cron spec for the forced full refresh.
	MaintenanceRefresh string
}

const batteryReadTimeout = 5 * time.Second

// Scheduler wraps a cron runner.
type Scheduler struct {
	c   *cron.Cron
	sub Submitter
	bat battery.Reader
}

// New parses the specs and registers the jobs. Nothing runs until Start.
func New(sub Submitter, jobs Jobs) (*Scheduler, error) {
	s := &Scheduler{
		c: cron.New(
			cron.WithLogger(cronLogger{}),
			cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
		),
		sub: sub,
	}

	if jobs.BatteryCheck != "" && jobs.Battery != nil {
		if _, err := s.c.AddFunc(jobs.BatteryCheck, s.sampleBattery); err != nil {
			return nil, fmt.Errorf("schedule: battery_check %q: %w", jobs.BatteryCheck, err)
		}
		s.bat = jobs.Battery
	}
	if jobs.MaintenanceRefresh != "" {
		if _, err := s.c.AddFunc(jobs.MaintenanceRefresh, s.maintenanceRefresh); err != nil {
			return nil, fmt.Errorf("schedule: maintenance_refresh %q: %w", jobs.MaintenanceRefresh, err)
		}
	}
	return s, nil
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int { return len(s.c.Entries()) }

// Start runs the scheduler in its own goroutine. When battery sampling is
// enabled the battery is also sampled once right away.
func (s *Scheduler) Start() {
	if s.bat != nil {
		go s.sampleBattery()
	}
	s.c.Start()
}

// Stop stops the scheduler and waits for running jobs up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.c.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		appLog.Warn("scheduler stop timed out")
	}
}

func (s *Scheduler) sampleBattery() {
	ctx, cancel := context.WithTimeout(context.Background(), batteryReadTimeout)
	defer cancel()

	st, err := s.bat.Read(ctx)
	if err != nil {
		appLog.Error("battery read failed", err)
		return
	}
	appLog.Debug("battery sampled", "percent", st.Percent, "voltage_mv", st.VoltageMv)
	s.submit(app.Command{Kind: app.CmdBattery, Battery: st})
}

func (s *Scheduler) maintenanceRefresh() {
	appLog.Info("maintenance full refresh")
	s.submit(app.Command{Kind: app.CmdFullRefresh})
}

func (s *Scheduler) submit(cmd app.Command) {
	if err := s.sub.Submit(cmd); err != nil {
		appLog.Error("scheduled command dropped", err, "command", cmd.Kind)
	}
}

// cronLogger routes cron's own logging to the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("cron: "+msg, err, kv...)
}
