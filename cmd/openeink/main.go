package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"openeink/internal/app"
	"openeink/internal/battery"
	"openeink/internal/buttons"
	"openeink/internal/config"
	"openeink/internal/convert"
	"openeink/internal/epd"
	appLog "openeink/internal/log"
	"openeink/internal/schedule"
	"openeink/internal/ui"
	"openeink/internal/web"
)

// Set with -ldflags "-X main.version=... -X main.build=...".
var (
	version = ui.DefaultVersion
	build   = ""
)

const fatalMessage = "System Error"

type flagConfig struct {
	configPath string
	listen     string
	simulate   bool
	dumpDir    string
	once       bool
}

func main() {
	os.Exit(run())
}

func run() int {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		return 1
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	appLog.Info("openeink starting", "version", version, "build", build)

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"simulate", flags.simulate,
		"full_refresh_interval", conf.Panel.FullRefreshInterval,
		"sleep_after", conf.Power.SleepAfter,
		"battery_check", conf.Power.BatteryCheck,
		"maintenance_refresh", conf.MaintenanceRefresh,
		"once", flags.once,
		"dump", flags.dumpDir,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	driver, closer, err := openPanel(conf, flags.simulate)
	if err != nil {
		appLog.Error("failed to open panel", err)
		return 1
	}
	if closer != nil {
		defer closer.Close()
	}
	if err := driver.Init(); err != nil {
		appLog.Error("panel init failed", err)
		return 1
	}

	machine := ui.New(driver, ui.Options{
		Info: ui.Info{
			Version:             version,
			Build:               build,
			FullRefreshInterval: conf.Panel.FullRefreshInterval,
			SleepAfter:          conf.Power.SleepAfter,
			AboutURL:            conf.AboutURL,
		},
		LowBatteryMv: conf.Power.LowBatteryMv,
	})

	loopOpts := app.Options{
		Interval:   conf.LoopInterval,
		SleepAfter: conf.Power.SleepAfter,
	}
	if flags.dumpDir != "" {
		dir := flags.dumpDir
		loopOpts.OnPresent = func(frame []byte) {
			if err := convert.Dump(dir, frame); err != nil {
				appLog.Error("frame dump failed", err, "dir", dir)
			}
		}
	}
	loop := app.New(machine, driver, openButtons(conf, flags.simulate), loopOpts)

	if flags.once {
		err := loop.Step(time.Now())
		if herr := loop.Halt(); herr != nil {
			appLog.Error("panel halt failed", herr)
		}
		if err != nil {
			appLog.Error("single cycle failed", err)
			return 1
		}
		appLog.Info("single cycle done", "refreshes", driver.Refreshes())
		return 0
	}

	reader := openBattery(ctx, conf, flags.simulate)
	sched, err := schedule.New(loop, schedule.Jobs{
		BatteryCheck:       conf.Power.BatteryCheck,
		Battery:            reader,
		MaintenanceRefresh: conf.MaintenanceRefresh,
	})
	if err != nil {
		appLog.Error("invalid schedule", err)
		return 1
	}
	sched.Start()
	appLog.Info("scheduler started", "jobs", sched.Len())
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		sched.Stop(stopCtx)
	}()

	if conf.Listen != "" {
		srv := web.NewServer(conf, loop, len(conf.Buttons.Pins))
		go func() {
			if err := srv.Serve(ctx); err != nil {
				appLog.Error("HTTP server failed", err, "listen", conf.Listen)
			}
		}()
	}

	runErr := loop.Run(ctx)
	code := 0
	if runErr != nil {
		appLog.Error("main loop stopped", runErr)
		if err := loop.ShowFatal(fatalMessage); err != nil {
			appLog.Error("failed to show fatal error screen", err)
		}
		code = 1
	}
	if err := loop.Halt(); err != nil {
		appLog.Error("panel halt failed", err)
	}
	appLog.Info("openeink exiting", "code", code)
	return code
}

func openPanel(conf *config.Config, simulate bool) (*epd.Driver, io.Closer, error) {
	opts := &epd.Opts{FullRefreshInterval: conf.Panel.FullRefreshInterval}
	if simulate {
		appLog.Info("using simulated panel")
		return epd.NewSimulated(opts), nil, nil
	}
	return epd.OpenHat(epd.HatConfig{
		SPIPort: conf.Panel.SPIPort,
		SPIHz:   conf.Panel.SPIHz,
		DCPin:   conf.Panel.DCPin,
		RSTPin:  conf.Panel.RSTPin,
		BusyPin: conf.Panel.BusyPin,
	}, opts)
}

// openButtons returns nil when the buttons cannot be used; the HTTP API can
// still inject presses.
func openButtons(conf *config.Config, simulate bool) *buttons.Poller {
	if simulate || len(conf.Buttons.Pins) == 0 {
		return nil
	}
	pins, err := buttons.PinsByName(conf.Buttons.Pins)
	if err != nil {
		appLog.Warn("buttons disabled", "err", err)
		return nil
	}
	p, err := buttons.NewPoller(pins, conf.Buttons.Debounce, conf.Buttons.LongPress)
	if err != nil {
		appLog.Warn("buttons disabled", "err", err)
		return nil
	}
	appLog.Info("gpio buttons ready", "count", p.Len(), "pins", conf.Buttons.Pins)
	return p
}

func openBattery(ctx context.Context, conf *config.Config, simulate bool) battery.Reader {
	if simulate {
		return battery.NewMockReader(100, 5)
	}
	r, ok := battery.DefaultReader(ctx, conf.Power.BatteryI2CBus, conf.Power.BatteryI2CAddr)
	if !ok {
		appLog.Warn("battery gauge not reachable, using mock reader",
			"bus", conf.Power.BatteryI2CBus,
			"addr", conf.Power.BatteryI2CAddr,
		)
	}
	return r
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/openeink/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.simulate, "simulate", false, "Use a simulated panel; do not touch display hardware")
	flag.StringVar(&cfg.dumpDir, "dump", "", "Directory to write frame.bin and preview.png after every refresh")
	flag.BoolVar(&cfg.once, "once", false, "Draw the first screen once and exit")

	flag.Parse()

	return cfg
}
