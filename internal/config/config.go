package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// PanelConfig describes how the e-paper panel is wired to the host.
type PanelConfig struct {
	// SPIPort is the periph.io SPI port name ("" for the first one, e.g. /dev/spidev0.0).
	SPIPort string `yaml:"spi_port" json:"spi_port"`
	// SPIHz is the SPI clock in Hz.
	SPIHz int64 `yaml:"spi_hz" json:"spi_hz"`

	DCPin   string `yaml:"dc_pin" json:"dc_pin"`
	RSTPin  string `yaml:"rst_pin" json:"rst_pin"`
	BusyPin string `yaml:"busy_pin" json:"busy_pin"`

	// FullRefreshInterval forces every Nth refresh to use the full waveform.
	FullRefreshInterval int `yaml:"full_refresh_interval" json:"full_refresh_interval"`
}

// ButtonsConfig lists the GPIO pins of the front buttons, in button-id order
// starting at 1.
type ButtonsConfig struct {
	Pins      []string      `yaml:"pins" json:"pins"`
	Debounce  time.Duration `yaml:"debounce" json:"debounce"`
	LongPress time.Duration `yaml:"long_press" json:"long_press"`
}

// PowerConfig holds sleep and battery settings.
type PowerConfig struct {
	// SleepAfter is the inactivity period before the panel is put to sleep.
	// Zero disables the idle sleep.
	SleepAfter time.Duration `yaml:"sleep_after" json:"sleep_after"`

	// BatteryCheck is a cron spec for battery sampling. Empty disables sampling.
	BatteryCheck string `yaml:"battery_check" json:"battery_check"`

	LowBatteryMv int `yaml:"low_battery_mv" json:"low_battery_mv"`

	BatteryI2CBus  string `yaml:"battery_i2c_bus" json:"battery_i2c_bus"`
	BatteryI2CAddr uint16 `yaml:"battery_i2c_addr" json:"battery_i2c_addr"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the debug API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Listen is the HTTP listen address for the debug API. Empty disables it.
	Listen string `yaml:"listen" json:"listen"`

	Panel   PanelConfig   `yaml:"panel" json:"panel"`
	Buttons ButtonsConfig `yaml:"buttons" json:"buttons"`
	Power   PowerConfig   `yaml:"power" json:"power"`

	// LoopInterval is the period of the main polling loop.
	LoopInterval time.Duration `yaml:"loop_interval" json:"loop_interval"`

	// MaintenanceRefresh is a cron spec that forces a full refresh to clear
	// accumulated ghosting. Empty disables it.
	MaintenanceRefresh string `yaml:"maintenance_refresh" json:"maintenance_refresh"`

	// AboutURL is rendered as a QR code on the About screen when set.
	AboutURL string `yaml:"about_url" json:"about_url"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen              = "127.0.0.1:8080"
	defaultSPIHz               = 4_000_000
	defaultFullRefreshInterval = 10
	defaultDebounce            = 50 * time.Millisecond
	defaultLongPress           = time.Second
	defaultSleepAfter          = 30 * time.Second
	defaultBatteryCheck        = "@every 1m"
	defaultLowBatteryMv        = 2800
	defaultBatteryI2CAddr      = 0x57
	defaultLoopInterval        = 50 * time.Millisecond
	defaultMaintenanceRefresh  = "0 3 * * *"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Listen:   defaultListen,
		Panel: PanelConfig{
			SPIPort:             "",
			SPIHz:               defaultSPIHz,
			DCPin:               "GPIO25",
			RSTPin:              "GPIO17",
			BusyPin:             "GPIO24",
			FullRefreshInterval: defaultFullRefreshInterval,
		},
		Buttons: ButtonsConfig{
			Pins:      []string{"GPIO5", "GPIO6", "GPIO13"},
			Debounce:  defaultDebounce,
			LongPress: defaultLongPress,
		},
		Power: PowerConfig{
			SleepAfter:     defaultSleepAfter,
			BatteryCheck:   defaultBatteryCheck,
			LowBatteryMv:   defaultLowBatteryMv,
			BatteryI2CAddr: defaultBatteryI2CAddr,
		},
		LoopInterval:       defaultLoopInterval,
		MaintenanceRefresh: defaultMaintenanceRefresh,
		AboutURL:           "https://github.com/open-eink/openeink",
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
//
// Listen, BatteryCheck and MaintenanceRefresh are left alone: empty means
// "disabled" for them.
func (c *Config) Normalize() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Panel.SPIHz <= 0 {
		c.Panel.SPIHz = defaultSPIHz
	}
	if c.Panel.DCPin == "" {
		c.Panel.DCPin = "GPIO25"
	}
	if c.Panel.RSTPin == "" {
		c.Panel.RSTPin = "GPIO17"
	}
	if c.Panel.BusyPin == "" {
		c.Panel.BusyPin = "GPIO24"
	}
	if c.Panel.FullRefreshInterval <= 0 {
		c.Panel.FullRefreshInterval = defaultFullRefreshInterval
	}
	if c.Buttons.Pins == nil {
		c.Buttons.Pins = []string{"GPIO5", "GPIO6", "GPIO13"}
	}
	if c.Buttons.Debounce <= 0 {
		c.Buttons.Debounce = defaultDebounce
	}
	if c.Buttons.LongPress <= 0 {
		c.Buttons.LongPress = defaultLongPress
	}
	if c.Power.SleepAfter < 0 {
		c.Power.SleepAfter = 0
	}
	if c.Power.LowBatteryMv <= 0 {
		c.Power.LowBatteryMv = defaultLowBatteryMv
	}
	if c.Power.BatteryI2CAddr == 0 {
		c.Power.BatteryI2CAddr = defaultBatteryI2CAddr
	}
	if c.LoopInterval <= 0 {
		c.LoopInterval = defaultLoopInterval
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".openeink-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
