package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/setpoint-indicator/internal/gpio"
)

// Config is the effective daemon configuration after merging defaults, the
// optional YAML file, and command-line flags.
type Config struct {
	Poll        time.Duration
	UpdateEvery time.Duration
	Hysteresis  float64
	Broker      string
	Heartbeat   time.Duration
	PinAbove    int
	PinInBand   int
	PinBelow    int
	HTTPAddr    string
	WSBroker    string
	SelfTest    bool
	TestLEDs    bool
	MDNS        bool
}

// fileConfig mirrors Config for the YAML file. Pointer fields so an absent
// key is distinguishable from a zero value; durations are
// time.ParseDuration strings. test-leds is command-line only.
type fileConfig struct {
	Poll        *string  `yaml:"poll"`
	UpdateEvery *string  `yaml:"update_every"`
	Hysteresis  *float64 `yaml:"hysteresis"`
	Broker      *string  `yaml:"broker"`
	Heartbeat   *string  `yaml:"heartbeat"`
	PinAbove    *int     `yaml:"pin_above"`
	PinInBand   *int     `yaml:"pin_in_band"`
	PinBelow    *int     `yaml:"pin_below"`
	HTTPAddr    *string  `yaml:"http"`
	WSBroker    *string  `yaml:"ws_broker"`
	SelfTest    *bool    `yaml:"self_test"`
	MDNS        *bool    `yaml:"mdns"`
}

// parseConfig registers the daemon flags on fs, parses args, and merges in
// the YAML file named by -config if any. Precedence: defaults, then file
// values, then flags the user actually set on the command line.
func parseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	poll := fs.Duration("poll", 100*time.Millisecond, "Render tick interval")
	updateEvery := fs.Duration("update-every", 500*time.Millisecond, "Minimum interval between LED renders")
	hysteresis := fs.Float64("hysteresis", 4.0, "Total width of the hysteresis band in degrees F")
	broker := fs.String("broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	heartbeat := fs.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	pinAbove := fs.Int("pin-above", gpio.DefaultPinAbove, "BCM pin number for the above LED")
	pinInBand := fs.Int("pin-inband", gpio.DefaultPinInBand, "BCM pin number for the in-band LED")
	pinBelow := fs.Int("pin-below", gpio.DefaultPinBelow, "BCM pin number for the below LED")
	httpAddr := fs.String("http", ":80", "HTTP status address (empty to disable)")
	wsBroker := fs.String("ws-broker", "=broker", `MQTT websocket URL for the live status page ("=broker" derives from -broker, "off" disables)`)
	selfTest := fs.Bool("self-test", true, "Run the LED self-test at startup")
	testLEDs := fs.Bool("test-leds", false, "Run the LED self-test and exit")
	mdns := fs.Bool("mdns", false, "Announce the status page over mDNS")
	configPath := fs.String("config", "", "YAML config file (command-line flags win)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Poll:        *poll,
		UpdateEvery: *updateEvery,
		Hysteresis:  *hysteresis,
		Broker:      *broker,
		Heartbeat:   *heartbeat,
		PinAbove:    *pinAbove,
		PinInBand:   *pinInBand,
		PinBelow:    *pinBelow,
		HTTPAddr:    *httpAddr,
		WSBroker:    *wsBroker,
		SelfTest:    *selfTest,
		TestLEDs:    *testLEDs,
		MDNS:        *mdns,
	}

	if *configPath == "" {
		return cfg, nil
	}

	fc, err := loadConfigFile(*configPath)
	if err != nil {
		return Config{}, err
	}

	// Flags the user set on the command line beat the file.
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if err := applyFile(&cfg, fc, set); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadConfigFile reads and strictly decodes the YAML file: unknown keys are
// errors, so typos do not silently fall back to defaults.
func loadConfigFile(path string) (fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && err != io.EOF {
		return fileConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, nil
}

func applyFile(cfg *Config, fc fileConfig, set map[string]bool) error {
	if fc.Poll != nil && !set["poll"] {
		d, err := time.ParseDuration(*fc.Poll)
		if err != nil {
			return fmt.Errorf("config poll: %w", err)
		}
		cfg.Poll = d
	}
	if fc.UpdateEvery != nil && !set["update-every"] {
		d, err := time.ParseDuration(*fc.UpdateEvery)
		if err != nil {
			return fmt.Errorf("config update_every: %w", err)
		}
		cfg.UpdateEvery = d
	}
	if fc.Hysteresis != nil && !set["hysteresis"] {
		cfg.Hysteresis = *fc.Hysteresis
	}
	if fc.Broker != nil && !set["broker"] {
		cfg.Broker = *fc.Broker
	}
	if fc.Heartbeat != nil && !set["heartbeat"] {
		d, err := time.ParseDuration(*fc.Heartbeat)
		if err != nil {
			return fmt.Errorf("config heartbeat: %w", err)
		}
		cfg.Heartbeat = d
	}
	if fc.PinAbove != nil && !set["pin-above"] {
		cfg.PinAbove = *fc.PinAbove
	}
	if fc.PinInBand != nil && !set["pin-inband"] {
		cfg.PinInBand = *fc.PinInBand
	}
	if fc.PinBelow != nil && !set["pin-below"] {
		cfg.PinBelow = *fc.PinBelow
	}
	if fc.HTTPAddr != nil && !set["http"] {
		cfg.HTTPAddr = *fc.HTTPAddr
	}
	if fc.WSBroker != nil && !set["ws-broker"] {
		cfg.WSBroker = *fc.WSBroker
	}
	if fc.SelfTest != nil && !set["self-test"] {
		cfg.SelfTest = *fc.SelfTest
	}
	if fc.MDNS != nil && !set["mdns"] {
		cfg.MDNS = *fc.MDNS
	}
	return nil
}
