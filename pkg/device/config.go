// Package device assembles the device tasks from a Config.
package device

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/BurntSushi/toml"

	"github.com/robotalks/elx/pkg/connectivity"
	"github.com/robotalks/elx/pkg/env"
	"github.com/robotalks/elx/pkg/nvs"
)

// Duration is time.Duration in TOML as a string like "3s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// FlashConfig describes the flash image and the storage range in it.
type FlashConfig struct {
	Image    string `toml:"image"`
	Size     int64  `toml:"size"`
	WordSize int    `toml:"word_size"`
	PageSize int    `toml:"page_size"`
	Offset   int64  `toml:"offset"`
	Length   int64  `toml:"length"`
}

// Range returns the storage range.
func (c FlashConfig) Range() nvs.Range {
	return nvs.Range{Offset: c.Offset, Length: c.Length}
}

// Config of the device.
type Config struct {
	DeviceID string `toml:"device_id"`

	// Link is where the host connects, e.g. tcp://127.0.0.1:7070,
	// ws://127.0.0.1:7070/link or serial:///dev/ttyUSB0?baud=115200.
	Link string `toml:"link"`

	// MQTTBrokerURL is the broker standing in for the wifi network.
	// e.g. mqtt://host:port/topic-prefix/
	MQTTBrokerURL string      `toml:"mqtt_url"`
	Flash         FlashConfig `toml:"flash"`
	Backoff       Duration    `toml:"backoff"`
	PollInterval  Duration    `toml:"poll_interval"`
	Timezone      string      `toml:"timezone"`
}

var defaultConfig = Config{
	Link:          "tcp://127.0.0.1:7070",
	MQTTBrokerURL: "mqtt://localhost:1883/elx/",
	Flash: FlashConfig{
		Image:    "elx-flash.bin",
		Size:     nvs.DefaultRange.End(),
		WordSize: nvs.DefaultWordSize,
		PageSize: nvs.DefaultPageSize,
		Offset:   nvs.DefaultRange.Offset,
		Length:   nvs.DefaultRange.Length,
	},
	Backoff:      Duration{connectivity.DefaultBackoff},
	PollInterval: Duration{connectivity.DefaultPollInterval},
	Timezone:     "Europe/Helsinki",
}

func init() {
	if val := os.Getenv("ELX_LINK"); val != "" {
		defaultConfig.Link = val
	}
	if val := os.Getenv("ELX_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if val := os.Getenv("ELX_FLASH"); val != "" {
		defaultConfig.Flash.Image = val
	}
	if val := os.Getenv("ELX_BACKOFF"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			defaultConfig.Backoff.Duration = d
		}
	}
	if val := os.Getenv("ELX_TZ"); val != "" {
		defaultConfig.Timezone = val
	}
	if id, err := env.DeviceID(); err == nil {
		defaultConfig.DeviceID = id
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.DeviceID, "id", defaultConfig.DeviceID, "Device ID")
	flag.StringVar(&defaultConfig.Link, "link", defaultConfig.Link, "Host link URL")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL")
	flag.StringVar(&defaultConfig.Flash.Image, "flash", defaultConfig.Flash.Image, "Flash image file")
	flag.DurationVar(&defaultConfig.Backoff.Duration, "backoff", defaultConfig.Backoff.Duration, "Wait between connect attempts")
	flag.StringVar(&defaultConfig.Timezone, "tz", defaultConfig.Timezone, "Timezone of the clock")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// LoadFile loads the config file at path over c. A missing file is created
// with the content of c.
func (c *Config) LoadFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := toml.NewEncoder(f).Encode(c); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		return nil
	}
	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Validate checks the config.
func (c *Config) Validate() error {
	if c.DeviceID == "" {
		return fmt.Errorf("device id must be specified")
	}
	if c.Link == "" {
		return fmt.Errorf("link must be specified")
	}
	if c.Flash.Image == "" {
		return fmt.Errorf("flash image must be specified")
	}
	if c.Backoff.Duration <= 0 {
		return fmt.Errorf("invalid backoff %s", c.Backoff.Duration)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %s: %w", strconv.Quote(c.Timezone), err)
	}
	return nil
}
