package config

import (
	"errors"
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"bvstrack/internal/position"
)

type InputConfig struct {
	Path      string `yaml:"path"`
	Delimiter string `yaml:"delimiter"`
}

type OutputConfig struct {
	Map     string `yaml:"map"`
	Live    bool   `yaml:"live"`
	CSV     string `yaml:"csv"`
	GeoJSON string `yaml:"geojson"`
	// Pace delays each fix, replaying the track at a readable speed.
	Pace time.Duration `yaml:"pace"`
}

type MQTTConfig struct {
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	Topic          string        `yaml:"topic"`
	QoS            byte          `yaml:"qos"`
	Retained       bool          `yaml:"retained"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Config is the top-level structure of the YAML run file.
type Config struct {
	Input      InputConfig   `yaml:"input"`
	Side       string        `yaml:"side"`
	ToleranceM float64       `yaml:"tolerance_m"`
	Output     OutputConfig  `yaml:"output"`
	MQTT       MQTTConfig    `yaml:"mqtt"`
	Metrics    MetricsConfig `yaml:"metrics"`
	Log        LogConfig     `yaml:"log"`
}

func Default() *Config {
	return &Config{
		Input: InputConfig{Delimiter: ";"},
		Side:  "north",
		Output: OutputConfig{
			Map: "bvs_map.html",
			CSV: "data/positions.csv",
		},
		MQTT: MQTTConfig{
			ClientID:       "bvstrack",
			ConnectTimeout: 60 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path yields the defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv(os.LookupEnv)
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(&c.MQTT.Broker, "MOSQUITTO_BROKER")
	set(&c.MQTT.Username, "MOSQUITTO_USER")
	set(&c.MQTT.Password, "MOSQUITTO_PASSWORD")
	set(&c.MQTT.Topic, "MOSQUITTO_TOPIC")
	set(&c.Log.Level, "LOG_LEVEL")
	set(&c.Log.Format, "LOG_FORMAT")
	set(&c.Side, "BVS_SIDE")
}

// SideValue parses Side.
func (c *Config) SideValue() (position.Side, error) {
	return position.ParseSide(c.Side)
}

// DelimiterRune returns the single input delimiter character.
func (c *Config) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(c.Input.Delimiter)
	return r
}

func (c *Config) Validate() error {
	var errs []error
	if _, err := c.SideValue(); err != nil {
		errs = append(errs, err)
	}
	if c.ToleranceM < 0 {
		errs = append(errs, fmt.Errorf("tolerance_m must be >= 0, got %v", c.ToleranceM))
	}
	if utf8.RuneCountInString(c.Input.Delimiter) != 1 {
		errs = append(errs, fmt.Errorf("input.delimiter must be one character, got %q", c.Input.Delimiter))
	}
	if c.Output.Pace < 0 {
		errs = append(errs, fmt.Errorf("output.pace must be >= 0, got %s", c.Output.Pace))
	}
	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		errs = append(errs, errors.New("mqtt.topic is required when mqtt.broker is set"))
	}
	if c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
	}
	return errors.Join(errs...)
}
