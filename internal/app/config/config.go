package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jersme/enviro/internal/adapters/provider"
)

type Config struct {
	Sampler   SamplerConfig    `yaml:"sampler"`
	Providers []ProviderConfig `yaml:"providers"`
	CPU       CPUConfig        `yaml:"cpu"`
	Sinks     SinksConfig      `yaml:"sinks"`
	Displays  DisplaysConfig   `yaml:"displays"`
	Camera    CameraConfig     `yaml:"camera"`
	Metrics   MetricsConfig    `yaml:"metrics"`
}

type SamplerConfig struct {
	// TickInterval is a pointer so that an explicit 0 is kept.
	TickInterval *time.Duration    `yaml:"tick_interval"`
	MaxTicks     int                `yaml:"max_ticks"`
	Compensation CompensationConfig `yaml:"compensation"`
}

func (s SamplerConfig) Interval() time.Duration {
	if s.TickInterval == nil {
		return 0
	}
	return *s.TickInterval
}

type CompensationConfig struct {
	Enabled  *bool   `yaml:"enabled"`
	Factor   float64 `yaml:"factor"`
	RawField string  `yaml:"raw_field"`
}

func (c CompensationConfig) On() bool { return c.Enabled == nil || *c.Enabled }

// ProviderConfig selects one provider by Type; only the matching section is read.
type ProviderConfig struct {
	Type      string                   `yaml:"type"`
	Enabled   *bool                    `yaml:"enabled"`
	BME280    provider.BME280Config    `yaml:"bme280"`
	Sysfs     provider.SysfsConfig     `yaml:"sysfs"`
	OPCUA     provider.OPCUAConfig     `yaml:"opcua"`
	Simulated provider.SimulatedConfig `yaml:"simulated"`
}

func (p ProviderConfig) On() bool { return p.Enabled == nil || *p.Enabled }

type CPUConfig struct {
	ThermalZone string `yaml:"thermal_zone"`
}

type SinksConfig struct {
	WAL        WALConfig        `yaml:"wal"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	JSONL      JSONLConfig      `yaml:"jsonl"`
	Timescale  TimescaleConfig  `yaml:"timescale"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Memory     MemoryConfig     `yaml:"memory"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	AMQP       AMQPConfig       `yaml:"amqp"`
	Redis      RedisConfig      `yaml:"redis"`
}

type WALConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Dir      string `yaml:"dir"`
	SyncEach bool   `yaml:"sync_each"`
}

type SQLiteConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Table   string `yaml:"table"`
}

type JSONLConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type TimescaleConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

type ClickHouseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Table    string `yaml:"table"`
}

type MemoryConfig struct {
	Enabled  bool `yaml:"enabled"`
	Capacity int  `yaml:"capacity"`
}

type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
	Retained bool   `yaml:"retained"`
}

type AMQPConfig struct {
	Enabled    bool   `yaml:"enabled"`
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
}

type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	DB      int    `yaml:"db"`
	Prefix  string `yaml:"prefix"`
}

type DisplaysConfig struct {
	Console ToggleConfig `yaml:"console"`
	Board   ToggleConfig `yaml:"board"`
}

type ToggleConfig struct {
	Enabled bool `yaml:"enabled"`
}

type CameraConfig struct {
	Enabled  bool          `yaml:"enabled"`
	URL      string        `yaml:"url"`
	Dir      string        `yaml:"dir"`
	Prefix   string        `yaml:"prefix"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
	Archive  ArchiveConfig `yaml:"archive"`
}

type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Secure    bool   `yaml:"secure"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads an optional .env from the working directory, decodes the YAML
// file, applies ENVIRO_* overrides and defaults, then validates.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes YAML without touching .env files.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	override(&c.Sinks.Timescale.ConnString, "ENVIRO_POSTGRES_DSN")
	override(&c.Sinks.ClickHouse.Addr, "ENVIRO_CLICKHOUSE_ADDR")
	override(&c.Sinks.MQTT.Broker, "ENVIRO_MQTT_BROKER")
	override(&c.Sinks.MQTT.Password, "ENVIRO_MQTT_PASSWORD")
	override(&c.Sinks.AMQP.URL, "ENVIRO_AMQP_URL")
	override(&c.Sinks.Redis.Addr, "ENVIRO_REDIS_ADDR")
	override(&c.Camera.Archive.AccessKey, "ENVIRO_S3_ACCESS_KEY")
	override(&c.Camera.Archive.SecretKey, "ENVIRO_S3_SECRET_KEY")
}

func (c *Config) applyDefaults() {
	if c.Sampler.TickInterval == nil {
		d := 30 * time.Second
		c.Sampler.TickInterval = &d
	}
	if c.Sampler.Compensation.Factor == 0 {
		c.Sampler.Compensation.Factor = 2.25
	}
	if c.Sampler.Compensation.RawField == "" {
		c.Sampler.Compensation.RawField = "temperature"
	}

	for i := range c.Providers {
		p := &c.Providers[i]
		p.Type = strings.ToLower(strings.TrimSpace(p.Type))
		switch p.Type {
		case "bme280":
			p.BME280.ApplyDefaults()
		case "sysfs":
			p.Sysfs.ApplyDefaults()
		case "opcua":
			p.OPCUA.ApplyDefaults()
		case "simulated":
			p.Simulated.ApplyDefaults()
		}
	}

	if c.CPU.ThermalZone == "" {
		c.CPU.ThermalZone = provider.DefaultThermalZone
	}

	s := &c.Sinks
	if s.WAL.Dir == "" {
		s.WAL.Dir = "./data/wal"
	}
	if s.SQLite.Path == "" {
		s.SQLite.Path = "./data/enviro.db"
	}
	if s.SQLite.Table == "" {
		s.SQLite.Table = "readings"
	}
	if s.JSONL.Path == "" {
		s.JSONL.Path = "./data/readings.jsonl"
	}
	if s.Timescale.Table == "" {
		s.Timescale.Table = "readings"
	}
	if s.ClickHouse.Database == "" {
		s.ClickHouse.Database = "default"
	}
	if s.ClickHouse.Table == "" {
		s.ClickHouse.Table = "enviro_readings"
	}
	if s.Memory.Capacity == 0 {
		s.Memory.Capacity = 1024
	}
	if s.MQTT.Topic == "" {
		s.MQTT.Topic = "enviro/{session}/readings"
	}
	if s.AMQP.Exchange == "" {
		s.AMQP.Exchange = "enviro"
	}
	if s.AMQP.RoutingKey == "" {
		s.AMQP.RoutingKey = "readings"
	}
	if s.Redis.Prefix == "" {
		s.Redis.Prefix = "enviro"
	}

	if c.Camera.Dir == "" {
		c.Camera.Dir = "./images"
	}
	if c.Camera.Prefix == "" {
		c.Camera.Prefix = "image"
	}
	if c.Camera.Interval == 0 {
		c.Camera.Interval = 60 * time.Second
	}
	if c.Camera.Timeout == 0 {
		c.Camera.Timeout = 10 * time.Second
	}

	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
}

func (c *Config) validate() error {
	if c.Sampler.Interval() < 0 {
		return fmt.Errorf("sampler.tick_interval must be >= 0")
	}
	if c.Sampler.MaxTicks < 0 {
		return fmt.Errorf("sampler.max_ticks must be >= 0")
	}
	if c.Sampler.Compensation.Factor <= 0 {
		return fmt.Errorf("sampler.compensation.factor must be > 0")
	}

	enabled := 0
	for i, p := range c.Providers {
		if !p.On() {
			continue
		}
		enabled++
		var err error
		switch p.Type {
		case "bme280":
		case "sysfs":
			err = p.Sysfs.Validate()
		case "opcua":
			err = p.OPCUA.Validate()
		case "simulated":
			err = p.Simulated.Validate()
		default:
			err = fmt.Errorf("unknown type %q", p.Type)
		}
		if err != nil {
			return fmt.Errorf("providers[%d]: %w", i, err)
		}
	}
	if enabled == 0 {
		return errors.New("at least one provider must be enabled")
	}

	s := c.Sinks
	if s.Timescale.Enabled && s.Timescale.ConnString == "" {
		return errors.New("sinks.timescale.conn_string is required")
	}
	if s.ClickHouse.Enabled && s.ClickHouse.Addr == "" {
		return errors.New("sinks.clickhouse.addr is required")
	}
	if s.MQTT.Enabled && s.MQTT.Broker == "" {
		return errors.New("sinks.mqtt.broker is required")
	}
	if s.MQTT.QoS > 2 {
		return errors.New("sinks.mqtt.qos must be 0, 1 or 2")
	}
	if s.AMQP.Enabled && s.AMQP.URL == "" {
		return errors.New("sinks.amqp.url is required")
	}
	if s.Redis.Enabled && s.Redis.Addr == "" {
		return errors.New("sinks.redis.addr is required")
	}
	if s.Memory.Capacity < 0 {
		return errors.New("sinks.memory.capacity must be > 0")
	}

	if c.Camera.Enabled && c.Camera.URL == "" {
		return errors.New("camera.url is required")
	}
	if c.Camera.Interval < 0 {
		return errors.New("camera.interval must be >= 0")
	}
	if a := c.Camera.Archive; a.Enabled && (a.Endpoint == "" || a.Bucket == "") {
		return errors.New("camera.archive.endpoint and bucket are required")
	}
	return nil
}

// EnabledProviders returns the enabled provider entries in config order.
func (c *Config) EnabledProviders() []ProviderConfig {
	var out []ProviderConfig
	for _, p := range c.Providers {
		if p.On() {
			out = append(out, p)
		}
	}
	return out
}
