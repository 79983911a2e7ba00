package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Hardware modes.
const (
	ModeSimulated = "simulated"
	ModePhysical  = "physical"
)

// Config is the root configuration structure for Planter Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Hardware   HardwareConfig   `yaml:"hardware"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Plants     []PlantConfig    `yaml:"plants"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Reporter   ReporterConfig   `yaml:"reporter"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SiteConfig identifies the appliance.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// HardwareConfig selects the hardware variant and describes its wiring.
type HardwareConfig struct {
	// Mode is "simulated" or "physical". Chosen once at startup.
	Mode string `yaml:"mode"`

	// FlowRateMLPerSecond converts a plant's water amount into pump run time.
	FlowRateMLPerSecond float64 `yaml:"flow_rate_ml_per_second"`

	// SafetyTimeout caps any single pump activation (seconds).
	SafetyTimeout int `yaml:"safety_timeout"`

	// Seed fixes the simulated sensor generator. Zero uses the clock.
	Seed int64 `yaml:"seed"`

	Pins    PinConfig     `yaml:"pins"`
	Soil    SoilConfig    `yaml:"soil"`
	Light   LightConfig   `yaml:"light"`
	Climate ClimateConfig `yaml:"climate"`
}

// PinConfig maps logical signals to GPIO names as understood by periph's gpioreg.
type PinConfig struct {
	Pump1       string `yaml:"pump1"`
	Pump2       string `yaml:"pump2"`
	PumpEnable  string `yaml:"pump_enable"`
	StatusLED   string `yaml:"status_led"`
	WarningLED  string `yaml:"warning_led"`
	WaterTop    string `yaml:"water_top"`
	WaterMiddle string `yaml:"water_middle"`
	WaterBottom string `yaml:"water_bottom"`
}

// SoilConfig describes the SPI ADC the soil moisture probe is wired to.
type SoilConfig struct {
	SPIPort string `yaml:"spi_port"`
	Channel int    `yaml:"channel"`
}

// LightConfig describes the I2C light sensor.
type LightConfig struct {
	I2CBus  string `yaml:"i2c_bus"`
	Address uint16 `yaml:"address"`
}

// ClimateConfig points at the sysfs IIO device exposed by the kernel DHT driver.
type ClimateConfig struct {
	IIODevice string `yaml:"iio_device"`
}

// MonitoringConfig controls the monitoring loop cadence.
type MonitoringConfig struct {
	// Interval between cycles (seconds).
	Interval int `yaml:"interval"`

	// InterActivationDelay is the pause between consecutive pump runs (seconds).
	InterActivationDelay int `yaml:"inter_activation_delay"`

	// MoistureCooldown is the minimum gap between two moisture-triggered
	// waterings of one plant (seconds). Scheduled waterings ignore it.
	MoistureCooldown int `yaml:"moisture_cooldown"`

	// AutoStart begins monitoring as soon as the process is up.
	AutoStart bool `yaml:"auto_start"`
}

// PlantConfig seeds the plant registry on first start.
type PlantConfig struct {
	Name                  string  `yaml:"name"`
	Position              int     `yaml:"position"`
	WaterAmountML         float64 `yaml:"water_amount_ml"`
	WateringFrequencyDays int     `yaml:"watering_frequency_days"`
	Active                *bool   `yaml:"active"`
}

// IsActive reports the configured active flag, defaulting to true.
func (p PlantConfig) IsActive() bool {
	return p.Active == nil || *p.Active
}

// DatabaseConfig contains SQLite database settings.
// An empty path keeps the plant registry in memory only.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// ReporterConfig configures status publication.
type ReporterConfig struct {
	// Endpoint is the base URL of the web interface that receives status
	// pushes. Empty disables the HTTP reporter.
	Endpoint string `yaml:"endpoint"`

	// Timeout for a single HTTP publish (seconds).
	Timeout int `yaml:"timeout"`

	Retry   RetryConfig   `yaml:"retry"`
	Breaker BreakerConfig `yaml:"breaker"`
}

// RetryConfig bounds publish retries.
type RetryConfig struct {
	MaxRetries      uint64 `yaml:"max_retries"`
	InitialInterval int    `yaml:"initial_interval_ms"`
	MaxInterval     int    `yaml:"max_interval_ms"`
}

// BreakerConfig tunes the circuit breaker that guards each reporter.
type BreakerConfig struct {
	ConsecutiveFailures uint32 `yaml:"consecutive_failures"`
	OpenTimeout         int    `yaml:"open_timeout"`
	Interval            int    `yaml:"interval"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: PLANTER_SECTION_KEY
// For example: PLANTER_HARDWARE_MODE, PLANTER_MONITORING_INTERVAL
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read, parsed, or fails validation
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults: simulated hardware, the
// three stock plants, and every outbound integration switched off.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "planter-001",
			Name: "Planter",
		},
		Hardware: HardwareConfig{
			Mode:                ModeSimulated,
			FlowRateMLPerSecond: 100,
			SafetyTimeout:       30,
			Pins: PinConfig{
				Pump1:       "GPIO23",
				Pump2:       "GPIO24",
				PumpEnable:  "GPIO25",
				StatusLED:   "GPIO12",
				WarningLED:  "GPIO13",
				WaterTop:    "GPIO5",
				WaterMiddle: "GPIO6",
				WaterBottom: "GPIO7",
			},
			Soil:    SoilConfig{Channel: 0},
			Light:   LightConfig{Address: 0x29},
			Climate: ClimateConfig{IIODevice: "/sys/bus/iio/devices/iio:device0"},
		},
		Monitoring: MonitoringConfig{
			Interval:             60,
			InterActivationDelay: 2,
			MoistureCooldown:     3600,
			AutoStart:            true,
		},
		Plants: []PlantConfig{
			{Name: "Snake Plant", Position: 0, WaterAmountML: 250, WateringFrequencyDays: 14},
			{Name: "Peace Lily", Position: 1, WaterAmountML: 300, WateringFrequencyDays: 7},
			{Name: "Spider Plant", Position: 2, WaterAmountML: 200, WateringFrequencyDays: 7},
		},
		Database: DatabaseConfig{
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "planter-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Reporter: ReporterConfig{
			Timeout: 10,
			Retry: RetryConfig{
				MaxRetries:      2,
				InitialInterval: 200,
				MaxInterval:     2000,
			},
			Breaker: BreakerConfig{
				ConsecutiveFailures: 5,
				OpenTimeout:         60,
				Interval:            0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PLANTER_HARDWARE_MODE"); v != "" {
		cfg.Hardware.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("PLANTER_MONITORING_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Monitoring.Interval = n
		}
	}
	if v := os.Getenv("PLANTER_REPORTER_ENDPOINT"); v != "" {
		cfg.Reporter.Endpoint = v
	}
	if v := os.Getenv("PLANTER_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("PLANTER_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("PLANTER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("PLANTER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("PLANTER_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("PLANTER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors. All problems are reported
// together so an operator can fix the file in one pass.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	switch c.Hardware.Mode {
	case ModeSimulated, ModePhysical:
	default:
		errs = append(errs, fmt.Sprintf("hardware.mode must be %q or %q", ModeSimulated, ModePhysical))
	}
	if c.Hardware.FlowRateMLPerSecond <= 0 {
		errs = append(errs, "hardware.flow_rate_ml_per_second must be positive")
	}
	if c.Hardware.SafetyTimeout < 1 {
		errs = append(errs, "hardware.safety_timeout must be at least 1 second")
	}

	if c.Monitoring.Interval < 1 {
		errs = append(errs, "monitoring.interval must be at least 1 second")
	}
	if c.Monitoring.InterActivationDelay < 0 {
		errs = append(errs, "monitoring.inter_activation_delay must not be negative")
	}
	if c.Monitoring.MoistureCooldown < 0 {
		errs = append(errs, "monitoring.moisture_cooldown must not be negative")
	}

	seen := make(map[int]string, len(c.Plants))
	for i, p := range c.Plants {
		if p.Name == "" {
			errs = append(errs, fmt.Sprintf("plants[%d].name is required", i))
		}
		if p.Position < 0 {
			errs = append(errs, fmt.Sprintf("plants[%d].position must not be negative", i))
		}
		if p.WaterAmountML <= 0 {
			errs = append(errs, fmt.Sprintf("plants[%d].water_amount_ml must be positive", i))
		}
		if p.WateringFrequencyDays < 1 {
			errs = append(errs, fmt.Sprintf("plants[%d].watering_frequency_days must be at least 1", i))
		}
		if other, ok := seen[p.Position]; ok {
			errs = append(errs, fmt.Sprintf("plants[%d] position %d already used by %q", i, p.Position, other))
		}
		seen[p.Position] = p.Name
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// MonitoringInterval returns the cycle interval as a Duration.
func (c *Config) MonitoringInterval() time.Duration {
	return time.Duration(c.Monitoring.Interval) * time.Second
}

// InterActivationDelay returns the pause between pump activations as a Duration.
func (c *Config) InterActivationDelay() time.Duration {
	return time.Duration(c.Monitoring.InterActivationDelay) * time.Second
}

// MoistureCooldown returns the minimum gap between moisture-triggered waterings.
func (c *Config) MoistureCooldown() time.Duration {
	return time.Duration(c.Monitoring.MoistureCooldown) * time.Second
}

// PumpSafetyTimeout returns the hard cap on a single pump run.
func (c *Config) PumpSafetyTimeout() time.Duration {
	return time.Duration(c.Hardware.SafetyTimeout) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
