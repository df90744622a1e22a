// Package config provides configuration management for the Celima gateway.
// It supports environment variables, an optional config file and defaults;
// the three historical positional arguments (broker, client id, prefix)
// override everything.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ernestoguevaraa/celima-iot/internal/domain"
)

// Config holds all configuration for the gateway.
type Config struct {
	// Environment is the deployment environment (development, staging, production)
	Environment string `mapstructure:"environment"`

	// FactorsPath optionally points at a YAML piece-factor table.
	FactorsPath string `mapstructure:"factors_path"`

	MQTT    MQTTConfig    `mapstructure:"mqtt"`
	Topics  TopicsConfig  `mapstructure:"topics"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// MQTTConfig holds MQTT client configuration.
type MQTTConfig struct {
	BrokerURL      string        `mapstructure:"broker_url"`
	ClientID       string        `mapstructure:"client_id"`
	UniqueClientID bool          `mapstructure:"unique_client_id"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	CleanSession   bool          `mapstructure:"clean_session"`
	QoS            byte          `mapstructure:"qos"`
	KeepAlive      time.Duration `mapstructure:"keep_alive"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	TLSEnabled     bool          `mapstructure:"tls_enabled"`
	TLSCertFile    string        `mapstructure:"tls_cert_file"`
	TLSKeyFile     string        `mapstructure:"tls_key_file"`
	TLSCAFile      string        `mapstructure:"tls_ca_file"`
	BufferSize     int           `mapstructure:"buffer_size"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

// TopicsConfig holds the inbound topics and the outbound ISA-95 prefix.
// The prefix is concatenated verbatim with the line id and machine suffix;
// deployments must supply a prefix ending in the expected delimiter.
type TopicsConfig struct {
	Data   string `mapstructure:"data"`
	Error  string `mapstructure:"error"`
	Join   string `mapstructure:"join"`
	Ack    string `mapstructure:"ack"`
	Prefix string `mapstructure:"prefix"`
}

// HTTPConfig holds the admin/metrics HTTP server configuration.
type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// Load loads configuration from files and environment variables.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/celima-gateway")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file: defaults and env vars apply.
	}

	v.SetEnvPrefix("CELIMA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// ApplyArgs overlays the historical positional arguments:
// gateway [broker [client-id [prefix]]].
func (c *Config) ApplyArgs(args []string) {
	if len(args) > 0 && args[0] != "" {
		c.MQTT.BrokerURL = args[0]
	}
	if len(args) > 1 && args[1] != "" {
		c.MQTT.ClientID = args[1]
	}
	if len(args) > 2 && args[2] != "" {
		c.Topics.Prefix = args[2]
	}
}

// Validate checks the configuration for fatal startup errors.
func (c *Config) Validate() error {
	if c.MQTT.BrokerURL == "" {
		return domain.ErrBrokerURIRequired
	}
	if c.MQTT.ClientID == "" {
		return domain.ErrClientIDRequired
	}
	if c.Topics.Prefix == "" {
		return domain.ErrPrefixRequired
	}
	if c.MQTT.QoS > 2 {
		return domain.ErrInvalidQoS
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "production")
	v.SetDefault("factors_path", "")

	v.SetDefault("mqtt.broker_url", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "celima-integration")
	v.SetDefault("mqtt.unique_client_id", false)
	// The PLC bridge resends on reconnect; a persistent session keeps QoS1
	// messages queued while the gateway is away.
	v.SetDefault("mqtt.clean_session", false)
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.keep_alive", 30*time.Second)
	v.SetDefault("mqtt.connect_timeout", 10*time.Second)
	v.SetDefault("mqtt.reconnect_delay", 5*time.Second)
	v.SetDefault("mqtt.buffer_size", 10000)
	v.SetDefault("mqtt.publish_timeout", 5*time.Second)

	v.SetDefault("topics.data", "celima/data")
	v.SetDefault("topics.error", "celima/error")
	v.SetDefault("topics.join", "celima/join")
	v.SetDefault("topics.ack", "celima/ACK")
	v.SetDefault("topics.prefix", "celima/punta_hermosa/planta/linea")

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func bindEnvVars(v *viper.Viper) {
	// Names kept from the original deployment scripts.
	_ = v.BindEnv("mqtt.broker_url", "CELIMA_MQTT_BROKER_URL", "MQTT_BROKER")
	_ = v.BindEnv("mqtt.client_id", "CELIMA_MQTT_CLIENT_ID", "MQTT_CLIENT_ID")
	_ = v.BindEnv("topics.prefix", "CELIMA_TOPICS_PREFIX", "ISA95_PREFIX")
	_ = v.BindEnv("mqtt.username", "CELIMA_MQTT_USERNAME")
	_ = v.BindEnv("mqtt.password", "CELIMA_MQTT_PASSWORD")
	_ = v.BindEnv("http.port", "CELIMA_HTTP_PORT")
	_ = v.BindEnv("factors_path", "CELIMA_FACTORS_PATH")
	_ = v.BindEnv("logging.level", "CELIMA_LOGGING_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("logging.format", "CELIMA_LOGGING_FORMAT", "LOG_FORMAT")
}
