// Package config loads server configuration from YAML, .env and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Payroll  PayrollConfig  `mapstructure:"payroll"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// Addr is host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig selects the store. An empty path or "memory" uses the
// in-memory store.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

func (d DatabaseConfig) InMemory() bool {
	return d.Path == "" || d.Path == "memory"
}

// PayrollConfig holds the business parameters of the exception scan and the
// benefit catalog.
type PayrollConfig struct {
	MinimumWage          string            `mapstructure:"minimum_wage"`
	EntityMinimumWage    map[string]string `mapstructure:"entity_minimum_wage"`
	BenefitTemplatesFile string            `mapstructure:"benefit_templates_file"`
}

// MinimumWagePolicy converts the configured amounts.
func (p PayrollConfig) MinimumWagePolicy() (payroll.MinimumWagePolicy, error) {
	def, err := parseAmount("payroll.minimum_wage", p.MinimumWage)
	if err != nil {
		return payroll.MinimumWagePolicy{}, err
	}
	policy := payroll.MinimumWagePolicy{Default: def}
	if len(p.EntityMinimumWage) > 0 {
		policy.PerEntity = make(map[string]generic.Money, len(p.EntityMinimumWage))
		for entity, raw := range p.EntityMinimumWage {
			m, err := parseAmount("payroll.entity_minimum_wage."+entity, raw)
			if err != nil {
				return payroll.MinimumWagePolicy{}, err
			}
			policy.PerEntity[entity] = m
		}
	}
	return policy, nil
}

func parseAmount(key, raw string) (generic.Money, error) {
	if strings.TrimSpace(raw) == "" {
		return generic.ZeroMoney, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return generic.Money{}, fmt.Errorf("%s: %w", key, err)
	}
	if d.IsNegative() {
		return generic.Money{}, fmt.Errorf("%s must not be negative", key)
	}
	return generic.MoneyOf(d), nil
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads configPath (optional; a missing file falls back to defaults),
// then .env, then the environment.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("PAYROLL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*", "http://127.0.0.1:*"})

	v.SetDefault("database.path", "data/payroll.db")

	v.SetDefault("payroll.minimum_wage", "0")
	v.SetDefault("payroll.benefit_templates_file", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the short, unprefixed names operators tend to set.
func bindEnvVars(v *viper.Viper) {
	v.BindEnv("database.path", "PAYROLL_DATABASE_PATH", "DATABASE_PATH")
	v.BindEnv("payroll.minimum_wage", "PAYROLL_MINIMUM_WAGE", "MINIMUM_WAGE")
	v.BindEnv("server.port", "PAYROLL_SERVER_PORT", "PORT")
	v.BindEnv("logger.level", "PAYROLL_LOGGER_LEVEL", "LOG_LEVEL")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if _, err := c.Payroll.MinimumWagePolicy(); err != nil {
		return err
	}
	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console, got %q", c.Logger.Format)
	}
	return nil
}
