package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/config"
)

// clearEnv blanks every variable Load may read; viper ignores empty values.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PAYROLL_DATABASE_PATH", "DATABASE_PATH",
		"PAYROLL_MINIMUM_WAGE", "PAYROLL_PAYROLL_MINIMUM_WAGE", "MINIMUM_WAGE",
		"PAYROLL_SERVER_PORT", "PORT",
		"PAYROLL_LOGGER_LEVEL", "LOG_LEVEL",
		"PAYROLL_LOGGER_FORMAT",
	} {
		t.Setenv(k, "")
	}
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const sampleYAML = `
server:
  host: 127.0.0.1
  port: 9090
  read_timeout: 5s
database:
  path: memory
payroll:
  minimum_wage: "4000"
  entity_minimum_wage:
    acme: "5000"
logger:
  level: debug
  format: console
`

func TestLoad_FromFile(t *testing.T) {
	// GIVEN: A YAML file overriding a few keys
	// WHEN: It is loaded
	// THEN: File values win, the rest fall back to defaults
	clearEnv(t)
	cfg, err := config.Load(writeYAML(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr())
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
	assert.True(t, cfg.Database.InMemory())
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "stdout", cfg.Logger.OutputPath)

	policy, err := cfg.Payroll.MinimumWagePolicy()
	require.NoError(t, err)
	assert.Equal(t, "4000.00", policy.Default.String())
	assert.Equal(t, "5000.00", policy.For("acme").String())
	assert.Equal(t, "5000.00", policy.For("ACME").String())
	assert.Equal(t, "4000.00", policy.For("globex").String())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/payroll.db", cfg.Database.Path)
	assert.False(t, cfg.Database.InMemory())
	assert.Equal(t, "json", cfg.Logger.Format)

	policy, err := cfg.Payroll.MinimumWagePolicy()
	require.NoError(t, err)
	assert.True(t, policy.Default.IsZero())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	// GIVEN: Prefixed and short environment variables
	// WHEN: Config is loaded on top of a file
	// THEN: The environment wins over the file
	clearEnv(t)
	t.Setenv("PORT", "7070")
	t.Setenv("MINIMUM_WAGE", "4500")
	t.Setenv("PAYROLL_DATABASE_PATH", "/tmp/payroll-test.db")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := config.Load(writeYAML(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "4500", cfg.Payroll.MinimumWage)
	assert.Equal(t, "/tmp/payroll-test.db", cfg.Database.Path)
	assert.Equal(t, "warn", cfg.Logger.Level)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"port":            "server:\n  port: 70000\n",
		"format":          "logger:\n  format: xml\n",
		"negative wage":   "payroll:\n  minimum_wage: \"-1\"\n",
		"malformed wage":  "payroll:\n  minimum_wage: lots\n",
		"entity override": "payroll:\n  entity_minimum_wage:\n    acme: abc\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			_, err := config.Load(writeYAML(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	clearEnv(t)
	_, err := config.Load(writeYAML(t, "server: [unclosed\n"))
	assert.Error(t, err)
}

func TestMinimumWagePolicy_BlankIsZero(t *testing.T) {
	p := config.PayrollConfig{MinimumWage: "  "}
	policy, err := p.MinimumWagePolicy()
	require.NoError(t, err)
	assert.True(t, policy.Default.IsZero())
	assert.Nil(t, policy.PerEntity)
}
