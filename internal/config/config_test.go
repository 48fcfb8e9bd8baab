package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_MatchesDocumentedConstants(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 200_000, cfg.TokenEconomy.MaxContextTokens)
	assert.Equal(t, 0.8, cfg.TokenEconomy.BackoffThreshold)
	assert.Equal(t, 10.0, cfg.TokenEconomy.CostAlertThreshold)
	assert.Equal(t, 50.0, cfg.TokenEconomy.CostCriticalThreshold)
	assert.Equal(t, 50_000, cfg.TokenEconomy.SessionBudgetTokens)
	assert.Equal(t, 180, cfg.Database.CommandTimeoutSeconds)
}

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	v := viper.New()
	v.SetConfigName("does-not-exist-orchestrator-config")
	v.AddConfigPath(t.TempDir())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
}

func TestLoad_EnvVarOverride(t *testing.T) {
	t.Setenv("ORCHESTRATOR_SERVER_PORT", "9100")

	v := viper.New()
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
}

func TestDatabaseConfig_CommandTimeout_DefaultsWhenZero(t *testing.T) {
	d := DatabaseConfig{}
	assert.Equal(t, 180, int(d.CommandTimeout().Seconds()))
}

func TestLLMConfig_APITimeout_DefaultsWhenZero(t *testing.T) {
	l := LLMConfig{}
	assert.Equal(t, 300, int(l.APITimeout().Seconds()))
}
