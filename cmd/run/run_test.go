package run

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/dhaneshkk/prolog-service/cmd"
	"github.com/dhaneshkk/prolog-service/cmd/util"
	serverconfig "github.com/dhaneshkk/prolog-service/internal/server/config"
)

func TestReadConfigReturnsDefaultsWithoutConfigFile(t *testing.T) {
	util.PrepareTempConfigDir(t)
	viper.Reset()
	t.Cleanup(viper.Reset)
	cmd.NewRootCommand()

	config, err := ReadConfig()
	require.NoError(t, err)
	require.Equal(t, serverconfig.DefaultConfig(), config)
}

func TestReadConfigReadsConfigFile(t *testing.T) {
	util.PrepareTempConfigFile(t, `maxConcurrentEvaluations: 4
http:
  addr: 127.0.0.1:8080
log:
  format: json
  level: warn
metrics:
  enabled: true
`)
	viper.Reset()
	t.Cleanup(viper.Reset)
	cmd.NewRootCommand()

	config, err := ReadConfig()
	require.NoError(t, err)
	require.NoError(t, config.Verify())

	require.EqualValues(t, 4, config.MaxConcurrentEvaluations)
	require.Equal(t, "127.0.0.1:8080", config.HTTP.Addr)
	require.Equal(t, "json", config.Log.Format)
	require.Equal(t, "warn", config.Log.Level)
	require.True(t, config.Metrics.Enabled)
}

func TestReadConfigRejectsMalformedConfigFile(t *testing.T) {
	util.PrepareTempConfigFile(t, `{not yaml`)
	viper.Reset()
	t.Cleanup(viper.Reset)
	cmd.NewRootCommand()

	_, err := ReadConfig()
	require.Error(t, err)
}

func TestReadConfigHonorsEnvironment(t *testing.T) {
	util.PrepareTempConfigDir(t)
	viper.Reset()
	t.Cleanup(viper.Reset)
	cmd.NewRootCommand()
	NewRunCommand()

	t.Setenv("PROLOG_SERVICE_HTTP_ADDR", "127.0.0.1:9999")
	t.Setenv("PROLOG_SERVICE_MAX_CONCURRENT_EVALUATIONS", "2")

	config, err := ReadConfig()
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9999", config.HTTP.Addr)
	require.EqualValues(t, 2, config.MaxConcurrentEvaluations)
}

func TestRunCommandFlagDefaultsMatchConfigDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	runCmd := NewRunCommand()
	defaultConfig := serverconfig.DefaultConfig()

	addr, err := runCmd.Flags().GetString("http-addr")
	require.NoError(t, err)
	require.Equal(t, defaultConfig.HTTP.Addr, addr)

	budget, err := runCmd.Flags().GetUint32("max-concurrent-evaluations")
	require.NoError(t, err)
	require.Equal(t, defaultConfig.MaxConcurrentEvaluations, budget)

	traceEnabled, err := runCmd.Flags().GetBool("trace-enabled")
	require.NoError(t, err)
	require.Equal(t, defaultConfig.Trace.Enabled, traceEnabled)
}
