package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	d := Default()
	require.Equal(t, 1000, d.PersistIntervalMS)
	require.Equal(t, 30, d.WaitDefaultTimeoutS)
	require.EqualValues(t, 262144, d.WorkspaceCapacityBytes)
	require.Equal(t, []string{"persist."}, d.PersistPrefixes)
}

func TestDurationHelpers(t *testing.T) {
	c := Default()
	require.Equal(t, 1*time.Second, c.PersistInterval())
	require.Equal(t, 30*time.Second, c.WaitDefaultTimeout())
}

func TestHasPersistPrefix(t *testing.T) {
	c := Default()
	require.True(t, c.HasPersistPrefix("persist.sys.locale"))
	require.False(t, c.HasPersistPrefix("const.product.model"))
}

func TestLoad_FlagOverridesDefault(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Set("persist-interval-ms", "2500"))
	require.NoError(t, fs.Set("wait-default-timeout-s", "5"))

	cfg, err := Load(fs, "")
	require.NoError(t, err)
	require.Equal(t, 2500, cfg.PersistIntervalMS)
	require.Equal(t, 5, cfg.WaitDefaultTimeoutS)
}

func TestLoad_NoFlagsUsesDefaults(t *testing.T) {
	cfg, err := Load(nil, "")
	require.NoError(t, err)
	require.Equal(t, Default().PersistIntervalMS, cfg.PersistIntervalMS)
	require.Equal(t, Default().ServerSocketPath, cfg.ServerSocketPath)
}
