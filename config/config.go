// Package config loads paramd's typed configuration from flags, environment
// variables, and an optional config file, layered with github.com/spf13/viper
// the way the teacher's cobra command tree layers its own persistent flags.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every knob listed in spec.md §6.
type Config struct {
	// PersistIntervalMS is how often the persistence flush timer fires.
	PersistIntervalMS int
	// WaitDefaultTimeoutS is used when a client's wait timeout is <= 0.
	WaitDefaultTimeoutS int
	// WorkspaceCapacityBytes is the fixed size of each memory-mapped workspace file.
	WorkspaceCapacityBytes uint32
	// LogLevel is one of DEBUG, INFO, WARNING, ERROR, FATAL.
	LogLevel string
	// LogFormat is "text" or "json".
	LogFormat string

	// PersistPrefixes lists the name prefixes saved across reboots.
	PersistPrefixes []string

	// DefaultWorkspacePath is the backing file for the default workspace.
	DefaultWorkspacePath string
	// PersistWorkspacePath is the backing file for the persist workspace.
	PersistWorkspacePath string
	// DACWorkspacePath is the backing file for the dac workspace.
	DACWorkspacePath string
	// PersistFilePath is the durable persistence file (written through a
	// temporary file in the same directory, then renamed over it).
	PersistFilePath string

	// ServerSocketPath is the privileged request socket.
	ServerSocketPath string
	// ControlSocketPath is the auxiliary control-channel socket.
	ControlSocketPath string
	// ModuleManagerSocketPath is the external module-loader socket that
	// the control channel's MODULE verb forwards to. Empty disables it.
	ModuleManagerSocketPath string

	// ShellUID/ShellGID are the credentials PARAM_SHELL drops to before exec.
	ShellUID int
	ShellGID int
}

// PersistInterval returns PersistIntervalMS as a time.Duration.
func (c Config) PersistInterval() time.Duration {
	return time.Duration(c.PersistIntervalMS) * time.Millisecond
}

// WaitDefaultTimeout returns WaitDefaultTimeoutS as a time.Duration.
func (c Config) WaitDefaultTimeout() time.Duration {
	return time.Duration(c.WaitDefaultTimeoutS) * time.Second
}

// Default returns the documented defaults from spec.md §6.
func Default() Config {
	return Config{
		PersistIntervalMS:      1000,
		WaitDefaultTimeoutS:    30,
		WorkspaceCapacityBytes: 262144,
		LogLevel:               "INFO",
		LogFormat:              "text",
		PersistPrefixes:        []string{"persist."},
		DefaultWorkspacePath:   "/dev/__parameters__/param_default",
		PersistWorkspacePath:   "/dev/__parameters__/param_persist",
		DACWorkspacePath:       "/dev/__parameters__/param_dac",
		PersistFilePath:        "/data/parameters/persist.dat",
		ServerSocketPath:       "/dev/unix/socket/param_service",
		ControlSocketPath:      "/dev/unix/socket/param_control",
		ModuleManagerSocketPath: "",
		ShellUID:               2000,
		ShellGID:               2000,
	}
}

// BindFlags registers the knobs as POSIX flags on fs, for use by cobra
// commands that embed this config (the teacher's cmd/root.go pattern).
func BindFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.Int("persist-interval-ms", d.PersistIntervalMS, "persistence flush interval in milliseconds")
	fs.Int("wait-default-timeout-s", d.WaitDefaultTimeoutS, "default wait timeout in seconds")
	fs.Uint32("workspace-capacity-bytes", d.WorkspaceCapacityBytes, "capacity of each memory-mapped workspace")
	fs.String("log-level", d.LogLevel, "log level: DEBUG, INFO, WARNING, ERROR, FATAL")
	fs.StringSlice("persist-prefix", d.PersistPrefixes, "name prefix saved across reboots (repeatable)")
	fs.String("default-workspace", d.DefaultWorkspacePath, "path to the default workspace backing file")
	fs.String("persist-workspace", d.PersistWorkspacePath, "path to the persist workspace backing file")
	fs.String("dac-workspace", d.DACWorkspacePath, "path to the dac workspace backing file")
	fs.String("persist-file", d.PersistFilePath, "path to the durable persistence file")
	fs.String("server-socket", d.ServerSocketPath, "path to the server request socket")
	fs.String("control-socket", d.ControlSocketPath, "path to the control-channel socket")
	fs.String("module-manager-socket", d.ModuleManagerSocketPath, "path to the external module-manager socket")
	fs.Int("shell-uid", d.ShellUID, "uid PARAM_SHELL drops to before exec")
	fs.Int("shell-gid", d.ShellGID, "gid PARAM_SHELL drops to before exec")
}

// Load builds a Config from defaults, an optional config file, environment
// variables prefixed PARAM_, and finally the bound flags, in ascending
// priority (flags win).
func Load(fs *pflag.FlagSet, configFile string) (Config, error) {
	v := viper.New()
	d := Default()
	v.SetDefault("persist-interval-ms", d.PersistIntervalMS)
	v.SetDefault("wait-default-timeout-s", d.WaitDefaultTimeoutS)
	v.SetDefault("workspace-capacity-bytes", d.WorkspaceCapacityBytes)
	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("persist-prefix", d.PersistPrefixes)
	v.SetDefault("default-workspace", d.DefaultWorkspacePath)
	v.SetDefault("persist-workspace", d.PersistWorkspacePath)
	v.SetDefault("dac-workspace", d.DACWorkspacePath)
	v.SetDefault("persist-file", d.PersistFilePath)
	v.SetDefault("server-socket", d.ServerSocketPath)
	v.SetDefault("control-socket", d.ControlSocketPath)
	v.SetDefault("module-manager-socket", d.ModuleManagerSocketPath)
	v.SetDefault("shell-uid", d.ShellUID)
	v.SetDefault("shell-gid", d.ShellGID)

	v.SetEnvPrefix("PARAM")
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	cfg := d
	cfg.PersistIntervalMS = v.GetInt("persist-interval-ms")
	cfg.WaitDefaultTimeoutS = v.GetInt("wait-default-timeout-s")
	cfg.WorkspaceCapacityBytes = uint32(v.GetUint("workspace-capacity-bytes"))
	cfg.LogLevel = v.GetString("log-level")
	if prefixes := v.GetStringSlice("persist-prefix"); len(prefixes) > 0 {
		cfg.PersistPrefixes = prefixes
	}
	cfg.DefaultWorkspacePath = v.GetString("default-workspace")
	cfg.PersistWorkspacePath = v.GetString("persist-workspace")
	cfg.DACWorkspacePath = v.GetString("dac-workspace")
	cfg.PersistFilePath = v.GetString("persist-file")
	cfg.ServerSocketPath = v.GetString("server-socket")
	cfg.ControlSocketPath = v.GetString("control-socket")
	cfg.ModuleManagerSocketPath = v.GetString("module-manager-socket")
	cfg.ShellUID = v.GetInt("shell-uid")
	cfg.ShellGID = v.GetInt("shell-gid")

	return cfg, nil
}

// HasPersistPrefix reports whether name matches one of cfg's persist prefixes.
func (c Config) HasPersistPrefix(name string) bool {
	for _, p := range c.PersistPrefixes {
		if len(name) >= len(p) && name[:len(p)] == p {
			return true
		}
	}
	return false
}
