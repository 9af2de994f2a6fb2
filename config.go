package steamcmd

import (
	"os"

	"gopkg.in/yaml.v3"
)

// SteamCredentials authenticate downloads for applications that require a
// logged-in account. Left empty, installs use anonymous login.
type SteamCredentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Config holds host-level settings shared by the manager tools. Zero values
// fall back to the package defaults, so a partial config file is fine.
type Config struct {
	// SteamcmdPath is the path to the steamcmd binary
	SteamcmdPath string `yaml:"steamcmd_path"`
	// ScriptPath is where transient install runscripts are written
	ScriptPath string `yaml:"script_path"`
	// InstallBase is the base directory server installs live under
	InstallBase string `yaml:"install_base"`
	// RuntimeDir is the directory input channels are created in
	RuntimeDir string `yaml:"runtime_dir"`
	// UnitDir is the directory systemd unit files are written to
	UnitDir string `yaml:"unit_dir"`
	// DispatchPath is the installed dispatch binary referenced by ExecStop
	DispatchPath string `yaml:"dispatch_path"`
	// RunUser is the user server processes run as
	RunUser string `yaml:"run_user"`
	// RunGroup is the group server processes run as
	RunGroup string `yaml:"run_group"`
	// Steam holds download credentials
	Steam SteamCredentials `yaml:"steam"`
}

// DefaultConfig returns a Config populated with the package defaults
func DefaultConfig() *Config {
	return &Config{
		SteamcmdPath: DefaultSteamcmdPath,
		ScriptPath:   DefaultScriptPath,
		InstallBase:  DefaultInstallBase,
		RuntimeDir:   DefaultRuntimeDir,
		UnitDir:      DefaultUnitDir,
		DispatchPath: DefaultDispatchPath,
		RunUser:      DefaultRunUser,
		RunGroup:     DefaultRunGroup,
	}
}

// LoadConfig reads a YAML config file and overlays it onto the defaults.
// An empty path returns the defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &OpError{Op: OpConfig, Path: path, Err: err}
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &OpError{Op: OpConfig, Path: path, Err: err}
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults backfills fields an explicit config left empty
func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.SteamcmdPath == "" {
		c.SteamcmdPath = d.SteamcmdPath
	}
	if c.ScriptPath == "" {
		c.ScriptPath = d.ScriptPath
	}
	if c.InstallBase == "" {
		c.InstallBase = d.InstallBase
	}
	if c.RuntimeDir == "" {
		c.RuntimeDir = d.RuntimeDir
	}
	if c.UnitDir == "" {
		c.UnitDir = d.UnitDir
	}
	if c.DispatchPath == "" {
		c.DispatchPath = d.DispatchPath
	}
	if c.RunUser == "" {
		c.RunUser = d.RunUser
	}
	if c.RunGroup == "" {
		c.RunGroup = d.RunGroup
	}
}

// Instance constructs a ServerInstance for def/ref using this config's base
// directories, keeping path derivation identical across install and
// stop-time code paths.
func (c *Config) Instance(def *ServerDef, ref string) (*ServerInstance, error) {
	return NewServerInstance(def, ref,
		WithInstallBase(c.InstallBase),
		WithRuntimeDir(c.RuntimeDir),
	)
}
