package steamcmd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SteamcmdPath != DefaultSteamcmdPath {
		t.Errorf("SteamcmdPath = %q", cfg.SteamcmdPath)
	}
	if cfg.RuntimeDir != DefaultRuntimeDir {
		t.Errorf("RuntimeDir = %q", cfg.RuntimeDir)
	}
	if cfg.RunUser != DefaultRunUser {
		t.Errorf("RunUser = %q", cfg.RunUser)
	}
}

func TestLoadConfigOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
install_base: /srv/games
runtime_dir: /run/games
steam:
  username: deploy
  password: s3cret
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	// Overridden fields
	if cfg.InstallBase != "/srv/games" {
		t.Errorf("InstallBase = %q", cfg.InstallBase)
	}
	if cfg.RuntimeDir != "/run/games" {
		t.Errorf("RuntimeDir = %q", cfg.RuntimeDir)
	}
	if cfg.Steam.Username != "deploy" || cfg.Steam.Password != "s3cret" {
		t.Errorf("Steam = %+v", cfg.Steam)
	}

	// Untouched fields keep their defaults
	if cfg.SteamcmdPath != DefaultSteamcmdPath {
		t.Errorf("SteamcmdPath = %q, want default", cfg.SteamcmdPath)
	}
	if cfg.DispatchPath != DefaultDispatchPath {
		t.Errorf("DispatchPath = %q, want default", cfg.DispatchPath)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("{not yaml: ["), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestConfigInstance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InstallBase = "/srv/games"
	cfg.RuntimeDir = "/run/games"

	inst, err := cfg.Instance(Left4Dead2, "1")
	if err != nil {
		t.Fatal(err)
	}
	if inst.InstallPath() != "/srv/games/222860/1" {
		t.Errorf("InstallPath = %q", inst.InstallPath())
	}
	if inst.ChannelPath() != "/run/games/left4dead2-1.stdin" {
		t.Errorf("ChannelPath = %q", inst.ChannelPath())
	}
}
