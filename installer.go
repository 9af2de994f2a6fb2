package steamcmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/sirupsen/logrus"
)

// Installer installs or updates server applications through the steamcmd
// tool. It renders a transient runscript, hands it to steamcmd, and removes
// it afterwards regardless of outcome.
type Installer struct {
	// SteamcmdPath is the path to the steamcmd binary
	SteamcmdPath string
	// ScriptPath is where the transient runscript is written
	ScriptPath string
	// Username authenticates the download when the app requires it
	Username string
	// Password authenticates the download when the app requires it
	Password string
	// Log receives install progress
	Log *logrus.Logger
}

// NewInstaller creates an Installer from host configuration
func NewInstaller(cfg *Config) *Installer {
	return &Installer{
		SteamcmdPath: cfg.SteamcmdPath,
		ScriptPath:   cfg.ScriptPath,
		Username:     cfg.Steam.Username,
		Password:     cfg.Steam.Password,
		Log:          discardLogger(),
	}
}

// WithInstallLogger sets the logger install progress is reported to
func (in *Installer) WithInstallLogger(log *logrus.Logger) *Installer {
	if log != nil {
		in.Log = log
	}
	return in
}

// buildScript renders the steamcmd runscript for installing inst
func (in *Installer) buildScript(inst *ServerInstance) string {
	var script strings.Builder

	script.WriteString("@ShutdownOnFailedCommand 1\n")
	script.WriteString("@NoPromptForPassword 1\n")
	fmt.Fprintf(&script, "force_install_dir %s\n", inst.InstallPath())
	if in.Username != "" {
		fmt.Fprintf(&script, "login %s %s\n", in.Username, in.Password)
	} else {
		script.WriteString("login anonymous\n")
	}
	fmt.Fprintf(&script, "app_update %d validate\n", inst.Server.AppID)
	script.WriteString("quit\n")

	return script.String()
}

// Install installs or updates inst's application at its derived install
// path. Output from steamcmd is captured and folded into the error on
// failure; the runscript never outlives the call.
func (in *Installer) Install(ctx context.Context, inst *ServerInstance) error {
	in.Log.WithFields(logrus.Fields{
		"app_id": inst.Server.AppID,
		"ref":    inst.Ref,
	}).Info("installing app")

	script := in.buildScript(inst)
	if err := renameio.WriteFile(in.ScriptPath, []byte(script), FileMode); err != nil {
		return &OpError{Op: OpInstall, Path: in.ScriptPath, Err: err}
	}
	defer func() { _ = os.Remove(in.ScriptPath) }()

	scriptAbs, err := filepath.Abs(in.ScriptPath)
	if err != nil {
		return &OpError{Op: OpInstall, Path: in.ScriptPath, Err: err}
	}

	cmd := exec.CommandContext(ctx, in.SteamcmdPath, "+runscript", scriptAbs)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return &OpError{
			Op:   OpInstall,
			Path: in.SteamcmdPath,
			Err:  fmt.Errorf("steamcmd failed for app %d ref %s: %w (output: %s)", inst.Server.AppID, inst.Ref, err, out.String()),
		}
	}

	in.Log.WithFields(logrus.Fields{
		"app_id": inst.Server.AppID,
		"ref":    inst.Ref,
	}).Info("finished installing app")

	return nil
}
