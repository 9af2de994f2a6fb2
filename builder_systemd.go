package steamcmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/renameio/v2"
)

// stopTimeoutGrace pads TimeoutStopSec beyond the stop sequence's delay sum
// so the final quit command has time to land before systemd force-kills.
const stopTimeoutGrace = 15 * time.Second

// UnitBuilder renders and installs the systemd service and socket units for
// one server instance. The socket unit creates the instance's input channel
// before the server starts and removes it on stop; the service unit binds
// the server's standard input to that channel and points ExecStop at the
// dispatch binary. Both sides take the channel path from the same
// ServerInstance.ChannelPath() call.
type UnitBuilder struct {
	// Instance is the server deployment the units describe
	Instance *ServerInstance
	// UnitDir is the directory unit files are written to
	UnitDir string
	// RunUser is the user the server runs as and that owns the channel
	RunUser string
	// RunGroup is the group the server runs as and that can reach the channel
	RunGroup string
	// DispatchPath is the installed dispatch binary referenced by ExecStop
	DispatchPath string
	// StopCommands is the graceful stop sequence baked into ExecStop
	StopCommands []CommandSpec
	// UseSudo indicates whether to use sudo for privileged operations
	UseSudo bool
	// SudoCommand is the sudo command to use (default: "sudo")
	SudoCommand string
	// SystemctlPath is the path to the systemctl binary
	SystemctlPath string
}

// NewUnitBuilder creates a UnitBuilder for inst with default settings. The
// stop sequence defaults to the server definition's StopSequence.
func NewUnitBuilder(inst *ServerInstance) *UnitBuilder {
	return &UnitBuilder{
		Instance:      inst,
		UnitDir:       DefaultUnitDir,
		RunUser:       DefaultRunUser,
		RunGroup:      DefaultRunGroup,
		DispatchPath:  DefaultDispatchPath,
		StopCommands:  inst.Server.StopSequence,
		UseSudo:       os.Geteuid() != 0,
		SudoCommand:   "sudo",
		SystemctlPath: "systemctl",
	}
}

// WithUnitDir sets the systemd unit directory
func (b *UnitBuilder) WithUnitDir(dir string) *UnitBuilder {
	b.UnitDir = dir
	return b
}

// WithRunUser sets the user and group the server runs as
func (b *UnitBuilder) WithRunUser(user, group string) *UnitBuilder {
	b.RunUser = user
	b.RunGroup = group
	return b
}

// WithDispatchPath sets the dispatch binary path referenced by ExecStop
func (b *UnitBuilder) WithDispatchPath(path string) *UnitBuilder {
	b.DispatchPath = path
	return b
}

// WithStopCommands overrides the graceful stop sequence
func (b *UnitBuilder) WithStopCommands(specs []CommandSpec) *UnitBuilder {
	b.StopCommands = specs
	return b
}

// WithSudo configures sudo usage
func (b *UnitBuilder) WithSudo(use bool, command string) *UnitBuilder {
	b.UseSudo = use
	if command != "" {
		b.SudoCommand = command
	}
	return b
}

// execStopLine builds the ExecStop invocation of the dispatch binary,
// reconstructing the instance identity so the stop hook derives the same
// channel path the socket unit listens on.
func (b *UnitBuilder) execStopLine() string {
	parts := []string{
		b.DispatchPath,
		"-game", b.Instance.Server.Name,
		"-ref", b.Instance.Ref,
		"-pid", "$MAINPID",
	}
	if b.Instance.RuntimeDir != DefaultRuntimeDir {
		parts = append(parts, "-runtime-dir", unitQuote(b.Instance.RuntimeDir))
	}
	for _, spec := range b.StopCommands {
		parts = append(parts, "-cmd", unitQuote(spec.String()))
	}
	return strings.Join(parts, " ")
}

// BuildServiceUnit generates the service unit file content
func (b *UnitBuilder) BuildServiceUnit() (string, error) {
	if len(b.StopCommands) == 0 {
		return "", &OpError{Op: OpRender, Path: b.Instance.UnitPath(b.UnitDir), Err: fmt.Errorf("no stop commands configured")}
	}

	inst := b.Instance
	socketName := inst.ServiceName() + ".socket"
	stopTimeout := DelaySum(b.StopCommands) + stopTimeoutGrace

	var unit strings.Builder

	unit.WriteString("[Unit]\n")
	fmt.Fprintf(&unit, "Description=%s dedicated server (%s)\n", inst.Server.Name, inst.Ref)
	fmt.Fprintf(&unit, "After=network.target %s\n", socketName)
	fmt.Fprintf(&unit, "Requires=%s\n", socketName)
	unit.WriteString("\n")

	unit.WriteString("[Service]\n")
	unit.WriteString("Type=simple\n")
	fmt.Fprintf(&unit, "User=%s\n", b.RunUser)
	fmt.Fprintf(&unit, "Group=%s\n", b.RunGroup)
	fmt.Fprintf(&unit, "WorkingDirectory=%s\n", inst.InstallPath())
	fmt.Fprintf(&unit, "ExecStart=%s\n", inst.ExecutablePath())
	fmt.Fprintf(&unit, "ExecStop=%s\n", b.execStopLine())
	unit.WriteString("StandardInput=socket\n")
	unit.WriteString("StandardOutput=journal\n")
	unit.WriteString("StandardError=journal\n")
	fmt.Fprintf(&unit, "Sockets=%s\n", socketName)
	unit.WriteString("Restart=on-failure\n")
	unit.WriteString("RestartSec=5\n")
	unit.WriteString("KillMode=mixed\n")
	unit.WriteString("KillSignal=SIGTERM\n")
	fmt.Fprintf(&unit, "TimeoutStopSec=%d\n", int(stopTimeout.Seconds()))
	unit.WriteString("\n")

	unit.WriteString("[Install]\n")
	unit.WriteString("WantedBy=multi-user.target\n")

	return unit.String(), nil
}

// BuildSocketUnit generates the socket unit file content. The FIFO it
// listens on is the instance's channel: it exists, with the server reading
// from it, for the lifetime of the managed process.
func (b *UnitBuilder) BuildSocketUnit() (string, error) {
	inst := b.Instance

	var unit strings.Builder

	unit.WriteString("[Unit]\n")
	fmt.Fprintf(&unit, "Description=Console input channel for %s\n", inst.ServiceName())
	unit.WriteString("\n")

	unit.WriteString("[Socket]\n")
	fmt.Fprintf(&unit, "ListenFIFO=%s\n", inst.ChannelPath())
	fmt.Fprintf(&unit, "SocketMode=%04o\n", ChannelMode)
	fmt.Fprintf(&unit, "SocketUser=%s\n", b.RunUser)
	fmt.Fprintf(&unit, "SocketGroup=%s\n", b.RunGroup)
	unit.WriteString("RemoveOnStop=true\n")
	unit.WriteString("\n")

	unit.WriteString("[Install]\n")
	unit.WriteString("WantedBy=sockets.target\n")

	return unit.String(), nil
}

// Install renders both unit files, writes them into UnitDir, and reloads
// systemd so the new units are visible.
func (b *UnitBuilder) Install(ctx context.Context) error {
	serviceContent, err := b.BuildServiceUnit()
	if err != nil {
		return err
	}
	socketContent, err := b.BuildSocketUnit()
	if err != nil {
		return err
	}

	if err := b.writeUnitFile(ctx, b.Instance.UnitPath(b.UnitDir), serviceContent); err != nil {
		return &OpError{Op: OpRender, Path: b.Instance.UnitPath(b.UnitDir), Err: err}
	}
	if err := b.writeUnitFile(ctx, b.Instance.SocketUnitPath(b.UnitDir), socketContent); err != nil {
		return &OpError{Op: OpRender, Path: b.Instance.SocketUnitPath(b.UnitDir), Err: err}
	}

	return b.reloadSystemd(ctx)
}

// Remove deletes both unit files and reloads systemd
func (b *UnitBuilder) Remove(ctx context.Context) error {
	for _, path := range []string{
		b.Instance.UnitPath(b.UnitDir),
		b.Instance.SocketUnitPath(b.UnitDir),
	} {
		if err := b.removeFile(ctx, path); err != nil {
			return &OpError{Op: OpRender, Path: path, Err: err}
		}
	}
	return b.reloadSystemd(ctx)
}

// writeUnitFile writes a unit file atomically, via sudo tee when needed
func (b *UnitBuilder) writeUnitFile(ctx context.Context, path, content string) error {
	if !b.UseSudo {
		return renameio.WriteFile(path, []byte(content), FileMode)
	}

	cmd := exec.CommandContext(ctx, b.SudoCommand, "tee", path)
	cmd.Stdin = strings.NewReader(content)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("sudo tee failed: %w (output: %s)", err, out.String())
	}

	return nil
}

// removeFile deletes a file, via sudo when needed
func (b *UnitBuilder) removeFile(ctx context.Context, path string) error {
	if !b.UseSudo {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}

	cmd := exec.CommandContext(ctx, b.SudoCommand, "rm", "-f", path)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("sudo rm failed: %w (output: %s)", err, out.String())
	}

	return nil
}

// reloadSystemd runs systemctl daemon-reload
func (b *UnitBuilder) reloadSystemd(ctx context.Context) error {
	var cmd *exec.Cmd

	if b.UseSudo {
		cmd = exec.CommandContext(ctx, b.SudoCommand, b.SystemctlPath, "daemon-reload")
	} else {
		cmd = exec.CommandContext(ctx, b.SystemctlPath, "daemon-reload")
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("daemon-reload failed: %w (output: %s)", err, out.String())
	}

	return nil
}

// unitQuote escapes an argument for a systemd Exec* line
func unitQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}
