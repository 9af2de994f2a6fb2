package steamcmd

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
)

// DefaultRef is the reference assigned to an instance when none is given.
// References are ordinals by convention, but any filesystem-safe token works.
const DefaultRef = "0"

// refPattern matches filesystem-safe reference tokens. No separators, no
// leading dots: the ref is embedded verbatim in unit names and channel paths.
var refPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// validRef reports whether ref is a filesystem-safe token
func validRef(ref string) bool {
	return refPattern.MatchString(ref)
}

// ServerInstance identifies one managed deployment of a server: a server
// definition plus the reference distinguishing it from sibling deployments
// of the same game on one host.
//
// Every path an instance exposes is a pure function of (Server, Ref) and
// the two base directories. ChannelPath in particular is shared between
// unit rendering and stop-time dispatch; both sides must construct their
// ServerInstance the same way or shutdown silently breaks.
type ServerInstance struct {
	// Server is the game definition
	Server *ServerDef
	// Ref distinguishes this instance from siblings of the same game
	Ref string
	// InstallBase is the base directory installs live under
	InstallBase string
	// RuntimeDir is the directory the input channel is created in
	RuntimeDir string
}

// InstanceOption configures a ServerInstance
type InstanceOption func(*ServerInstance)

// WithInstallBase overrides the base install directory
func WithInstallBase(dir string) InstanceOption {
	return func(i *ServerInstance) {
		i.InstallBase = dir
	}
}

// WithRuntimeDir overrides the runtime directory holding the input channel
func WithRuntimeDir(dir string) InstanceOption {
	return func(i *ServerInstance) {
		i.RuntimeDir = dir
	}
}

// NewServerInstance creates a ServerInstance for def with the given
// reference. An empty ref defaults to DefaultRef; an invalid ref is
// rejected immediately rather than surfacing later as a bad channel path.
func NewServerInstance(def *ServerDef, ref string, opts ...InstanceOption) (*ServerInstance, error) {
	if def == nil {
		return nil, &OpError{Op: OpResolve, Path: "", Err: ErrUnknownServer}
	}
	if ref == "" {
		ref = DefaultRef
	}
	if !validRef(ref) {
		return nil, &OpError{
			Op:   OpResolve,
			Path: ref,
			Err:  fmt.Errorf("%w: %q is not a filesystem-safe token", ErrInvalidReference, ref),
		}
	}

	i := &ServerInstance{
		Server:      def,
		Ref:         ref,
		InstallBase: DefaultInstallBase,
		RuntimeDir:  DefaultRuntimeDir,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i, nil
}

// ServiceName returns the systemd service/socket base name for this instance
func (i *ServerInstance) ServiceName() string {
	return fmt.Sprintf("%s-%s", i.Server.Name, i.Ref)
}

// ChannelPath returns the path of the named channel bound to this
// instance's standard input. Deterministic and injective across refs: two
// distinct active instances can never resolve to the same path.
func (i *ServerInstance) ChannelPath() string {
	return filepath.Join(i.RuntimeDir, i.ServiceName()+".stdin")
}

// UnitPath returns the path of the service unit file under unitDir
func (i *ServerInstance) UnitPath(unitDir string) string {
	return filepath.Join(unitDir, i.ServiceName()+".service")
}

// SocketUnitPath returns the path of the socket unit file under unitDir
func (i *ServerInstance) SocketUnitPath(unitDir string) string {
	return filepath.Join(unitDir, i.ServiceName()+".socket")
}

// InstallPath returns the directory this instance is installed into
func (i *ServerInstance) InstallPath() string {
	return filepath.Join(i.InstallBase, strconv.Itoa(i.Server.AppID), i.Ref)
}

// GamePath returns the game content directory inside the install
func (i *ServerInstance) GamePath() string {
	return filepath.Join(i.InstallPath(), i.Server.GameDir)
}

// AddonsPath returns the addons directory inside the game content directory
func (i *ServerInstance) AddonsPath() string {
	return filepath.Join(i.GamePath(), "addons")
}

// ExecutablePath returns the launch binary path inside the install
func (i *ServerInstance) ExecutablePath() string {
	return filepath.Join(i.InstallPath(), i.Server.Executable)
}
