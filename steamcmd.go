package steamcmd

import (
	"io/fs"
	"time"
)

// Host-level path defaults. All of these can be overridden through Config
// or the relevant builder/option.
const (
	// DefaultSteamcmdPath is the default path to the steamcmd binary
	DefaultSteamcmdPath = "/usr/games/steamcmd"

	// DefaultScriptPath is the default location of the transient runscript
	// file handed to steamcmd during installs
	DefaultScriptPath = "/home/steam/steamcmd-update.script"

	// DefaultInstallBase is the base directory server installs live under
	DefaultInstallBase = "/home/steam/games"

	// DefaultRuntimeDir is the directory where per-instance input channels
	// are created by their socket units
	DefaultRuntimeDir = "/run/steamcmd"

	// DefaultUnitDir is the directory systemd unit files are written to
	DefaultUnitDir = "/etc/systemd/system"

	// DefaultDispatchPath is the installed location of the dispatch binary
	// referenced by rendered ExecStop lines
	DefaultDispatchPath = "/usr/local/bin/steamcmd-dispatch"

	// DefaultRunUser is the user server processes run as
	DefaultRunUser = "steam"

	// DefaultRunGroup is the group server processes run as
	DefaultRunGroup = "steam"
)

// Channel writer defaults
const (
	// DefaultDialTimeout is the default timeout for channel socket connections
	DefaultDialTimeout = 2 * time.Second

	// DefaultWriteTimeout is the default timeout for a single channel write
	DefaultWriteTimeout = 1 * time.Second

	// DefaultBackoffMin is the minimum backoff between write attempts
	DefaultBackoffMin = 10 * time.Millisecond

	// DefaultBackoffMax is the maximum backoff between write attempts
	DefaultBackoffMax = 1 * time.Second

	// DefaultMaxAttempts bounds the open/write attempts within one WriteLine.
	// Delivery is best effort under a service-manager stop timeout, so this
	// stays small.
	DefaultMaxAttempts = 3
)

// File modes
const (
	// DirMode is the default mode for created directories
	DirMode fs.FileMode = 0o755

	// FileMode is the default mode for created files
	FileMode fs.FileMode = 0o644

	// ChannelMode is the mode socket units create input channels with
	ChannelMode fs.FileMode = 0o660
)

// Operation represents a library operation type, used to tag errors
type Operation int

const (
	// OpUnknown represents an unknown operation
	OpUnknown Operation = iota
	// OpResolve derives per-instance paths from (server, ref)
	OpResolve
	// OpWrite delivers one command line into an input channel
	OpWrite
	// OpDispatch runs an ordered command sequence against one channel
	OpDispatch
	// OpInstall installs or updates an application via steamcmd
	OpInstall
	// OpWorkshop fetches workshop metadata or content
	OpWorkshop
	// OpRender renders or installs configuration and unit files
	OpRender
	// OpConfig loads manager configuration
	OpConfig
)

// Operation string constants
const (
	opUnknownStr  = "unknown"
	opResolveStr  = "resolve"
	opWriteStr    = "write"
	opDispatchStr = "dispatch"
	opInstallStr  = "install"
	opWorkshopStr = "workshop"
	opRenderStr   = "render"
	opConfigStr   = "config"
)

// String returns the string representation of an Operation
func (op Operation) String() string {
	switch op {
	case OpResolve:
		return opResolveStr
	case OpWrite:
		return opWriteStr
	case OpDispatch:
		return opDispatchStr
	case OpInstall:
		return opInstallStr
	case OpWorkshop:
		return opWorkshopStr
	case OpRender:
		return opRenderStr
	case OpConfig:
		return opConfigStr
	default:
		return opUnknownStr
	}
}
