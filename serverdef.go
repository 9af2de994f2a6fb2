package steamcmd

import (
	"fmt"
	"time"
)

// ServerDef describes one supported dedicated server application. The
// friendly Name participates in unit and channel naming, so it must stay a
// filesystem-safe token.
type ServerDef struct {
	// Name is the friendly name used in service, socket, and channel names
	Name string
	// AppID is the Steam application ID (https://steamdb.info/apps/)
	AppID int
	// Executable is the launch binary, relative to the install directory
	Executable string
	// GameDir is the game content directory, relative to the install directory
	GameDir string
	// Sourcemod reports whether metamod/sourcemod can be installed
	Sourcemod bool
	// StopSequence is the default graceful-shutdown command sequence,
	// ending with the server's quit command
	StopSequence []CommandSpec
}

// srcdsStopSequence is the stop sequence shared by Source engine servers:
// warn connected players, wait for the warning to land, then quit.
func srcdsStopSequence() []CommandSpec {
	return []CommandSpec{
		{Text: "say Server shutting down in 10 seconds", Delay: 10 * time.Second},
		{Text: "quit"},
	}
}

// Known server definitions
var (
	// Left4Dead2 is the Left 4 Dead 2 dedicated server
	Left4Dead2 = &ServerDef{
		Name:         "left4dead2",
		AppID:        222860,
		Executable:   "srcds_run",
		GameDir:      "left4dead2",
		Sourcemod:    true,
		StopSequence: srcdsStopSequence(),
	}

	// Left4Dead is the Left 4 Dead dedicated server
	Left4Dead = &ServerDef{
		Name:         "left4dead",
		AppID:        222840,
		Executable:   "srcds_run",
		GameDir:      "left4dead",
		Sourcemod:    true,
		StopSequence: srcdsStopSequence(),
	}

	// GarrysMod is the Garry's Mod dedicated server
	GarrysMod = &ServerDef{
		Name:         "garrysmod",
		AppID:        4020,
		Executable:   "srcds_run",
		GameDir:      "garrysmod",
		Sourcemod:    true,
		StopSequence: srcdsStopSequence(),
	}
)

// registry maps friendly names to server definitions
var registry = map[string]*ServerDef{
	Left4Dead2.Name: Left4Dead2,
	Left4Dead.Name:  Left4Dead,
	GarrysMod.Name:  GarrysMod,
}

// LookupServer returns the server definition registered under name
func LookupServer(name string) (*ServerDef, error) {
	def, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownServer, name)
	}
	return def, nil
}

// RegisterServer adds a definition to the registry, replacing any existing
// entry with the same name. Intended for callers managing games outside the
// built-in set.
func RegisterServer(def *ServerDef) error {
	if def == nil || def.Name == "" {
		return fmt.Errorf("%w: empty definition", ErrUnknownServer)
	}
	if !validRef(def.Name) {
		return fmt.Errorf("%w: name %q is not a filesystem-safe token", ErrInvalidReference, def.Name)
	}
	registry[def.Name] = def
	return nil
}
