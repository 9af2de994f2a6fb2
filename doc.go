// Package steamcmd provides a native Go library for installing and managing
// dedicated game servers deployed through Valve's steamcmd tool and
// supervised by systemd.
//
// The core functionality centers around the graceful-shutdown dispatch
// subsystem: each managed server runs with its standard input bound to a
// named channel (a FIFO or local socket created by a systemd socket unit),
// and the Dispatcher delivers an ordered sequence of console commands into
// that channel at stop time, ending with the server's quit command:
//
//	def, _ := steamcmd.LookupServer("left4dead2")
//	inst, _ := steamcmd.NewServerInstance(def, "0")
//
//	writer := steamcmd.NewChannelWriter(inst.ChannelPath())
//	d := steamcmd.NewDispatcher(writer)
//	sent, err := d.Dispatch(ctx, def.StopSequence)
//
// # Channel Ownership
//
// The library never creates or removes the channel itself. The socket unit
// rendered by UnitBuilder owns the channel's lifecycle: it exists, with a
// reader attached, for the lifetime of the managed process. A write against
// an absent channel or one with no reader reports ErrChannelNotReady; an
// I/O failure after a successful open reports ErrChannelWriteFailed.
//
// # Design Philosophy
//
// This library prioritizes:
//
//   - A single path-derivation function shared between unit rendering and
//     stop-time dispatch (no way for the two to diverge)
//   - Fail-fast, bounded shutdown windows over reliable delivery
//   - Explicit injected loggers, no process-global logging state
//   - Context-aware operations with proper timeouts
//
// The installer, workshop, sourcemod, and unit-rendering types are
// mechanical collaborators around the dispatch core. They are included
// because a server that cannot be installed and wired to its socket unit
// has nothing to shut down gracefully.
package steamcmd
