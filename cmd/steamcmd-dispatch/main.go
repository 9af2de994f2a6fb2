// Command steamcmd-dispatch is the graceful-shutdown hook referenced by
// generated service units. systemd invokes it at stop time with the managed
// process's PID; it derives the instance's input channel from (-game, -ref)
// and delivers the -cmd sequence in order, ending with the server's quit
// command. Once it returns, systemd's own stop timeout owns termination.
//
// Exit status is non-zero only when the first command could not be
// delivered (or the invocation itself was invalid); partial delivery under
// a deadline, and failures after the first command, exit zero because the
// shutdown is already in progress and systemd will finish it regardless.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	steamcmd "github.com/gamestack/go-steamcmd"
)

// commandList collects repeated -cmd flags as parsed CommandSpecs, keeping
// command text and delay in one structured value instead of two parallel
// flag lists that have to stay index-aligned.
type commandList struct {
	specs []steamcmd.CommandSpec
}

func (c *commandList) String() string {
	parts := make([]string, 0, len(c.specs))
	for _, spec := range c.specs {
		parts = append(parts, spec.String())
	}
	return strings.Join(parts, ", ")
}

func (c *commandList) Set(value string) error {
	spec, err := steamcmd.ParseCommandSpec(value)
	if err != nil {
		return err
	}
	c.specs = append(c.specs, spec)
	return nil
}

func main() {
	var (
		game       = flag.String("game", "", "Server type (friendly name, e.g. left4dead2)")
		ref        = flag.String("ref", steamcmd.DefaultRef, "Instance reference")
		runtimeDir = flag.String("runtime-dir", steamcmd.DefaultRuntimeDir, "Directory holding input channels")
		channel    = flag.String("channel", "", "Explicit channel path (overrides -game/-ref derivation)")
		pid        = flag.Int("pid", 0, "PID of the target process (advisory liveness check)")
		waitReady  = flag.Duration("wait-ready", 0, "Wait up to this long for the channel to appear")
		timeout    = flag.Duration("timeout", 0, "Overall dispatch deadline (0 = none)")
		verbose    = flag.Bool("v", false, "Enable debug logging")
	)
	var cmds commandList
	flag.Var(&cmds, "cmd", "Console command 'TEXT[@DELAY]'; repeatable, sent in order, delay observed after sending")
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: false})
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if err := run(log, *game, *ref, *runtimeDir, *channel, *pid, *waitReady, *timeout, cmds.specs); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func run(log *logrus.Logger, game, ref, runtimeDir, channel string, pid int, waitReady, timeout time.Duration, specs []steamcmd.CommandSpec) error {
	if len(specs) == 0 {
		return fmt.Errorf("no commands given; provide at least one -cmd")
	}

	if channel == "" {
		if game == "" {
			return fmt.Errorf("either -channel or -game is required")
		}
		def, err := steamcmd.LookupServer(game)
		if err != nil {
			return err
		}
		inst, err := steamcmd.NewServerInstance(def, ref, steamcmd.WithRuntimeDir(runtimeDir))
		if err != nil {
			return err
		}
		channel = inst.ChannelPath()
	}

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if waitReady > 0 {
		if err := steamcmd.WaitReady(ctx, channel, waitReady); err != nil {
			return err
		}
	}

	writer := steamcmd.NewChannelWriter(channel)
	d := steamcmd.NewDispatcher(writer,
		steamcmd.WithPID(pid),
		steamcmd.WithLogger(log),
	)

	sent, err := d.Dispatch(ctx, specs)
	switch {
	case err == nil:
		log.WithField("sent", sent).Debug("dispatch complete")
		return nil
	case steamcmd.IsDeadline(err):
		// Partial delivery under a stop timeout is expected; systemd
		// terminates the process on its own schedule from here.
		log.WithField("sent", sent).Warnf("dispatch deadline exceeded after %d of %d commands", sent, len(specs))
		return nil
	case sent > 0:
		// The shutdown sequence already started; a later-command failure
		// can't improve anything by failing the stop hook.
		log.WithError(err).Warnf("delivered %d of %d commands before failure", sent, len(specs))
		return nil
	default:
		return err
	}
}
