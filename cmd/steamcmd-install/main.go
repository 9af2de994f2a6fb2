// Command steamcmd-install installs or updates a dedicated server instance:
// the application itself via steamcmd, optional workshop collections and
// sourcemod, and the systemd service/socket units that supervise it.
package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	steamcmd "github.com/gamestack/go-steamcmd"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to a YAML config file (defaults apply when omitted)")
		game        = flag.String("game", "", "Server type (friendly name, e.g. left4dead2)")
		ref         = flag.String("ref", steamcmd.DefaultRef, "Instance reference")
		collections = flag.String("collections", "", "Comma-separated workshop collection IDs to sync")
		sourcemod   = flag.Bool("sourcemod", false, "Install metamod and sourcemod")
		units       = flag.Bool("units", false, "Render and install systemd service/socket units")
		verbose     = flag.Bool("v", false, "Enable debug logging")
	)
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if *game == "" {
		log.Error("-game is required")
		os.Exit(1)
	}

	if err := run(log, *configPath, *game, *ref, *collections, *sourcemod, *units); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func run(log *logrus.Logger, configPath, game, ref, collections string, sourcemod, units bool) error {
	cfg, err := steamcmd.LoadConfig(configPath)
	if err != nil {
		return err
	}

	def, err := steamcmd.LookupServer(game)
	if err != nil {
		return err
	}

	inst, err := cfg.Instance(def, ref)
	if err != nil {
		return err
	}

	ctx := context.Background()

	installer := steamcmd.NewInstaller(cfg).WithInstallLogger(log)
	if err := installer.Install(ctx, inst); err != nil {
		return err
	}

	if collections != "" {
		ids := splitIDs(collections)
		workshop := steamcmd.NewWorkshopClient().WithWorkshopLogger(log)
		if err := workshop.SyncCollections(ctx, ids, inst.AddonsPath()); err != nil {
			return err
		}
	}

	if sourcemod {
		mods := steamcmd.NewModInstaller(inst).WithModLogger(log)
		if err := mods.InstallMetamod(ctx); err != nil {
			return err
		}
		if err := mods.InstallSourcemod(ctx); err != nil {
			return err
		}
	}

	if units {
		builder := steamcmd.NewUnitBuilder(inst).
			WithUnitDir(cfg.UnitDir).
			WithRunUser(cfg.RunUser, cfg.RunGroup).
			WithDispatchPath(cfg.DispatchPath)
		if err := builder.Install(ctx); err != nil {
			return err
		}
		log.WithField("service", inst.ServiceName()).Info("installed systemd units")
	}

	return nil
}

func splitIDs(s string) []string {
	parts := strings.Split(s, ",")
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}
