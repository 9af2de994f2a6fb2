package steamcmd

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
)

// defaultExecConfigs are the configs a Source server.cfg execs after the
// managed settings, followed by writeid/writeip so ban lists persist.
var defaultExecConfigs = []string{"banned_user.cfg", "banned_ip.cfg"}

// formatCfgValue renders a server.cfg value: numeric values bare, everything
// else quoted, matching how srcds configs are conventionally written
func formatCfgValue(key, value string) string {
	if _, err := strconv.Atoi(value); err == nil {
		return fmt.Sprintf("%s %s\n", key, value)
	}
	return fmt.Sprintf("%s %q\n", key, value)
}

// UpdateServerCfg rewrites the server.cfg at path, replacing managed
// settings in place and appending the ones not yet present. Comment lines
// and unmanaged settings pass through untouched, so repeated runs with the
// same settings are idempotent. The file is replaced atomically; a missing
// file is created from scratch.
//
// execConfigs are appended as "exec <name>" lines after the settings; nil
// selects the conventional ban-list configs.
func UpdateServerCfg(path string, settings map[string]string, execConfigs []string) error {
	if execConfigs == nil {
		execConfigs = defaultExecConfigs
	}

	remaining := make(map[string]string, len(settings))
	for k, v := range settings {
		remaining[k] = v
	}

	// Trailer lines are re-emitted at the end of every rewrite, so strip any
	// existing copies instead of letting them accumulate.
	trailer := map[string]struct{}{"writeid": {}, "writeip": {}}
	for _, cfg := range execConfigs {
		trailer["exec "+cfg] = struct{}{}
	}

	var out strings.Builder

	if in, err := os.Open(path); err == nil {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "//") {
				if _, ok := trailer[strings.TrimSpace(line)]; ok {
					continue
				}
				fields := strings.Fields(line)
				if len(fields) > 0 {
					if value, ok := remaining[fields[0]]; ok {
						delete(remaining, fields[0])
						out.WriteString(formatCfgValue(fields[0], value))
						continue
					}
				}
			}
			out.WriteString(line)
			out.WriteString("\n")
		}
		scanErr := scanner.Err()
		_ = in.Close()
		if scanErr != nil {
			return &OpError{Op: OpRender, Path: path, Err: scanErr}
		}
	} else if !os.IsNotExist(err) {
		return &OpError{Op: OpRender, Path: path, Err: err}
	}

	// Settings not found in the existing file, in stable order
	keys := make([]string, 0, len(remaining))
	for key := range remaining {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		out.WriteString(formatCfgValue(key, remaining[key]))
	}

	for _, cfg := range execConfigs {
		fmt.Fprintf(&out, "exec %s\n", cfg)
	}
	out.WriteString("writeid\n")
	out.WriteString("writeip\n")

	if err := renameio.WriteFile(path, []byte(out.String()), FileMode); err != nil {
		return &OpError{Op: OpRender, Path: path, Err: err}
	}
	return nil
}
