package steamcmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestUpdateServerCfgCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.cfg")

	err := UpdateServerCfg(path, map[string]string{
		"hostname":    "Test Server",
		"sv_password": "",
		"maxplayers":  "8",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	for _, want := range []string{
		"hostname \"Test Server\"\n",
		"sv_password \"\"\n",
		"maxplayers 8\n", // numeric values stay bare
		"exec banned_user.cfg\n",
		"exec banned_ip.cfg\n",
		"writeid\n",
		"writeip\n",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("missing %q in:\n%s", want, content)
		}
	}
}

func TestUpdateServerCfgReplaceInPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.cfg")
	existing := strings.Join([]string{
		"// managed server config",
		"hostname \"Old Name\"",
		"sv_cheats 0",
		"mp_friendlyfire 1",
	}, "\n") + "\n"
	if err := os.WriteFile(path, []byte(existing), 0o644); err != nil {
		t.Fatal(err)
	}

	err := UpdateServerCfg(path, map[string]string{"hostname": "New Name"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	if !strings.Contains(content, "hostname \"New Name\"\n") {
		t.Errorf("hostname not replaced:\n%s", content)
	}
	if strings.Contains(content, "Old Name") {
		t.Errorf("old value survived:\n%s", content)
	}
	// Unmanaged lines and comments pass through
	for _, want := range []string{"// managed server config\n", "sv_cheats 0\n", "mp_friendlyfire 1\n"} {
		if !strings.Contains(content, want) {
			t.Errorf("lost pass-through line %q:\n%s", want, content)
		}
	}
	// Replacement happens in place, not by append
	if strings.Index(content, "hostname") > strings.Index(content, "sv_cheats") {
		t.Errorf("hostname moved from its original position:\n%s", content)
	}
}

func TestUpdateServerCfgIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.cfg")
	settings := map[string]string{"hostname": "Stable", "maxplayers": "16"}

	if err := UpdateServerCfg(path, settings, nil); err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := UpdateServerCfg(path, settings, nil); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if string(first) != string(second) {
		t.Errorf("second run changed the file:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
	if n := strings.Count(string(second), "writeid\n"); n != 1 {
		t.Errorf("writeid appears %d times, want 1", n)
	}
}

func TestUpdateServerCfgCustomExecConfigs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.cfg")

	err := UpdateServerCfg(path, map[string]string{"hostname": "X"}, []string{"custom.cfg"})
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	if !strings.Contains(content, "exec custom.cfg\n") {
		t.Errorf("missing custom exec line:\n%s", content)
	}
	if strings.Contains(content, "banned_user.cfg") {
		t.Errorf("default exec configs should be replaced, not merged:\n%s", content)
	}
}
