package steamcmd

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func testModInstaller(t *testing.T) *ModInstaller {
	t.Helper()
	inst, err := NewServerInstance(Left4Dead2, "0", WithInstallBase(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	return NewModInstaller(inst)
}

func TestWriteAdminGroups(t *testing.T) {
	m := testModInstaller(t)

	err := m.WriteAdminGroups([]AdminGroup{
		{Name: "Full Admins", Flags: "abcdefghi", Immunity: 99},
		{Name: "Moderators", Flags: "bc", Immunity: 50},
	})
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(m.Instance.AddonsPath(), "sourcemod", "configs", "admin_groups.cfg"))
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	for _, want := range []string{
		"Groups\n{",
		"\"Full Admins\"",
		"\"flags\" \"abcdefghi\"",
		"\"immunity\" \"99\"",
		"\"Moderators\"",
		"\"immunity\" \"50\"",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("missing %q in:\n%s", want, content)
		}
	}
}

func TestWriteAdmins(t *testing.T) {
	m := testModInstaller(t)

	err := m.WriteAdmins([]Admin{
		{Identity: "STEAM_1:0:12345", Group: "Full Admins"},
		{Identity: "STEAM_1:1:67890", Group: "Moderators", Password: "hunter2"},
	})
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(m.Instance.AddonsPath(), "sourcemod", "configs", "admins_simple.ini"))
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	if !strings.Contains(content, "\"STEAM_1:0:12345\" \"@Full Admins\"\n") {
		t.Errorf("passwordless admin rendered wrong:\n%s", content)
	}
	if !strings.Contains(content, "\"STEAM_1:1:67890\" \"@Moderators\" \"hunter2\"\n") {
		t.Errorf("password admin rendered wrong:\n%s", content)
	}
}

// makeTarGz builds an in-memory tar.gz with the given name/content pairs.
func makeTarGz(t *testing.T, entries map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for name, content := range entries {
		if err := tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractTarGz(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "build.tar.gz")
	data := makeTarGz(t, map[string]string{
		"addons/metamod.vdf":           "vdf content",
		"addons/sourcemod/bin/core.so": "binary",
		"cfg/sourcemod/sourcemod.cfg":  "cfg",
	})
	if err := os.WriteFile(archive, data, 0o644); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(dir, "game")
	if err := extractTarGz(archive, dest); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(dest, "addons", "metamod.vdf"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "vdf content" {
		t.Errorf("extracted content = %q", got)
	}
	if _, err := os.Stat(filepath.Join(dest, "cfg", "sourcemod", "sourcemod.cfg")); err != nil {
		t.Errorf("nested entry not extracted: %v", err)
	}
}

func TestExtractTarGzRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.tar.gz")
	data := makeTarGz(t, map[string]string{"../escape.txt": "pwned"})
	if err := os.WriteFile(archive, data, 0o644); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(dir, "game")
	if err := extractTarGz(archive, dest); err == nil {
		t.Fatal("expected traversal entry to be rejected")
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.txt")); !os.IsNotExist(err) {
		t.Fatal("traversal entry was written outside the destination")
	}
}

func TestInstallMetamodFromDrop(t *testing.T) {
	buildName := "mmsource-1.11.0-git1155-" + runtime.GOOS + ".tar.gz"
	buildData := makeTarGz(t, map[string]string{"addons/metamod.vdf": "vdf"})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "mmsource-latest-"+runtime.GOOS):
			fmt.Fprint(w, buildName+"\n")
		case strings.HasSuffix(r.URL.Path, buildName):
			_, _ = w.Write(buildData)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	m := testModInstaller(t)
	m.HTTPClient = srv.Client()
	m.MetamodDropURL = srv.URL

	if err := m.InstallMetamod(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(m.Instance.GamePath(), "addons", "metamod.vdf")); err != nil {
		t.Errorf("metamod not extracted into the game dir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(m.Instance.AddonsPath(), "metamod.tar.gz")); err != nil {
		t.Errorf("archive not kept for currency checks: %v", err)
	}
}

func TestInstallSkipsNonSourcemodServer(t *testing.T) {
	def := &ServerDef{Name: "plain", AppID: 1, Executable: "srcds_run", GameDir: "plain", Sourcemod: false}
	inst, err := NewServerInstance(def, "0", WithInstallBase(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}

	// No HTTP server is running; a non-skipping install would fail
	m := NewModInstaller(inst)
	m.MetamodDropURL = "http://127.0.0.1:1/mmsdrop"

	if err := m.InstallMetamod(context.Background()); err != nil {
		t.Fatalf("install against a non-sourcemod server should be a no-op, got %v", err)
	}
}
