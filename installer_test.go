package steamcmd

import (
	"strings"
	"testing"
)

func TestBuildScriptAnonymous(t *testing.T) {
	cfg := DefaultConfig()
	in := NewInstaller(cfg)

	inst, err := NewServerInstance(Left4Dead2, "0")
	if err != nil {
		t.Fatal(err)
	}

	script := in.buildScript(inst)

	wantLines := []string{
		"@ShutdownOnFailedCommand 1",
		"@NoPromptForPassword 1",
		"force_install_dir /home/steam/games/222860/0",
		"login anonymous",
		"app_update 222860 validate",
		"quit",
	}
	gotLines := strings.Split(strings.TrimRight(script, "\n"), "\n")
	if len(gotLines) != len(wantLines) {
		t.Fatalf("script has %d lines, want %d:\n%s", len(gotLines), len(wantLines), script)
	}
	for i, want := range wantLines {
		if gotLines[i] != want {
			t.Errorf("line %d = %q, want %q", i, gotLines[i], want)
		}
	}
}

func TestBuildScriptCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Steam = SteamCredentials{Username: "deploy", Password: "s3cret"}
	in := NewInstaller(cfg)

	inst, err := NewServerInstance(Left4Dead2, "0")
	if err != nil {
		t.Fatal(err)
	}

	script := in.buildScript(inst)
	if !strings.Contains(script, "login deploy s3cret\n") {
		t.Errorf("credentials not used:\n%s", script)
	}
	if strings.Contains(script, "anonymous") {
		t.Errorf("anonymous login should be replaced:\n%s", script)
	}
}

// force_install_dir must precede login; steamcmd rejects the reverse order.
func TestBuildScriptCommandOrder(t *testing.T) {
	in := NewInstaller(DefaultConfig())
	inst, err := NewServerInstance(Left4Dead2, "0")
	if err != nil {
		t.Fatal(err)
	}

	script := in.buildScript(inst)
	if strings.Index(script, "force_install_dir") > strings.Index(script, "login") {
		t.Errorf("force_install_dir must come before login:\n%s", script)
	}
	if !strings.HasSuffix(script, "quit\n") {
		t.Errorf("script must end with quit:\n%s", script)
	}
}
