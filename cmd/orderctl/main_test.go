package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"workorders_backend/internal/orders/domain"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"version", "migrate", "import", "derive", "reopen"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Fatalf("expected subcommand %s, got %v (%v)", name, cmd, err)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if code := execute(root); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.HasPrefix(out.String(), "orderctl dev") {
		t.Fatalf("unexpected version output %q", out.String())
	}
}

func TestImportDryRunDoesNotConnect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.yaml")
	content := "title: Fix roof\nassignedTo: w1\nassignedToName: Wes\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"import", "--dry-run", path})
	if code := execute(root); code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, out.String())
	}
	if !strings.Contains(out.String(), "Fix roof\tsingle\t1 workers") {
		t.Fatalf("unexpected plan %q", out.String())
	}
}

func TestReopenRequiresActor(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"reopen", "o1"})
	if code := execute(root); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(out.String(), "--actor is required") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestParseActorDefaults(t *testing.T) {
	actor, err := parseActor(" u1 ", " Ada ", "ADMIN")
	if err != nil {
		t.Fatalf("parseActor returned error: %v", err)
	}
	if actor.ID != "u1" || actor.Name != "Ada" || actor.Role != domain.RoleAdmin {
		t.Fatalf("unexpected actor %+v", actor)
	}
	if _, err := parseActor("u1", "", "owner"); err == nil {
		t.Fatalf("expected unknown role to fail")
	}
}
