package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	t.Parallel()
	names, err := fs.Glob(files, "*.sql")
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, name := range names {
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Fatalf("unexpected migration file %q", name)
		}
	}
	if len(ups) == 0 {
		t.Fatal("no migrations embedded")
	}
	for version := range ups {
		if !downs[version] {
			t.Fatalf("migration %s has no down file", version)
		}
	}
}

func TestSessionsTableMatchesPgxstore(t *testing.T) {
	t.Parallel()
	raw, err := files.ReadFile("000002_sessions.up.sql")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	for _, col := range []string{"token", "data", "expiry"} {
		if !strings.Contains(string(raw), col) {
			t.Fatalf("sessions migration missing column %q", col)
		}
	}
}
