package postgres

import (
	"slices"
	"testing"
	"testing/fstest"
	"time"
)

func TestMigrationNamesAreOrderedSQLFiles(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations/002_indexes.sql": {Data: []byte("CREATE INDEX a ON b (c);")},
		"migrations/001_init.sql":    {Data: []byte("CREATE TABLE b (c TEXT);")},
		"migrations/README.md":       {Data: []byte("notes")},
	}
	names, err := migrationNames(fsys, "migrations")
	if err != nil {
		t.Fatalf("migration names: %v", err)
	}
	if !slices.Equal(names, []string{"001_init.sql", "002_indexes.sql"}) {
		t.Fatalf("unexpected migration order: %v", names)
	}

	pending := pendingMigrations(names, map[string]bool{"001_init.sql": true})
	if !slices.Equal(pending, []string{"002_indexes.sql"}) {
		t.Fatalf("expected only unapplied scripts, got %v", pending)
	}
	if len(pendingMigrations(names, map[string]bool{"001_init.sql": true, "002_indexes.sql": true})) != 0 {
		t.Fatal("expected nothing pending once every script is recorded")
	}
}

func TestEmbeddedMigrationsAreFound(t *testing.T) {
	t.Parallel()

	names, err := migrationNames(migrationFS, "migrations")
	if err != nil {
		t.Fatalf("migration names: %v", err)
	}
	if len(names) == 0 || names[0] != "001_init.sql" {
		t.Fatalf("expected embedded init script first, got %v", names)
	}
}

func TestOptionsDefaults(t *testing.T) {
	t.Parallel()

	opts := Options{}.withDefaults()
	if opts.MaxConns != 20 || opts.ConnMaxLifetime != 30*time.Minute || opts.PingTimeout != 5*time.Second {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
	if opts.idleConns() != 5 {
		t.Fatalf("expected a quarter of the pool idle, got %d", opts.idleConns())
	}
	if (Options{MaxConns: 3}).idleConns() != 2 {
		t.Fatal("expected at least two idle connections")
	}
}
