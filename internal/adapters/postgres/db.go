package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationsTable = "deal_schema_migrations"

// Options sizes the ledger pool. Zero values fall back to the defaults
// below.
type Options struct {
	URL             string
	MaxConns        int32
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxConns <= 0 {
		o.MaxConns = 20
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = 30 * time.Minute
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = 5 * time.Second
	}
	return o
}

// idleConns keeps a quarter of the pool warm. Settlement and negotiation
// writes arrive in bursts at run close, not as steady traffic.
func (o Options) idleConns() int {
	return max(2, int(o.MaxConns)/4)
}

// Connect opens the ledger database and verifies it answers before the
// service starts taking runs.
func Connect(ctx context.Context, opts Options) (*gorm.DB, error) {
	opts = opts.withDefaults()
	if strings.TrimSpace(opts.URL) == "" {
		return nil, errors.New("ledger database url is empty")
	}
	db, err := gorm.Open(postgres.Open(opts.URL), &gorm.Config{
		PrepareStmt:    true,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("ledger sql handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(int(opts.MaxConns))
	sqlDB.SetMaxIdleConns(opts.idleConns())
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping ledger database: %w", err)
	}
	return db, nil
}

type appliedMigration struct {
	Name      string    `gorm:"column:name;primaryKey"`
	AppliedAt time.Time `gorm:"column:applied_at"`
}

func (appliedMigration) TableName() string { return migrationsTable }

// RunMigrations applies the embedded scripts that have not been recorded
// yet. Each script and its bookkeeping row commit together.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	create := "CREATE TABLE IF NOT EXISTS " + migrationsTable +
		" (name TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL)"
	if err := db.WithContext(ctx).Exec(create).Error; err != nil {
		return fmt.Errorf("create %s: %w", migrationsTable, err)
	}
	var applied []appliedMigration
	if err := db.WithContext(ctx).Find(&applied).Error; err != nil {
		return fmt.Errorf("list applied migrations: %w", err)
	}
	names, err := migrationNames(migrationFS, "migrations")
	if err != nil {
		return err
	}
	done := make(map[string]bool, len(applied))
	for _, m := range applied {
		done[m.Name] = true
	}
	for _, name := range pendingMigrations(names, done) {
		script, err := fs.ReadFile(migrationFS, path.Join("migrations", name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(string(script)).Error; err != nil {
				return err
			}
			return tx.Create(&appliedMigration{Name: name, AppliedAt: time.Now().UTC()}).Error
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		slog.Default().InfoContext(ctx, "ledger migration applied",
			"module", "adapters.postgres",
			"layer", "adapter",
			"operation", "run_migrations",
			"outcome", "success",
			"migration", name,
		)
	}
	return nil
}

// migrationNames lists the .sql files in dir, sorted so numbered prefixes
// apply in order.
func migrationNames(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

func pendingMigrations(names []string, applied map[string]bool) []string {
	var pending []string
	for _, name := range names {
		if !applied[name] {
			pending = append(pending, name)
		}
	}
	return pending
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
