package testutil

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"flipsol-keeper/internal/config"
	"flipsol-keeper/internal/store"
)

// OpenTestStore returns a store bound to a fresh schema with every up
// migration applied. The schema is dropped when the test ends. Tests skip
// when TEST_POSTGRES_DSN is unset.
func OpenTestStore(t *testing.T) *store.Store {
	t.Helper()
	cfg, err := config.LoadTest()
	if err != nil {
		t.Skipf("skip test db: %v", err)
	}
	ctx := context.Background()
	schema := pgx.Identifier{fmt.Sprintf("%s_%d", cfg.SchemaPrefix, time.Now().UnixNano())}.Sanitize()

	if err := execBase(ctx, cfg.TestPostgresDSN, "CREATE SCHEMA "+schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		_ = execBase(ctx, cfg.TestPostgresDSN, "DROP SCHEMA "+schema+" CASCADE")
	})

	st, err := store.New(ctx, withSearchPath(cfg.TestPostgresDSN, strings.Trim(schema, `"`)))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(st.Close)

	files, err := upMigrations()
	if err != nil {
		t.Fatalf("find migrations: %v", err)
	}
	for _, f := range files {
		sql, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read migration %s: %v", f, err)
		}
		if _, err := st.Pool.Exec(ctx, string(sql)); err != nil {
			t.Fatalf("apply migration %s: %v", filepath.Base(f), err)
		}
	}
	return st
}

func execBase(ctx context.Context, dsn, stmt string) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()
	_, err = pool.Exec(ctx, stmt)
	return err
}

// upMigrations walks up from the working directory to the repo's migrations
// folder.
func upMigrations() ([]string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	for {
		files, _ := filepath.Glob(filepath.Join(dir, "migrations", "*.up.sql"))
		if len(files) > 0 {
			sort.Strings(files)
			return files, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, fmt.Errorf("no migrations found above %s", dir)
		}
		dir = parent
	}
}

func withSearchPath(dsn, schema string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "search_path=" + url.QueryEscape(schema)
}
