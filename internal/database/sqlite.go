package database

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// MemoryServer selects in-memory SQLite databases shared by name within the process.
const MemoryServer = ":memory:"

// SQLite is the embedded SQLite dialect used for local runs and tests.
// Server names a directory; each database is the file <dir>/<database>.db and
// is created on first open, so there is no database management step.
type SQLite struct{}

func (SQLite) ID() string                  { return "sqlite" }
func (SQLite) AdminDatabase() string       { return "" }
func (SQLite) ManagesDatabases() bool      { return false }
func (SQLite) DatabaseExistsQuery() string { return "" }

func (SQLite) TableExistsQuery() string {
	return "SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
}

func (SQLite) Dialector(cfg Config) (gorm.Dialector, error) {
	dsn, err := buildSQLiteDSN(cfg)
	if err != nil {
		return nil, err
	}
	return sqlite.Open(dsn), nil
}

func buildSQLiteDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	name := strings.TrimSpace(cfg.Database)
	if name == "" {
		return "", errors.New("sqlite configuration requires database name")
	}

	dir := strings.TrimSpace(cfg.Server)
	if strings.EqualFold(dir, MemoryServer) {
		return fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", url.PathEscape(name)), nil
	}

	path := filepath.Join(dir, name+".db")
	if err := ensureDir(path); err != nil {
		return "", err
	}
	return fmt.Sprintf("file:%s?_foreign_keys=1&_journal_mode=WAL", filepath.ToSlash(path)), nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
