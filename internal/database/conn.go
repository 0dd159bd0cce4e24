package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/sqlpulse/internal/models"
	"github.com/charlesng35/sqlpulse/pkg/validator"
)

// ErrInvalidIdentifier is returned when a database or table name is not a safe SQL identifier.
var ErrInvalidIdentifier = errors.New("database: invalid identifier")

// Connector opens single-use connections to target databases.
type Connector interface {
	// Dialect resolves the dialect for an engine id.
	Dialect(engine string) (Dialect, error)
	// Connect opens and verifies a connection. An empty cfg.Database connects
	// to the dialect's administrative database.
	Connect(ctx context.Context, cfg Config) (Conn, error)
}

// Conn is one open database connection. Identifiers are quoted by the dialect
// and values are always bound as parameters.
type Conn interface {
	DatabaseExists(ctx context.Context, name string) (bool, error)
	CreateDatabase(ctx context.Context, name string) error
	TableExists(ctx context.Context, table string) (bool, error)
	CreateTable(ctx context.Context, table string) error
	InsertRow(ctx context.Context, table string, row *models.SeedRow) error
	// LatestRow returns the row with the highest id; ok is false when the table is empty.
	LatestRow(ctx context.Context, table string) (row models.SeedRow, ok bool, err error)
	Close() error
}

// GormConnector implements Connector on top of gorm dialectors.
type GormConnector struct {
	Registry     *Registry
	QueryTimeout time.Duration
}

// NewConnector returns a connector using the built-in dialects.
func NewConnector(queryTimeout time.Duration) *GormConnector {
	return &GormConnector{Registry: DefaultRegistry(), QueryTimeout: queryTimeout}
}

func (c *GormConnector) registry() *Registry {
	if c.Registry == nil {
		return DefaultRegistry()
	}
	return c.Registry
}

// Dialect implements Connector.
func (c *GormConnector) Dialect(engine string) (Dialect, error) {
	dialect, ok := c.registry().Get(engine)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownDialect, engine)
	}
	return dialect, nil
}

// Connect implements Connector.
func (c *GormConnector) Connect(ctx context.Context, cfg Config) (Conn, error) {
	if cfg.Database != "" && !validator.IsSQLIdentifier(cfg.Database) {
		return nil, fmt.Errorf("%w: database %q", ErrInvalidIdentifier, cfg.Database)
	}

	db, dialect, err := Open(c.registry(), cfg)
	if err != nil {
		return nil, scrub(err, cfg.Password)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, scrub(err, cfg.Password)
	}
	// One statement at a time per unit of work; no reuse across invocations.
	sqlDB.SetMaxOpenConns(1)

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, scrub(err, cfg.Password)
	}

	return &gormConn{db: db, dialect: dialect, queryTimeout: c.QueryTimeout}, nil
}

type gormConn struct {
	db           *gorm.DB
	dialect      Dialect
	queryTimeout time.Duration
}

func (c *gormConn) withTimeout(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	if c.queryTimeout <= 0 {
		return c.db.WithContext(ctx), func() {}
	}
	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	return c.db.WithContext(ctx), cancel
}

func (c *gormConn) DatabaseExists(ctx context.Context, name string) (bool, error) {
	query := c.dialect.DatabaseExistsQuery()
	if query == "" {
		return true, nil
	}

	db, cancel := c.withTimeout(ctx)
	defer cancel()

	var count int64
	if err := db.Raw(query, name).Scan(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (c *gormConn) CreateDatabase(ctx context.Context, name string) error {
	if !validator.IsSQLIdentifier(name) {
		return fmt.Errorf("%w: database %q", ErrInvalidIdentifier, name)
	}
	if !c.dialect.ManagesDatabases() {
		return nil
	}

	db, cancel := c.withTimeout(ctx)
	defer cancel()
	return db.Exec("CREATE DATABASE ?", clause.Table{Name: name}).Error
}

func (c *gormConn) TableExists(ctx context.Context, table string) (bool, error) {
	if !validator.IsSQLIdentifier(table) {
		return false, fmt.Errorf("%w: table %q", ErrInvalidIdentifier, table)
	}

	db, cancel := c.withTimeout(ctx)
	defer cancel()

	var count int64
	if err := db.Raw(c.dialect.TableExistsQuery(), table).Scan(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (c *gormConn) CreateTable(ctx context.Context, table string) error {
	if !validator.IsSQLIdentifier(table) {
		return fmt.Errorf("%w: table %q", ErrInvalidIdentifier, table)
	}

	db, cancel := c.withTimeout(ctx)
	defer cancel()
	return db.Table(table).Migrator().CreateTable(&models.SeedRow{})
}

func (c *gormConn) InsertRow(ctx context.Context, table string, row *models.SeedRow) error {
	if !validator.IsSQLIdentifier(table) {
		return fmt.Errorf("%w: table %q", ErrInvalidIdentifier, table)
	}

	db, cancel := c.withTimeout(ctx)
	defer cancel()
	return db.Table(table).Create(row).Error
}

func (c *gormConn) LatestRow(ctx context.Context, table string) (models.SeedRow, bool, error) {
	if !validator.IsSQLIdentifier(table) {
		return models.SeedRow{}, false, fmt.Errorf("%w: table %q", ErrInvalidIdentifier, table)
	}

	db, cancel := c.withTimeout(ctx)
	defer cancel()

	var rows []models.SeedRow
	err := db.Table(table).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: true}).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return models.SeedRow{}, false, err
	}
	if len(rows) == 0 {
		return models.SeedRow{}, false, nil
	}
	return rows[0], true, nil
}

func (c *gormConn) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// scrubbedError hides a password that a driver echoed back in its error text,
// typically as part of a DSN.
type scrubbedError struct {
	msg string
	err error
}

func (e *scrubbedError) Error() string { return e.msg }
func (e *scrubbedError) Unwrap() error { return e.err }

// minScrubLength is the shortest password replaced verbatim in error text.
// Shorter ones would match unrelated words, so only the DSN patterns apply.
const minScrubLength = 4

var dsnSecretPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(\w+://[^:/@\s]*:)[^@\s]*@`), "${1}[REDACTED]@"},
	{regexp.MustCompile(`([\w.-]+:)[^@\s/]*@((?:tcp|unix)\()`), "${1}[REDACTED]@${2}"},
	{regexp.MustCompile(`(?i)(password=)('(?:[^'\\]|\\.)*'|[^\s;&]+)`), "${1}[REDACTED]"},
}

func scrub(err error, password string) error {
	if err == nil {
		return err
	}

	msg := err.Error()
	scrubbed := msg
	for _, p := range dsnSecretPatterns {
		scrubbed = p.re.ReplaceAllString(scrubbed, p.repl)
	}
	if len(password) >= minScrubLength {
		for _, form := range []string{password, url.QueryEscape(password), url.PathEscape(password)} {
			scrubbed = strings.ReplaceAll(scrubbed, form, "[REDACTED]")
		}
	}
	if scrubbed == msg {
		return err
	}
	return &scrubbedError{msg: scrubbed, err: err}
}
