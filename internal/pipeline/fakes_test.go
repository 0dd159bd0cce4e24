package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charlesng35/sqlpulse/internal/credentials"
	"github.com/charlesng35/sqlpulse/internal/database"
	"github.com/charlesng35/sqlpulse/internal/models"
	"github.com/charlesng35/sqlpulse/internal/targets"
)

type parameters map[string]string

func (p parameters) GetParameter(_ context.Context, name string) (string, error) {
	value, ok := p[name]
	if !ok {
		return "", targets.ErrParameterNotFound
	}
	return value, nil
}

type secrets map[string]string

func (s secrets) GetSecret(_ context.Context, ref string) (string, error) {
	value, ok := s[ref]
	if !ok {
		return "", credentials.ErrSecretNotFound
	}
	return value, nil
}

// fakeServers simulates database servers keyed by address.
type fakeServers struct {
	mu               sync.Mutex
	databases        map[string]bool
	tables           map[string][]models.SeedRow
	createdDatabases int
	createdTables    int
	connects         []database.Config
	connectErr       map[string]error
	queryErr         error
	tableErr         error
}

func newFakeServers() *fakeServers {
	return &fakeServers{
		databases:  map[string]bool{},
		tables:     map[string][]models.SeedRow{},
		connectErr: map[string]error{},
	}
}

func (f *fakeServers) rows(server, db, table string) []models.SeedRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.SeedRow(nil), f.tables[server+"/"+db+"/"+table]...)
}

type fakeConnector struct {
	servers *fakeServers
	dialect database.Dialect
}

func (c *fakeConnector) Dialect(engine string) (database.Dialect, error) {
	if engine != "" && engine != c.dialect.ID() {
		return nil, fmt.Errorf("%w %q", database.ErrUnknownDialect, engine)
	}
	return c.dialect, nil
}

func (c *fakeConnector) Connect(_ context.Context, cfg database.Config) (database.Conn, error) {
	f := c.servers
	f.mu.Lock()
	defer f.mu.Unlock()

	f.connects = append(f.connects, cfg)
	if err := f.connectErr[cfg.Server]; err != nil {
		return nil, err
	}
	if cfg.Database != "" && c.dialect.ManagesDatabases() && !f.databases[cfg.Server+"/"+cfg.Database] {
		return nil, fmt.Errorf("database %q does not exist", cfg.Database)
	}
	return &fakeConn{servers: f, server: cfg.Server, database: cfg.Database}, nil
}

type fakeConn struct {
	servers  *fakeServers
	server   string
	database string
	closed   bool
}

func (c *fakeConn) key(table string) string {
	return c.server + "/" + c.database + "/" + table
}

func (c *fakeConn) DatabaseExists(_ context.Context, name string) (bool, error) {
	c.servers.mu.Lock()
	defer c.servers.mu.Unlock()
	return c.servers.databases[c.server+"/"+name], nil
}

func (c *fakeConn) CreateDatabase(_ context.Context, name string) error {
	c.servers.mu.Lock()
	defer c.servers.mu.Unlock()
	if c.servers.databases[c.server+"/"+name] {
		return errors.New("database already exists")
	}
	c.servers.databases[c.server+"/"+name] = true
	c.servers.createdDatabases++
	return nil
}

func (c *fakeConn) TableExists(_ context.Context, table string) (bool, error) {
	c.servers.mu.Lock()
	defer c.servers.mu.Unlock()
	if c.servers.tableErr != nil {
		return false, c.servers.tableErr
	}
	_, ok := c.servers.tables[c.key(table)]
	return ok, nil
}

func (c *fakeConn) CreateTable(_ context.Context, table string) error {
	c.servers.mu.Lock()
	defer c.servers.mu.Unlock()
	if _, ok := c.servers.tables[c.key(table)]; ok {
		return errors.New("table already exists")
	}
	c.servers.tables[c.key(table)] = []models.SeedRow{}
	c.servers.createdTables++
	return nil
}

func (c *fakeConn) InsertRow(_ context.Context, table string, row *models.SeedRow) error {
	c.servers.mu.Lock()
	defer c.servers.mu.Unlock()
	if c.servers.queryErr != nil {
		return c.servers.queryErr
	}
	rows := c.servers.tables[c.key(table)]
	row.ID = int64(len(rows) + 1)
	c.servers.tables[c.key(table)] = append(rows, *row)
	return nil
}

func (c *fakeConn) LatestRow(_ context.Context, table string) (models.SeedRow, bool, error) {
	c.servers.mu.Lock()
	defer c.servers.mu.Unlock()
	if c.servers.queryErr != nil {
		return models.SeedRow{}, false, c.servers.queryErr
	}
	rows, ok := c.servers.tables[c.key(table)]
	if !ok {
		return models.SeedRow{}, false, fmt.Errorf("invalid object name %q", table)
	}
	if len(rows) == 0 {
		return models.SeedRow{}, false, nil
	}
	return rows[len(rows)-1], true, nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

type recordingSink struct {
	mu      sync.Mutex
	batches [][]models.MetricSample
	err     error
}

func (s *recordingSink) Name() string           { return "recording" }
func (s *recordingSink) RequiresNonEmpty() bool { return true }

func (s *recordingSink) Put(_ context.Context, _ string, batch []models.MetricSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, batch)
	return s.err
}
