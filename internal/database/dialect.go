package database

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"gorm.io/gorm"
)

var (
	// ErrNilDialect signals an attempt to register a nil dialect.
	ErrNilDialect = errors.New("database: nil dialect")
	// ErrEmptyDialectID indicates a dialect with no identifier.
	ErrEmptyDialectID = errors.New("database: dialect id is required")
	// ErrDuplicateDialectID indicates a dialect registration conflict.
	ErrDuplicateDialectID = errors.New("database: dialect id already registered")
	// ErrUnknownDialect is returned when a connection asks for an unregistered engine.
	ErrUnknownDialect = errors.New("database: unknown engine")
)

// Dialect adapts one SQL engine to the connector.
type Dialect interface {
	// ID is the engine name used in configuration ("sqlserver", "postgres", ...).
	ID() string
	// AdminDatabase is the database used to manage other databases on the server.
	AdminDatabase() string
	// ManagesDatabases reports whether databases are server-side objects that
	// must be created explicitly. SQLite databases are files created on open.
	ManagesDatabases() bool
	// DatabaseExistsQuery counts databases matching a single bound name parameter.
	DatabaseExistsQuery() string
	// TableExistsQuery counts tables in the current database matching a single
	// bound name parameter.
	TableExistsQuery() string
	// Dialector builds the gorm dialector for cfg.
	Dialector(cfg Config) (gorm.Dialector, error)
}

// Registry stores dialects keyed by ID with concurrency safety.
type Registry struct {
	mu       sync.RWMutex
	dialects map[string]Dialect
}

var defaultRegistry = newDefaultRegistry()

func newDefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(SQLServer{})
	r.MustRegister(Postgres{})
	r.MustRegister(MySQL{})
	r.MustRegister(SQLite{})
	return r
}

// DefaultRegistry returns the registry holding every built-in dialect.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// NewRegistry constructs an empty dialect registry.
func NewRegistry() *Registry {
	return &Registry{dialects: make(map[string]Dialect)}
}

// Register adds a dialect to the registry.
func (r *Registry) Register(dialect Dialect) error {
	if dialect == nil {
		return ErrNilDialect
	}

	id := normalizeID(dialect.ID())
	if id == "" {
		return ErrEmptyDialectID
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.dialects[id]; exists {
		return ErrDuplicateDialectID
	}

	r.dialects[id] = dialect
	return nil
}

// MustRegister wraps Register and panics on validation errors.
func (r *Registry) MustRegister(dialect Dialect) {
	if err := r.Register(dialect); err != nil {
		panic(err)
	}
}

// Get returns the dialect registered for id. "mssql" and "postgresql" are
// accepted as aliases.
func (r *Registry) Get(id string) (Dialect, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.dialects[normalizeID(id)]
	return d, ok
}

// IDs returns the sorted identifiers of all registered dialects.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.dialects))
	for id := range r.dialects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func normalizeID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	switch id {
	case "mssql":
		return "sqlserver"
	case "postgresql":
		return "postgres"
	}
	return id
}
