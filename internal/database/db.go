package database

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config contains the options needed to open a connection to one database.
type Config struct {
	Engine string
	// Server is "host", "host:port" or, for SQL Server, "host\instance".
	// For SQLite it names the directory holding the database files.
	Server string
	// Database is the database to connect to; empty selects the dialect's
	// administrative database.
	Database string
	User     string
	Password string

	ConnectTimeout         time.Duration
	Encrypt                bool
	TrustServerCertificate bool

	DSN     string            // Optional DSN override
	Options map[string]string // Extra driver parameters
}

// Open initialises a gorm.DB for cfg using the dialect registered for cfg.Engine.
func Open(registry *Registry, cfg Config) (*gorm.DB, Dialect, error) {
	if registry == nil {
		registry = DefaultRegistry()
	}

	dialect, ok := registry.Get(cfg.Engine)
	if !ok {
		return nil, nil, fmt.Errorf("%w %q", ErrUnknownDialect, cfg.Engine)
	}

	dialector, err := dialect.Dialector(cfg)
	if err != nil {
		return nil, nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Silent),
		DisableAutomaticPing: true,
	})
	if err != nil {
		return nil, nil, err
	}
	return db, dialect, nil
}

// splitHostPort separates an optional port from server, returning fallback when absent.
func splitHostPort(server string, fallback int) (string, int, error) {
	server = strings.TrimSpace(server)
	host, rawPort, err := net.SplitHostPort(server)
	if err != nil {
		// No port component.
		return server, fallback, nil
	}

	port, err := strconv.Atoi(rawPort)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port %q", rawPort)
	}
	return host, port, nil
}

func timeoutSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	secs := int(d / time.Second)
	if secs == 0 {
		secs = 1
	}
	return secs
}
