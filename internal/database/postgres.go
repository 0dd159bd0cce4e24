package database

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Postgres is the PostgreSQL dialect.
type Postgres struct{}

func (Postgres) ID() string             { return "postgres" }
func (Postgres) AdminDatabase() string  { return "postgres" }
func (Postgres) ManagesDatabases() bool { return true }

func (Postgres) DatabaseExistsQuery() string {
	return "SELECT count(*) FROM pg_database WHERE datname = ?"
}

func (Postgres) TableExistsQuery() string {
	return "SELECT count(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?"
}

func (d Postgres) Dialector(cfg Config) (gorm.Dialector, error) {
	dsn, err := buildPostgresDSN(cfg, d.AdminDatabase())
	if err != nil {
		return nil, err
	}
	return postgres.Open(dsn), nil
}

func buildPostgresDSN(cfg Config, adminDB string) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	if cfg.User == "" {
		return "", errors.New("postgres configuration requires user")
	}

	host, port, err := splitHostPort(cfg.Server, 5432)
	if err != nil {
		return "", err
	}
	if host == "" {
		host = "localhost"
	}

	database := cfg.Database
	if database == "" {
		database = adminDB
	}

	params := []string{
		fmt.Sprintf("host=%s", quotePostgresValue(host)),
		fmt.Sprintf("port=%d", port),
		fmt.Sprintf("user=%s", quotePostgresValue(cfg.User)),
		fmt.Sprintf("dbname=%s", quotePostgresValue(database)),
	}

	if cfg.Password != "" {
		params = append(params, fmt.Sprintf("password=%s", quotePostgresValue(cfg.Password)))
	}

	options := map[string]string{}
	if cfg.Encrypt {
		options["sslmode"] = "require"
	} else {
		options["sslmode"] = "disable"
	}
	if secs := timeoutSeconds(cfg.ConnectTimeout); secs > 0 {
		options["connect_timeout"] = strconv.Itoa(secs)
	}
	for key, value := range cfg.Options {
		options[key] = value
	}

	keys := make([]string, 0, len(options))
	for key := range options {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		params = append(params, fmt.Sprintf("%s=%s", key, quotePostgresValue(options[key])))
	}

	return strings.Join(params, " "), nil
}

// quotePostgresValue quotes keyword/value DSN values containing spaces or quotes.
func quotePostgresValue(value string) string {
	if value != "" && !strings.ContainsAny(value, ` '\`) {
		return value
	}
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + replacer.Replace(value) + "'"
}
