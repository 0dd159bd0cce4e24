package database

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
)

// SQLServer is the Microsoft SQL Server dialect and the default engine.
type SQLServer struct{}

func (SQLServer) ID() string             { return "sqlserver" }
func (SQLServer) AdminDatabase() string  { return "master" }
func (SQLServer) ManagesDatabases() bool { return true }

func (SQLServer) DatabaseExistsQuery() string {
	return "SELECT count(*) FROM sys.databases WHERE name = ?"
}

func (SQLServer) TableExistsQuery() string {
	return "SELECT count(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_NAME = ?"
}

func (d SQLServer) Dialector(cfg Config) (gorm.Dialector, error) {
	dsn, err := buildSQLServerDSN(cfg, d.AdminDatabase())
	if err != nil {
		return nil, err
	}
	return sqlserver.Open(dsn), nil
}

func buildSQLServerDSN(cfg Config, adminDB string) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	if cfg.User == "" || strings.TrimSpace(cfg.Server) == "" {
		return "", errors.New("sqlserver configuration requires user and server")
	}

	// "host\instance" selects a named instance.
	server, instance, _ := strings.Cut(strings.TrimSpace(cfg.Server), `\`)
	host, port, err := splitHostPort(server, 0)
	if err != nil {
		return "", err
	}
	if port != 0 {
		host = host + ":" + strconv.Itoa(port)
	}

	database := cfg.Database
	if database == "" {
		database = adminDB
	}

	query := url.Values{}
	query.Set("database", database)
	query.Set("encrypt", strconv.FormatBool(cfg.Encrypt))
	query.Set("TrustServerCertificate", strconv.FormatBool(cfg.TrustServerCertificate))
	if secs := timeoutSeconds(cfg.ConnectTimeout); secs > 0 {
		query.Set("dial timeout", strconv.Itoa(secs))
		query.Set("connection timeout", strconv.Itoa(secs))
	}
	for key, value := range cfg.Options {
		query.Set(key, value)
	}

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     host,
		RawQuery: query.Encode(),
	}
	if instance != "" {
		u.Path = instance
	}
	return u.String(), nil
}
