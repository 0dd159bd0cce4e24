package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// MySQL is the MySQL / MariaDB dialect. It has no administrative database;
// admin connections are opened without a default schema.
type MySQL struct{}

func (MySQL) ID() string             { return "mysql" }
func (MySQL) AdminDatabase() string  { return "" }
func (MySQL) ManagesDatabases() bool { return true }

func (MySQL) DatabaseExistsQuery() string {
	return "SELECT count(*) FROM information_schema.schemata WHERE schema_name = ?"
}

func (MySQL) TableExistsQuery() string {
	return "SELECT count(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?"
}

func (d MySQL) Dialector(cfg Config) (gorm.Dialector, error) {
	dsn, err := buildMySQLDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gormmysql.Open(dsn), nil
}

func buildMySQLDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	if cfg.User == "" {
		return "", errors.New("mysql configuration requires user")
	}

	host, port, err := splitHostPort(cfg.Server, 3306)
	if err != nil {
		return "", err
	}
	if host == "" {
		host = "127.0.0.1"
	}

	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", host, port)
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Timeout = cfg.ConnectTimeout

	if cfg.Encrypt {
		mc.TLSConfig = "true"
		if cfg.TrustServerCertificate {
			mc.TLSConfig = "skip-verify"
		}
	}

	params := map[string]string{"charset": "utf8mb4"}
	for key, value := range cfg.Options {
		if strings.EqualFold(key, "tls") {
			mc.TLSConfig = value
			continue
		}
		params[key] = value
	}
	mc.Params = params

	return mc.FormatDSN(), nil
}
