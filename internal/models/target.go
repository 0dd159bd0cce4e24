package models

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// Target identifies one database to seed or sample: a server, a database on
// that server and the secret holding the credentials to reach it.
type Target struct {
	CredentialRef string `json:"dbSecretId" validate:"required"`
	Server        string `json:"dbServer" validate:"required"`
	Database      string `json:"database" validate:"required,sqlident"`
	// Engine selects the SQL dialect by id or alias; empty means the configured default.
	Engine string `json:"engine,omitempty" validate:"omitempty,dialect"`
}

// WithDefaultEngine returns a copy of the target with Engine set to engine when unset.
func (t Target) WithDefaultEngine(engine string) Target {
	if strings.TrimSpace(t.Engine) == "" {
		t.Engine = engine
	}
	return t
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (t Target) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("server", t.Server)
	enc.AddString("database", t.Database)
	if t.Engine != "" {
		enc.AddString("engine", t.Engine)
	}
	return nil
}
