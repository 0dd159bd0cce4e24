package models

import "go.uber.org/zap/zapcore"

const redacted = "[REDACTED]"

// Credential holds a database login resolved for a single unit of work.
// The password never leaves this struct through fmt, %v or zap.
type Credential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// String implements fmt.Stringer without exposing the password.
func (c Credential) String() string {
	return "Credential{Username: " + c.Username + ", Password: " + redacted + "}"
}

// GoString implements fmt.GoStringer so %#v is redacted too.
func (c Credential) GoString() string {
	return c.String()
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (c Credential) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("username", c.Username)
	enc.AddString("password", redacted)
	return nil
}
