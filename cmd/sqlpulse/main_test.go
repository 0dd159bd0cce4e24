package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/sqlpulse/internal/app"
	"github.com/charlesng35/sqlpulse/internal/auth"
	"github.com/charlesng35/sqlpulse/internal/database/testutil"
	"github.com/charlesng35/sqlpulse/internal/pipeline"
)

// writeFixture lays out a config directory backed by file stores, the log
// sink and sqlite targets. It returns the config directory and the sqlite
// server directory.
func writeFixture(t *testing.T, databases ...string) (string, string) {
	t.Helper()

	dir := t.TempDir()
	server := testutil.SQLiteServer(t)

	type conn struct {
		SecretID string `json:"dbSecretId"`
		Server   string `json:"dbServer"`
		Database string `json:"database"`
	}
	doc := struct {
		Connections []conn `json:"dbConnections"`
	}{Connections: []conn{}}
	for _, db := range databases {
		doc.Connections = append(doc.Connections, conn{SecretID: "s1", Server: server, Database: db})
	}
	targetsJSON, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "targets.json"), targetsJSON, 0o600))

	secrets := `{"s1": {"username": "u", "password": "p"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "secrets.json"), []byte(secrets), 0o600))

	config := fmt.Sprintf(`server:
  log_level: error
targets:
  source: file
  file: %s
secrets:
  source: file
  file: %s
database:
  engine: sqlite
metrics:
  sink: log
`, filepath.Join(dir, "targets.json"), filepath.Join(dir, "secrets.json"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(config), 0o600))

	return dir, server
}

func TestRunLoadThenReport(t *testing.T) {
	dir, server := writeFixture(t, "d1", "d2")

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-config", dir, "load"}, &out))

	var result pipeline.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	require.Equal(t, pipeline.StatusSuccess, result.Status)
	require.Equal(t, 2, result.Targets)

	for _, db := range []string{"d1", "d2"} {
		_, ok := testutil.MustLatestRow(t, server, db, pipeline.DefaultTable)
		require.True(t, ok)
	}

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"-config", filepath.Join(dir, "config.yaml"), "report"}, &out))
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	require.Equal(t, pipeline.Report, result.Pipeline)
	require.NotNil(t, result.Publish)
	require.Equal(t, 2, result.Publish.Samples)
}

func TestRunReportFailsOnPartialResult(t *testing.T) {
	dir, server := writeFixture(t, "seeded", "empty")
	testutil.MustPrepareSQLite(t, server, "seeded", testutil.WithRows(pipeline.DefaultTable, 4))
	testutil.MustPrepareSQLite(t, server, "empty", testutil.WithTable(pipeline.DefaultTable))

	var out bytes.Buffer
	err := run(context.Background(), []string{"-config", dir, "report"}, &out)
	require.ErrorContains(t, err, "status partial")

	var result pipeline.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	require.Len(t, result.Failures, 1)
	require.Equal(t, "EMPTY_RESULT", result.Failures[0].Code)
}

func TestRunRejectsBadInvocations(t *testing.T) {
	var out bytes.Buffer

	require.ErrorContains(t, run(context.Background(), nil, &out), "missing command")
	require.ErrorContains(t, run(context.Background(), []string{"vacuum"}, &out), `unknown command "vacuum"`)
	require.ErrorContains(t, run(context.Background(), []string{"-config", "/does/not/exist", "load"}, &out), "does not exist")
}

func TestPrintTokenIssuesScopedToken(t *testing.T) {
	cfg := app.AuthConfig{JWTSecret: "0123456789abcdef0123456789abcdef", Issuer: "sqlpulse", TokenTTL: time.Hour}

	var out bytes.Buffer
	require.NoError(t, printToken(cfg, []string{"ops", pipeline.Report}, &out))

	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: cfg.JWTSecret, Issuer: cfg.Issuer})
	require.NoError(t, err)
	claims, err := tokens.Validate(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	require.Equal(t, "ops", claims.Subject)
	require.True(t, claims.Allows(pipeline.Report))
	require.False(t, claims.Allows(pipeline.Load))

	require.ErrorContains(t, printToken(cfg, nil, &out), "subject is required")
	require.ErrorContains(t, printToken(cfg, []string{"ops", "vacuum"}, &out), `unknown pipeline "vacuum"`)
}

func TestRunTokenRequiresSecret(t *testing.T) {
	dir, _ := writeFixture(t, "d1")

	var out bytes.Buffer
	require.ErrorContains(t, run(context.Background(), []string{"-config", dir, "token", "ops"}, &out), "secret must be provided")
}

func TestBootstrapServerStack(t *testing.T) {
	dir, _ := writeFixture(t, "d1")
	cfg, err := app.LoadConfig(dir)
	require.NoError(t, err)
	cfg.Schedule.Load = "-"
	cfg.Schedule.Report = "@hourly"

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop(), true)
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })

	require.NotNil(t, stack.Router)
	require.NotNil(t, stack.Scheduler)
	require.NotNil(t, stack.Runner)
}

func TestBootstrapRejectsUnknownSink(t *testing.T) {
	dir, _ := writeFixture(t, "d1")
	cfg, err := app.LoadConfig(dir)
	require.NoError(t, err)
	cfg.Metrics.Sink = "graphite"

	_, err = bootstrapRuntime(context.Background(), cfg, zap.NewNop(), false)
	require.ErrorContains(t, err, "unsupported metrics sink")
}
