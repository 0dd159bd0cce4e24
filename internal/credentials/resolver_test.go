package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/charlesng35/sqlpulse/internal/models"
	apperrors "github.com/charlesng35/sqlpulse/pkg/errors"
	"github.com/charlesng35/sqlpulse/pkg/logger"
)

type countingStore struct {
	secrets map[string]string
	calls   int
}

func (s *countingStore) GetSecret(_ context.Context, ref string) (string, error) {
	s.calls++
	value, ok := s.secrets[ref]
	if !ok {
		return "", ErrSecretNotFound
	}
	return value, nil
}

func TestResolveCredential(t *testing.T) {
	store := &countingStore{secrets: map[string]string{"s1": `{"username":"u","password":"p"}`}}

	cred, err := NewResolver(store).Resolve(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, models.Credential{Username: "u", Password: "p"}, cred)
}

func TestResolveAcceptsEmptyPassword(t *testing.T) {
	store := &countingStore{secrets: map[string]string{"s1": `{"username":"u","password":""}`}}

	cred, err := NewResolver(store).Resolve(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, models.Credential{Username: "u"}, cred)
}

func TestResolveDoesNotCache(t *testing.T) {
	store := &countingStore{secrets: map[string]string{"s1": `{"username":"u","password":"p1"}`}}
	resolver := NewResolver(store)

	_, err := resolver.Resolve(context.Background(), "s1")
	require.NoError(t, err)

	store.secrets["s1"] = `{"username":"u","password":"p2"}`
	cred, err := resolver.Resolve(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, "p2", cred.Password)
	require.Equal(t, 2, store.calls)
}

func TestResolveFetchFailure(t *testing.T) {
	_, err := NewResolver(&countingStore{}).Resolve(context.Background(), "missing")
	require.ErrorIs(t, err, apperrors.ErrSecretFetch)
	require.ErrorIs(t, err, ErrSecretNotFound)
}

func TestResolveParseFailures(t *testing.T) {
	cases := map[string]string{
		"not json":         `username=u password=p`,
		"missing password": `{"username":"u"}`,
		"missing username": `{"password":"p"}`,
		"empty username":   `{"username":"","password":"p"}`,
		"null password":    `{"username":"u","password":null}`,
		"null":             `null`,
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			store := &countingStore{secrets: map[string]string{"s1": payload}}
			_, err := NewResolver(store).Resolve(context.Background(), "s1")
			require.ErrorIs(t, err, apperrors.ErrSecretParse)
		})
	}
}

func TestParseErrorDoesNotLeakPayload(t *testing.T) {
	_, err := Parse([]byte(`{"username":"u","password":"hunter2"`))
	require.Error(t, err)
	require.NotContains(t, err.Error(), "hunter2")
}

func TestCredentialsNeverLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := logger.Replace(zap.New(core))
	defer restore()

	store := &countingStore{secrets: map[string]string{"s1": `{"username":"u","password":"hunter2"}`}}
	cred, err := NewResolver(store).Resolve(context.Background(), "s1")
	require.NoError(t, err)

	logger.Info("resolved", zap.Object("credential", cred))
	for _, entry := range logs.All() {
		for _, value := range entry.ContextMap() {
			require.NotContains(t, fmt.Sprint(value), "hunter2")
		}
	}
	require.NotContains(t, fmt.Sprintf("%v %+v %#v %s", cred, cred, cred, cred), "hunter2")
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"s1": {"username":"u","password":"p"},
		"s2": "{\"username\":\"v\",\"password\":\"q\"}"
	}`), 0o600))

	resolver := NewResolver(FileStore{Path: path})

	cred, err := resolver.Resolve(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, "u", cred.Username)

	cred, err = resolver.Resolve(context.Background(), "s2")
	require.NoError(t, err)
	require.Equal(t, "q", cred.Password)

	_, err = resolver.Resolve(context.Background(), "s3")
	require.True(t, errors.Is(err, ErrSecretNotFound))
}
