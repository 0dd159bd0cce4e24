package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FileStore reads secrets from a local JSON file mapping references to
// payloads. A payload may be an object or a JSON-encoded string. The file is
// read on every lookup.
type FileStore struct {
	Path string
}

// GetSecret implements SecretStore.
func (s FileStore) GetSecret(_ context.Context, ref string) (string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", err
	}

	var secrets map[string]json.RawMessage
	if err := json.Unmarshal(data, &secrets); err != nil {
		return "", fmt.Errorf("decode secrets file %s: %w", s.Path, err)
	}

	raw, ok := secrets[ref]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, ref)
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}
	return string(raw), nil
}
