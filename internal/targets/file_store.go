package targets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// FileStore serves the target list document from a local file, regardless of
// the requested key. It is meant for local runs.
type FileStore struct {
	Path string
}

// GetParameter implements ParameterStore.
func (s FileStore) GetParameter(_ context.Context, name string) (string, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s (file %s)", ErrParameterNotFound, name, s.Path)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
