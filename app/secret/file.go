package secret

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

type FileSource struct{}

func NewFileSource() *FileSource { return &FileSource{} }

var _ Source = (*FileSource)(nil)

func (s *FileSource) Get(_ context.Context, name string) (Secret, error) {
	b, err := os.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrSecretNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read secret file: %w", err)
	}

	return bytes.TrimSpace(b), nil
}
