package secret

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type (
	Secret = []byte

	Source interface {
		Get(context.Context, string) (Secret, error)
	}

	Config struct {
		Source    string        `default:"env"`
		ProjectID string        `split_words:"true"`
		Tries     int           `default:"3"`
		Backoff   time.Duration `default:"1s"`
	}
)

var (
	ErrSecretNotFound      = errors.New("secret_not_found")
	ErrUnknownSecretSource = errors.New("unknown secret source")
)

// New builds the source named in config. The returned func releases it.
func New(ctx context.Context, config Config) (Source, func(), error) {
	switch config.Source {
	case "env":
		return NewEnvSource(), func() {}, nil

	case "file":
		return NewFileSource(), func() {}, nil

	case "gsm":
		gsm, err := NewGoogleSecretManager(ctx, config.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create google secret manager client: %w", err)
		}

		return NewBackoffSource(config.Tries, config.Backoff, gsm), gsm.Close, nil
	}

	return nil, nil, fmt.Errorf("%w: %q", ErrUnknownSecretSource, config.Source)
}
