package secret

import (
	"context"
	"encoding/base64"
	"os"
	"strings"
)

// EnvSource reads secrets from environment variables. Values that decode as
// standard base64 are returned decoded, anything else verbatim.
type EnvSource struct{}

func NewEnvSource() *EnvSource { return &EnvSource{} }

var _ Source = (*EnvSource)(nil)

func (s *EnvSource) Get(_ context.Context, name string) (Secret, error) {
	v, ok := os.LookupEnv(name)
	if v = strings.TrimSpace(v); !ok || v == "" {
		return nil, ErrSecretNotFound
	}

	if b, err := base64.StdEncoding.DecodeString(v); err == nil {
		return b, nil
	}

	return Secret(v), nil
}
