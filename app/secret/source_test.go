package secret

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakySource struct {
	failures int
	calls    int
	secret   Secret
}

func (s *flakySource) Get(context.Context, string) (Secret, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, errors.New("unavailable")
	}

	return s.secret, nil
}

type missingSource struct{ calls int }

func (s *missingSource) Get(context.Context, string) (Secret, error) {
	s.calls++
	return nil, ErrSecretNotFound
}

func TestEnvSource(t *testing.T) {
	t.Setenv("QUOTA_TEST_PLAIN", "hunter2")
	t.Setenv("QUOTA_TEST_ENCODED", "aHVudGVyMg==")
	t.Setenv("QUOTA_TEST_BLANK", "  ")

	s := NewEnvSource()

	b, err := s.Get(context.Background(), "QUOTA_TEST_PLAIN")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", string(b))

	b, err = s.Get(context.Background(), "QUOTA_TEST_ENCODED")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", string(b))

	_, err = s.Get(context.Background(), "QUOTA_TEST_MISSING")
	assert.ErrorIs(t, err, ErrSecretNotFound)

	_, err = s.Get(context.Background(), "QUOTA_TEST_BLANK")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redis-password")
	require.NoError(t, os.WriteFile(path, []byte("hunter2\n"), 0o600))

	s := NewFileSource()

	b, err := s.Get(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", string(b))

	_, err = s.Get(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestBackoffSource(t *testing.T) {
	t.Run("retries until success", func(t *testing.T) {
		src := &flakySource{failures: 2, secret: Secret("ok")}

		b, err := NewBackoffSource(3, time.Millisecond, src).Get(context.Background(), "x")
		require.NoError(t, err)
		assert.Equal(t, "ok", string(b))
		assert.Equal(t, 3, src.calls)
	})

	t.Run("gives up after tries", func(t *testing.T) {
		src := &flakySource{failures: 5}

		_, err := NewBackoffSource(2, time.Millisecond, src).Get(context.Background(), "x")
		assert.EqualError(t, err, "unavailable")
		assert.Equal(t, 2, src.calls)
	})

	t.Run("does not retry missing secret", func(t *testing.T) {
		src := &missingSource{}

		_, err := NewBackoffSource(3, time.Millisecond, src).Get(context.Background(), "x")
		assert.ErrorIs(t, err, ErrSecretNotFound)
		assert.Equal(t, 1, src.calls)
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		src := &flakySource{failures: 5}

		_, err := NewBackoffSource(3, time.Hour, src).Get(ctx, "x")
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, src.calls)
	})
}

func TestNew(t *testing.T) {
	s, closer, err := New(context.Background(), Config{Source: "env"})
	require.NoError(t, err)
	defer closer()
	assert.IsType(t, &EnvSource{}, s)

	s, closer, err = New(context.Background(), Config{Source: "file"})
	require.NoError(t, err)
	defer closer()
	assert.IsType(t, &FileSource{}, s)

	_, _, err = New(context.Background(), Config{Source: "vault"})
	assert.ErrorIs(t, err, ErrUnknownSecretSource)
}

func TestPayloadData(t *testing.T) {
	b, err := payloadData(&secretmanagerpb.AccessSecretVersionResponse{
		Payload: &secretmanagerpb.SecretPayload{Data: []byte("hunter2")},
	})
	require.NoError(t, err)
	assert.Equal(t, "hunter2", string(b))

	_, err = payloadData(&secretmanagerpb.AccessSecretVersionResponse{})
	assert.ErrorIs(t, err, ErrEmptyPayload)
}

func TestLatestVersion(t *testing.T) {
	assert.Equal(t, "projects/p/secrets/redis-password/versions/latest", latestVersion("p", "redis-password"))
}
