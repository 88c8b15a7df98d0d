package secret

import (
	"context"
	"errors"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var ErrEmptyPayload = errors.New("secret version has no payload")

// GoogleSecretManager reads the latest version of secrets stored in
// Google Secret Manager under one project.
type GoogleSecretManager struct {
	projectID string
	client    *secretmanager.Client
}

var _ Source = (*GoogleSecretManager)(nil)

func NewGoogleSecretManager(ctx context.Context, projectID string) (*GoogleSecretManager, error) {
	if projectID == "" {
		return nil, errors.New("google secret manager requires a project id")
	}

	c, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize google secret manager client: %w", err)
	}

	return &GoogleSecretManager{client: c, projectID: projectID}, nil
}

func (m *GoogleSecretManager) Get(ctx context.Context, name string) (Secret, error) {
	r, err := m.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: latestVersion(m.projectID, name),
	})
	if status.Code(err) == codes.NotFound {
		return nil, ErrSecretNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to access secret %q: %w", name, err)
	}

	return payloadData(r)
}

func (m *GoogleSecretManager) Close() { _ = m.client.Close() }

func latestVersion(projectID, name string) string {
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", projectID, name)
}

func payloadData(r *secretmanagerpb.AccessSecretVersionResponse) (Secret, error) {
	if r.GetPayload() == nil {
		return nil, ErrEmptyPayload
	}

	return r.GetPayload().GetData(), nil
}
