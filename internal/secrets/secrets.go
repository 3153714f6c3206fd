// Package secrets resolves the helpdesk API key at the start of a run.
// The production path reads a Google Secret Manager version; a static
// provider covers local development where the key is set directly.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/KnightedIT/freshservice-dashboard/internal/config"
)

// Provider fetches the helpdesk API key.
type Provider interface {
	Fetch(ctx context.Context) (string, error)
}

// CredentialError reports a failure to obtain the API key. Every run aborts
// on it: nothing downstream can proceed without the credential.
type CredentialError struct {
	Source string
	Err    error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential fetch from %s failed: %v", e.Source, e.Err)
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

// IsCredentialError checks if the error is a CredentialError.
func IsCredentialError(err error) bool {
	var ce *CredentialError
	return errors.As(err, &ce)
}

// StaticProvider returns a key configured directly, without any lookup.
type StaticProvider struct {
	key string
}

// NewStaticProvider creates a provider that always returns key.
func NewStaticProvider(key string) *StaticProvider {
	return &StaticProvider{key: key}
}

func (p *StaticProvider) Fetch(_ context.Context) (string, error) {
	if p.key == "" {
		return "", &CredentialError{Source: "static", Err: errors.New("empty API key")}
	}
	return p.key, nil
}

// GSMProvider reads one secret version from Google Secret Manager.
type GSMProvider struct {
	name   string
	client *secretmanager.Client
}

// NewGSMProvider creates a provider for the given secret version resource
// name, e.g. projects/acme/secrets/fs-api-key/versions/latest. A name
// without a version part resolves the latest version.
func NewGSMProvider(ctx context.Context, name string) (*GSMProvider, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, &CredentialError{Source: "secretmanager", Err: fmt.Errorf("create client: %w", err)}
	}
	return &GSMProvider{name: secretVersionName(name), client: client}, nil
}

func secretVersionName(name string) string {
	if strings.Contains(name, "/versions/") {
		return name
	}
	return name + "/versions/latest"
}

func (p *GSMProvider) Fetch(ctx context.Context) (string, error) {
	resp, err := p.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: p.name,
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			err = fmt.Errorf("secret version %s not found: %w", p.name, err)
		}
		return "", &CredentialError{Source: "secretmanager", Err: err}
	}

	// Keys created from files tend to carry a trailing newline
	key := strings.TrimSpace(string(resp.GetPayload().GetData()))
	if key == "" {
		return "", &CredentialError{Source: "secretmanager", Err: fmt.Errorf("secret version %s is empty", p.name)}
	}
	return key, nil
}

// Close releases the underlying Secret Manager connection.
func (p *GSMProvider) Close() error {
	return p.client.Close()
}

// FromConfig picks the provider for the current configuration. A directly
// configured key wins over the Secret Manager reference.
func FromConfig(ctx context.Context, cfg *config.FreshserviceConfig) (Provider, error) {
	if cfg.APIKey != "" {
		return NewStaticProvider(cfg.APIKey), nil
	}
	if cfg.APIKeySecretName != "" {
		return NewGSMProvider(ctx, cfg.APIKeySecretName)
	}
	return nil, &CredentialError{Source: "config", Err: errors.New("no API key or secret name configured")}
}
