package amazon

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/charlesng35/sqlpulse/internal/credentials"
)

// SecretsManagerAPI is the subset of the Secrets Manager client used by SecretStore.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretStore reads credential payloads from AWS Secrets Manager.
type SecretStore struct {
	client SecretsManagerAPI
}

var _ credentials.SecretStore = (*SecretStore)(nil)

// NewSecretStore builds a SecretStore from loaded clients.
func NewSecretStore(c *Clients) *SecretStore {
	client := secretsmanager.NewFromConfig(c.aws, func(o *secretsmanager.Options) {
		o.BaseEndpoint = c.baseEndpoint()
	})
	return &SecretStore{client: client}
}

// NewSecretStoreWithClient wraps an existing client.
func NewSecretStoreWithClient(client SecretsManagerAPI) *SecretStore {
	return &SecretStore{client: client}
}

// GetSecret implements credentials.SecretStore. Binary secrets are returned as raw bytes.
func (s *SecretStore) GetSecret(ctx context.Context, ref string) (string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(ref),
	})
	if err != nil {
		if apiErrorCode(err) == "ResourceNotFoundException" {
			return "", fmt.Errorf("%w: %s", credentials.ErrSecretNotFound, ref)
		}
		return "", fmt.Errorf("secretsmanager get secret value %s: %w", ref, err)
	}

	switch {
	case out.SecretString != nil:
		return aws.ToString(out.SecretString), nil
	case len(out.SecretBinary) > 0:
		return string(out.SecretBinary), nil
	}
	return "", fmt.Errorf("%w: %s has no value", credentials.ErrSecretNotFound, ref)
}
