package amazon

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/charlesng35/sqlpulse/internal/targets"
)

// SSMAPI is the subset of the SSM client used by ParameterStore.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ParameterStore reads the target list from SSM Parameter Store.
// SecureString parameters are decrypted.
type ParameterStore struct {
	client SSMAPI
}

var _ targets.ParameterStore = (*ParameterStore)(nil)

// NewParameterStore builds a ParameterStore from loaded clients.
func NewParameterStore(c *Clients) *ParameterStore {
	client := ssm.NewFromConfig(c.aws, func(o *ssm.Options) {
		o.BaseEndpoint = c.baseEndpoint()
	})
	return &ParameterStore{client: client}
}

// NewParameterStoreWithClient wraps an existing client.
func NewParameterStoreWithClient(client SSMAPI) *ParameterStore {
	return &ParameterStore{client: client}
}

// GetParameter implements targets.ParameterStore.
func (s *ParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		if apiErrorCode(err) == "ParameterNotFound" {
			return "", fmt.Errorf("%w: %s", targets.ErrParameterNotFound, name)
		}
		return "", fmt.Errorf("ssm get parameter %s: %w", name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("%w: %s has no value", targets.ErrParameterNotFound, name)
	}
	return aws.ToString(out.Parameter.Value), nil
}
