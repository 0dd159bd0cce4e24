package credentials

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/charlesng35/sqlpulse/internal/models"
	apperrors "github.com/charlesng35/sqlpulse/pkg/errors"
	"github.com/charlesng35/sqlpulse/pkg/logger"
	"github.com/charlesng35/sqlpulse/pkg/validator"
)

// ErrSecretNotFound is returned by stores when the reference does not exist.
var ErrSecretNotFound = errors.New("credentials: secret not found")

// SecretStore returns the raw payload of a secret.
type SecretStore interface {
	GetSecret(ctx context.Context, ref string) (string, error)
}

// Resolver turns secret references into credentials. Every call reads the
// store; secrets may rotate between invocations.
type Resolver struct {
	store SecretStore
	log   *zap.Logger
}

// NewResolver constructs a Resolver reading from store.
func NewResolver(store SecretStore) *Resolver {
	return &Resolver{
		store: store,
		log:   logger.WithModule("credentials"),
	}
}

// Resolve fetches and decodes the credential stored under ref.
func (r *Resolver) Resolve(ctx context.Context, ref string) (models.Credential, error) {
	payload, err := r.store.GetSecret(ctx, ref)
	if err != nil {
		return models.Credential{}, apperrors.ErrSecretFetch.WithStep("get secret " + ref).WithInternal(err)
	}

	cred, err := Parse([]byte(payload))
	if err != nil {
		return models.Credential{}, err
	}

	r.log.Debug("resolved credentials", zap.String("secret", ref))
	return cred, nil
}

// Parse decodes a {"username","password"} payload. Decoder errors are not
// wrapped since they may quote the payload.
// Both keys must be present; an empty password is a valid login.
func Parse(payload []byte) (models.Credential, error) {
	var raw secretPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return models.Credential{}, apperrors.ErrSecretParse.WithInternal(errors.New("payload is not a JSON object"))
	}
	if err := validator.ValidateStruct(raw); err != nil {
		return models.Credential{}, apperrors.ErrSecretParse.WithInternal(err)
	}
	return models.Credential{Username: *raw.Username, Password: *raw.Password}, nil
}

type secretPayload struct {
	Username *string `json:"username" validate:"required,min=1"`
	Password *string `json:"password" validate:"required"`
}
