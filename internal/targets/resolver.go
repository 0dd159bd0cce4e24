package targets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	playground "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/charlesng35/sqlpulse/internal/database"
	"github.com/charlesng35/sqlpulse/internal/models"
	apperrors "github.com/charlesng35/sqlpulse/pkg/errors"
	"github.com/charlesng35/sqlpulse/pkg/logger"
	"github.com/charlesng35/sqlpulse/pkg/validator"
)

// DefaultParameterName is the config store key holding the target list.
const DefaultParameterName = "/example/SqlToCwDemo"

// ErrParameterNotFound is returned by stores when the key does not exist.
var ErrParameterNotFound = errors.New("targets: parameter not found")

// ParameterStore reads a single configuration document by key.
type ParameterStore interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Resolver loads and validates the list of database targets.
type Resolver struct {
	store         ParameterStore
	name          string
	defaultEngine string
	log           *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithParameterName overrides the config store key.
func WithParameterName(name string) Option {
	return func(r *Resolver) {
		if strings.TrimSpace(name) != "" {
			r.name = name
		}
	}
}

// WithDefaultEngine sets the engine applied to targets that do not name one.
func WithDefaultEngine(engine string) Option {
	return func(r *Resolver) {
		r.defaultEngine = engine
	}
}

// NewResolver constructs a Resolver reading from store.
func NewResolver(store ParameterStore, opts ...Option) *Resolver {
	r := &Resolver{
		store:         store,
		name:          DefaultParameterName,
		defaultEngine: "sqlserver",
		log:           logger.WithModule("targets"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ParameterName returns the key the resolver reads.
func (r *Resolver) ParameterName() string {
	return r.name
}

type document struct {
	Connections *[]models.Target `json:"dbConnections"`
}

// Resolve fetches the target list document and returns its validated targets.
// An empty list is valid.
func (r *Resolver) Resolve(ctx context.Context) ([]models.Target, error) {
	raw, err := r.store.GetParameter(ctx, r.name)
	if err != nil {
		return nil, apperrors.ErrConfigFetch.WithStep("get parameter " + r.name).WithInternal(err)
	}

	targets, err := Parse([]byte(raw))
	if err != nil {
		return nil, err
	}

	for i := range targets {
		targets[i] = targets[i].WithDefaultEngine(r.defaultEngine)
	}

	r.log.Debug("resolved targets", zap.String("parameter", r.name), zap.Int("count", len(targets)))
	return targets, nil
}

// The "dialect" tag accepts any id or alias known to the default dialect registry.
func init() {
	if err := validator.RegisterValidation("dialect", func(fl playground.FieldLevel) bool {
		_, ok := database.DefaultRegistry().Get(fl.Field().String())
		return ok
	}); err != nil {
		panic(err)
	}
}

// Parse decodes and validates a target list document.
func Parse(raw []byte) ([]models.Target, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, apperrors.ErrConfigParse.WithInternal(errors.New("empty document"))
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperrors.ErrConfigParse.WithInternal(err)
	}
	if doc.Connections == nil {
		return nil, apperrors.ErrConfigParse.WithInternal(errors.New("dbConnections is missing"))
	}

	targets := *doc.Connections
	for i, target := range targets {
		if err := validator.ValidateStruct(target); err != nil {
			return nil, apperrors.ErrConfigParse.WithInternal(fmt.Errorf("dbConnections[%d]: %w", i, err))
		}
	}
	return targets, nil
}
