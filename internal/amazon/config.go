// Package amazon adapts AWS Systems Manager Parameter Store, Secrets Manager
// and CloudWatch to the target, credential and metric sink boundaries.
package amazon

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/smithy-go"
)

// DefaultRegion is used when no region is configured.
const DefaultRegion = "us-east-1"

// Config selects the AWS region and an optional endpoint override
// (for example a localstack URL) shared by every client.
type Config struct {
	Region   string
	Endpoint string
}

// Clients bundles the loaded SDK configuration with the endpoint override.
type Clients struct {
	aws      aws.Config
	endpoint string
}

// Load resolves AWS credentials from the default provider chain.
func Load(ctx context.Context, cfg Config) (*Clients, error) {
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Clients{aws: awsCfg, endpoint: cfg.Endpoint}, nil
}

// Region returns the resolved region.
func (c *Clients) Region() string {
	return c.aws.Region
}

func (c *Clients) baseEndpoint() *string {
	if c.endpoint == "" {
		return nil
	}
	return aws.String(c.endpoint)
}

// apiErrorCode returns the service error code carried by err, if any.
func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
