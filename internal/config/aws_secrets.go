package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// SecretResolver resolves a ConceptEndpoint's SecretRef to a connection
// target (host:port, or a JSON blob embedding TLS material) from either
// AWS Secrets Manager or SSM Parameter Store, per AWSConfig.SecretSource.
type SecretResolver struct {
	secretsManager *secretsmanager.Client
	ssm            *ssm.Client
	source         string
}

// NewSecretResolver builds an AWS SDK config from cfg and returns a
// resolver bound to the configured secret source. Credentials come from
// CONCORD_AWS_ACCESS_KEY_ID/CONCORD_AWS_SECRET_ACCESS_KEY when both are
// set, otherwise from the standard SDK credential chain (env, shared
// config, EC2/ECS metadata, SSO).
func NewSecretResolver(ctx context.Context, cfg AWSConfig) (*SecretResolver, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if accessKey, secretKey := os.Getenv("CONCORD_AWS_ACCESS_KEY_ID"), os.Getenv("CONCORD_AWS_SECRET_ACCESS_KEY"); accessKey != "" && secretKey != "" {
		provider := credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")
		opts = append(opts, awsconfig.WithCredentialsProvider(provider))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("config: load aws config: %w", err)
	}

	source := cfg.SecretSource
	if source == "" {
		source = "secretsmanager"
	}

	return &SecretResolver{
		secretsManager: secretsmanager.NewFromConfig(awsCfg),
		ssm:            ssm.NewFromConfig(awsCfg),
		source:         source,
	}, nil
}

// Resolve fetches the plaintext value for ref (a Secrets Manager secret
// name/ARN or an SSM parameter name, depending on the configured
// source).
func (r *SecretResolver) Resolve(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("config: empty secret reference")
	}

	switch strings.ToLower(r.source) {
	case "ssm":
		out, err := r.ssm.GetParameter(ctx, &ssm.GetParameterInput{
			Name:           &ref,
			WithDecryption: boolPtr(true),
		})
		if err != nil {
			return "", fmt.Errorf("config: get ssm parameter %q: %w", ref, err)
		}
		if out.Parameter == nil || out.Parameter.Value == nil {
			return "", fmt.Errorf("config: ssm parameter %q has no value", ref)
		}
		return *out.Parameter.Value, nil
	default:
		out, err := r.secretsManager.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: &ref,
		})
		if err != nil {
			return "", fmt.Errorf("config: get secret %q: %w", ref, err)
		}
		if out.SecretString == nil {
			return "", fmt.Errorf("config: secret %q has no string value", ref)
		}
		return *out.SecretString, nil
	}
}

// ResolveEndpoints returns a copy of endpoints with each non-empty
// SecretRef resolved into its Target field, leaving endpoints without a
// SecretRef untouched.
func (r *SecretResolver) ResolveEndpoints(ctx context.Context, endpoints []ConceptEndpoint) ([]ConceptEndpoint, error) {
	resolved := make([]ConceptEndpoint, len(endpoints))
	for i, ep := range endpoints {
		resolved[i] = ep
		if ep.SecretRef == "" {
			continue
		}
		target, err := r.Resolve(ctx, ep.SecretRef)
		if err != nil {
			return nil, fmt.Errorf("config: resolve endpoint %q: %w", ep.URI, err)
		}
		resolved[i].Target = target
	}
	return resolved, nil
}

func boolPtr(b bool) *bool { return &b }
