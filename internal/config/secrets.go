package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	"github.com/tidwall/gjson"
)

// SecretGetter is the subset of the Secrets Manager client used to resolve
// the RapidAPI key.
type SecretGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// NewSecretsManagerClient builds a Secrets Manager client from the default AWS
// credential chain.
func NewSecretsManagerClient(ctx context.Context, region string) (*secretsmanager.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return secretsmanager.NewFromConfig(awsCfg), nil
}

// ResolveAPIKey returns the key to send upstream. RAPID_API_KEY wins; when it
// is empty and a secret id is configured the key is read from Secrets Manager.
// The secret may hold the key directly or a JSON object containing it under
// RapidAPIKeySecretField. An empty result is not an error.
func ResolveAPIKey(ctx context.Context, cfg *Config, getter SecretGetter) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("configuration cannot be nil")
	}
	if cfg.RapidAPIKey != "" || cfg.RapidAPIKeySecretID == "" {
		return cfg.RapidAPIKey, nil
	}
	if getter == nil {
		return "", fmt.Errorf("secret %s configured but no secrets client available", cfg.RapidAPIKeySecretID)
	}

	out, err := getter.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(cfg.RapidAPIKeySecretID),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("failed to read secret %s: %s: %s", cfg.RapidAPIKeySecretID, apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
		return "", fmt.Errorf("failed to read secret %s: %w", cfg.RapidAPIKeySecretID, err)
	}

	secret := strings.TrimSpace(aws.ToString(out.SecretString))
	if secret == "" {
		return "", fmt.Errorf("secret %s has no string value", cfg.RapidAPIKeySecretID)
	}

	if gjson.Valid(secret) {
		parsed := gjson.Parse(secret)
		if parsed.IsObject() {
			field := parsed.Get(gjson.Escape(cfg.RapidAPIKeySecretField))
			if !field.Exists() || field.String() == "" {
				return "", fmt.Errorf("secret %s has no %q field", cfg.RapidAPIKeySecretID, cfg.RapidAPIKeySecretField)
			}
			return field.String(), nil
		}
	}

	return secret, nil
}
