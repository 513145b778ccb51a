package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
)

// SecretsGetter is the subset of the Secrets Manager API used for the overlay
type SecretsGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Secret keys that may override environment values
const (
	SecretOpenAIAPIKey       = "OPENAI_API_KEY"
	SecretOpenSearchAPIKey   = "OPENSEARCH_API_KEY"
	SecretOpenSearchPassword = "OPENSEARCH_PASSWORD"
)

// ResolveSecrets returns a copy of cfg with credentials overlaid from the JSON
// secret named by SECRETS_MANAGER_SECRET_ID. Keys missing from the secret keep
// their environment values. cfg is returned unchanged when no secret id is set.
func ResolveSecrets(ctx context.Context, cfg *Config, client SecretsGetter) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is nil")
	}
	if cfg.SecretsManagerSecretID == "" {
		return cfg, nil
	}
	if client == nil {
		return nil, fmt.Errorf("secrets manager client is required when SECRETS_MANAGER_SECRET_ID is set")
	}

	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(cfg.SecretsManagerSecretID),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("failed to read secret %s (%s): %w", cfg.SecretsManagerSecretID, apiErr.ErrorCode(), err)
		}
		return nil, fmt.Errorf("failed to read secret %s: %w", cfg.SecretsManagerSecretID, err)
	}

	payload := aws.ToString(out.SecretString)
	if payload == "" && len(out.SecretBinary) > 0 {
		payload = string(out.SecretBinary)
	}

	var values map[string]string
	if err := json.Unmarshal([]byte(payload), &values); err != nil {
		return nil, fmt.Errorf("secret %s is not a JSON object of strings: %w", cfg.SecretsManagerSecretID, err)
	}

	resolved := *cfg
	if v := values[SecretOpenAIAPIKey]; v != "" {
		resolved.OpenAIAPIKey = v
	}
	if v := values[SecretOpenSearchAPIKey]; v != "" {
		resolved.OpenSearchAPIKey = v
	}
	if v := values[SecretOpenSearchPassword]; v != "" {
		resolved.OpenSearchPassword = v
	}
	return &resolved, nil
}

// ValidateCredentials checks that credentials required by the selected modes are present.
// It runs after ResolveSecrets since secrets may supply them.
func ValidateCredentials(cfg *Config) error {
	if cfg.LLMProvider == ProviderOpenAI && cfg.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
	}
	switch cfg.OpenSearchAuth {
	case AuthBasic:
		if cfg.OpenSearchPassword == "" {
			return fmt.Errorf("OPENSEARCH_PASSWORD is required when OPENSEARCH_AUTH=basic")
		}
	case AuthAPIKey:
		if cfg.OpenSearchAPIKey == "" {
			return fmt.Errorf("OPENSEARCH_API_KEY is required when OPENSEARCH_AUTH=apikey")
		}
	}
	return nil
}
