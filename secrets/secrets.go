// Package secrets stellt die Secret-Abfrage (get_secret(name)) für die Upstream-Zugangsdaten bereit.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"pet-sync/config"
)

// ErrNotFound wird zurückgegeben, wenn ein Secret nicht existiert oder leer ist.
var ErrNotFound = errors.New("secret not found")

// Store liefert Secrets anhand ihres Namens.
type Store interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// SecretsManagerAPI ist der Ausschnitt des Secrets-Manager-Clients, den wir benötigen.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSStore liest Secrets aus AWS Secrets Manager.
type AWSStore struct {
	client SecretsManagerAPI
}

// NewAWSStore erstellt einen Store auf Basis eines vorhandenen Clients.
func NewAWSStore(client SecretsManagerAPI) *AWSStore {
	return &AWSStore{client: client}
}

// GetSecret holt den SecretString für name.
func (s *AWSStore) GetSecret(ctx context.Context, name string) (string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", name, err)
	}
	if out.SecretString == nil || *out.SecretString == "" {
		return "", fmt.Errorf("secret %s: %w", name, ErrNotFound)
	}
	return *out.SecretString, nil
}

// EnvStore liest Secrets aus Umgebungsvariablen; "airtable_base" wird zu AIRTABLE_BASE.
// Gedacht für lokale Entwicklung.
type EnvStore struct{}

func (EnvStore) GetSecret(_ context.Context, name string) (string, error) {
	key := strings.ToUpper(strings.NewReplacer("-", "_", "/", "_", ".", "_").Replace(name))
	if v := os.Getenv(key); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("secret %s (env %s): %w", name, key, ErrNotFound)
}

// Static ist ein fester Secret-Satz, z.B. für Tests.
type Static map[string]string

func (s Static) GetSecret(_ context.Context, name string) (string, error) {
	if v, ok := s[name]; ok && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("secret %s: %w", name, ErrNotFound)
}

// New erstellt den konfigurierten Store.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.SecretsBackend {
	case "env":
		return EnvStore{}, nil
	case "aws":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, err
		}
		return NewAWSStore(secretsmanager.NewFromConfig(awsCfg)), nil
	default:
		return nil, fmt.Errorf("unknown secrets backend %q", cfg.SecretsBackend)
	}
}
