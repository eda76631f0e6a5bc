// Package security resolves and checks the API key guarding the trading routes.
package security

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

type ParameterClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

var ErrNoAPIKey = errors.New("no api key configured")

// LoadAPIKey reads the key from the named SSM parameter, decrypting SecureString
// values. When name is empty the literal fallback is used instead.
func LoadAPIKey(ctx context.Context, c ParameterClient, name, fallback string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		if strings.TrimSpace(fallback) == "" {
			return "", ErrNoAPIKey
		}
		return fallback, nil
	}
	if c == nil {
		return "", fmt.Errorf("ssm client required to read %s", name)
	}

	out, err := c.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("ssm GetParameter %s: %w", name, err)
	}
	if out.Parameter == nil || strings.TrimSpace(aws.ToString(out.Parameter.Value)) == "" {
		return "", fmt.Errorf("ssm parameter %s: %w", name, ErrNoAPIKey)
	}
	return aws.ToString(out.Parameter.Value), nil
}

// MatchAPIKey compares in constant time. An empty expected key never matches.
func MatchAPIKey(expected, provided string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}
