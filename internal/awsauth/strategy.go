// Package awsauth resolves the process-wide AWS credential strategy.
//
// The strategy is declared once via AWS_LOGIN_STRATEGY and resolved at
// startup into an immutable Provider that the Bedrock client factory
// consumes. Shape validation happens here, synchronously and without
// I/O; whether the credentials actually work is only proven by the
// first real AWS call (see resolver.go).
package awsauth

import (
	"os"
	"strings"
)

// Strategy selects which AWS authentication mechanism is active.
type Strategy string

const (
	// StrategyIAMRole defers to the ambient execution environment's
	// role-metadata service (EC2 instance profile, ECS task role).
	StrategyIAMRole Strategy = "aws_iam_role"
	// StrategySSO binds to a pre-authenticated SSO profile in a mounted
	// AWS config directory.
	StrategySSO Strategy = "aws_sso"
	// StrategyKeys embeds a static access key pair, optionally with a
	// session token for temporary credentials.
	StrategyKeys Strategy = "aws_keys"
)

// Environment variable names read by the resolver. This is its sole
// I/O boundary; values are handed in as an Environ snapshot.
const (
	EnvLoginStrategy   = "AWS_LOGIN_STRATEGY"
	EnvRegion          = "AWS_REGION"
	EnvProfile         = "AWS_PROFILE"
	EnvConfigDir       = "AWS_CONFIG_DIR"
	EnvAccessKeyID     = "AWS_ACCESS_KEY_ID"
	EnvSecretAccessKey = "AWS_SECRET_ACCESS_KEY"
	EnvSessionToken    = "AWS_SESSION_TOKEN"

	// Container credential endpoint variables set by ECS/Fargate.
	envContainerCredsRelativeURI = "AWS_CONTAINER_CREDENTIALS_RELATIVE_URI"
	envContainerCredsFullURI     = "AWS_CONTAINER_CREDENTIALS_FULL_URI"
)

// Field names reported in ValidationError, as operators should read them.
const (
	FieldRegion          = "region"
	FieldProfile         = "profile"
	FieldConfigDir       = "config_dir"
	FieldAccessKeyID     = "access_key_id"
	FieldSecretAccessKey = "secret_access_key"
)

// ecsCredentialsHost serves the container credential endpoint when only
// the relative URI is set.
const ecsCredentialsHost = "http://169.254.170.2"

// ParseStrategy maps the AWS_LOGIN_STRATEGY value onto the closed
// Strategy set. Unknown values — including an unset variable — are
// rejected; there is no default strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyIAMRole:
		return StrategyIAMRole, nil
	case StrategySSO:
		return StrategySSO, nil
	case StrategyKeys:
		return StrategyKeys, nil
	default:
		return "", &UnsupportedStrategyError{Identifier: s}
	}
}

// Environ is a read-only snapshot of environment variables. Injecting
// it keeps strategy loading a pure function of explicit inputs.
type Environ map[string]string

// EnvironFromOS snapshots the process environment.
func EnvironFromOS() Environ {
	env := make(Environ)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// StrategyConfig holds the environment inputs for the active strategy.
// Only the fields relevant to Strategy are populated; stray credentials
// belonging to other strategies are never read. Immutable after load.
type StrategyConfig struct {
	Strategy Strategy

	Region string

	// SSO.
	Profile   string
	ConfigDir string

	// Static keys. SessionToken is optional and passed through
	// unmodified; no expiry is inferred from its presence.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// Container credential endpoint, picked up for the IAM-role
	// strategy when the ECS agent exposes one. Optional, never
	// validated.
	ContainerCredentialsURI string
}

// LoadStrategyConfig extracts and validates the environment fields the
// given strategy requires. All absent or empty required fields are
// collected into a single ValidationError so the operator sees the
// complete remediation list at once. Pure: no I/O, no side effects.
func LoadStrategyConfig(strategy Strategy, env Environ) (*StrategyConfig, error) {
	cfg := &StrategyConfig{Strategy: strategy}
	var missing []string

	require := func(key, field string) string {
		v := env[key]
		if v == "" {
			missing = append(missing, field)
		}
		return v
	}

	switch strategy {
	case StrategyIAMRole:
		cfg.Region = require(EnvRegion, FieldRegion)
		if uri := env[envContainerCredsFullURI]; uri != "" {
			cfg.ContainerCredentialsURI = uri
		} else if rel := env[envContainerCredsRelativeURI]; rel != "" {
			cfg.ContainerCredentialsURI = ecsCredentialsHost + rel
		}
	case StrategySSO:
		cfg.Region = require(EnvRegion, FieldRegion)
		cfg.Profile = require(EnvProfile, FieldProfile)
		cfg.ConfigDir = require(EnvConfigDir, FieldConfigDir)
	case StrategyKeys:
		cfg.Region = require(EnvRegion, FieldRegion)
		cfg.AccessKeyID = require(EnvAccessKeyID, FieldAccessKeyID)
		cfg.SecretAccessKey = require(EnvSecretAccessKey, FieldSecretAccessKey)
		cfg.SessionToken = env[EnvSessionToken]
	default:
		return nil, &UnsupportedStrategyError{Identifier: string(strategy)}
	}

	if len(missing) > 0 {
		return nil, &ValidationError{Strategy: strategy, MissingFields: missing}
	}
	return cfg, nil
}
