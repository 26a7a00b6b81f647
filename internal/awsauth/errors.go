package awsauth

import (
	"fmt"
	"strings"
)

// ValidationError reports every required environment field missing for
// the active strategy. Configuration-time, fatal: the operator fixes the
// environment and restarts.
type ValidationError struct {
	Strategy      Strategy
	MissingFields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s configuration: missing required fields: %s",
		e.Strategy, strings.Join(e.MissingFields, ", "))
}

// UnsupportedStrategyError reports an AWS_LOGIN_STRATEGY value outside
// the closed strategy set. Configuration-time, fatal; no fallback
// strategy is ever guessed.
type UnsupportedStrategyError struct {
	Identifier string
}

func (e *UnsupportedStrategyError) Error() string {
	if e.Identifier == "" {
		return fmt.Sprintf("%s is not set (use %s, %s, or %s)",
			EnvLoginStrategy, StrategyIAMRole, StrategySSO, StrategyKeys)
	}
	return fmt.Sprintf("unsupported AWS login strategy %q (use %s, %s, or %s)",
		e.Identifier, StrategyIAMRole, StrategySSO, StrategyKeys)
}

// CredentialUnavailableError surfaces when a deferred-verification
// provider (IAM role, SSO) fails at first real use. Runtime: it fails
// the chat turn that triggered the AWS call, never the process.
type CredentialUnavailableError struct {
	Strategy Strategy
	Cause    error
}

func (e *CredentialUnavailableError) Error() string {
	return fmt.Sprintf("%s credentials unavailable: %v", e.Strategy, e.Cause)
}

func (e *CredentialUnavailableError) Unwrap() error {
	return e.Cause
}
