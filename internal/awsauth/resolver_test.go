package awsauth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestResolve_IAMRole(t *testing.T) {
	cfg, err := LoadStrategyConfig(StrategyIAMRole, Environ{EnvRegion: "us-east-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Resolve must succeed without any network call: reachability of the
	// role-metadata service is the provider's problem, at first use.
	p, err := Resolve(StrategyIAMRole, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Strategy() != StrategyIAMRole {
		t.Errorf("expected strategy %s, got %s", StrategyIAMRole, p.Strategy())
	}
	if got := p.Config().Region; got != "us-east-1" {
		t.Errorf("expected region us-east-1, got %q", got)
	}
	if p.Config().Credentials == nil {
		t.Fatal("expected a credentials provider")
	}
}

func TestResolve_StaticKeys(t *testing.T) {
	cfg, err := LoadStrategyConfig(StrategyKeys, Environ{
		EnvRegion:          "eu-west-1",
		EnvAccessKeyID:     "AKIAEXAMPLE",
		EnvSecretAccessKey: "sekrit",
		EnvSessionToken:    "tok",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err := Resolve(StrategyKeys, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	creds, err := p.Config().Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("static retrieve must not fail: %v", err)
	}
	if creds.AccessKeyID != "AKIAEXAMPLE" || creds.SecretAccessKey != "sekrit" {
		t.Errorf("unexpected key material: %+v", creds)
	}
	if creds.SessionToken != "tok" {
		t.Errorf("session token not carried through: %q", creds.SessionToken)
	}
}

func TestResolve_StaticKeysWithoutToken(t *testing.T) {
	cfg, err := LoadStrategyConfig(StrategyKeys, Environ{
		EnvRegion:          "eu-west-1",
		EnvAccessKeyID:     "AKIAEXAMPLE",
		EnvSecretAccessKey: "sekrit",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err := Resolve(StrategyKeys, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	creds, err := p.Config().Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("static retrieve must not fail: %v", err)
	}
	if creds.SessionToken != "" {
		t.Errorf("expected no session token, got %q", creds.SessionToken)
	}
}

func TestResolve_Unsupported(t *testing.T) {
	_, err := Resolve(Strategy("gcp_sa"), &StrategyConfig{})
	var unsupported *UnsupportedStrategyError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedStrategyError, got %v", err)
	}
}

func TestResolve_SSODeferred(t *testing.T) {
	// The config dir does not exist. Resolve must still succeed — it is
	// a pure binder; the mounted files are only read at first use.
	cfg, err := LoadStrategyConfig(StrategySSO, Environ{
		EnvRegion:    "us-east-1",
		EnvProfile:   "dev",
		EnvConfigDir: "/nonexistent/aws",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, err := Resolve(StrategySSO, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Strategy() != StrategySSO {
		t.Errorf("expected strategy %s, got %s", StrategySSO, p.Strategy())
	}
}

func TestSSOProvider_MissingProfileIsRuntimeFailure(t *testing.T) {
	// A mounted config without the requested profile fails at first
	// credential use with CredentialUnavailable, not at resolve time.
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config")
	content := "[profile other]\nregion = us-east-1\n"
	if err := os.WriteFile(configFile, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadStrategyConfig(StrategySSO, Environ{
		EnvRegion:    "us-east-1",
		EnvProfile:   "dev",
		EnvConfigDir: dir,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, err := Resolve(StrategySSO, cfg)
	if err != nil {
		t.Fatalf("resolve must not touch the mounted files: %v", err)
	}

	_, err = p.Config().Credentials.Retrieve(context.Background())
	var unavailable *CredentialUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected CredentialUnavailableError, got %v", err)
	}
	if unavailable.Strategy != StrategySSO {
		t.Errorf("expected strategy %s, got %s", StrategySSO, unavailable.Strategy)
	}
}
