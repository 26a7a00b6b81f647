package awsauth

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in   string
		want Strategy
	}{
		{"aws_iam_role", StrategyIAMRole},
		{"aws_sso", StrategySSO},
		{"aws_keys", StrategyKeys},
		{"AWS_KEYS", StrategyKeys},
		{"  aws_sso  ", StrategySSO},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if err != nil {
			t.Errorf("ParseStrategy(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStrategy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseStrategy_Unsupported(t *testing.T) {
	_, err := ParseStrategy("gcp_sa")
	var unsupported *UnsupportedStrategyError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedStrategyError, got %v", err)
	}
	if unsupported.Identifier != "gcp_sa" {
		t.Errorf("expected identifier gcp_sa, got %q", unsupported.Identifier)
	}
}

func TestParseStrategy_Unset(t *testing.T) {
	// No default strategy: an unset selector is fatal, even when the
	// environment could satisfy more than one strategy.
	_, err := ParseStrategy("")
	var unsupported *UnsupportedStrategyError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedStrategyError, got %v", err)
	}
}

func TestLoadStrategyConfig_IAMRole(t *testing.T) {
	cfg, err := LoadStrategyConfig(StrategyIAMRole, Environ{
		EnvRegion: "us-east-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Region != "us-east-1" {
		t.Errorf("expected region us-east-1, got %q", cfg.Region)
	}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" || cfg.Profile != "" {
		t.Errorf("iam role config must not carry credential fields: %+v", cfg)
	}
}

func TestLoadStrategyConfig_NoCrossStrategyLeakage(t *testing.T) {
	// Stray static keys in the environment must not be read when the
	// active strategy is aws_iam_role.
	cfg, err := LoadStrategyConfig(StrategyIAMRole, Environ{
		EnvRegion:          "us-east-1",
		EnvAccessKeyID:     "AKIAEXAMPLE",
		EnvSecretAccessKey: "sekrit",
		EnvProfile:         "dev",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" || cfg.Profile != "" {
		t.Errorf("fields of inactive strategies leaked into config: %+v", cfg)
	}
}

func TestLoadStrategyConfig_SSOMissingProfile(t *testing.T) {
	_, err := LoadStrategyConfig(StrategySSO, Environ{
		EnvRegion:    "us-east-1",
		EnvConfigDir: "/mnt/aws",
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !reflect.DeepEqual(verr.MissingFields, []string{FieldProfile}) {
		t.Errorf("expected missing fields [profile], got %v", verr.MissingFields)
	}
}

func TestLoadStrategyConfig_AllMissingFieldsReported(t *testing.T) {
	_, err := LoadStrategyConfig(StrategySSO, Environ{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := []string{FieldRegion, FieldProfile, FieldConfigDir}
	if !reflect.DeepEqual(verr.MissingFields, want) {
		t.Errorf("expected all missing fields %v in one pass, got %v", want, verr.MissingFields)
	}
}

func TestLoadStrategyConfig_EmptyKeyTreatedAsMissing(t *testing.T) {
	_, err := LoadStrategyConfig(StrategyKeys, Environ{
		EnvRegion:          "eu-west-1",
		EnvAccessKeyID:     "",
		EnvSecretAccessKey: "x",
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !reflect.DeepEqual(verr.MissingFields, []string{FieldAccessKeyID}) {
		t.Errorf("expected missing fields [access_key_id], got %v", verr.MissingFields)
	}
}

func TestLoadStrategyConfig_SessionTokenOptional(t *testing.T) {
	// Long-lived pair: no token.
	cfg, err := LoadStrategyConfig(StrategyKeys, Environ{
		EnvRegion:          "eu-west-1",
		EnvAccessKeyID:     "AKIAEXAMPLE",
		EnvSecretAccessKey: "sekrit",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SessionToken != "" {
		t.Errorf("expected empty session token, got %q", cfg.SessionToken)
	}

	// Temporary credentials: token carried through unmodified.
	cfg, err = LoadStrategyConfig(StrategyKeys, Environ{
		EnvRegion:          "eu-west-1",
		EnvAccessKeyID:     "ASIAEXAMPLE",
		EnvSecretAccessKey: "sekrit",
		EnvSessionToken:    "tok==/abc",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SessionToken != "tok==/abc" {
		t.Errorf("session token modified: %q", cfg.SessionToken)
	}
}

func TestLoadStrategyConfig_ContainerEndpoint(t *testing.T) {
	cfg, err := LoadStrategyConfig(StrategyIAMRole, Environ{
		EnvRegion:                    "us-east-1",
		envContainerCredsRelativeURI: "/v2/credentials/abc",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ContainerCredentialsURI != "http://169.254.170.2/v2/credentials/abc" {
		t.Errorf("unexpected container endpoint: %q", cfg.ContainerCredentialsURI)
	}

	cfg, err = LoadStrategyConfig(StrategyIAMRole, Environ{
		EnvRegion:                "us-east-1",
		envContainerCredsFullURI: "http://localhost:8081/creds",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ContainerCredentialsURI != "http://localhost:8081/creds" {
		t.Errorf("unexpected container endpoint: %q", cfg.ContainerCredentialsURI)
	}
}
