package awsauth

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/ec2rolecreds"
	"github.com/aws/aws-sdk-go-v2/credentials/endpointcreds"
)

// Provider is the opaque credential handle produced by Resolve. It is
// immutable, shared read-only across request handlers, and lives for
// the whole process; a failed resolution requires a restart with
// corrected inputs.
type Provider struct {
	strategy Strategy
	cfg      aws.Config
}

// Strategy returns the strategy this provider was resolved from.
func (p *Provider) Strategy() Strategy {
	return p.strategy
}

// Config returns the AWS client configuration carrying the region and
// the credential source. Callers pass it to service client factories
// (e.g. bedrockruntime.NewFromConfig).
func (p *Provider) Config() aws.Config {
	return p.cfg
}

// Resolve dispatches on the strategy to exactly one construction path
// and returns a ready Provider. It performs no network I/O for any
// path: the IAM-role and SSO providers verify themselves lazily on
// first credential use, and a static key set is embedded as-is.
func Resolve(strategy Strategy, cfg *StrategyConfig) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil strategy config for %s", strategy)
	}

	switch strategy {
	case StrategyIAMRole:
		return resolveIAMRole(cfg), nil
	case StrategySSO:
		return resolveSSO(cfg), nil
	case StrategyKeys:
		return resolveStaticKeys(cfg), nil
	default:
		return nil, &UnsupportedStrategyError{Identifier: string(strategy)}
	}
}

// resolveIAMRole binds the region and defers entirely to the ambient
// role-metadata service: the ECS container credential endpoint when the
// environment declared one, IMDS instance-role credentials otherwise.
func resolveIAMRole(cfg *StrategyConfig) *Provider {
	var inner aws.CredentialsProvider
	if cfg.ContainerCredentialsURI != "" {
		inner = endpointcreds.New(cfg.ContainerCredentialsURI)
	} else {
		inner = ec2rolecreds.New()
	}
	return &Provider{
		strategy: StrategyIAMRole,
		cfg: aws.Config{
			Region:      cfg.Region,
			Credentials: aws.NewCredentialsCache(&deferredProvider{strategy: StrategyIAMRole, inner: inner}),
		},
	}
}

// resolveSSO binds (region, profile, config dir) without touching the
// mounted files. The shared config is read on first credential use; an
// absent profile surfaces there as CredentialUnavailableError. The
// resolver never performs the interactive SSO login — the mounted
// directory must already hold an established session, and token refresh
// is the SDK provider's business.
func resolveSSO(cfg *StrategyConfig) *Provider {
	return &Provider{
		strategy: StrategySSO,
		cfg: aws.Config{
			Region: cfg.Region,
			Credentials: aws.NewCredentialsCache(&ssoProfileProvider{
				region:    cfg.Region,
				profile:   cfg.Profile,
				configDir: cfg.ConfigDir,
			}),
		},
	}
}

// resolveStaticKeys embeds the supplied key material directly. The
// session token, when present, is carried through unmodified. Static
// credentials never block and never expire from this layer's view.
func resolveStaticKeys(cfg *StrategyConfig) *Provider {
	return &Provider{
		strategy: StrategyKeys,
		cfg: aws.Config{
			Region:      cfg.Region,
			Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		},
	}
}

// deferredProvider wraps a lazy credential source so that first-use
// failures carry the strategy in a CredentialUnavailableError instead
// of a bare SDK error.
type deferredProvider struct {
	strategy Strategy
	inner    aws.CredentialsProvider
}

func (p *deferredProvider) Retrieve(ctx context.Context) (aws.Credentials, error) {
	creds, err := p.inner.Retrieve(ctx)
	if err != nil {
		return aws.Credentials{}, &CredentialUnavailableError{Strategy: p.strategy, Cause: err}
	}
	return creds, nil
}

// ssoProfileProvider loads the named profile from the mounted config
// directory on first use. The shared files are passed explicitly so the
// ambient $HOME/.aws is never consulted.
type ssoProfileProvider struct {
	region    string
	profile   string
	configDir string
}

func (p *ssoProfileProvider) Retrieve(ctx context.Context) (aws.Credentials, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(p.region),
		awsconfig.WithSharedConfigProfile(p.profile),
		awsconfig.WithSharedConfigFiles([]string{filepath.Join(p.configDir, "config")}),
	}
	// A credentials file is optional in an SSO mount; only hand it to
	// the SDK when it exists.
	credFile := filepath.Join(p.configDir, "credentials")
	if _, err := os.Stat(credFile); err == nil {
		opts = append(opts, awsconfig.WithSharedCredentialsFiles([]string{credFile}))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Credentials{}, &CredentialUnavailableError{Strategy: StrategySSO, Cause: err}
	}

	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		return aws.Credentials{}, &CredentialUnavailableError{Strategy: StrategySSO, Cause: err}
	}
	return creds, nil
}
