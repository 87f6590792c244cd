package cloud

import (
	"context"
	"net/http"
	"time"

	"github.com/Iron-Ham/taskbridge/internal/auth"
	"github.com/Iron-Ham/taskbridge/internal/gitops"
	"github.com/Iron-Ham/taskbridge/internal/logging"
)

// Config selects and configures a Backend.
type Config struct {
	BaseURL     string
	BearerToken string
	AccountID   string
	UserAgent   string
	Mock        bool
	// Home overrides where auth.json is looked up.
	Home       string
	Originator string
	Timeout    time.Duration
	// WorkDir is the checkout ApplyTask writes to. Empty means the current directory.
	WorkDir string
}

// BackendOption configures NewBackend.
type BackendOption func(*backendOptions)

type backendOptions struct {
	resolver     *auth.Resolver
	logger       *logging.Logger
	httpClient   *http.Client
	homeOptional bool
}

// WithResolver sets the credential resolver. The default resolver has no
// logger and uses a FileManager fallback.
func WithResolver(r *auth.Resolver) BackendOption {
	return func(o *backendOptions) {
		o.resolver = r
	}
}

// WithLogger sets the logger for the backend and credential resolution.
func WithLogger(logger *logging.Logger) BackendOption {
	return func(o *backendOptions) {
		o.logger = logger
	}
}

// WithTransport sets the http.Client the HTTP backend uses.
func WithTransport(hc *http.Client) BackendOption {
	return func(o *backendOptions) {
		o.httpClient = hc
	}
}

// WithOptionalHome lets the backend be built without a credential home.
// Requests then go out unauthenticated. Environment discovery uses this.
func WithOptionalHome() BackendOption {
	return func(o *backendOptions) {
		o.homeOptional = true
	}
}

// NewBackend returns a MockClient when cfg.Mock is set, otherwise an
// HTTPClient carrying the highest-priority credential available.
//
// Without an explicit bearer token a credential home must be resolvable
// unless WithOptionalHome is given; failing that is a ConfigError.
func NewBackend(ctx context.Context, cfg Config, opts ...BackendOption) (Backend, error) {
	o := backendOptions{logger: logging.NopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NopLogger()
	}

	g := gitops.New(cfg.WorkDir)
	if cfg.Mock {
		o.logger.Debug("using mock backend")
		return NewMockClient(g), nil
	}

	if o.resolver == nil {
		o.resolver = auth.NewResolver(auth.WithLogger(o.logger))
	}
	cred, err := o.resolver.Resolve(ctx, auth.Input{
		BearerToken:  cfg.BearerToken,
		AccountID:    cfg.AccountID,
		Home:         cfg.Home,
		HomeRequired: !o.homeOptional,
	})
	if err != nil {
		return nil, err
	}

	clientOpts := []ClientOption{
		WithUserAgent(cfg.UserAgent),
		WithOriginator(cfg.Originator),
		WithGit(g),
		WithClientLogger(o.logger),
		WithHTTPClient(o.httpClient),
	}
	if o.httpClient == nil {
		clientOpts = append(clientOpts, WithTimeout(cfg.Timeout))
	}
	switch {
	case cred != nil:
		clientOpts = append(clientOpts, WithBearerToken(cred.BearerToken), WithAccountID(cred.AccountID))
	case cfg.AccountID != "":
		clientOpts = append(clientOpts, WithAccountID(cfg.AccountID))
	}

	client, err := NewHTTPClient(cfg.BaseURL, clientOpts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}
