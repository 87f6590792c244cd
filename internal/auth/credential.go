package auth

import (
	"context"
	"os"
	"strings"

	"github.com/Iron-Ham/taskbridge/internal/errors"
	"github.com/Iron-Ham/taskbridge/internal/logging"
)

// Source identifies where a Credential came from.
type Source int

const (
	// SourceExplicitConfig is a token supplied directly in configuration.
	SourceExplicitConfig Source = iota + 1
	// SourceAuthFile is the access token persisted in auth.json.
	SourceAuthFile
	// SourceManagerFallback is a token obtained from a Manager.
	SourceManagerFallback
)

// String returns a short, stable name for the source.
func (s Source) String() string {
	switch s {
	case SourceExplicitConfig:
		return "config"
	case SourceAuthFile:
		return "auth_file"
	case SourceManagerFallback:
		return "manager"
	default:
		return "unknown"
	}
}

// Credential is the authentication material attached to backend requests.
type Credential struct {
	BearerToken string
	AccountID   string // empty when unknown
	Source      Source
}

// Input is everything a resolution may draw on.
type Input struct {
	// BearerToken and AccountID come from configuration.
	BearerToken string
	AccountID   string
	// Home overrides the home directory lookup.
	Home string
	// HomeRequired turns an unresolvable home into a ConfigError.
	HomeRequired bool
}

// Strategy tries to produce a Credential. It returns false to let the next
// strategy run.
type Strategy func(ctx context.Context, in Input) (*Credential, bool)

// Resolver picks a credential by running strategies in priority order.
type Resolver struct {
	strategies []Strategy
	managerFor func(home string) Manager
	logger     *logging.Logger
	debug      bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger.WithComponent("auth")
		}
	}
}

// WithDebug emits resolution diagnostics at INFO so they show regardless of
// the configured level. Tokens are never logged, only their length.
func WithDebug(debug bool) Option {
	return func(r *Resolver) {
		r.debug = debug
	}
}

// WithManagerFactory sets how the fallback Manager is built for a home
// directory. The default is a FileManager.
func WithManagerFactory(fn func(home string) Manager) Option {
	return func(r *Resolver) {
		if fn != nil {
			r.managerFor = fn
		}
	}
}

// NewResolver creates a Resolver with the standard strategy order:
// explicit configuration, then auth.json, then the Manager.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		logger: logging.NopLogger(),
		managerFor: func(home string) Manager {
			return NewFileManager(home)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.strategies = []Strategy{r.explicitConfig, r.authFile, r.managerFallback}
	return r
}

// Resolve returns the highest-priority credential available, or nil when no
// source has one. The only error is a ConfigError when in.HomeRequired is set,
// no explicit token was given, and no home directory can be resolved.
func (r *Resolver) Resolve(ctx context.Context, in Input) (*Credential, error) {
	if in.BearerToken == "" {
		home, err := FindHome(in.Home)
		switch {
		case err != nil && in.HomeRequired:
			return nil, errors.NewConfigError("cannot locate credential home", err).WithKey("auth.home")
		case err != nil:
			r.diag("no credential home", "error", err.Error())
			in.Home = ""
		default:
			in.Home = home
			if _, statErr := os.Stat(home); statErr != nil {
				r.diag("credential home does not exist", "home", home)
				in.Home = ""
			}
		}
	}

	for _, strategy := range r.strategies {
		if cred, ok := strategy(ctx, in); ok {
			r.diag("credential resolved",
				"source", cred.Source.String(),
				"token_len", len(cred.BearerToken),
				"has_account_id", cred.AccountID != "")
			return cred, nil
		}
	}

	r.diag("no credential available")
	return nil, nil
}

func (r *Resolver) explicitConfig(_ context.Context, in Input) (*Credential, bool) {
	token := strings.TrimSpace(in.BearerToken)
	if token == "" {
		return nil, false
	}
	return &Credential{
		BearerToken: token,
		AccountID:   in.AccountID,
		Source:      SourceExplicitConfig,
	}, true
}

func (r *Resolver) authFile(_ context.Context, in Input) (*Credential, bool) {
	if in.Home == "" {
		return nil, false
	}

	record, err := ReadAuthFile(AuthFilePath(in.Home))
	if err != nil {
		r.diag("auth file unavailable", "error", err.Error())
		return nil, false
	}

	token := record.AccessToken()
	if token == "" {
		r.diag("auth file has no access token; falling back to manager")
		return nil, false
	}

	return &Credential{
		BearerToken: token,
		AccountID:   pickAccountID(record.AccountID(), token, in.AccountID),
		Source:      SourceAuthFile,
	}, true
}

func (r *Resolver) managerFallback(ctx context.Context, in Input) (*Credential, bool) {
	if in.Home == "" {
		return nil, false
	}

	manager := r.managerFor(in.Home)
	if manager == nil {
		return nil, false
	}

	token, err := manager.Token(ctx)
	if err != nil {
		r.diag("manager failed to produce token", "error", err.Error())
		return nil, false
	}
	if token == "" {
		r.diag("manager token empty")
		return nil, false
	}

	return &Credential{
		BearerToken: token,
		AccountID:   pickAccountID(manager.AccountID(), token, in.AccountID),
		Source:      SourceManagerFallback,
	}, true
}

// pickAccountID prefers the source's own id, then the id encoded in the token,
// then the id given in configuration.
func pickAccountID(recorded, token, configured string) string {
	if recorded != "" {
		return recorded
	}
	if id, ok := AccountIDFromToken(token); ok {
		return id
	}
	return configured
}

func (r *Resolver) diag(msg string, args ...any) {
	if r.debug {
		r.logger.Info(msg, args...)
		return
	}
	r.logger.Debug(msg, args...)
}

// MaskToken shortens a token for display, keeping only its ends.
func MaskToken(token string) string {
	if len(token) <= 12 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + "…" + token[len(token)-4:]
}
