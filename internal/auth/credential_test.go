package auth

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Iron-Ham/taskbridge/internal/errors"
	"github.com/Iron-Ham/taskbridge/internal/logging"
)

type fakeManager struct {
	token     string
	err       error
	accountID string
	calls     int
}

func (f *fakeManager) Token(context.Context) (string, error) {
	f.calls++
	return f.token, f.err
}

func (f *fakeManager) AccountID() string { return f.accountID }

func resolverWith(m Manager, opts ...Option) *Resolver {
	opts = append(opts, WithManagerFactory(func(string) Manager { return m }))
	return NewResolver(opts...)
}

func TestResolver_ExplicitTokenBeatsPersisted(t *testing.T) {
	home := t.TempDir()
	writeAuthJSON(t, home, `{"tokens": {"access_token": "file-token", "account_id": "file-acc"}}`)
	manager := &fakeManager{token: "manager-token"}

	cred, err := resolverWith(manager).Resolve(context.Background(), Input{
		BearerToken: "explicit",
		AccountID:   "explicit-acc",
		Home:        home,
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if cred == nil {
		t.Fatal("expected credential")
	}
	if cred.BearerToken != "explicit" || cred.AccountID != "explicit-acc" || cred.Source != SourceExplicitConfig {
		t.Errorf("got %+v", cred)
	}
	if manager.calls != 0 {
		t.Errorf("manager consulted %d times, want 0", manager.calls)
	}
}

func TestResolver_ExplicitTokenWithoutAccountID(t *testing.T) {
	cred, err := NewResolver().Resolve(context.Background(), Input{BearerToken: "tok"})
	if err != nil {
		t.Fatal(err)
	}
	if cred.AccountID != "" {
		t.Errorf("AccountID = %q, want empty", cred.AccountID)
	}
}

func TestResolver_AuthFile(t *testing.T) {
	tokenWithID := makeJWT(t, map[string]any{
		"https://api.openai.com/auth": map[string]any{"chatgpt_account_id": "jwt-acc"},
	})

	tests := []struct {
		name        string
		content     string
		configAcc   string
		wantToken   string
		wantAccount string
	}{
		{
			name:        "account id from record",
			content:     fmt.Sprintf(`{"tokens": {"access_token": %q, "account_id": "rec-acc"}}`, tokenWithID),
			wantToken:   tokenWithID,
			wantAccount: "rec-acc",
		},
		{
			name:        "account id decoded from token",
			content:     fmt.Sprintf(`{"tokens": {"access_token": %q}}`, tokenWithID),
			wantToken:   tokenWithID,
			wantAccount: "jwt-acc",
		},
		{
			name:        "configured account id as last resort",
			content:     `{"tokens": {"access_token": "opaque"}}`,
			configAcc:   "cfg-acc",
			wantToken:   "opaque",
			wantAccount: "cfg-acc",
		},
		{
			name:        "no account id anywhere",
			content:     `{"tokens": {"access_token": "opaque"}}`,
			wantToken:   "opaque",
			wantAccount: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := t.TempDir()
			writeAuthJSON(t, home, tt.content)
			manager := &fakeManager{token: "manager-token"}

			cred, err := resolverWith(manager).Resolve(context.Background(), Input{Home: home, AccountID: tt.configAcc})
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if cred.Source != SourceAuthFile {
				t.Errorf("Source = %v, want auth_file", cred.Source)
			}
			if cred.BearerToken != tt.wantToken || cred.AccountID != tt.wantAccount {
				t.Errorf("got token=%q account=%q", cred.BearerToken, cred.AccountID)
			}
			if manager.calls != 0 {
				t.Error("manager should not be consulted when auth.json has a token")
			}
		})
	}
}

func TestResolver_ManagerFallback(t *testing.T) {
	t.Run("empty access token falls through", func(t *testing.T) {
		home := t.TempDir()
		writeAuthJSON(t, home, `{"tokens": {"access_token": ""}}`)
		manager := &fakeManager{token: "managed", accountID: "mgr-acc"}

		cred, err := resolverWith(manager).Resolve(context.Background(), Input{Home: home})
		if err != nil {
			t.Fatal(err)
		}
		if cred.Source != SourceManagerFallback || cred.BearerToken != "managed" || cred.AccountID != "mgr-acc" {
			t.Errorf("got %+v", cred)
		}
	})

	t.Run("malformed auth file falls through", func(t *testing.T) {
		home := t.TempDir()
		writeAuthJSON(t, home, `{{{`)
		manager := &fakeManager{token: "managed"}

		cred, err := resolverWith(manager).Resolve(context.Background(), Input{Home: home})
		if err != nil {
			t.Fatal(err)
		}
		if cred == nil || cred.Source != SourceManagerFallback {
			t.Errorf("got %+v", cred)
		}
	})

	t.Run("manager error yields no credential", func(t *testing.T) {
		home := t.TempDir()
		manager := &fakeManager{err: errors.New("refresh failed")}

		cred, err := resolverWith(manager).Resolve(context.Background(), Input{Home: home})
		if err != nil {
			t.Errorf("manager failures must be swallowed, got %v", err)
		}
		if cred != nil {
			t.Errorf("expected no credential, got %+v", cred)
		}
	})

	t.Run("empty manager token yields no credential", func(t *testing.T) {
		cred, err := resolverWith(&fakeManager{}).Resolve(context.Background(), Input{Home: t.TempDir()})
		if err != nil || cred != nil {
			t.Errorf("Resolve() = (%+v, %v), want (nil, nil)", cred, err)
		}
	})
}

func TestResolver_Home(t *testing.T) {
	t.Run("missing home directory skips persisted sources", func(t *testing.T) {
		manager := &fakeManager{token: "managed"}
		home := filepath.Join(t.TempDir(), "absent")

		cred, err := resolverWith(manager).Resolve(context.Background(), Input{Home: home, HomeRequired: true})
		if err != nil || cred != nil {
			t.Errorf("Resolve() = (%+v, %v), want (nil, nil)", cred, err)
		}
		if manager.calls != 0 {
			t.Error("manager should not be consulted without a home directory")
		}
	})

	t.Run("unresolvable home is a config error when required", func(t *testing.T) {
		t.Setenv(HomeEnvVar, filepath.Join(t.TempDir(), "missing"))

		_, err := NewResolver().Resolve(context.Background(), Input{HomeRequired: true})
		var cfgErr *errors.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("error = %v, want *ConfigError", err)
		}
		if !errors.Is(err, errors.ErrHomeNotFound) {
			t.Errorf("error should wrap ErrHomeNotFound: %v", err)
		}
	})

	t.Run("unresolvable home is ignored when not required", func(t *testing.T) {
		t.Setenv(HomeEnvVar, filepath.Join(t.TempDir(), "missing"))

		cred, err := NewResolver().Resolve(context.Background(), Input{})
		if err != nil || cred != nil {
			t.Errorf("Resolve() = (%+v, %v), want (nil, nil)", cred, err)
		}
	})

	t.Run("explicit token needs no home", func(t *testing.T) {
		t.Setenv(HomeEnvVar, filepath.Join(t.TempDir(), "missing"))

		cred, err := NewResolver().Resolve(context.Background(), Input{BearerToken: "tok", HomeRequired: true})
		if err != nil || cred == nil {
			t.Errorf("Resolve() = (%+v, %v)", cred, err)
		}
	})
}

func TestResolver_Deterministic(t *testing.T) {
	home := t.TempDir()
	writeAuthJSON(t, home, `{"tokens": {"access_token": "tok", "account_id": "acc"}}`)
	r := NewResolver()

	first, _ := r.Resolve(context.Background(), Input{Home: home})
	second, _ := r.Resolve(context.Background(), Input{Home: home})
	if *first != *second {
		t.Errorf("resolution not deterministic: %+v vs %+v", first, second)
	}
}

func TestResolver_DebugNeverLogsToken(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWriterLogger(&buf, logging.LevelError)
	secret := "super-secret-token-value"

	_, err := NewResolver(WithLogger(logger), WithDebug(true)).Resolve(context.Background(), Input{BearerToken: secret})
	if err != nil {
		t.Fatal(err)
	}
	// Debug output is emitted at INFO, which an ERROR-level logger filters.
	if buf.Len() != 0 {
		t.Errorf("unexpected output at ERROR level: %s", buf.String())
	}

	buf.Reset()
	logger = logging.NewWriterLogger(&buf, logging.LevelInfo)
	_, _ = NewResolver(WithLogger(logger), WithDebug(true)).Resolve(context.Background(), Input{BearerToken: secret})
	out := buf.String()
	if !strings.Contains(out, `"token_len":24`) {
		t.Errorf("expected token length in diagnostics: %s", out)
	}
	if strings.Contains(out, secret) {
		t.Error("token leaked into diagnostics")
	}
}

func TestSource_String(t *testing.T) {
	tests := map[Source]string{
		SourceExplicitConfig:  "config",
		SourceAuthFile:        "auth_file",
		SourceManagerFallback: "manager",
		Source(0):             "unknown",
	}
	for src, want := range tests {
		if got := src.String(); got != want {
			t.Errorf("Source(%d).String() = %q, want %q", src, got, want)
		}
	}
}

func TestMaskToken(t *testing.T) {
	if got := MaskToken("short"); got != "*****" {
		t.Errorf("MaskToken(short) = %q", got)
	}
	if got := MaskToken("abcdefghijklmnop"); got != "abcd…mnop" {
		t.Errorf("MaskToken(long) = %q", got)
	}
}
