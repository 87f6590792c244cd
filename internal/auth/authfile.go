package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Iron-Ham/taskbridge/internal/errors"
)

// AuthFileName is the name of the persisted credential record inside a home directory.
const AuthFileName = "auth.json"

// HomeEnvVar overrides the default home directory.
const HomeEnvVar = "CODEX_HOME"

// AuthDotJSON is the on-disk credential record.
type AuthDotJSON struct {
	OpenAIAPIKey *string    `json:"OPENAI_API_KEY,omitempty"`
	Tokens       *TokenData `json:"tokens,omitempty"`
	LastRefresh  *time.Time `json:"last_refresh,omitempty"`
}

// TokenData holds the OAuth tokens issued by a ChatGPT login.
type TokenData struct {
	IDToken      string `json:"id_token"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	AccountID    string `json:"account_id,omitempty"`
}

// AccessToken returns the stored access token, or "" if there is none.
func (a *AuthDotJSON) AccessToken() string {
	if a == nil || a.Tokens == nil {
		return ""
	}
	return a.Tokens.AccessToken
}

// AccountID returns the stored account id, or "" if there is none.
func (a *AuthDotJSON) AccountID() string {
	if a == nil || a.Tokens == nil {
		return ""
	}
	return a.Tokens.AccountID
}

// AuthFilePath returns the auth.json path inside home.
func AuthFilePath(home string) string {
	return filepath.Join(home, AuthFileName)
}

// ReadAuthFile loads and parses the credential record at path.
func ReadAuthFile(path string) (*AuthDotJSON, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewAuthError("auth_file", "failed to read auth file", err).WithPath(path)
	}

	var record AuthDotJSON
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, errors.NewAuthError("auth_file", "malformed auth file",
			errors.Join(errors.ErrAuthFileMalformed, err)).WithPath(path)
	}
	return &record, nil
}

// WriteAuthFile persists record at path with owner-only permissions.
func WriteAuthFile(path string, record *AuthDotJSON) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode auth file: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write auth file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace auth file: %w", err)
	}
	return nil
}

// FindHome resolves the directory holding auth.json: override if non-empty,
// else $CODEX_HOME (which must exist), else ~/.codex.
func FindHome(override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if env := os.Getenv(HomeEnvVar); env != "" {
		abs, err := filepath.Abs(env)
		if err != nil {
			return "", fmt.Errorf("%w: %s=%s: %v", errors.ErrHomeNotFound, HomeEnvVar, env, err)
		}
		if _, err := os.Stat(abs); err != nil {
			return "", fmt.Errorf("%w: %s=%s: %v", errors.ErrHomeNotFound, HomeEnvVar, env, err)
		}
		return abs, nil
	}

	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrHomeNotFound, err)
	}
	return filepath.Join(userHome, ".codex"), nil
}
