package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/taskbridge/internal/errors"
	"github.com/Iron-Ham/taskbridge/internal/logging"
)

// Manager supplies a token on demand. Implementations may refresh the token
// before returning it.
type Manager interface {
	Token(ctx context.Context) (string, error)
	AccountID() string
}

const (
	// DefaultRefreshURL is the OAuth token endpoint used for refresh-token exchanges.
	DefaultRefreshURL = "https://auth.openai.com/oauth/token"
	// DefaultClientID is the OAuth client id sent with refresh requests.
	DefaultClientID = "app_EMoamEEZ73f0CkXaXp7hrann"

	// staleAfter is how old last_refresh may be before the access token is refreshed.
	staleAfter = 28 * 24 * time.Hour

	// watchDebounce collapses the burst of events editors emit for one save.
	watchDebounce = 50 * time.Millisecond
)

// FileManager is a Manager backed by auth.json in a home directory. The parsed
// record is cached until the file changes on disk (see Watch) or is rewritten
// by a refresh.
type FileManager struct {
	home       string
	refreshURL string
	clientID   string
	httpClient *http.Client
	logger     *logging.Logger
	now        func() time.Time

	mu     sync.Mutex
	cached *AuthDotJSON

	watchMu  sync.Mutex
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	onChange []func()
}

// ManagerOption configures a FileManager.
type ManagerOption func(*FileManager)

// WithRefreshURL sets the OAuth token endpoint.
func WithRefreshURL(url string) ManagerOption {
	return func(m *FileManager) {
		if url != "" {
			m.refreshURL = url
		}
	}
}

// WithClientID sets the OAuth client id.
func WithClientID(id string) ManagerOption {
	return func(m *FileManager) {
		if id != "" {
			m.clientID = id
		}
	}
}

// WithHTTPClient sets the client used for refresh requests.
func WithHTTPClient(c *http.Client) ManagerOption {
	return func(m *FileManager) {
		m.httpClient = c
	}
}

// WithManagerLogger sets the logger for refresh and watch diagnostics.
func WithManagerLogger(logger *logging.Logger) ManagerOption {
	return func(m *FileManager) {
		if logger != nil {
			m.logger = logger.WithComponent("auth-manager")
		}
	}
}

// WithClock overrides the time source used for staleness checks.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *FileManager) {
		m.now = now
	}
}

// NewFileManager creates a FileManager reading AuthFilePath(home).
func NewFileManager(home string, opts ...ManagerOption) *FileManager {
	m := &FileManager{
		home:       home,
		refreshURL: DefaultRefreshURL,
		clientID:   DefaultClientID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logging.NopLogger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Path returns the auth.json path this manager reads.
func (m *FileManager) Path() string {
	return AuthFilePath(m.home)
}

func (m *FileManager) load() (*AuthDotJSON, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached != nil {
		return m.cached, nil
	}
	record, err := ReadAuthFile(m.Path())
	if err != nil {
		return nil, err
	}
	m.cached = record
	return record, nil
}

// Invalidate drops the cached record so the next call re-reads auth.json.
func (m *FileManager) Invalidate() {
	m.mu.Lock()
	m.cached = nil
	m.mu.Unlock()
}

// Token returns the ChatGPT access token, refreshing it first when it is
// stale. Without tokens it falls back to the stored API key.
func (m *FileManager) Token(ctx context.Context) (string, error) {
	record, err := m.load()
	if err != nil {
		return "", err
	}

	if record.Tokens != nil && record.Tokens.AccessToken != "" {
		if m.isStale(record) && record.Tokens.RefreshToken != "" {
			refreshed, err := m.refresh(ctx, record)
			if err != nil {
				// A stale token is still worth trying.
				m.logger.Warn("token refresh failed", "error", err.Error())
				return record.Tokens.AccessToken, nil
			}
			return refreshed.Tokens.AccessToken, nil
		}
		return record.Tokens.AccessToken, nil
	}

	if record.OpenAIAPIKey != nil && *record.OpenAIAPIKey != "" {
		return *record.OpenAIAPIKey, nil
	}

	return "", errors.NewAuthError("manager", "auth file has no usable token", errors.ErrNoToken).WithPath(m.Path())
}

// AccountID returns the stored account id, falling back to the one encoded in
// the id token. It returns "" when neither is available.
func (m *FileManager) AccountID() string {
	record, err := m.load()
	if err != nil || record.Tokens == nil {
		return ""
	}
	if record.Tokens.AccountID != "" {
		return record.Tokens.AccountID
	}
	if id, ok := AccountIDFromToken(record.Tokens.IDToken); ok {
		return id
	}
	return ""
}

func (m *FileManager) isStale(record *AuthDotJSON) bool {
	if record.LastRefresh == nil {
		return false
	}
	return m.now().Sub(*record.LastRefresh) > staleAfter
}

type refreshRequest struct {
	ClientID     string `json:"client_id"`
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// refresh exchanges the refresh token for new tokens and persists them.
func (m *FileManager) refresh(ctx context.Context, record *AuthDotJSON) (*AuthDotJSON, error) {
	reqBytes, err := json.Marshal(refreshRequest{
		ClientID:     m.clientID,
		GrantType:    "refresh_token",
		RefreshToken: record.Tokens.RefreshToken,
		Scope:        "openid profile email",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.refreshURL, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewTransportError(http.MethodPost, m.refreshURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read refresh response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewNetworkError(http.MethodPost, m.refreshURL, resp.StatusCode, string(body))
	}

	var out refreshResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("unmarshal refresh response: %w", err)
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("refresh response has no access token")
	}

	now := m.now().UTC()
	updated := *record
	tokens := *record.Tokens
	tokens.AccessToken = out.AccessToken
	if out.IDToken != "" {
		tokens.IDToken = out.IDToken
	}
	if out.RefreshToken != "" {
		tokens.RefreshToken = out.RefreshToken
	}
	updated.Tokens = &tokens
	updated.LastRefresh = &now

	if err := WriteAuthFile(m.Path(), &updated); err != nil {
		m.logger.Warn("failed to persist refreshed tokens", "error", err.Error())
	}

	m.mu.Lock()
	m.cached = &updated
	m.mu.Unlock()

	m.logger.Debug("refreshed access token", "token_len", len(out.AccessToken))
	return &updated, nil
}

// OnChange registers cb to run after auth.json changes on disk. Callbacks run
// on the watch goroutine after the cache has been invalidated.
func (m *FileManager) OnChange(cb func()) {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	m.onChange = append(m.onChange, cb)
}

// Watch starts invalidating the cache whenever auth.json is written, created,
// removed, or renamed. Call Close to stop.
func (m *FileManager) Watch() error {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()

	if m.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: editors and WriteAuthFile replace the file, which
	// drops a watch placed on the file itself.
	if err := watcher.Add(m.home); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", m.home, err)
	}

	m.watcher = watcher
	m.stopCh = make(chan struct{})
	go m.watchLoop(watcher, m.stopCh)
	return nil
}

func (m *FileManager) watchLoop(watcher *fsnotify.Watcher, stopCh chan struct{}) {
	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C

	pending := false
	target := filepath.Clean(m.Path())

	for {
		select {
		case <-stopCh:
			debounceTimer.Stop()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending = true
			debounceTimer.Reset(watchDebounce)

		case <-debounceTimer.C:
			if !pending {
				continue
			}
			pending = false
			m.Invalidate()
			m.logger.Debug("auth file changed, cache invalidated", "path", target)

			m.watchMu.Lock()
			callbacks := append([]func(){}, m.onChange...)
			m.watchMu.Unlock()
			for _, cb := range callbacks {
				cb()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("auth file watcher error", "error", err.Error())
		}
	}
}

// Close stops the watcher started by Watch. It is safe to call more than once.
func (m *FileManager) Close() error {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()

	if m.watcher == nil {
		return nil
	}
	close(m.stopCh)
	err := m.watcher.Close()
	m.watcher = nil
	return err
}
