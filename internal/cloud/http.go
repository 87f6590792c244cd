package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Iron-Ham/taskbridge/internal/errors"
	"github.com/Iron-Ham/taskbridge/internal/gitops"
	"github.com/Iron-Ham/taskbridge/internal/logging"
)

const (
	// DefaultUserAgent is sent when no user agent is configured.
	DefaultUserAgent = "taskbridge"

	// AccountIDHeader carries the ChatGPT account id.
	AccountIDHeader = "ChatGPT-Account-Id"
	// OriginatorHeader tags requests with the client that issued them.
	OriginatorHeader = "originator"

	// defaultTimeout is the request timeout when none is configured.
	defaultTimeout = 30 * time.Second

	// listLimit is the page size requested from the task listing.
	listLimit = 20
)

// HTTPClient is a Backend that calls the task service over HTTP.
type HTTPClient struct {
	baseURL     string
	bearerToken string
	accountID   string
	userAgent   string
	originator  string
	httpClient  *http.Client
	git         *gitops.Git
	logger      *logging.Logger
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithBearerToken sets the Authorization bearer token.
func WithBearerToken(token string) ClientOption {
	return func(c *HTTPClient) {
		c.bearerToken = token
	}
}

// WithAccountID sets the ChatGPT-Account-Id header.
func WithAccountID(id string) ClientOption {
	return func(c *HTTPClient) {
		c.accountID = id
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *HTTPClient) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithOriginator sets the originator header.
func WithOriginator(originator string) ClientOption {
	return func(c *HTTPClient) {
		c.originator = originator
	}
}

// WithTimeout sets the HTTP client timeout. Zero disables it. A client given
// through WithHTTPClient is copied, never modified.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *HTTPClient) {
		hc := *c.httpClient
		hc.Timeout = timeout
		c.httpClient = &hc
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithGit sets the checkout that ApplyTask writes to.
func WithGit(g *gitops.Git) ClientOption {
	return func(c *HTTPClient) {
		if g != nil {
			c.git = g
		}
	}
}

// WithClientLogger sets the logger for request diagnostics.
func WithClientLogger(logger *logging.Logger) ClientOption {
	return func(c *HTTPClient) {
		if logger != nil {
			c.logger = logger.WithComponent("cloud")
		}
	}
}

// NewHTTPClient creates a client for baseURL, which is normalized first.
func NewHTTPClient(baseURL string, opts ...ClientOption) (*HTTPClient, error) {
	normalized := NormalizeBaseURL(baseURL)
	u, err := url.Parse(normalized)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.NewConfigError(fmt.Sprintf("invalid base URL %q", baseURL), err).WithKey("cloud.base_url")
	}

	c := &HTTPClient{
		baseURL:    normalized,
		userAgent:  DefaultUserAgent,
		httpClient: &http.Client{Timeout: defaultTimeout},
		git:        gitops.New(""),
		logger:     logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized base URL.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// NormalizeBaseURL strips trailing slashes and appends /backend-api to
// chatgpt.com and chat.openai.com bases that lack it.
func NormalizeBaseURL(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	if (strings.HasPrefix(base, "https://chatgpt.com") || strings.HasPrefix(base, "https://chat.openai.com")) &&
		!strings.Contains(base, "/backend-api") {
		base += "/backend-api"
	}
	return base
}

// servicePrefix is the path segment under which tasks and environments live.
func servicePrefix(base string) string {
	if strings.Contains(base, "/backend-api") {
		return base + "/wham"
	}
	return base + "/api/codex"
}

// EnvironmentsByRepoURL returns the per-repository environment listing URL.
func EnvironmentsByRepoURL(base, owner, repo string) string {
	return fmt.Sprintf("%s/environments/by-repo/github/%s/%s",
		servicePrefix(base), url.PathEscape(owner), url.PathEscape(repo))
}

// EnvironmentsURL returns the global environment listing URL.
func EnvironmentsURL(base string) string {
	return servicePrefix(base) + "/environments"
}

func (c *HTTPClient) tasksURL(parts ...string) string {
	u := servicePrefix(c.baseURL) + "/tasks"
	for _, p := range parts {
		u += "/" + url.PathEscape(p)
	}
	return u
}

// do sends a request and returns the body of a 2xx response. Any other status
// is a NetworkError carrying the response body.
func (c *HTTPClient) do(ctx context.Context, method, rawURL string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req.Header)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "url", rawURL, "error", err.Error())
		return nil, errors.NewTransportError(method, rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewTransportError(method, rawURL, err)
	}
	c.logger.Debug("request complete",
		"method", method,
		"url", rawURL,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewNetworkError(method, rawURL, resp.StatusCode, string(data))
	}
	return data, nil
}

func (c *HTTPClient) setHeaders(h http.Header) {
	h.Set("User-Agent", c.userAgent)
	h.Set("Accept", "application/json")
	if c.bearerToken != "" {
		h.Set("Authorization", "Bearer "+c.bearerToken)
	}
	if c.accountID != "" {
		h.Set(AccountIDHeader, c.accountID)
	}
	if c.originator != "" {
		h.Set(OriginatorHeader, c.originator)
	}
}

func (c *HTTPClient) getJSON(ctx context.Context, rawURL string, out any) error {
	data, err := c.do(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

// ListTasks lists current tasks, optionally restricted to one environment.
func (c *HTTPClient) ListTasks(ctx context.Context, environmentID string) ([]TaskSummary, error) {
	q := url.Values{}
	q.Set("task_filter", "current")
	q.Set("limit", fmt.Sprint(listLimit))
	if environmentID != "" {
		q.Set("environment_id", environmentID)
	}

	var resp taskListResponse
	if err := c.getJSON(ctx, c.tasksURL("list")+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	tasks := make([]TaskSummary, 0, len(resp.Items))
	for _, item := range resp.Items {
		s := item.summary()
		if environmentID != "" && s.EnvironmentID != "" && s.EnvironmentID != environmentID {
			continue
		}
		tasks = append(tasks, s)
	}
	return tasks, nil
}

// CreateTask starts a task and returns its id.
func (c *HTTPClient) CreateTask(ctx context.Context, opts CreateTaskOptions) (string, error) {
	if err := validateCreate(opts); err != nil {
		return "", err
	}

	req := createTaskRequest{
		NewTask: newTask{
			EnvironmentID: opts.EnvironmentID,
			Branch:        opts.GitRef,
			QAMode:        opts.QAMode,
		},
		InputItems: []turnItem{userMessage(opts.Prompt)},
	}
	if opts.BestOfN > 1 {
		req.Metadata = &createTaskExtras{BestOfN: opts.BestOfN}
	}

	data, err := c.do(ctx, http.MethodPost, c.tasksURL(), req)
	if err != nil {
		return "", err
	}
	var resp createTaskResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode created task: %w", err)
	}
	id := resp.taskID()
	if id == "" {
		return "", fmt.Errorf("create task: response has no task id: %s", string(data))
	}
	c.logger.Info("task created", "task_id", id, "environment_id", opts.EnvironmentID)
	return id, nil
}

func validateCreate(opts CreateTaskOptions) error {
	switch {
	case strings.TrimSpace(opts.EnvironmentID) == "":
		return errors.NewValidationError("environment id is required").WithField("environment_id")
	case strings.TrimSpace(opts.Prompt) == "":
		return errors.NewValidationError("prompt is required").WithField("prompt")
	case strings.TrimSpace(opts.GitRef) == "":
		return errors.NewValidationError("git ref is required").WithField("git_ref")
	}
	return nil
}

func (c *HTTPClient) details(ctx context.Context, taskID string) (*taskDetails, error) {
	var d taskDetails
	if err := c.getJSON(ctx, c.tasksURL(taskID), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetTaskDiff returns the task's current diff, or "" if it has none.
func (c *HTTPClient) GetTaskDiff(ctx context.Context, taskID string) (string, error) {
	d, err := c.details(ctx, taskID)
	if err != nil {
		return "", err
	}
	if diff := d.CurrentDiffTaskTurn.diff(); diff != "" {
		return diff, nil
	}
	return d.CurrentAssistantTurn.diff(), nil
}

// GetTaskMessages returns the assistant messages of the current turn.
func (c *HTTPClient) GetTaskMessages(ctx context.Context, taskID string) ([]string, error) {
	d, err := c.details(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return nonNil(d.CurrentAssistantTurn.messages()), nil
}

// GetTaskText returns the prompt and assistant output of the current turn.
func (c *HTTPClient) GetTaskText(ctx context.Context, taskID string) (*TaskText, error) {
	d, err := c.details(ctx, taskID)
	if err != nil {
		return nil, err
	}

	text := &TaskText{
		Prompt:         d.CurrentUserTurn.prompt(),
		Messages:       nonNil(d.CurrentAssistantTurn.messages()),
		SiblingTurnIDs: []string{},
		AttemptStatus:  AttemptStatusUnknown,
	}
	if t := d.CurrentAssistantTurn; t != nil {
		text.TurnID = t.ID
		text.AttemptPlacement = t.AttemptPlacement
		text.AttemptStatus = ParseAttemptStatus(t.TurnStatus)
		text.SiblingTurnIDs = nonNil(t.SiblingTurnIDs)
	}
	return text, nil
}

// ListSiblingAttempts returns the parallel attempts at turnID, ordered by
// placement.
func (c *HTTPClient) ListSiblingAttempts(ctx context.Context, taskID, turnID string) ([]TurnAttempt, error) {
	var resp siblingTurnsResponse
	if err := c.getJSON(ctx, c.tasksURL(taskID, "turns", turnID, "sibling_turns"), &resp); err != nil {
		return nil, err
	}

	attempts := make([]TurnAttempt, 0, len(resp.SiblingTurns))
	for i := range resp.SiblingTurns {
		attempts = append(attempts, resp.SiblingTurns[i].attempt())
	}
	sortAttempts(attempts)
	return attempts, nil
}

// ApplyTask applies a task's diff to the local checkout.
func (c *HTTPClient) ApplyTask(ctx context.Context, taskID, diffOverride string, preflight bool) (*ApplyOutcome, error) {
	diff := diffOverride
	if diff == "" {
		var err error
		if diff, err = c.GetTaskDiff(ctx, taskID); err != nil {
			return nil, err
		}
	}
	return applyDiff(ctx, c.git, taskID, diff, preflight)
}

// EnvironmentsByRepo lists the environments attached to a GitHub repository.
func (c *HTTPClient) EnvironmentsByRepo(ctx context.Context, owner, repo string) ([]Environment, error) {
	return c.environments(ctx, EnvironmentsByRepoURL(c.baseURL, owner, repo))
}

// Environments lists every environment visible to the caller.
func (c *HTTPClient) Environments(ctx context.Context) ([]Environment, error) {
	return c.environments(ctx, EnvironmentsURL(c.baseURL))
}

func (c *HTTPClient) environments(ctx context.Context, rawURL string) ([]Environment, error) {
	data, err := c.do(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	envs, err := decodeEnvironments(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return envs, nil
}
