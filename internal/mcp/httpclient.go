package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/service"
)

// HTTPClient implements DataSource by calling the FreeCoach REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL. apiKey
// is sent on write endpoints and may be empty for read-only use.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// call sends a request and decodes a 2xx JSON response into out.
func (c *HTTPClient) call(ctx context.Context, method, path string, userID int, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("httpclient: encode %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID > 0 {
		req.Header.Set("X-User-ID", strconv.Itoa(userID))
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, bytes.TrimSpace(data))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) Templates(ctx context.Context) ([]models.ExerciseTemplate, error) {
	var templates []models.ExerciseTemplate
	if err := c.call(ctx, http.MethodGet, "/api/v1/templates", 0, nil, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

func (c *HTTPClient) Rank(ctx context.Context, userID int, rc models.RankContext) ([]models.Ranked, error) {
	var ranked []models.Ranked
	if err := c.call(ctx, http.MethodPost, "/api/v1/rank", userID, rc, &ranked); err != nil {
		return nil, err
	}
	return ranked, nil
}

func (c *HTTPClient) Plan(ctx context.Context, userID int, req service.PlanRequest) (service.PlanResult, error) {
	var res service.PlanResult
	err := c.call(ctx, http.MethodPost, "/api/v1/plan", userID, req, &res)
	return res, err
}

func (c *HTTPClient) Signals(ctx context.Context, userID int) (models.LoadSignals, error) {
	var sig models.LoadSignals
	err := c.call(ctx, http.MethodGet, "/api/v1/signals", userID, nil, &sig)
	return sig, err
}

func (c *HTTPClient) CheckRecovery(ctx context.Context, userID int, load *models.LoadSignals) (service.RecoveryResult, error) {
	var res service.RecoveryResult
	body := struct {
		Signals *models.LoadSignals `json:"signals,omitempty"`
	}{load}
	err := c.call(ctx, http.MethodPost, "/api/v1/recovery/check", userID, body, &res)
	return res, err
}

func (c *HTTPClient) LogSession(ctx context.Context, userID int, in models.Session) (models.Session, error) {
	var out models.Session
	err := c.call(ctx, http.MethodPost, "/api/v1/sessions", userID, in, &out)
	return out, err
}

func (c *HTTPClient) CoachText(ctx context.Context, userID int, req service.CoachRequest) (models.Suggestion, error) {
	var sug models.Suggestion
	err := c.call(ctx, http.MethodPost, "/api/v1/coach", userID, req, &sug)
	return sug, err
}
