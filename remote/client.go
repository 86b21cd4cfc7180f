package remote

import (
	"bytes"
	"context"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/oceanondawave/CigroTrack-sub001/domain"
)

const maxResponseSize = 1 << 20 // 1 MiB

const (
	defaultTimeout = 10 * time.Second
	retryInitial   = 200 * time.Millisecond
	retryMax       = 3 * time.Second
)

// Client talks to the core issue API over HTTP. It implements engine.Backend.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	retries int
	logger  *log.Logger
}

// NewClient builds a client for the API at baseURL. token, when non-empty, is
// forwarded verbatim as a bearer credential. retries is the number of extra
// attempts after the first for connection errors, 429 and 5xx responses.
func NewClient(baseURL, token string, timeout time.Duration, retries int, logger *log.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if retries < 0 {
		retries = 0
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		retries: retries,
		logger:  logger,
	}
}

func (c *Client) FetchBoard(ctx context.Context, projectID string) (map[string][]domain.Issue, error) {
	data, err := c.call(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(projectID)+"/board", nil, false)
	if err != nil {
		return nil, err
	}
	var grouped map[string][]domain.Issue
	if err := decodePayload(data, &grouped); err != nil {
		return nil, err
	}
	return grouped, nil
}

func (c *Client) FetchStatuses(ctx context.Context, projectID string) ([]domain.CustomStatus, error) {
	data, err := c.call(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(projectID)+"/statuses", nil, false)
	if err != nil {
		return nil, err
	}
	var statuses []domain.CustomStatus
	if err := decodePayload(data, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}

func (c *Client) FetchWipLimits(ctx context.Context, projectID string) (map[string]*int, error) {
	data, err := c.call(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(projectID)+"/wip-limits", nil, false)
	if err != nil {
		return nil, err
	}
	var limits map[string]*int
	if err := decodePayload(data, &limits); err != nil {
		return nil, err
	}
	return limits, nil
}

func (c *Client) UpdateIssue(ctx context.Context, issueID string, patch domain.IssuePatch) (domain.Issue, error) {
	data, err := c.call(ctx, http.MethodPatch, "/api/issues/"+url.PathEscape(issueID), patch, true)
	if err != nil {
		return domain.Issue{}, err
	}
	var issue domain.Issue
	if err := decodePayload(data, &issue); err != nil {
		return domain.Issue{}, err
	}
	return issue, nil
}

func (c *Client) CreateStatus(ctx context.Context, projectID string, draft domain.StatusDraft) (domain.CustomStatus, error) {
	data, err := c.call(ctx, http.MethodPost, "/api/projects/"+url.PathEscape(projectID)+"/statuses", draft, true)
	if err != nil {
		return domain.CustomStatus{}, err
	}
	var status domain.CustomStatus
	if err := decodePayload(data, &status); err != nil {
		return domain.CustomStatus{}, err
	}
	return status, nil
}

func (c *Client) UpdateStatus(ctx context.Context, statusID string, patch domain.StatusPatch) (domain.CustomStatus, error) {
	data, err := c.call(ctx, http.MethodPatch, "/api/statuses/"+url.PathEscape(statusID), patch, true)
	if err != nil {
		return domain.CustomStatus{}, err
	}
	var status domain.CustomStatus
	if err := decodePayload(data, &status); err != nil {
		return domain.CustomStatus{}, err
	}
	return status, nil
}

func (c *Client) DeleteStatus(ctx context.Context, statusID string) error {
	_, err := c.call(ctx, http.MethodDelete, "/api/statuses/"+url.PathEscape(statusID), nil, true)
	return err
}

// wipLimitBody is both the PUT request body and its echoed response. A null
// limit clears the cap, so the field must marshal even when nil.
type wipLimitBody struct {
	Limit *int `json:"limit"`
}

func (c *Client) PutWipLimit(ctx context.Context, projectID, status string, limit *int) (*int, error) {
	path := "/api/projects/" + url.PathEscape(projectID) + "/wip-limits/" + url.PathEscape(status)
	data, err := c.call(ctx, http.MethodPut, path, wipLimitBody{Limit: limit}, true)
	if err != nil {
		return nil, err
	}
	var out wipLimitBody
	if err := decodePayload(data, &out); err != nil {
		return nil, err
	}
	return out.Limit, nil
}

// call runs one logical exchange. A mutation gets a single idempotency key
// shared by all of its retries so a replayed delivery is applied once.
func (c *Client) call(ctx context.Context, method, path string, payload any, mutation bool) (sonic.NoCopyRawMessage, error) {
	var body []byte
	if payload != nil {
		b, err := sonic.ConfigStd.Marshal(payload)
		if err != nil {
			return nil, domain.Transportf(err, "encode %s %s request", method, path)
		}
		body = b
	}

	var idemKey string
	if mutation {
		idemKey = uuid.NewString()
	}

	for attempt := 0; ; attempt++ {
		data, retryable, err := c.once(ctx, method, path, body, idemKey)
		if err == nil {
			return data, nil
		}
		if !retryable || attempt >= c.retries {
			return nil, err
		}
		c.logger.WithError(err).WithFields(log.Fields{
			"method":  method,
			"path":    path,
			"attempt": attempt + 1,
		}).Warn("retrying core API call")
		select {
		case <-time.After(retryBackoff(attempt+1, retryInitial, retryMax)):
		case <-ctx.Done():
			return nil, domain.Transportf(ctx.Err(), "%s %s canceled", method, path)
		}
	}
}

// once performs a single HTTP attempt. The second return value reports
// whether the failure is worth retrying.
func (c *Client) once(ctx context.Context, method, path string, body []byte, idemKey string) (sonic.NoCopyRawMessage, bool, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, false, domain.Transportf(err, "build %s %s request", method, path)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, domain.Transportf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, true, domain.Transportf(err, "read %s %s response", method, path)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, true, domain.Transportf(nil, "%s %s returned status %d", method, path, resp.StatusCode)
	}

	data, err := decodeEnvelope(raw)
	if err != nil {
		if resp.StatusCode >= 400 && domain.IsTransport(err) {
			// Non-envelope error bodies still surface the status code.
			return nil, false, domain.Transportf(nil, "%s %s returned status %d", method, path, resp.StatusCode)
		}
		return nil, false, err
	}
	return data, false, nil
}

func retryBackoff(attempt int, initial, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	backoff := float64(initial) * math.Pow(2, float64(attempt-1))
	if backoff > float64(max) {
		backoff = float64(max)
	}
	jitter := 0.2 * backoff
	return time.Duration(backoff + (rand.Float64()-0.5)*2*jitter)
}
