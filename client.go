package percept

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// maxErrorBody bounds how much of an error response is read back.
const maxErrorBody = 64 << 10

// Client is the percept ops API entry point.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	obs        *observer
}

// New creates a Client for a perceptd instance at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("percept: server base URL required")
	}

	cfg := &clientConfig{timeout: defaultTimeout}
	for _, o := range opts {
		o.apply(cfg)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.apiKey,
		httpClient: hc,
		obs:        obs,
	}, nil
}

// Health checks the daemon health. A degraded daemon answers 503 but
// still returns the per-component report, so that is not an error here.
func (c *Client) Health(ctx context.Context) (hs HealthStatus, err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	resp, err := c.send(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return HealthStatus{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return HealthStatus{}, decodeAPIError(resp)
	}
	if err = json.NewDecoder(resp.Body).Decode(&hs); err != nil {
		return HealthStatus{}, fmt.Errorf("percept: decode health response: %w", err)
	}
	return hs, nil
}

// Status returns the aggregate daemon view: version, rolling pipeline
// latency and vocabulary counts.
func (c *Client) Status(ctx context.Context) (st Status, err error) {
	start := time.Now()
	defer func() { c.obs.observe("status", start, err) }()

	err = c.doJSON(ctx, http.MethodGet, "/v1/status", nil, &st)
	return st, err
}

// Usage returns embedding token spend for one budget window, "day" or
// "month". An empty window defaults to the daily one.
func (c *Client) Usage(ctx context.Context, window string) (ur UsageReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("usage", start, err) }()

	path := "/v1/usage"
	if window != "" {
		path += "?window=" + url.QueryEscape(window)
	}
	err = c.doJSON(ctx, http.MethodGet, path, nil, &ur)
	return ur, err
}

// Vocabulary returns the active detector vocabulary: the full class
// list plus every dynamic entry with its provenance.
func (c *Client) Vocabulary(ctx context.Context) (vl VocabularyList, err error) {
	start := time.Now()
	defer func() { c.obs.observe("vocabulary", start, err) }()

	err = c.doJSON(ctx, http.MethodGet, "/v1/vocabulary", nil, &vl)
	return vl, err
}

// Teach admits one object name into the dynamic vocabulary (the user
// memory source). Added is false for duplicates, base names and a full
// store.
func (c *Client) Teach(ctx context.Context, name string, metadata map[string]string) (tr TeachResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("teach", start, err) }()

	req := struct {
		Name     string            `json:"name"`
		Metadata map[string]string `json:"metadata,omitempty"`
	}{Name: name, Metadata: metadata}

	err = c.doJSON(ctx, http.MethodPost, "/v1/vocabulary", req, &tr)
	return tr, err
}

// Prune removes stale dynamic entries (old and rarely used) now.
func (c *Client) Prune(ctx context.Context) (pr PruneResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("prune", start, err) }()

	err = c.doJSON(ctx, http.MethodPost, "/v1/vocabulary/prune", nil, &pr)
	return pr, err
}

// PushVocabulary forces a re-push of the current class list to the
// learner detector and returns how many classes were pushed.
func (c *Client) PushVocabulary(ctx context.Context) (classes int, err error) {
	start := time.Now()
	defer func() { c.obs.observe("push_vocabulary", start, err) }()

	var resp struct {
		Classes int `json:"classes"`
	}
	err = c.doJSON(ctx, http.MethodPost, "/v1/vocabulary/push", nil, &resp)
	return resp.Classes, err
}

// LearnDescription mines a scene description for object nouns and
// returns the names actually admitted.
func (c *Client) LearnDescription(ctx context.Context, text string) (admitted []string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("learn_description", start, err) }()

	req := struct {
		Text string `json:"text"`
	}{Text: text}

	var resp struct {
		Admitted []string `json:"admitted"`
	}
	err = c.doJSON(ctx, http.MethodPost, "/v1/learn/description", req, &resp)
	return resp.Admitted, err
}

// LearnPOI admits canonical objects for nearby points of interest and
// returns the names actually admitted.
func (c *Client) LearnPOI(ctx context.Context, names []string) (admitted []string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("learn_poi", start, err) }()

	req := struct {
		Names []string `json:"names"`
	}{Names: names}

	var resp struct {
		Admitted []string `json:"admitted"`
	}
	err = c.doJSON(ctx, http.MethodPost, "/v1/learn/poi", req, &resp)
	return resp.Admitted, err
}

// doJSON sends a request and decodes a 2xx response into out.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("percept: decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("percept: marshal %s %s request: %w", method, path, err)
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("percept: build %s %s request: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("percept: %s %s: %w", method, path, err)
	}
	return resp, nil
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Code == "" {
		return &APIError{
			Status:  resp.StatusCode,
			Code:    "unknown",
			Message: strings.TrimSpace(string(data)),
		}
	}
	return &APIError{
		Status:  resp.StatusCode,
		Code:    body.Code,
		Message: body.Message,
	}
}
