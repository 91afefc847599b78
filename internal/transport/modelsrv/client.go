// Package modelsrv is an HTTP client for a remote inference server that
// exposes a JSON predict endpoint. It satisfies the detector backend
// contract, so the pipeline can run against off-device models.
package modelsrv

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sightline-ai/percept/internal/domain"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorDetail = 512
)

// Config holds the model server connection settings.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:9001".
	BaseURL string
	// APIKey is sent as a bearer token when non-empty.
	APIKey  string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client talks to one model server instance.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        *zap.Logger
}

// NewClient returns a client for the server at cfg.BaseURL.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		log:        log,
	}
}

type predictRequest struct {
	Image      string  `json:"image"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Seq        uint64  `json:"seq"`
	Confidence float64 `json:"confidence"`
}

type predictBox struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
}

type predictResponse struct {
	Boxes []predictBox `json:"boxes"`
}

type classesRequest struct {
	Classes []string    `json:"classes"`
	Vectors [][]float32 `json:"vectors,omitempty"`
}

// Detect sends the frame to the predict endpoint and returns raw boxes
// in pixel coordinates. Errors wrap domain.ErrBackendUnavailable.
func (c *Client) Detect(ctx context.Context, frame domain.Frame, conf float64) ([]domain.RawBox, error) {
	req := predictRequest{
		Image:      base64.StdEncoding.EncodeToString(frame.Data),
		Width:      frame.Width,
		Height:     frame.Height,
		Seq:        frame.Seq,
		Confidence: conf,
	}

	var resp predictResponse
	if err := c.postJSON(ctx, "/v1/predict", req, &resp); err != nil {
		return nil, err
	}

	boxes := make([]domain.RawBox, 0, len(resp.Boxes))
	for _, b := range resp.Boxes {
		boxes = append(boxes, domain.RawBox{
			Class:      b.Class,
			Confidence: b.Confidence,
			X1:         b.X1,
			Y1:         b.Y1,
			X2:         b.X2,
			Y2:         b.Y2,
		})
	}
	return boxes, nil
}

// SetClasses pushes the class list with optional prompt vectors to the
// server. Servers without an embedding head ignore the vectors.
func (c *Client) SetClasses(ctx context.Context, classes []string, vectors [][]float32) error {
	return c.postJSON(ctx, "/v1/classes", classesRequest{Classes: classes, Vectors: vectors}, nil)
}

// Ping checks the server health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("model server unreachable: %v: %w", err, domain.ErrBackendUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model server health status %d: %w", resp.StatusCode, domain.ErrBackendUnavailable)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("model server unreachable: %v: %w", err, domain.ErrBackendUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorDetail))
		return fmt.Errorf("model server status %d: %s: %w", resp.StatusCode, bytes.TrimSpace(detail), domain.ErrBackendUnavailable)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
