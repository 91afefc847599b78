package modelsrv

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sightline-ai/percept/internal/domain"
)

func testFrame() domain.Frame {
	return domain.Frame{
		Data:      []byte{1, 2, 3, 4, 5, 6},
		Width:     640,
		Height:    480,
		Timestamp: time.Now(),
		Seq:       9,
	}
}

func TestClient_Detect(t *testing.T) {
	frame := testFrame()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/predict" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}

		var req predictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Width != 640 || req.Height != 480 || req.Seq != 9 {
			t.Errorf("unexpected frame meta: %+v", req)
		}
		if req.Confidence != 0.4 {
			t.Errorf("expected confidence 0.4, got %f", req.Confidence)
		}
		decoded, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil || len(decoded) != len(frame.Data) {
			t.Errorf("image payload did not round-trip: err=%v len=%d", err, len(decoded))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(predictResponse{
			Boxes: []predictBox{
				{Class: "person", Confidence: 0.92, X1: 10, Y1: 20, X2: 110, Y2: 220},
				{Class: "dog", Confidence: 0.61, X1: 300, Y1: 100, X2: 400, Y2: 200},
			},
		})
	}))
	defer server.Close()

	c := NewClient(&Config{BaseURL: server.URL, APIKey: "test-key", Logger: zap.NewNop()})

	boxes, err := c.Detect(context.Background(), frame, 0.4)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(boxes) != 2 {
		t.Fatalf("expected 2 boxes, got %d", len(boxes))
	}
	if boxes[0].Class != "person" || boxes[0].Confidence != 0.92 {
		t.Errorf("unexpected first box: %+v", boxes[0])
	}
	if boxes[1].X1 != 300 || boxes[1].Y2 != 200 {
		t.Errorf("unexpected second box coords: %+v", boxes[1])
	}
}

func TestClient_Detect_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(&Config{BaseURL: server.URL, Logger: zap.NewNop()})

	_, err := c.Detect(context.Background(), testFrame(), 0.4)
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestClient_Detect_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // закрываем сразу — адрес гарантированно недоступен

	c := NewClient(&Config{BaseURL: server.URL, Logger: zap.NewNop()})

	_, err := c.Detect(context.Background(), testFrame(), 0.4)
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestClient_SetClasses(t *testing.T) {
	var got classesRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/classes" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := NewClient(&Config{BaseURL: server.URL, Logger: zap.NewNop()})

	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}
	if err := c.SetClasses(context.Background(), []string{"person", "mailbox"}, vectors); err != nil {
		t.Fatalf("SetClasses failed: %v", err)
	}

	if len(got.Classes) != 2 || got.Classes[1] != "mailbox" {
		t.Errorf("unexpected classes: %v", got.Classes)
	}
	if len(got.Vectors) != 2 || got.Vectors[0][1] != 0.2 {
		t.Errorf("unexpected vectors: %v", got.Vectors)
	}
}

func TestClient_SetClasses_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad vectors", http.StatusBadRequest)
	}))
	defer server.Close()

	c := NewClient(&Config{BaseURL: server.URL, Logger: zap.NewNop()})

	err := c.SetClasses(context.Background(), []string{"person"}, nil)
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestClient_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(&Config{BaseURL: server.URL, Logger: zap.NewNop()})

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestClient_Ping_Unhealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(&Config{BaseURL: server.URL, Logger: zap.NewNop()})

	err := c.Ping(context.Background())
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable, got %v", err)
	}
}
