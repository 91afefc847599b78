// Package chi implements the perceptd ops HTTP API: health, status,
// vocabulary management and learning triggers.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sightline-ai/percept/internal/domain"
	detectuc "github.com/sightline-ai/percept/internal/usecase/detect"
	healthuc "github.com/sightline-ai/percept/internal/usecase/health"
	"github.com/sightline-ai/percept/internal/usecase/pipeline"
	usageuc "github.com/sightline-ai/percept/internal/usecase/usage"
	"github.com/sightline-ai/percept/internal/usecase/vocabulary"
	"github.com/sightline-ai/percept/internal/version"
)

// Error codes returned by the ops API.
const (
	codeBadRequest           = "bad_request"
	codeValidationFailed     = "validation_failed"
	codeVocabularyFull       = "vocabulary_full"
	codeEmbeddingQuota       = "embedding_quota_exceeded"
	codeEmbeddingProvider    = "embedding_provider_error"
	codeBackendUnavailable   = "backend_unavailable"
	codeExtractorUnavailable = "extractor_unavailable"
	codeInternalError        = "internal_error"
)

// ErrorResponse is the uniform error body for the ops API.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// router is the subset of chi.Router the ops API registers on.
type router interface {
	Get(pattern string, h http.HandlerFunc)
	Post(pattern string, h http.HandlerFunc)
}

// Server serves the perceptd ops API.
type Server struct {
	vocab         *vocabulary.Store
	orch          *pipeline.Orchestrator
	guardian      *detectuc.Guardian
	usage         *usageuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	vocab *vocabulary.Store,
	orch *pipeline.Orchestrator,
	guardian *detectuc.Guardian,
	usage *usageuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		vocab:    vocab,
		orch:     orch,
		guardian: guardian,
		usage:    usage,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrEmptyClassName, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrVocabularyFull, http.StatusConflict, codeVocabularyFull),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusPaymentRequired, codeEmbeddingQuota),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProvider),
		sentinelHandler(domain.ErrBackendUnavailable, http.StatusBadGateway, codeBackendUnavailable),
		sentinelHandler(domain.ErrExtractorUnavailable, http.StatusBadGateway, codeExtractorUnavailable),
	}
	return s
}

// Routes registers every ops endpoint on the router.
func (s *Server) Routes(r router) {
	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Get("/v1/status", s.Status)
	r.Get("/v1/usage", s.Usage)
	r.Get("/v1/vocabulary", s.ListVocabulary)
	r.Post("/v1/vocabulary", s.AddVocabulary)
	r.Post("/v1/vocabulary/prune", s.PruneVocabulary)
	r.Post("/v1/vocabulary/push", s.PushVocabulary)
	r.Post("/v1/learn/description", s.LearnDescription)
	r.Post("/v1/learn/poi", s.LearnPOI)
}

// StatusResponse is the aggregate daemon view.
type StatusResponse struct {
	Version       string                 `json:"version"`
	Commit        string                 `json:"commit"`
	Pipeline      pipeline.PipelineStats `json:"pipeline"`
	Vocabulary    VocabularyStatus       `json:"vocabulary"`
	SafetyClasses int                    `json:"safety_classes"`
}

// VocabularyStatus summarizes the class lists inside StatusResponse.
type VocabularyStatus struct {
	Base        int       `json:"base"`
	Dynamic     int       `json:"dynamic"`
	Total       int       `json:"total"`
	Capacity    int       `json:"capacity"`
	LastUpdated time.Time `json:"last_updated"`
}

// VocabularyResponse lists the active detector vocabulary.
type VocabularyResponse struct {
	Classes     []string                 `json:"classes"`
	Base        int                      `json:"base"`
	Dynamic     []domain.VocabularyEntry `json:"dynamic"`
	Capacity    int                      `json:"capacity"`
	LastUpdated time.Time                `json:"last_updated"`
}

// AddVocabularyRequest teaches one object name (user memory source).
type AddVocabularyRequest struct {
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// AddVocabularyResponse reports the admission outcome.
type AddVocabularyResponse struct {
	Name           string `json:"name"`
	Added          bool   `json:"added"`
	DynamicEntries int    `json:"dynamic_entries"`
}

// PruneResponse reports how many dynamic entries a prune removed.
type PruneResponse struct {
	Removed        int `json:"removed"`
	DynamicEntries int `json:"dynamic_entries"`
}

// PushResponse reports a forced vocabulary push.
type PushResponse struct {
	Classes int `json:"classes"`
}

// LearnDescriptionRequest carries a scene description to mine for nouns.
type LearnDescriptionRequest struct {
	Text string `json:"text"`
}

// LearnPOIRequest carries nearby venue names.
type LearnPOIRequest struct {
	Names []string `json:"names"`
}

// LearnResponse lists the names admitted by a learning call.
type LearnResponse struct {
	Admitted []string `json:"admitted"`
	Count    int      `json:"count"`
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, report)
}

// Status handles GET /v1/status.
func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	base := len(vocabulary.BaseVocabulary())
	dynamic := s.vocab.Len()

	writeJSON(w, http.StatusOK, StatusResponse{
		Version:  version.Version,
		Commit:   version.Commit,
		Pipeline: s.orch.Stats(),
		Vocabulary: VocabularyStatus{
			Base:        base,
			Dynamic:     dynamic,
			Total:       base + dynamic,
			Capacity:    s.vocab.Cap(),
			LastUpdated: s.vocab.LastUpdated(),
		},
		SafetyClasses: s.guardian.Classes(),
	})
}

// Usage handles GET /v1/usage: embedding token spend for one budget
// window. The window query parameter selects "day" or "month".
func (s *Server) Usage(w http.ResponseWriter, r *http.Request) {
	window := usageuc.Window(r.URL.Query().Get("window"))
	writeJSON(w, http.StatusOK, s.usage.GetReport(r.Context(), window))
}

// ListVocabulary handles GET /v1/vocabulary.
func (s *Server) ListVocabulary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VocabularyResponse{
		Classes:     s.vocab.CurrentVocabulary(),
		Base:        len(vocabulary.BaseVocabulary()),
		Dynamic:     s.vocab.Entries(),
		Capacity:    s.vocab.Cap(),
		LastUpdated: s.vocab.LastUpdated(),
	})
}

// AddVocabulary handles POST /v1/vocabulary: the user-memory learning path.
func (s *Server) AddVocabulary(w http.ResponseWriter, r *http.Request) {
	var req AddVocabularyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	name := domain.NormalizeClassName(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "Object name is required")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	added := s.orch.LearnFromMemory(ctx, name, req.Metadata)

	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	setEmbeddingHeaders(w, usage)
	writeJSON(w, status, AddVocabularyResponse{
		Name:           name,
		Added:          added,
		DynamicEntries: s.vocab.Len(),
	})
}

// PruneVocabulary handles POST /v1/vocabulary/prune.
func (s *Server) PruneVocabulary(w http.ResponseWriter, r *http.Request) {
	ctx, usage := domain.NewContextWithUsage(r.Context())
	removed := s.vocab.Prune()
	if removed > 0 {
		// Детектор не должен продолжать искать удалённые имена
		_ = s.orch.PushVocabulary(ctx)
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, PruneResponse{
		Removed:        removed,
		DynamicEntries: s.vocab.Len(),
	})
}

// PushVocabulary handles POST /v1/vocabulary/push: forces a re-push of
// the current class list to the learner detector.
func (s *Server) PushVocabulary(w http.ResponseWriter, r *http.Request) {
	ctx, usage := domain.NewContextWithUsage(r.Context())
	if err := s.orch.PushVocabulary(ctx); err != nil {
		s.handleDomainError(w, err)
		return
	}
	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, PushResponse{Classes: len(s.vocab.CurrentVocabulary())})
}

// LearnDescription handles POST /v1/learn/description.
func (s *Server) LearnDescription(w http.ResponseWriter, r *http.Request) {
	var req LearnDescriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "Description text is required")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	admitted := s.orch.LearnFromDescription(ctx, req.Text)
	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, learnResponse(admitted))
}

// LearnPOI handles POST /v1/learn/poi.
func (s *Server) LearnPOI(w http.ResponseWriter, r *http.Request) {
	var req LearnPOIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Names) == 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "At least one point of interest name is required")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	admitted := s.orch.LearnFromPOI(ctx, req.Names)
	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, learnResponse(admitted))
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func learnResponse(admitted []string) LearnResponse {
	if admitted == nil {
		admitted = []string{}
	}
	return LearnResponse{Admitted: admitted, Count: len(admitted)}
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrEmptyClassName,
		domain.ErrVocabularyFull,
		domain.ErrBackendUnavailable,
		domain.ErrExtractorUnavailable,
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
