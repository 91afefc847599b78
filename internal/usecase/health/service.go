package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Service coordinates health checks across the daemon's dependencies.
type Service struct {
	kv        KVPinger
	backend   BackendPinger
	embedding EmbeddingChecker
	vocab     StorageChecker
}

// New creates a Service. Every dependency may be nil; nil dependencies
// are simply not checked. The sim backend and the memory KV driver both
// answer Ping, so the zero-service development setup reports healthy.
func New(kv KVPinger, backend BackendPinger, embedding EmbeddingChecker, vocab StorageChecker) *Service {
	return &Service{kv: kv, backend: backend, embedding: embedding, vocab: vocab}
}

// Check runs health checks against all wired components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	record := func(name string, err error) {
		if err != nil {
			checks[name] = CheckError
		} else {
			checks[name] = CheckOK
		}
	}

	if s.kv != nil {
		record("kv", s.kv.Ping(ctx))
	}
	if s.backend != nil {
		record("backend", s.backend.Ping(ctx))
	}
	if s.embedding != nil {
		record("embedding", s.embedding.HealthCheck(ctx))
	}
	if s.vocab != nil {
		record("vocabulary", s.vocab.Check())
	}

	failed := 0
	for _, v := range checks {
		if v == CheckError {
			failed++
		}
	}

	status := Healthy
	switch {
	case failed == 0:
	case failed == len(checks):
		status = Unhealthy
	default:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}
