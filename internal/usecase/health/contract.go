package health

import "context"

// KVPinger checks key-value store availability.
type KVPinger interface {
	Ping(ctx context.Context) error
}

// BackendPinger checks detector backend availability.
type BackendPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// StorageChecker checks that the vocabulary file location is writable.
type StorageChecker interface {
	Check() error
}
