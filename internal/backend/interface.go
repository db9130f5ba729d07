package backend

import (
	"context"

	"kpiboard/internal/persistence"
	"kpiboard/internal/services"
)

// CleanupFunc releases backend resources
type CleanupFunc func() error

// BackendResult is the repository chosen at startup plus its optional
// notification publisher
type BackendResult struct {
	Repository persistence.Repository
	Publisher  services.Publisher
	// Durable is false for the memory backend and for a degraded sqlite start.
	Durable bool
	// Type is the backend actually in use, which differs from the requested
	// one after a degraded start.
	Type    BackendType
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	SQLiteDBPath string

	// AMQP is optional; an empty URL disables notifications
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
