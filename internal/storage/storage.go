// Package storage provides durable key/value storage for per-client state.
//
// Browsers in the original design kept the cart and form drafts in their own
// local storage. The service keeps the same keys server-side, namespaced per
// client, behind a Storage interface with implementations for:
// - MemoryStorage: process memory, for tests and single-instance development
// - LocalStorage: one file per key on the local filesystem
// - RedisStorage: Redis string keys
// - PostgresStorage: a JSONB table managed by goose migrations
// - R2Storage: Cloudflare R2 (S3-compatible) objects
package storage

import (
	"context"
	"fmt"
	"strings"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Storage defines the interface for durable key/value operations.
//
// Writes are last-write-wins per key. All methods are context-aware for
// timeout and cancellation support.
type Storage interface {
	// Get retrieves the value at the specified key.
	// Returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value at key, replacing any previous value.
	// Returns ErrTooLarge if the value exceeds the backend's limit.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes the value at the specified key.
	// This operation is idempotent - no error is returned if the key doesn't exist.
	Delete(ctx context.Context, key string) error
}

// =============================================================================
// Configuration Types
// =============================================================================

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory where values are stored.
	// Example: "./data" or "/var/lib/leaguekit"
	BasePath string
}

// RedisConfig holds configuration for Redis storage.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Prefix is prepended to every key. Example: "leaguekit:"
	Prefix string
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	// AccountID is your Cloudflare account ID.
	AccountID string

	// AccessKeyID is the R2 API access key ID.
	AccessKeyID string

	// SecretAccessKey is the R2 API secret key.
	SecretAccessKey string

	// BucketName is the name of the R2 bucket to use.
	BucketName string

	// Region is the AWS region to use (required by AWS SDK).
	// Default: "auto"
	Region string
}

// =============================================================================
// Provider Constants
// =============================================================================

const (
	// ProviderMemory identifies the in-process storage provider.
	ProviderMemory = "memory"

	// ProviderLocal identifies the local filesystem storage provider.
	ProviderLocal = "local"

	// ProviderRedis identifies the Redis storage provider.
	ProviderRedis = "redis"

	// ProviderPostgres identifies the PostgreSQL storage provider.
	ProviderPostgres = "postgres"

	// ProviderR2 identifies the Cloudflare R2 storage provider.
	ProviderR2 = "r2"
)

// MaxValueSize bounds a single stored value. Browser local storage quotas
// sit around 5 MB per origin; the service enforces the same ceiling.
const MaxValueSize = 5 << 20

// =============================================================================
// Key Helpers
// =============================================================================

// ClientKey namespaces a storage key to one client.
// Format: clients/{clientID}/{key}
//
// Example: "clients/8d1f.../formDraft_2"
func ClientKey(clientID, key string) string {
	return fmt.Sprintf("clients/%s/%s", clientID, key)
}

// validateKey rejects empty keys and path traversal attempts.
func validateKey(key string) error {
	if key == "" || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}

// =============================================================================
// Scoped Storage
// =============================================================================

// Scoped is a Storage view that prefixes every key with a client namespace.
type Scoped struct {
	inner    Storage
	clientID string
}

// NewScoped returns a view of inner restricted to clientID's keys.
func NewScoped(inner Storage, clientID string) *Scoped {
	return &Scoped{inner: inner, clientID: clientID}
}

func (s *Scoped) Get(ctx context.Context, key string) ([]byte, error) {
	return s.inner.Get(ctx, ClientKey(s.clientID, key))
}

func (s *Scoped) Set(ctx context.Context, key string, value []byte) error {
	return s.inner.Set(ctx, ClientKey(s.clientID, key), value)
}

func (s *Scoped) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, ClientKey(s.clientID, key))
}
