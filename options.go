package docrel

import (
	"time"

	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver     string // "sqlite" or "redis"
	sqlitePath string
	addrs      []string
	password   string
	keyPrefix  string

	maxIdentifierLength int
	commitAttempts      int
	minBackoff          time.Duration
	maxBackoff          time.Duration

	logger *zap.Logger
}

func defaultConfig() *clientConfig {
	return &clientConfig{
		keyPrefix:           "docrel:",
		maxIdentifierLength: 63,
		commitAttempts:      5,
		minBackoff:          5 * time.Millisecond,
		maxBackoff:          200 * time.Millisecond,
	}
}

// WithSQLite stores everything in the SQLite database file at path.
func WithSQLite(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverSQLite
		c.sqlitePath = path
	})
}

// WithRedis stores everything in a Redis or Valkey instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverRedis
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithKeyPrefix sets the key prefix used by the Redis backend.
// Default: "docrel:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithMaxIdentifierLength caps generated table, column and index names.
// Default: 63.
func WithMaxIdentifierLength(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxIdentifierLength = n
	})
}

// WithCommitRetries sets how often a write is re-run after a metadata
// conflict and the backoff between attempts.
// Defaults: 5 attempts, 5ms to 200ms.
func WithCommitRetries(attempts int, minBackoff, maxBackoff time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.commitAttempts = attempts
		c.minBackoff = minBackoff
		c.maxBackoff = maxBackoff
	})
}

// WithLogger enables structured logging of client operations.
// Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}
