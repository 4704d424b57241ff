package health

import "context"

// Pinger checks storage backend availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker is an extra named component check.
type Checker interface {
	Name() string
	HealthCheck(ctx context.Context) error
}
