package health

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docrel/internal/logger"
)

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
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	backend Pinger
	extra   []Checker
}

// New creates a Service checking the backend and any extra components.
func New(backend Pinger, extra ...Checker) *Service {
	return &Service{backend: backend, extra: extra}
}

// Check runs every check. The status is degraded when some fail and error
// when all of them do.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, 1+len(s.extra))
	checks["backend"] = result(ctx, "backend", s.backend.Ping(ctx))
	for _, c := range s.extra {
		checks[c.Name()] = result(ctx, c.Name(), c.HealthCheck(ctx))
	}

	failed := 0
	for _, v := range checks {
		if v == CheckError {
			failed++
		}
	}
	status := Healthy
	switch {
	case failed == len(checks):
		status = Unhealthy
	case failed > 0:
		status = Degraded
	}
	return Report{Status: status, Checks: checks}
}

func result(ctx context.Context, name string, err error) CheckResult {
	if err != nil {
		logger.FromContext(ctx).Warn("health check failed", zap.String("check", name), zap.Error(err))
		return CheckError
	}
	return CheckOK
}
