package app

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/thereiwas/internal/adapter/metrics"
	"github.com/pscheid92/thereiwas/internal/domain"
)

// SessionStore is the per-request session the sign-in use case acts on.
type SessionStore interface {
	SignIn(ctx context.Context, username, password string) error
	SignOut(ctx context.Context)
}

// SignInService wraps session sign-in with auditing and metrics.
type SignInService struct {
	audit   domain.AuditRepository
	metrics *metrics.SignInMetrics
	clock   clockwork.Clock
}

// NewSignInService creates the service. audit and signInMetrics may be nil.
func NewSignInService(audit domain.AuditRepository, signInMetrics *metrics.SignInMetrics, clock clockwork.Clock) *SignInService {
	return &SignInService{audit: audit, metrics: signInMetrics, clock: clock}
}

// SignIn performs one sign-in attempt on store and records its outcome.
// Audit failures are logged and never change the result.
func (s *SignInService) SignIn(ctx context.Context, store SessionStore, username, password, source string) error {
	requestTime := s.clock.Now()
	err := store.SignIn(ctx, username, password)

	result := domain.AuditSuccessful
	if err != nil {
		result = domain.AuditFailed
		slog.InfoContext(ctx, "Sign-in failed", "source", source, "error", err)
	} else {
		slog.InfoContext(ctx, "Sign-in succeeded", "source", source)
	}

	if s.metrics != nil {
		s.metrics.AttemptsTotal.WithLabelValues(string(result)).Inc()
	}

	if s.audit != nil {
		entry := domain.AuditEntry{
			RequestTime: requestTime,
			Action:      domain.AuditUserAuthentication,
			Result:      result,
			Source:      source,
		}
		if auditErr := s.audit.Record(context.WithoutCancel(ctx), entry); auditErr != nil {
			slog.WarnContext(ctx, "Failed to record sign-in audit entry", "error", auditErr)
		}
	}

	return err
}

func (s *SignInService) SignOut(ctx context.Context, store SessionStore) {
	store.SignOut(ctx)
	slog.InfoContext(ctx, "Signed out")
}
