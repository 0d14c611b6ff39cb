package domain

import (
	"context"
	"time"
)

type AuditAction string

const AuditUserAuthentication AuditAction = "user_authentication"

type AuditResult string

const (
	AuditSuccessful AuditResult = "successful"
	AuditFailed     AuditResult = "failed"
)

// AuditEntry records one security-relevant action.
type AuditEntry struct {
	RequestTime time.Time
	Action      AuditAction
	Result      AuditResult
	Source      string
}

type AuditRepository interface {
	Record(ctx context.Context, entry AuditEntry) error
}
