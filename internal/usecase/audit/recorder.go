package audit

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	"github.com/johnquangdev/meeting-intelligence/internal/domain/repositories"
)

// Recorder appends issues and audit entries. Write failures are logged and
// swallowed so that bookkeeping never fails the operation being recorded.
type Recorder struct {
	issues repositories.IssueRepository
	audits repositories.AuditLogRepository
	logger *zap.Logger
}

// NewRecorder creates a recorder. Either repository may be nil.
func NewRecorder(issues repositories.IssueRepository, audits repositories.AuditLogRepository, logger *zap.Logger) *Recorder {
	return &Recorder{issues: issues, audits: audits, logger: logger}
}

// Scope identifies where an issue was raised
type Scope struct {
	OrgID         uuid.UUID
	CorrelationID string
	Layer         string
	ResourceType  string
	ResourceID    string
}

// RaiseIssues stamps each issue with the scope and appends it
func (r *Recorder) RaiseIssues(ctx context.Context, scope Scope, issues ...*entities.Issue) {
	for _, issue := range issues {
		if issue == nil {
			continue
		}
		issue.OrgID = scope.OrgID
		issue.CorrelationID = scope.CorrelationID
		issue.Layer = scope.Layer
		issue.ResourceType = scope.ResourceType
		issue.ResourceID = scope.ResourceID

		if r.logger != nil {
			log := r.logger.Warn
			if issue.IsCritical() {
				log = r.logger.Error
			}
			log("⚠️ Issue raised",
				zap.String("type", string(issue.Type)),
				zap.String("severity", string(issue.Severity)),
				zap.String("layer", scope.Layer),
				zap.String("resource_id", scope.ResourceID),
				zap.String("correlation_id", scope.CorrelationID),
				zap.String("description", issue.Description),
			)
		}

		if r.issues == nil {
			continue
		}
		if err := r.issues.Create(ctx, issue); err != nil && r.logger != nil {
			r.logger.Error("❌ Failed to persist issue",
				zap.String("type", string(issue.Type)),
				zap.String("correlation_id", scope.CorrelationID),
				zap.Error(err),
			)
		}
	}
}

// Log appends an audit entry
func (r *Recorder) Log(ctx context.Context, entry *entities.AuditLogEntry) {
	if entry == nil {
		return
	}
	if r.logger != nil {
		r.logger.Info("📝 Audit",
			zap.String("action", entry.Action),
			zap.String("resource_type", entry.ResourceType),
			zap.String("resource_id", entry.ResourceID),
			zap.String("correlation_id", entry.CorrelationID),
			zap.Bool("success", entry.Success),
		)
	}
	if r.audits == nil {
		return
	}
	if err := r.audits.Create(ctx, entry); err != nil && r.logger != nil {
		r.logger.Error("❌ Failed to persist audit entry",
			zap.String("action", entry.Action),
			zap.String("correlation_id", entry.CorrelationID),
			zap.Error(err),
		)
	}
}
