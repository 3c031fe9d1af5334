package transcript

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	"github.com/johnquangdev/meeting-intelligence/internal/domain/repositories"
	"github.com/johnquangdev/meeting-intelligence/internal/usecase/audit"
	"github.com/johnquangdev/meeting-intelligence/pkg/config"
)

const day = 24 * time.Hour

// RetentionPolicy maps a processing purpose to how long data may be kept
type RetentionPolicy struct {
	days        map[string]int
	defaultDays int
}

// NewRetentionPolicy builds the policy from the loaded rules. A nil policy uses the defaults.
func NewRetentionPolicy(p *config.Policy) *RetentionPolicy {
	if p == nil {
		p = config.DefaultPolicy()
	}
	days := make(map[string]int, len(p.RetentionDays))
	for k, v := range p.RetentionDays {
		days[k] = v
	}
	defaultDays := p.DefaultRetentionDays
	if defaultDays <= 0 {
		defaultDays = 365
	}
	return &RetentionPolicy{days: days, defaultDays: defaultDays}
}

// Duration returns the retention period for purpose
func (r *RetentionPolicy) Duration(purpose string) time.Duration {
	if d, ok := r.days[purpose]; ok {
		return time.Duration(d) * day
	}
	return time.Duration(r.defaultDays) * day
}

// Deadline returns the moment data collected now for purpose expires
func (r *RetentionPolicy) Deadline(purpose string, now time.Time) time.Time {
	return now.Add(r.Duration(purpose))
}

// RetentionService deletes normalized transcripts past their retention deadline
type RetentionService struct {
	normalized repositories.NormalizedTranscriptRepository
	tags       repositories.PIITagRepository
	recorder   *audit.Recorder
	logger     *zap.Logger
}

// NewRetentionService creates a new retention service
func NewRetentionService(normalized repositories.NormalizedTranscriptRepository, tags repositories.PIITagRepository, recorder *audit.Recorder, logger *zap.Logger) *RetentionService {
	return &RetentionService{normalized: normalized, tags: tags, recorder: recorder, logger: logger}
}

// Purge removes up to limit expired transcripts together with their PII tags
func (s *RetentionService) Purge(ctx context.Context, now time.Time, limit int, correlationID string) (int, error) {
	expired, err := s.normalized.ListExpired(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, n := range expired {
		if err := s.tags.DeleteByNormalizedID(ctx, n.ID); err != nil {
			return purged, err
		}
		if err := s.normalized.Delete(ctx, n.ID); err != nil {
			return purged, err
		}
		purged++

		if s.recorder != nil {
			s.recorder.Log(ctx, entities.NewAuditLogEntry(n.OrgID, correlationID, entities.AuditActionRetentionPurge,
				resourceNormalizedTranscript, n.ID.String(), map[string]interface{}{
					"purpose":         n.Purpose,
					"retention_until": n.RetentionUntil.Format(time.RFC3339),
				}))
		}
	}

	if s.logger != nil && purged > 0 {
		s.logger.Info("🧹 Purged expired transcripts", zap.Int("count", purged))
	}
	return purged, nil
}
