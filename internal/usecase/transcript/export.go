package transcript

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/johnquangdev/meeting-intelligence/errors"
	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	"github.com/johnquangdev/meeting-intelligence/internal/domain/repositories"
	"github.com/johnquangdev/meeting-intelligence/internal/infrastructure/storage"
	"github.com/johnquangdev/meeting-intelligence/internal/usecase/audit"
	ucerrors "github.com/johnquangdev/meeting-intelligence/internal/usecase/errors"
	"github.com/johnquangdev/meeting-intelligence/pkg/jobcontext"
)

// ExportService writes redacted transcripts to object storage for model training
type ExportService struct {
	normalized repositories.NormalizedTranscriptRepository
	tags       repositories.PIITagRepository
	store      storage.ObjectStore
	recorder   *audit.Recorder
	logger     *zap.Logger
}

// NewExportService creates a new export service
func NewExportService(normalized repositories.NormalizedTranscriptRepository, tags repositories.PIITagRepository, store storage.ObjectStore, recorder *audit.Recorder, logger *zap.Logger) *ExportService {
	return &ExportService{normalized: normalized, tags: tags, store: store, recorder: recorder, logger: logger}
}

// TrainingSafeKey returns the object key of an exported transcript
func TrainingSafeKey(orgID, normalizedID uuid.UUID) string {
	return fmt.Sprintf("training-safe/%s/%s.txt", orgID, normalizedID)
}

// ExportTrainingSafe uploads the redacted text and returns its object key.
// It refuses when a non-trainable PII value is still present in the redacted copy.
func (s *ExportService) ExportTrainingSafe(ctx context.Context, normalizedID uuid.UUID, correlationID string) (string, error) {
	if s.store == nil {
		return "", apperrors.ErrStorageFailed("export", ucerrors.ErrObjectStoreNotConfigured)
	}
	correlationID = jobcontext.CorrelationIDOrNew(ctx, correlationID)

	n, err := s.normalized.GetByID(ctx, normalizedID)
	if err != nil {
		return "", apperrors.ErrDBQueryFailed("select transcripts_normalized", err)
	}
	if n == nil {
		return "", apperrors.ErrNotFound("normalized transcript").WithRaw(ucerrors.ErrNormalizedTranscriptNotFound)
	}

	tags, err := s.tags.ListByNormalizedID(ctx, normalizedID)
	if err != nil {
		return "", apperrors.ErrDBQueryFailed("select pii_tags", err)
	}
	for _, tag := range tags {
		if tag.CanTrain || tag.RawText == "" {
			continue
		}
		if strings.Contains(n.RedactedText, tag.RawText) {
			if s.logger != nil {
				s.logger.Error("❌ Refusing training export: non-trainable PII survives redaction",
					zap.String("normalized_id", normalizedID.String()),
					zap.String("entity_type", string(tag.EntityType)),
				)
			}
			return "", apperrors.ErrNotTrainable(normalizedID.String()).WithRaw(ucerrors.ErrNotTrainable)
		}
	}

	key := TrainingSafeKey(n.OrgID, n.ID)
	if err := s.store.PutObject(ctx, key, []byte(n.RedactedText), "text/plain; charset=utf-8"); err != nil {
		return "", apperrors.ErrStorageFailed("put training export", err)
	}

	if s.recorder != nil {
		s.recorder.Log(ctx, entities.NewAuditLogEntry(n.OrgID, correlationID, entities.AuditActionTrainingExport,
			resourceNormalizedTranscript, n.ID.String(), map[string]interface{}{
				"object_key":  key,
				"text_length": len(n.RedactedText),
				"pii_count":   n.PIICount,
			}))
	}
	if s.logger != nil {
		s.logger.Info("✅ Training-safe transcript exported",
			zap.String("normalized_id", n.ID.String()),
			zap.String("object_key", key),
		)
	}
	return key, nil
}
