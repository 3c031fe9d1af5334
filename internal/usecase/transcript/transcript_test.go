package transcript

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/johnquangdev/meeting-intelligence/errors"
	"github.com/johnquangdev/meeting-intelligence/internal/adapter/repository"
	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	"github.com/johnquangdev/meeting-intelligence/internal/infrastructure/database"
	"github.com/johnquangdev/meeting-intelligence/internal/usecase/audit"
	ucerrors "github.com/johnquangdev/meeting-intelligence/internal/usecase/errors"
)

type fixture struct {
	db         *gorm.DB
	raw        *repository.RawTranscriptRepository
	normalized *repository.NormalizedTranscriptRepository
	mappings   *repository.SpeakerMappingRepository
	tags       *repository.PIITagRepository
	issues     *repository.IssueRepository
	audits     *repository.AuditLogRepository
	recorder   *audit.Recorder
	ingest     *IngestionService
	normalize  *NormalizationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewSQLiteDB(":memory:", nil, nil)
	if err != nil {
		t.Fatalf("NewSQLiteDB: %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })
	if _, err := database.Migrate(db, nil); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	f := &fixture{
		db:         db,
		raw:        repository.NewRawTranscriptRepository(db),
		normalized: repository.NewNormalizedTranscriptRepository(db),
		mappings:   repository.NewSpeakerMappingRepository(db),
		tags:       repository.NewPIITagRepository(db),
		issues:     repository.NewIssueRepository(db),
		audits:     repository.NewAuditLogRepository(db),
	}
	f.recorder = audit.NewRecorder(f.issues, f.audits, nil)
	f.ingest = NewIngestionService(f.raw, f.recorder, nil)
	f.normalize = NewNormalizationService(f.raw, f.normalized, f.mappings, f.tags, nil, nil, f.recorder, nil)
	return f
}

func ptr(v float64) *float64 { return &v }

func sampleInput(orgID uuid.UUID) entities.RawTranscriptInput {
	return entities.RawTranscriptInput{
		OrgID:          orgID,
		ArtifactID:     "rec-1",
		Text:           "We decided to ship on Friday. Bob will own the release notes.",
		Language:       "en",
		Confidence:     0.92,
		SourceProvider: "manual",
		Segments: []entities.RawSegment{
			{SpeakerID: "SPEAKER_0", Start: ptr(0), End: ptr(3.2), Text: "We decided to ship on Friday.", Confidence: 0.95},
			{SpeakerID: "SPEAKER_1", Start: ptr(3.4), End: ptr(6.1), Text: "Bob will own the release notes.", Confidence: 0.9},
		},
	}
}

func TestIngestSameContentTwiceYieldsTwoRecordsWithSameHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := sampleInput(uuid.New())

	id1, err := f.ingest.Ingest(ctx, in, "c-1")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	id2, err := f.ingest.Ingest(ctx, in, "c-2")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if id1 == id2 {
		t.Fatal("expected distinct ids")
	}

	r1, _ := f.raw.GetByID(ctx, id1)
	r2, _ := f.raw.GetByID(ctx, id2)
	if r1 == nil || r2 == nil {
		t.Fatal("records not stored")
	}
	if r1.SHA256Hash != r2.SHA256Hash {
		t.Fatalf("hash mismatch %s vs %s", r1.SHA256Hash, r2.SHA256Hash)
	}
	if r1.Text != in.Text || len(r1.Segments) != 2 || r1.SpeakerCount != 2 {
		t.Fatalf("record not verbatim: %+v", r1)
	}

	same, err := f.raw.ListByHash(ctx, in.OrgID, r1.SHA256Hash)
	if err != nil || len(same) != 2 {
		t.Fatalf("ListByHash = %d, %v", len(same), err)
	}

	entries, _ := f.audits.ListByResource(ctx, resourceRawTranscript, id1.String())
	if len(entries) != 1 || entries[0].Action != entities.AuditActionLayer1Ingest {
		t.Fatalf("expected one ingest audit entry, got %+v", entries)
	}
}

func TestIngestNamedSpeakerStoredWithCriticalIssue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := sampleInput(uuid.New())
	in.Segments[1].SpeakerID = "Bob Andersson"

	id, err := f.ingest.Ingest(ctx, in, "c-named")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	stored, _ := f.raw.GetByID(ctx, id)
	if stored == nil || stored.Segments[1].SpeakerID != "Bob Andersson" {
		t.Fatal("transcript must be stored verbatim")
	}

	issues, err := f.issues.ListByResource(ctx, resourceRawTranscript, id.String())
	if err != nil {
		t.Fatalf("ListByResource: %v", err)
	}
	found := false
	for _, i := range issues {
		if i.Type == entities.IssueTypeFabricationRisk && i.Severity == entities.IssueSeverityCritical {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected critical fabrication_risk issue, got %+v", issues)
	}
}

func TestValidateInputDataQuality(t *testing.T) {
	in := sampleInput(uuid.New())
	in.Text = "  "
	in.Confidence = 0.4
	in.Segments[0].End = nil
	in.Segments = append(in.Segments, entities.RawSegment{SpeakerID: "alice", Text: "a", Start: ptr(7), End: ptr(8)},
		entities.RawSegment{SpeakerID: "alice", Text: "b", Start: ptr(8), End: ptr(9)})

	counts := map[entities.IssueType]int{}
	critical := map[entities.IssueType]int{}
	for _, i := range ValidateInput(in) {
		counts[i.Type]++
		if i.IsCritical() {
			critical[i.Type]++
		}
	}
	if counts[entities.IssueTypeLowConfidence] != 1 {
		t.Errorf("expected low_confidence issue")
	}
	if counts[entities.IssueTypeMissingData] != 2 || critical[entities.IssueTypeMissingData] != 1 {
		t.Errorf("expected one warning and one critical missing_data, got %v / %v", counts, critical)
	}
	if counts[entities.IssueTypeFabricationRisk] != 1 {
		t.Errorf("expected one fabrication_risk per offending speaker, got %d", counts[entities.IssueTypeFabricationRisk])
	}
}

func TestIngestRecordsOutOfRangeConfidenceAndMissingProvider(t *testing.T) {
	f := newFixture(t)
	orgID := uuid.New()
	in := sampleInput(orgID)
	in.Confidence = 1.5
	in.SourceProvider = ""

	id, err := f.ingest.Ingest(context.Background(), in, "")
	if err != nil {
		t.Fatalf("data-quality problems must not fail ingestion: %v", err)
	}
	if stored, err := f.raw.GetByID(context.Background(), id); err != nil || stored == nil {
		t.Fatalf("transcript not stored: %v", err)
	}

	counts := map[entities.IssueType]int{}
	for _, i := range ValidateInput(in) {
		if i.IsCritical() {
			t.Errorf("unexpected critical issue %q", i.Description)
		}
		counts[i.Type]++
	}
	if counts[entities.IssueTypeLowConfidence] != 1 || counts[entities.IssueTypeMissingData] != 1 {
		t.Fatalf("issues = %v, want one low_confidence and one missing_data", counts)
	}

	var stored int64
	if err := f.db.Model(&entities.Issue{}).Where("org_id = ?", orgID).Count(&stored).Error; err != nil {
		t.Fatal(err)
	}
	if stored != 2 {
		t.Errorf("stored issues = %d, want 2", stored)
	}
}

func TestIngestRejectsMissingOrg(t *testing.T) {
	f := newFixture(t)
	in := sampleInput(uuid.Nil)
	if _, err := f.ingest.Ingest(context.Background(), in, ""); apperrors.CodeOf(err) != apperrors.ErrorCode_INVALID_ARGUMENT {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestComputeHashDependsOnSegments(t *testing.T) {
	in := sampleInput(uuid.New())
	h1, _ := ComputeHash(in.Text, in.Segments)
	h2, _ := ComputeHash(in.Text, in.Segments[:1])
	if h1 == h2 || len(h1) != 64 {
		t.Fatalf("unexpected hashes %s %s", h1, h2)
	}
}

func TestNormalizeUsesOnlyConfirmedMappings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orgID := uuid.New()

	rawID, err := f.ingest.Ingest(ctx, sampleInput(orgID), "")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	m := entities.NewSpeakerMapping(orgID, "SPEAKER_1", "Bob")
	m.Confirm("reviewer@example.com")
	if err := f.mappings.Save(ctx, m); err != nil {
		t.Fatalf("Save mapping: %v", err)
	}
	unconfirmed := entities.NewSpeakerMapping(orgID, "SPEAKER_0", "Alice")
	if err := f.mappings.Save(ctx, unconfirmed); err != nil {
		t.Fatalf("Save mapping: %v", err)
	}

	id, err := f.normalize.Normalize(ctx, NormalizeRequest{RawTranscriptID: rawID, OrgID: orgID, MeetingRef: "m-1", Purpose: "meeting_minutes"})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	n, _ := f.normalized.GetByID(ctx, id)
	if n.Segments[0].SpeakerNormalized != nil {
		t.Fatal("unconfirmed mapping must not be applied")
	}
	if n.Segments[1].SpeakerNormalized == nil || *n.Segments[1].SpeakerNormalized != "Bob" {
		t.Fatalf("confirmed mapping not applied: %+v", n.Segments[1])
	}

	if err := f.mappings.Delete(ctx, orgID, "SPEAKER_1"); err != nil {
		t.Fatalf("Delete mapping: %v", err)
	}
	id2, err := f.normalize.Normalize(ctx, NormalizeRequest{RawTranscriptID: rawID, OrgID: orgID, MeetingRef: "m-1", Purpose: "meeting_minutes"})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	n2, _ := f.normalized.GetByID(ctx, id2)
	if n2.Segments[1].SpeakerNormalized != nil {
		t.Fatal("removed mapping must leave the speaker name nil")
	}
	if n2.RawTranscriptID != rawID || n2.SourceHash == "" {
		t.Fatal("normalized record must link back to raw")
	}
}

func TestNormalizeTagsAndRedactsPII(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orgID := uuid.New()

	in := sampleInput(orgID)
	in.Text = "Send it to carol@example.com please. My SSN is 123-45-6789."
	in.Segments = []entities.RawSegment{
		{SpeakerID: "SPEAKER_0", Start: ptr(0), End: ptr(2), Text: "Send it to carol@example.com please."},
		{SpeakerID: "SPEAKER_1", Start: ptr(2), End: ptr(4), Text: "My SSN is 123-45-6789."},
	}
	rawID, err := f.ingest.Ingest(ctx, in, "")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	id, err := f.normalize.Normalize(ctx, NormalizeRequest{RawTranscriptID: rawID, OrgID: orgID, Purpose: "training_data", LegalBasis: entities.LegalBasisConsent})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	n, _ := f.normalized.GetByID(ctx, id)
	if strings.Contains(n.RedactedText, "carol@example.com") || strings.Contains(n.RedactedText, "123-45-6789") {
		t.Fatalf("PII survived redaction: %s", n.RedactedText)
	}
	if !n.Segments[0].HasPII || !n.Segments[1].HasPII {
		t.Fatal("segments must be flagged")
	}
	if n.PIICount != 2 || len(n.Segments[0].PIITagIDs) != 1 {
		t.Fatalf("unexpected pii count %d", n.PIICount)
	}

	tags, _ := f.tags.ListByNormalizedID(ctx, id)
	if len(tags) != 2 {
		t.Fatalf("expected 2 tags, got %d", len(tags))
	}
	for _, tag := range tags {
		if !tag.CanStore {
			t.Error("tags must be storable")
		}
		if tag.EntityType == entities.PIITypeFinancialSSN && tag.CanTrain {
			t.Error("SSN must not be trainable")
		}
		if tag.EntityType == entities.PIITypeEmail && !tag.CanTrain {
			t.Error("email should be trainable once redacted")
		}
	}

	want := n.CreatedAt.Add(2555 * 24 * time.Hour)
	if d := n.RetentionUntil.Sub(want); d > time.Minute || d < -time.Minute {
		t.Fatalf("retention_until %v, want about %v", n.RetentionUntil, want)
	}
}

func TestNormalizeMissingRawIsNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.normalize.Normalize(context.Background(), NormalizeRequest{RawTranscriptID: uuid.New(), OrgID: uuid.New(), Purpose: "analytics"})
	if !errors.Is(err, ucerrors.ErrRawTranscriptNotFound) {
		t.Fatalf("expected ErrRawTranscriptNotFound, got %v", err)
	}
	if apperrors.CodeOf(err) != apperrors.ErrorCode_NOT_FOUND {
		t.Fatalf("expected NOT_FOUND code, got %v", apperrors.CodeOf(err))
	}
	if issues, _ := f.issues.ListByCorrelationID(context.Background(), ""); len(issues) != 0 {
		t.Fatal("missing prerequisite must not raise issues")
	}
}

func TestNormalizeRefusesRawTranscriptOfAnotherOrg(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, other := uuid.New(), uuid.New()

	rawID, err := f.ingest.Ingest(ctx, sampleInput(owner), "corr-owner")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	_, err = f.normalize.Normalize(ctx, NormalizeRequest{RawTranscriptID: rawID, OrgID: other, Purpose: "analytics"})
	if !errors.Is(err, ucerrors.ErrRawTranscriptNotFound) {
		t.Fatalf("expected ErrRawTranscriptNotFound, got %v", err)
	}
	var count int64
	if err := f.db.Model(&entities.NormalizedTranscript{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("%d normalized transcripts written for a foreign org", count)
	}

	if _, err := f.normalize.Normalize(ctx, NormalizeRequest{RawTranscriptID: rawID, OrgID: owner, Purpose: "analytics"}); err != nil {
		t.Fatalf("owner Normalize: %v", err)
	}
}
