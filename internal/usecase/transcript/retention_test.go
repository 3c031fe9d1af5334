package transcript

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	ucerrors "github.com/johnquangdev/meeting-intelligence/internal/usecase/errors"
	"github.com/johnquangdev/meeting-intelligence/pkg/config"
)

func TestRetentionDurations(t *testing.T) {
	r := NewRetentionPolicy(nil)
	cases := map[string]int{
		"meeting_minutes": 1095,
		"training_data":   2555,
		"analytics":       730,
		"compliance":      3650,
		"temporary":       30,
		"something_else":  365,
	}
	for purpose, days := range cases {
		if got := r.Duration(purpose); got != time.Duration(days)*24*time.Hour {
			t.Errorf("Duration(%s) = %v, want %d days", purpose, got, days)
		}
	}
}

func TestRetentionOverridesFromPolicy(t *testing.T) {
	p := config.DefaultPolicy()
	p.RetentionDays["temporary"] = 7
	p.DefaultRetentionDays = 90
	r := NewRetentionPolicy(p)
	if r.Duration("temporary") != 7*24*time.Hour || r.Duration("x") != 90*24*time.Hour {
		t.Fatal("policy overrides not applied")
	}
}

func TestPurgeDeletesExpiredTranscripts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orgID := uuid.New()

	in := sampleInput(orgID)
	in.Text = "Reach me at dan@example.com."
	in.Segments = []entities.RawSegment{{SpeakerID: "SPEAKER_0", Start: ptr(0), End: ptr(1), Text: "Reach me at dan@example.com."}}
	rawID, _ := f.ingest.Ingest(ctx, in, "")

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f.normalize.now = func() time.Time { return base }
	tempID, err := f.normalize.Normalize(ctx, NormalizeRequest{RawTranscriptID: rawID, OrgID: orgID, Purpose: "temporary"})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	keptID, err := f.normalize.Normalize(ctx, NormalizeRequest{RawTranscriptID: rawID, OrgID: orgID, Purpose: "compliance"})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	svc := NewRetentionService(f.normalized, f.tags, f.recorder, nil)
	n, err := svc.Purge(ctx, base.Add(60*24*time.Hour), 10, "purge-1")
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged, got %d", n)
	}
	if got, _ := f.normalized.GetByID(ctx, tempID); got != nil {
		t.Fatal("expired transcript still present")
	}
	if tags, _ := f.tags.ListByNormalizedID(ctx, tempID); len(tags) != 0 {
		t.Fatal("tags of purged transcript still present")
	}
	if got, _ := f.normalized.GetByID(ctx, keptID); got == nil {
		t.Fatal("unexpired transcript was purged")
	}
}

type memoryObjects struct {
	objects map[string][]byte
}

func (m *memoryObjects) PutObject(_ context.Context, key string, data []byte, _ string) error {
	m.objects[key] = data
	return nil
}

func (m *memoryObjects) GetObject(_ context.Context, key string) ([]byte, error) {
	return m.objects[key], nil
}

func TestExportTrainingSafeUploadsRedactedText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orgID := uuid.New()

	in := sampleInput(orgID)
	in.Text = "Card 4111 1111 1111 1111 was charged."
	in.Segments = []entities.RawSegment{{SpeakerID: "SPEAKER_0", Start: ptr(0), End: ptr(1), Text: in.Text}}
	rawID, _ := f.ingest.Ingest(ctx, in, "")
	normID, err := f.normalize.Normalize(ctx, NormalizeRequest{RawTranscriptID: rawID, OrgID: orgID, Purpose: "training_data"})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	store := &memoryObjects{objects: map[string][]byte{}}
	svc := NewExportService(f.normalized, f.tags, store, f.recorder, nil)
	key, err := svc.ExportTrainingSafe(ctx, normID, "export-1")
	if err != nil {
		t.Fatalf("ExportTrainingSafe: %v", err)
	}
	if key != TrainingSafeKey(orgID, normID) {
		t.Fatalf("unexpected key %s", key)
	}
	body := string(store.objects[key])
	if strings.Contains(body, "4111") || !strings.Contains(body, "[CREDIT_CARD]") {
		t.Fatalf("exported text not redacted: %q", body)
	}
	entries, _ := f.audits.ListByCorrelationID(ctx, "export-1")
	if len(entries) != 1 || entries[0].Action != entities.AuditActionTrainingExport {
		t.Fatalf("expected training_export audit, got %+v", entries)
	}
}

func TestExportRefusesSurvivingNonTrainablePII(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orgID := uuid.New()

	rawID, _ := f.ingest.Ingest(ctx, sampleInput(orgID), "")
	raw, _ := f.raw.GetByID(ctx, rawID)
	n := entities.NewNormalizedTranscript(raw, orgID, "m", "training_data")
	n.RetentionUntil = time.Now().Add(time.Hour)
	n.RedactedText = "leaked 123-45-6789"
	if err := f.normalized.Create(ctx, n); err != nil {
		t.Fatalf("Create: %v", err)
	}
	tag := entities.NewPIITag(orgID, n.ID, 0, entities.PIIEntity{Type: entities.PIITypeFinancialSSN, Text: "123-45-6789", Token: "[SSN]", Start: 7, End: 18})
	if err := f.tags.CreateBatch(ctx, []*entities.PIITag{tag}); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	store := &memoryObjects{objects: map[string][]byte{}}
	_, err := NewExportService(f.normalized, f.tags, store, f.recorder, nil).ExportTrainingSafe(ctx, n.ID, "")
	if !errors.Is(err, ucerrors.ErrNotTrainable) {
		t.Fatalf("expected ErrNotTrainable, got %v", err)
	}
	if len(store.objects) != 0 {
		t.Fatal("nothing may be uploaded")
	}
}
