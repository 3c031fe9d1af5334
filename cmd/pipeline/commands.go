package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/johnquangdev/meeting-intelligence/errors"
	"github.com/johnquangdev/meeting-intelligence/internal/adapter/repository"
	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	"github.com/johnquangdev/meeting-intelligence/internal/infrastructure/database"
	"github.com/johnquangdev/meeting-intelligence/internal/usecase/document"
	ucerrors "github.com/johnquangdev/meeting-intelligence/internal/usecase/errors"
	"github.com/johnquangdev/meeting-intelligence/internal/usecase/extraction"
	"github.com/johnquangdev/meeting-intelligence/internal/usecase/transcript"
	"github.com/johnquangdev/meeting-intelligence/pkg/ai"
)

func runMigrate(_ context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	n, err := database.Migrate(a.db, a.logger)
	if err != nil {
		return err
	}
	fmt.Printf("applied %d migrations\n", n)
	return nil
}

func runIngest(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	file := fs.String("file", "", "JSON file holding the raw transcript input")
	org := fs.String("org", "", "organization id, overrides the one in the file")
	correlationID := fs.String("correlation-id", "", "correlation id for audit records")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return apperrors.ErrInvalidArgument("-file is required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("failed to read transcript file: %w", err)
	}
	var in entities.RawTranscriptInput
	if err := json.Unmarshal(data, &in); err != nil {
		return apperrors.ErrInvalidArgument("transcript file is not valid JSON").WithRaw(err)
	}
	if *org != "" {
		if in.OrgID, err = parseID("org", *org); err != nil {
			return err
		}
	}

	return ingest(ctx, a, in, *correlationID)
}

func runImportAssemblyAI(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("import-assemblyai", flag.ContinueOnError)
	transcriptID := fs.String("transcript-id", "", "AssemblyAI transcript id")
	org := fs.String("org", "", "organization id")
	correlationID := fs.String("correlation-id", "", "correlation id for audit records")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *transcriptID == "" {
		return apperrors.ErrInvalidArgument("-transcript-id is required")
	}
	orgID, err := parseID("org", *org)
	if err != nil {
		return err
	}

	in, err := ai.NewAssemblyAISource(&a.cfg.Assembly, a.logger).Fetch(ctx, orgID, *transcriptID)
	if err != nil {
		return err
	}
	return ingest(ctx, a, *in, *correlationID)
}

func ingest(ctx context.Context, a *app, in entities.RawTranscriptInput, correlationID string) error {
	svc := transcript.NewIngestionService(repository.NewRawTranscriptRepository(a.db), a.recorder, a.logger)
	id, err := svc.Ingest(ctx, in, correlationID)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func runNormalize(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("normalize", flag.ContinueOnError)
	rawID := fs.String("raw-id", "", "raw transcript id")
	org := fs.String("org", "", "organization id")
	meetingRef := fs.String("meeting", "", "meeting reference")
	purpose := fs.String("purpose", "meeting_minutes", "processing purpose, selects the retention period")
	legalBasis := fs.String("legal-basis", string(entities.LegalBasisLegitimateInterest), "legal basis for processing")
	correlationID := fs.String("correlation-id", "", "correlation id for audit records")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := transcript.NormalizeRequest{
		MeetingRef:    *meetingRef,
		Purpose:       *purpose,
		LegalBasis:    entities.LegalBasis(*legalBasis),
		CorrelationID: *correlationID,
	}
	var err error
	if req.RawTranscriptID, err = parseID("raw-id", *rawID); err != nil {
		return err
	}
	if req.OrgID, err = parseID("org", *org); err != nil {
		return err
	}

	svc := transcript.NewNormalizationService(
		repository.NewRawTranscriptRepository(a.db),
		repository.NewNormalizedTranscriptRepository(a.db),
		repository.NewSpeakerMappingRepository(a.db),
		repository.NewPIITagRepository(a.db),
		nil,
		transcript.NewRetentionPolicy(a.policy),
		a.recorder,
		a.logger,
	)
	id, err := svc.Normalize(ctx, req)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func runExtract(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	meetingRef := fs.String("meeting", "", "meeting reference or normalized transcript id")
	org := fs.String("org", "", "organization id")
	goal := fs.String("goal", a.cfg.Pipeline.QAGoal, "QA goal: zero_hallucinations, board_ready_summary or maximize_recall")
	target := fs.String("target", "all", "what to extract: decisions, action_items or all")
	correlationID := fs.String("correlation-id", "", "correlation id for audit records")
	if err := fs.Parse(args); err != nil {
		return err
	}
	orgID, err := parseID("org", *org)
	if err != nil {
		return err
	}

	generator, err := a.generator()
	if err != nil {
		return err
	}
	svc := extraction.NewService(
		repository.NewNormalizedTranscriptRepository(a.db),
		repository.NewExtractionRepository(a.db),
		repository.NewEvidenceRepository(a.db),
		generator,
		a.recorder,
		a.logger,
	)
	req := extraction.ExtractRequest{MeetingRef: *meetingRef, OrgID: orgID, QAGoal: *goal, CorrelationID: *correlationID}

	switch *target {
	case "decisions", "action_items", "all":
	default:
		return apperrors.ErrInvalidArgument(fmt.Sprintf("unknown target %q", *target))
	}

	out := map[string]any{}
	if *target != "action_items" {
		decisions, err := svc.ExtractDecisions(ctx, req)
		if err != nil {
			return err
		}
		out["decisions"] = decisions
	}
	if *target != "decisions" {
		items, err := svc.ExtractActionItems(ctx, req)
		if err != nil {
			return err
		}
		out["action_items"] = items
	}
	return printJSON(out)
}

func (a *app) generator() (extraction.Generator, error) {
	if a.cfg.Pipeline.Generator != "completion" {
		return extraction.NewHeuristicGenerator(), nil
	}
	if a.completer == nil {
		return nil, ucerrors.ErrCompleterRequired
	}
	return extraction.NewCompletionGenerator(a.completer, a.model, a.logger), nil
}

// documentFlags are shared by process and batch
type documentFlags struct {
	docType      *string
	mimeType     *string
	research     *bool
	contentTypes *string
	company      *string
	date         *string
	org          *string
}

func registerDocumentFlags(fs *flag.FlagSet) *documentFlags {
	return &documentFlags{
		docType:      fs.String("type", "default", "document type, selects the default content types"),
		mimeType:     fs.String("mime", "", "MIME type; detected from the content when empty"),
		research:     fs.Bool("research", false, "verify prioritized claims against public sources"),
		contentTypes: fs.String("content", "", "comma separated content types; policy defaults when empty"),
		company:      fs.String("company", "", "company name used in generated content"),
		date:         fs.String("date", "", "document date (YYYY-MM-DD)"),
		org:          fs.String("org", "", "organization id"),
	}
}

func (f *documentFlags) input(path string) (document.DocumentInput, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return document.DocumentInput{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	in := document.DocumentInput{
		Content:        content,
		Filename:       filepath.Base(path),
		DocumentType:   *f.docType,
		MimeType:       *f.mimeType,
		EnableResearch: *f.research,
		CompanyName:    *f.company,
		DocumentDate:   *f.date,
	}
	for _, ct := range strings.Split(*f.contentTypes, ",") {
		if ct = strings.TrimSpace(ct); ct != "" {
			in.ContentTypes = append(in.ContentTypes, entities.ContentType(ct))
		}
	}
	if *f.org != "" {
		if in.OrgID, err = parseID("org", *f.org); err != nil {
			return document.DocumentInput{}, err
		}
	}
	return in, nil
}

func (a *app) orchestrator() *document.Orchestrator {
	opts := []document.Option{
		document.WithResultRepository(repository.NewDocumentResultRepository(a.db)),
		document.WithRecorder(a.recorder),
		document.WithPolicy(a.policy),
		document.WithLogger(a.logger),
		document.WithModel(a.model),
	}
	if a.store != nil {
		opts = append(opts, document.WithObjectStore(a.store))
	}
	return document.NewOrchestrator(a.completer, opts...)
}

func runProcess(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	df := registerDocumentFlags(fs)
	file := fs.String("file", "", "document to process")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return apperrors.ErrInvalidArgument("-file is required")
	}
	in, err := df.input(*file)
	if err != nil {
		return err
	}

	res := a.orchestrator().Process(ctx, in)
	if err := printJSON(res); err != nil {
		return err
	}
	if res.Status == entities.ProcessingStatusFailed {
		return fmt.Errorf("document failed at stage %s: %s", res.FailedStage, res.ErrorMessage)
	}
	return nil
}

func runBatch(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	df := registerDocumentFlags(fs)
	dir := fs.String("dir", "", "process every regular file in this directory")
	concurrency := fs.Int("concurrency", a.cfg.Pipeline.BatchConcurrency, "documents processed at once")
	if err := fs.Parse(args); err != nil {
		return err
	}

	paths := fs.Args()
	if *dir != "" {
		entries, err := os.ReadDir(*dir)
		if err != nil {
			return fmt.Errorf("failed to read directory: %w", err)
		}
		for _, e := range entries {
			if e.Type().IsRegular() {
				paths = append(paths, filepath.Join(*dir, e.Name()))
			}
		}
	}
	if len(paths) == 0 {
		return apperrors.ErrInvalidArgument("no documents given; pass -dir or file paths")
	}
	sort.Strings(paths)

	docs := make([]document.DocumentInput, 0, len(paths))
	for _, p := range paths {
		in, err := df.input(p)
		if err != nil {
			return err
		}
		docs = append(docs, in)
	}

	type summary struct {
		File              string                    `json:"file"`
		DocumentID        string                    `json:"document_id,omitempty"`
		Status            entities.ProcessingStatus `json:"status,omitempty"`
		FailedStage       entities.ProcessingStage  `json:"failed_stage,omitempty"`
		ReviewReason      string                    `json:"review_reason,omitempty"`
		OverallConfidence float64                   `json:"overall_confidence"`
		Error             string                    `json:"error,omitempty"`
	}
	results := a.orchestrator().ProcessBatch(ctx, docs, *concurrency)
	out := make([]summary, 0, len(results))
	failed := 0
	for _, r := range results {
		s := summary{File: paths[r.Index]}
		switch {
		case r.Err != nil:
			s.Error = r.Err.Error()
			failed++
		case r.Result != nil:
			s.DocumentID = r.Result.DocumentID
			s.Status = r.Result.Status
			s.FailedStage = r.Result.FailedStage
			s.ReviewReason = r.Result.ReviewReason
			s.OverallConfidence = r.Result.OverallConfidence
			s.Error = r.Result.ErrorMessage
			if r.Result.Status == entities.ProcessingStatusFailed {
				failed++
			}
		}
		out = append(out, s)
	}
	if err := printJSON(out); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(results))
	}
	return nil
}

func runExport(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	normalizedID := fs.String("normalized-id", "", "normalized transcript id")
	org := fs.String("org", "", "with -list, organization whose exports are listed")
	list := fs.Bool("list", false, "list existing training-safe exports instead of exporting")
	urlExpiry := fs.Duration("url-expiry", time.Hour, "lifetime of the presigned download URL; 0 disables it")
	correlationID := fs.String("correlation-id", "", "correlation id for audit records")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *list {
		if a.minio == nil {
			return ucerrors.ErrObjectStoreNotConfigured
		}
		orgID, err := parseID("org", *org)
		if err != nil {
			return err
		}
		keys, err := a.minio.ListFiles(ctx, fmt.Sprintf("training-safe/%s/", orgID))
		if err != nil {
			return apperrors.ErrStorageFailed("list", err)
		}
		return printJSON(keys)
	}

	id, err := parseID("normalized-id", *normalizedID)
	if err != nil {
		return err
	}
	svc := transcript.NewExportService(
		repository.NewNormalizedTranscriptRepository(a.db),
		repository.NewPIITagRepository(a.db),
		a.store,
		a.recorder,
		a.logger,
	)
	key, err := svc.ExportTrainingSafe(ctx, id, *correlationID)
	if err != nil {
		return err
	}

	out := map[string]string{"key": key}
	if a.minio != nil && *urlExpiry > 0 {
		url, err := a.minio.GetFileURL(ctx, key, *urlExpiry)
		if err != nil {
			a.logger.Warn("Failed to presign export URL", zap.String("key", key), zap.Error(err))
		} else {
			out["url"] = url
		}
	}
	return printJSON(out)
}

func runPurge(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("purge", flag.ContinueOnError)
	limit := fs.Int("limit", 500, "maximum transcripts deleted in one run")
	correlationID := fs.String("correlation-id", "", "correlation id for audit records")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit < 1 {
		return apperrors.ErrInvalidArgument("-limit must be positive")
	}

	svc := transcript.NewRetentionService(
		repository.NewNormalizedTranscriptRepository(a.db),
		repository.NewPIITagRepository(a.db),
		a.recorder,
		a.logger,
	)
	n, err := svc.Purge(ctx, time.Now().UTC(), *limit, *correlationID)
	if err != nil {
		return err
	}
	fmt.Printf("purged %d transcripts\n", n)
	return nil
}

func parseID(name, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, apperrors.ErrInvalidArgument(fmt.Sprintf("-%s is required", name))
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, apperrors.ErrInvalidArgument(fmt.Sprintf("-%s is not a valid id", name)).WithRaw(err)
	}
	return id, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
