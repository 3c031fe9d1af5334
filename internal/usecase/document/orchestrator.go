package document

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	apperrors "github.com/johnquangdev/meeting-intelligence/errors"
	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	"github.com/johnquangdev/meeting-intelligence/internal/domain/repositories"
	"github.com/johnquangdev/meeting-intelligence/internal/infrastructure/storage"
	"github.com/johnquangdev/meeting-intelligence/internal/usecase/audit"
	ucerrors "github.com/johnquangdev/meeting-intelligence/internal/usecase/errors"
	"github.com/johnquangdev/meeting-intelligence/internal/usecase/pii"
	"github.com/johnquangdev/meeting-intelligence/pkg/ai"
	"github.com/johnquangdev/meeting-intelligence/pkg/config"
	"github.com/johnquangdev/meeting-intelligence/pkg/jobcontext"
	"github.com/johnquangdev/meeting-intelligence/pkg/validator"
)

const (
	DefaultMaxConcurrent     = 3
	lowExtractionQuality     = 0.5
	documentIDLength         = 16
	resourceDocumentResult   = "document_result"
	jobTypeDocumentProcess   = "document_process"
	reasonLowExtraction      = "Low extraction quality"
	reasonVerificationFailed = "Content failed QA verification"
)

// DocumentInput is one document submitted for processing
type DocumentInput struct {
	Content        []byte
	Filename       string `validate:"required"`
	DocumentType   string
	MimeType       string
	EnableResearch bool
	ContentTypes   []entities.ContentType
	CompanyName    string
	DocumentDate   string
	OrgID          uuid.UUID
}

// BatchResult pairs a batch position with its run. Err is set only when the
// run could not produce a result at all.
type BatchResult struct {
	Index  int
	Result *entities.DocumentProcessingResult
	Err    error
}

// stage is one step of a document run
type stage struct {
	name entities.ProcessingStage
	run  func(ctx context.Context, st *runState) error
}

type runState struct {
	input  DocumentInput
	result *entities.DocumentProcessingResult
	types  []entities.ContentType
}

// Orchestrator runs documents through extraction, analysis, research,
// questions, content and verification
type Orchestrator struct {
	completer  ai.Completer
	extractor  *Extractor
	analyzer   *Analyzer
	researcher *Researcher
	questions  *QuestionGenerator
	content    *ContentGenerator
	verifier   *Verifier
	validator  *validator.CustomValidator

	store      storage.ObjectStore
	results    repositories.DocumentResultRepository
	recorder   *audit.Recorder
	policy     *config.Policy
	logger     *zap.Logger
	model      string
	claims     ClaimResearcher
	detector   *pii.Detector
	jobTimeout time.Duration
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithObjectStore archives uploaded bytes before extraction
func WithObjectStore(s storage.ObjectStore) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithResultRepository persists every finished run
func WithResultRepository(r repositories.DocumentResultRepository) Option {
	return func(o *Orchestrator) { o.results = r }
}

// WithRecorder writes a document_process audit entry per run
func WithRecorder(r *audit.Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

func WithPolicy(p *config.Policy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithModel names the completion model recorded on analyses
func WithModel(model string) Option {
	return func(o *Orchestrator) { o.model = model }
}

// WithClaimResearcher replaces the claim researcher used when research is enabled
func WithClaimResearcher(c ClaimResearcher) Option {
	return func(o *Orchestrator) { o.claims = c }
}

func WithPIIDetector(d *pii.Detector) Option {
	return func(o *Orchestrator) { o.detector = d }
}

// WithJobTimeout bounds each document of a batch
func WithJobTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.jobTimeout = d }
}

// NewOrchestrator creates an orchestrator. A nil completer fails every run at
// the analysis stage.
func NewOrchestrator(completer ai.Completer, opts ...Option) *Orchestrator {
	o := &Orchestrator{completer: completer, policy: config.DefaultPolicy()}
	for _, opt := range opts {
		opt(o)
	}
	if o.claims == nil {
		o.claims = NewSearchingResearcher(nil, completer)
	}
	o.extractor = NewExtractor()
	o.analyzer = NewAnalyzer(completer, o.model, o.logger)
	o.researcher = NewResearcher(o.claims, o.logger)
	o.questions = NewQuestionGenerator(completer, o.logger)
	o.content = NewContentGenerator(completer, o.logger)
	o.verifier = NewVerifier(o.detector)
	o.validator = validator.New()
	return o
}

// DocumentID derives the stable document id from its bytes
func DocumentID(content []byte) string {
	return SourceHash(content)[:documentIDLength]
}

func (o *Orchestrator) stages() []stage {
	return []stage{
		{name: entities.StageUpload, run: o.upload},
		{name: entities.StageExtraction, run: o.extract},
		{name: entities.StageAnalysis, run: o.analyze},
		{name: entities.StageResearch, run: o.research},
		{name: entities.StageQuestionGeneration, run: o.generateQuestions},
		{name: entities.StageContentGeneration, run: o.generateContent},
		{name: entities.StageVerification, run: o.verify},
	}
}

// Process runs one document. Failures are reported on the result, never returned.
func (o *Orchestrator) Process(ctx context.Context, in DocumentInput) *entities.DocumentProcessingResult {
	res := entities.NewDocumentProcessingResult(in.OrgID, DocumentID(in.Content), in.Filename, in.DocumentType)
	correlationID := jobcontext.CorrelationIDOrNew(ctx, "")
	ctx = jobcontext.WithCorrelationID(ctx, correlationID)

	if o.logger != nil {
		o.logger.Info("📄 Processing document",
			zap.String("document_id", res.DocumentID),
			zap.String("filename", in.Filename),
			zap.String("document_type", in.DocumentType),
			zap.String("correlation_id", correlationID),
		)
	}

	st := &runState{input: in, result: res}
	for _, s := range o.stages() {
		res.CurrentStage = s.name
		err := jobcontext.Run(ctx, func(ctx context.Context) error {
			return s.run(ctx, st)
		})
		if err != nil {
			res.Fail(s.name, apperrors.ErrStageFailed(string(s.name), err))
			if o.logger != nil {
				o.logger.Error("❌ Document stage failed",
					zap.String("document_id", res.DocumentID),
					zap.String("stage", string(s.name)),
					zap.Bool("panic", jobcontext.IsPanic(err)),
					zap.Error(err),
				)
			}
			break
		}
	}

	if res.Status != entities.ProcessingStatusFailed {
		res.OverallConfidence = overallConfidence(res)
		res.CurrentStage = entities.StageComplete
		res.Status = entities.ProcessingStatusCompleted
		if res.RequiresHumanReview {
			res.Status = entities.ProcessingStatusRequiresReview
		}
	}
	res.Finish()

	o.persist(ctx, res)
	o.audit(ctx, res, correlationID)

	if o.logger != nil {
		o.logger.Info("✅ Document processed",
			zap.String("document_id", res.DocumentID),
			zap.String("status", string(res.Status)),
			zap.Float64("overall_confidence", res.OverallConfidence),
			zap.Bool("requires_review", res.RequiresHumanReview),
			zap.Int64("processing_time_ms", res.ProcessingTimeMs),
		)
	}
	return res
}

// ProcessBatch runs documents with at most maxConcurrent in flight. Results keep
// the input order and one failing document never stops the others.
func (o *Orchestrator) ProcessBatch(ctx context.Context, docs []DocumentInput, maxConcurrent int) []BatchResult {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	sem := semaphore.NewWeighted(int64(maxConcurrent))
	out := make([]BatchResult, len(docs))
	var wg sync.WaitGroup

	for i := range docs {
		out[i].Index = i
		if err := sem.Acquire(ctx, 1); err != nil {
			for j := i; j < len(docs); j++ {
				out[j] = BatchResult{Index: j, Err: fmt.Errorf("batch cancelled: %w", err)}
			}
			break
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			jobCtx, cancel := jobcontext.JobBegin(ctx, uuid.New(), jobTypeDocumentProcess, i, o.jobTimeout)
			defer cancel()
			out[i].Err = jobcontext.Run(jobCtx, func(ctx context.Context) error {
				out[i].Result = o.Process(ctx, docs[i])
				return nil
			})
		}(i)
	}
	wg.Wait()

	if o.logger != nil {
		failed := 0
		for _, r := range out {
			if r.Err != nil || (r.Result != nil && r.Result.Status == entities.ProcessingStatusFailed) {
				failed++
			}
		}
		o.logger.Info("📦 Batch processed",
			zap.Int("documents", len(docs)),
			zap.Int("failed", failed),
			zap.Int("max_concurrent", maxConcurrent),
		)
	}
	return out
}

func (o *Orchestrator) upload(ctx context.Context, st *runState) error {
	if err := o.validator.Validate(st.input); err != nil {
		return apperrors.ErrInvalidArgument(err.Error())
	}
	if o.store == nil {
		return nil
	}
	res := st.result
	key := fmt.Sprintf("documents/%s/%s/%s", res.OrgID, res.DocumentID, path.Base(st.input.Filename))
	mimeType := st.input.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	if err := o.store.PutObject(ctx, key, st.input.Content, mimeType); err != nil {
		return apperrors.ErrStorageFailed("archive document", err)
	}
	res.ArchiveKey = key
	return nil
}

func (o *Orchestrator) extract(_ context.Context, st *runState) error {
	ext, err := o.extractor.Extract(st.input.Content, st.input.Filename, st.input.MimeType)
	if err != nil {
		return err
	}
	st.result.Extraction = ext
	if ext.ConfidenceScore < lowExtractionQuality {
		st.result.FlagForReview(reasonLowExtraction)
	}
	return nil
}

func (o *Orchestrator) analyze(ctx context.Context, st *runState) error {
	if o.completer == nil {
		return ucerrors.ErrCompleterRequired
	}
	analysis, err := o.analyzer.Analyze(ctx, st.result.Extraction, DocumentContext{
		Filename:     st.input.Filename,
		DocumentType: st.input.DocumentType,
		CompanyName:  st.input.CompanyName,
		DocumentDate: st.input.DocumentDate,
	})
	if err != nil {
		return err
	}
	st.result.Analysis = analysis
	if analysis.RequiresHumanReview {
		st.result.FlagForReview(analysis.ReviewReason)
	}
	return nil
}

func (o *Orchestrator) research(ctx context.Context, st *runState) error {
	if !st.input.EnableResearch {
		return nil
	}
	results, err := o.researcher.Research(ctx, st.result.Analysis, st.input.CompanyName)
	if err != nil {
		return err
	}
	st.result.Research = results
	return nil
}

func (o *Orchestrator) generateQuestions(ctx context.Context, st *runState) error {
	set, err := o.questions.Generate(ctx, st.result.Analysis, st.result.Research, st.input.CompanyName)
	if err != nil {
		return err
	}
	st.result.Questions = set
	return nil
}

func (o *Orchestrator) generateContent(ctx context.Context, st *runState) error {
	res := st.result
	st.types = st.input.ContentTypes
	if len(st.types) == 0 {
		for _, t := range o.policy.ContentTypesFor(st.input.DocumentType) {
			st.types = append(st.types, entities.ContentType(t))
		}
	}

	res.GeneratedContent = make(map[entities.ContentType]entities.GeneratedContent, len(st.types))
	in := ContentInput{
		Analysis:     res.Analysis,
		Research:     res.Research,
		Questions:    res.Questions,
		CompanyName:  st.input.CompanyName,
		DocumentDate: st.input.DocumentDate,
	}
	for _, t := range st.types {
		if err := ctx.Err(); err != nil {
			return err
		}
		gen, err := o.content.Generate(ctx, t, in)
		if err != nil {
			if res.ContentErrors == nil {
				res.ContentErrors = map[entities.ContentType]string{}
			}
			res.ContentErrors[t] = err.Error()
			res.FlagForReview(fmt.Sprintf("Content generation failed: %s", t))
			if o.logger != nil {
				o.logger.Warn("⚠️ Content generation failed",
					zap.String("document_id", res.DocumentID),
					zap.String("content_type", string(t)),
					zap.Error(err),
				)
			}
			continue
		}
		res.GeneratedContent[t] = *gen
	}
	return nil
}

func (o *Orchestrator) verify(_ context.Context, st *runState) error {
	res := st.result
	res.Verification = make(map[entities.ContentType]entities.VerificationResult, len(res.GeneratedContent))
	allowPII := o.policy.Verification.OutputMode == "internal"
	for _, t := range st.types {
		gen, ok := res.GeneratedContent[t]
		if !ok {
			continue
		}
		v := o.verifier.Verify(&gen, o.policy.Verification.MinCitationCoverage, allowPII)
		res.Verification[t] = v
		if !v.Approved {
			res.FlagForReview(reasonVerificationFailed)
		}
	}
	return nil
}

// overallConfidence averages the extraction, analysis and verification scores
// that are present
func overallConfidence(res *entities.DocumentProcessingResult) float64 {
	var scores []float64
	if res.Extraction != nil {
		scores = append(scores, res.Extraction.ConfidenceScore)
	}
	if res.Analysis != nil {
		scores = append(scores, res.Analysis.OverallConfidence)
	}
	for _, v := range res.Verification {
		scores = append(scores, v.FinalConfidence)
	}
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

func (o *Orchestrator) persist(ctx context.Context, res *entities.DocumentProcessingResult) {
	if o.results == nil {
		return
	}
	if err := o.results.Create(ctx, res); err != nil && o.logger != nil {
		o.logger.Error("❌ Failed to persist document result",
			zap.String("document_id", res.DocumentID),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) audit(ctx context.Context, res *entities.DocumentProcessingResult, correlationID string) {
	if o.recorder == nil {
		return
	}
	changes := map[string]interface{}{
		"document_id":        res.DocumentID,
		"status":             string(res.Status),
		"overall_confidence": res.OverallConfidence,
		"processing_time_ms": res.ProcessingTimeMs,
	}
	if res.FailedStage != "" {
		changes["failed_stage"] = string(res.FailedStage)
	}
	entry := entities.NewAuditLogEntry(res.OrgID, correlationID, entities.AuditActionDocumentProcess,
		resourceDocumentResult, res.ID.String(), changes)
	entry.Success = res.Status != entities.ProcessingStatusFailed
	o.recorder.Log(ctx, entry)
}
