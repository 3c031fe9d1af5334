package entities

import (
	"time"

	"github.com/google/uuid"
)

// ProcessingStage is a step of the document pipeline
type ProcessingStage string

const (
	StageUpload             ProcessingStage = "upload"
	StageExtraction         ProcessingStage = "extraction"
	StageAnalysis           ProcessingStage = "analysis"
	StageResearch           ProcessingStage = "research"
	StageQuestionGeneration ProcessingStage = "question_generation"
	StageContentGeneration  ProcessingStage = "content_generation"
	StageVerification       ProcessingStage = "verification"
	StageComplete           ProcessingStage = "complete"
	StageFailed             ProcessingStage = "failed"
)

// ProcessingStatus is the overall status of a document run
type ProcessingStatus string

const (
	ProcessingStatusPending        ProcessingStatus = "pending"
	ProcessingStatusProcessing     ProcessingStatus = "processing"
	ProcessingStatusCompleted      ProcessingStatus = "completed"
	ProcessingStatusFailed         ProcessingStatus = "failed"
	ProcessingStatusRequiresReview ProcessingStatus = "requires_review"
)

// ---- Extraction ----

// DocumentEntityType is the category of a structured value found in document text
type DocumentEntityType string

const (
	DocumentEntityMoney      DocumentEntityType = "money"
	DocumentEntityPercentage DocumentEntityType = "percentage"
	DocumentEntityEmail      DocumentEntityType = "email"
	DocumentEntityURL        DocumentEntityType = "url"
	DocumentEntityDate       DocumentEntityType = "date"
)

type ExtractedEntity struct {
	Type           DocumentEntityType `json:"type"`
	Value          string             `json:"value"`
	SourceLocation string             `json:"source_location"`
	Confidence     float64            `json:"confidence"`
	Context        string             `json:"context,omitempty"`
}

type ExtractedTable struct {
	Location   string     `json:"location"`
	Headers    []string   `json:"headers"`
	Rows       [][]string `json:"rows"`
	Confidence float64    `json:"confidence"`
	Malformed  bool       `json:"malformed"`
}

type Ambiguity struct {
	Location string `json:"location"`
	Issue    string `json:"issue"`
	RawText  string `json:"raw_text,omitempty"`
}

// ExtractionResult is the output of the extraction stage
type ExtractionResult struct {
	ExtractedText     string                 `json:"extracted_text"`
	TextLength        int                    `json:"text_length"`
	Entities          []ExtractedEntity      `json:"entities"`
	Tables            []ExtractedTable       `json:"tables"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	ConfidenceScore   float64                `json:"confidence_score"`
	Ambiguities       []Ambiguity            `json:"ambiguities"`
	CorruptedSections []string               `json:"corrupted_sections"`
	SourceHash        string                 `json:"source_hash"`
	ExtractorVersion  string                 `json:"extractor_version"`
	ExtractionMethod  string                 `json:"extraction_method"`
	DetectedMimeType  string                 `json:"detected_mime_type"`
}

// ---- Analysis ----

// DocumentClassification is the detailed document class assigned by analysis
type DocumentClassification string

const (
	ClassificationPitchDeckPreSeed         DocumentClassification = "pitch_deck_pre_seed"
	ClassificationPitchDeckSeed            DocumentClassification = "pitch_deck_seed"
	ClassificationPitchDeckSeriesA         DocumentClassification = "pitch_deck_series_a"
	ClassificationPitchDeckSeriesBPlus     DocumentClassification = "pitch_deck_series_b_plus"
	ClassificationFinancialReportQuarterly DocumentClassification = "financial_report_quarterly"
	ClassificationFinancialReportAnnual    DocumentClassification = "financial_report_annual"
	ClassificationLegalTermSheet           DocumentClassification = "legal_term_sheet"
	ClassificationLegalContract            DocumentClassification = "legal_contract"
	ClassificationMeetingNotes             DocumentClassification = "meeting_notes"
	ClassificationMarketResearch           DocumentClassification = "market_research"
	ClassificationCompetitorAnalysis       DocumentClassification = "competitor_analysis"
	ClassificationOther                    DocumentClassification = "other"
)

// ParseClassification maps unknown values to ClassificationOther
func ParseClassification(s string) DocumentClassification {
	switch c := DocumentClassification(s); c {
	case ClassificationPitchDeckPreSeed, ClassificationPitchDeckSeed, ClassificationPitchDeckSeriesA,
		ClassificationPitchDeckSeriesBPlus, ClassificationFinancialReportQuarterly,
		ClassificationFinancialReportAnnual, ClassificationLegalTermSheet, ClassificationLegalContract,
		ClassificationMeetingNotes, ClassificationMarketResearch, ClassificationCompetitorAnalysis:
		return c
	default:
		return ClassificationOther
	}
}

type MetricValue struct {
	Value          string  `json:"value"`
	Unit           string  `json:"unit,omitempty"`
	SourceCitation string  `json:"source_citation"`
	Confidence     float64 `json:"confidence"`
	Note           string  `json:"note,omitempty"`
	Stated         bool    `json:"stated"`
}

type Insight struct {
	Claim              string   `json:"claim"`
	Category           string   `json:"category"`
	SupportingEvidence []string `json:"supporting_evidence"`
	Confidence         float64  `json:"confidence"`
	StatedVsImplied    string   `json:"stated_vs_implied"`
}

// IsStated reports whether the insight was explicitly stated in the document
func (i Insight) IsStated() bool {
	return i.StatedVsImplied == "stated"
}

type Gap struct {
	Metric     string `json:"metric"`
	Importance string `json:"importance"`
	Note       string `json:"note"`
}

// AnalysisResult is the output of the analysis stage
type AnalysisResult struct {
	Classification           DocumentClassification `json:"classification"`
	ClassificationConfidence float64                `json:"classification_confidence"`
	KeyMetrics               map[string]MetricValue `json:"key_metrics"`
	Insights                 []Insight              `json:"insights"`
	RisksIdentified          []Insight              `json:"risks_identified"`
	OpportunitiesIdentified  []Insight              `json:"opportunities_identified"`
	ConfidenceBreakdown      map[string]float64     `json:"confidence_breakdown"`
	OverallConfidence        float64                `json:"overall_confidence"`
	DataCompleteness         float64                `json:"data_completeness"`
	InternalConsistency      bool                   `json:"internal_consistency"`
	Inconsistencies          []string               `json:"inconsistencies"`
	Gaps                     []Gap                  `json:"gaps"`
	RequiresHumanReview      bool                   `json:"requires_human_review"`
	ReviewReason             string                 `json:"review_reason,omitempty"`
	AnalyzerVersion          string                 `json:"analyzer_version"`
	AnalyzerModel            string                 `json:"analyzer_model"`
	ExtractionConfidence     float64                `json:"extraction_confidence"`
}

// ---- Research ----

// ClaimStatus is the outcome of verifying one claim against public sources
type ClaimStatus string

const (
	ClaimConfirmed    ClaimStatus = "confirmed"
	ClaimContradicted ClaimStatus = "contradicted"
	ClaimNotFound     ClaimStatus = "not_found"
	ClaimUncertain    ClaimStatus = "uncertain"
)

type PublicSource struct {
	URL            string  `json:"url"`
	Title          string  `json:"title"`
	Reliability    string  `json:"reliability"`
	Excerpt        string  `json:"excerpt,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
}

type Discrepancy struct {
	ClaimFromDocument   string         `json:"claim_from_document"`
	FindingFromResearch string         `json:"finding_from_research"`
	Severity            string         `json:"severity"`
	Sources             []PublicSource `json:"sources"`
}

// ResearchResult is the verification outcome of one claim
type ResearchResult struct {
	Claim                string                 `json:"claim"`
	ClaimSource          string                 `json:"claim_source"`
	Status               ClaimStatus            `json:"verification_status"`
	PublicSources        []PublicSource         `json:"public_sources"`
	SourceCount          int                    `json:"source_count"`
	Discrepancies        []Discrepancy          `json:"discrepancies"`
	AdditionalContext    map[string]interface{} `json:"additional_context,omitempty"`
	ConfidenceAdjustment float64                `json:"confidence_adjustment"`
}

// ---- Questions ----

type QuestionPriority string

const (
	QuestionPriorityCritical QuestionPriority = "critical"
	QuestionPriorityHigh     QuestionPriority = "high"
	QuestionPriorityMedium   QuestionPriority = "medium"
	QuestionPriorityLow      QuestionPriority = "low"
)

type QuestionCategory string

const (
	QuestionCategoryFinancial   QuestionCategory = "financial"
	QuestionCategoryTechnical   QuestionCategory = "technical"
	QuestionCategoryTeam        QuestionCategory = "team"
	QuestionCategoryMarket      QuestionCategory = "market"
	QuestionCategoryLegal       QuestionCategory = "legal"
	QuestionCategoryProduct     QuestionCategory = "product"
	QuestionCategoryCompetitive QuestionCategory = "competitive"
	QuestionCategoryOperational QuestionCategory = "operational"
)

type Question struct {
	Question         string           `json:"question"`
	Category         QuestionCategory `json:"category"`
	Priority         QuestionPriority `json:"priority"`
	TriggeredBy      string           `json:"triggered_by"`
	RiskCategory     string           `json:"risk_category,omitempty"`
	SuggestedSources []string         `json:"suggested_sources"`
	Context          string           `json:"context,omitempty"`
}

// QuestionSet buckets generated questions by priority
type QuestionSet struct {
	Critical       []Question `json:"critical"`
	HighPriority   []Question `json:"high_priority"`
	MediumPriority []Question `json:"medium_priority"`
	LowPriority    []Question `json:"low_priority"`
	TotalCount     int        `json:"total_count"`
}

// Add places q in the bucket for its priority
func (s *QuestionSet) Add(q Question) {
	switch q.Priority {
	case QuestionPriorityCritical:
		s.Critical = append(s.Critical, q)
	case QuestionPriorityHigh:
		s.HighPriority = append(s.HighPriority, q)
	case QuestionPriorityMedium:
		s.MediumPriority = append(s.MediumPriority, q)
	default:
		s.LowPriority = append(s.LowPriority, q)
	}
	s.TotalCount++
}

// ---- Content ----

// ContentType names a generated report
type ContentType string

const (
	ContentDueDiligence        ContentType = "due_diligence"
	ContentSWOTAnalysis        ContentType = "swot_analysis"
	ContentCompetitiveAnalysis ContentType = "competitive_analysis"
	ContentInvestmentMemo      ContentType = "investment_memo"
	ContentExecutiveSummary    ContentType = "executive_summary"
	ContentRiskAssessment      ContentType = "risk_assessment"
	ContentMarketAnalysis      ContentType = "market_analysis"
	ContentFinancialSummary    ContentType = "financial_summary"
)

type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

type Citation struct {
	RefID      string `json:"ref_id"`
	SourceType string `json:"source_type"`
	SourceText string `json:"source_text"`
	URL        string `json:"url,omitempty"`
}

// GeneratedContent is one markdown report produced by the content stage
type GeneratedContent struct {
	ContentType      ContentType     `json:"content_type"`
	Title            string          `json:"title"`
	ContentMarkdown  string          `json:"content_markdown"`
	Citations        []Citation      `json:"citations"`
	CitationCoverage float64         `json:"citation_coverage"`
	ConfidenceLevel  ConfidenceLevel `json:"confidence_level"`
	RequiresReview   bool            `json:"requires_review"`
	Disclaimer       string          `json:"disclaimer"`
	WordCount        int             `json:"word_count"`
	GeneratorVersion string          `json:"generator_version"`
}

// ---- Verification ----

type VerificationStatus string

const (
	VerificationApproved       VerificationStatus = "approved"
	VerificationRejected       VerificationStatus = "rejected"
	VerificationRequiresReview VerificationStatus = "requires_review"
)

type VerificationSeverity string

const (
	SeverityCritical VerificationSeverity = "critical"
	SeverityHigh     VerificationSeverity = "high"
	SeverityMedium   VerificationSeverity = "medium"
	SeverityLow      VerificationSeverity = "low"
)

type VerificationIssue struct {
	IssueType   string               `json:"issue_type"`
	Severity    VerificationSeverity `json:"severity"`
	Description string               `json:"description"`
	Location    string               `json:"location,omitempty"`
	Suggestion  string               `json:"suggestion,omitempty"`
}

// VerificationResult is the quality gate outcome for one generated report
type VerificationResult struct {
	Status                 VerificationStatus  `json:"status"`
	Approved               bool                `json:"approved"`
	Issues                 []VerificationIssue `json:"issues"`
	CriticalIssues         int                 `json:"critical_issues"`
	HighIssues             int                 `json:"high_issues"`
	MediumIssues           int                 `json:"medium_issues"`
	LowIssues              int                 `json:"low_issues"`
	CitationCoverageActual float64             `json:"citation_coverage_actual"`
	PIIDetected            bool                `json:"pii_detected"`
	HallucinationDetected  bool                `json:"hallucination_detected"`
	FormatValid            bool                `json:"format_valid"`
	FinalConfidence        float64             `json:"final_confidence"`
	Recommendations        []string            `json:"recommendations"`
	VerifierVersion        string              `json:"verifier_version"`
}

// ---- Aggregate ----

// DocumentProcessingResult aggregates every stage output of one document run
type DocumentProcessingResult struct {
	ID                  uuid.UUID                          `json:"id" gorm:"type:uuid;primaryKey"`
	OrgID               uuid.UUID                          `json:"org_id" gorm:"type:uuid;index"`
	DocumentID          string                             `json:"document_id" gorm:"type:varchar(32);not null;index"`
	Filename            string                             `json:"filename" gorm:"type:varchar(500)"`
	DocumentType        string                             `json:"document_type" gorm:"type:varchar(100)"`
	CurrentStage        ProcessingStage                    `json:"current_stage" gorm:"type:varchar(50);not null"`
	Status              ProcessingStatus                   `json:"status" gorm:"type:varchar(50);not null;index"`
	Extraction          *ExtractionResult                  `json:"extraction,omitempty" gorm:"type:jsonb;serializer:json"`
	Analysis            *AnalysisResult                    `json:"analysis,omitempty" gorm:"type:jsonb;serializer:json"`
	Research            []ResearchResult                   `json:"research,omitempty" gorm:"type:jsonb;serializer:json"`
	Questions           *QuestionSet                       `json:"questions,omitempty" gorm:"type:jsonb;serializer:json"`
	GeneratedContent    map[ContentType]GeneratedContent   `json:"generated_content,omitempty" gorm:"type:jsonb;serializer:json"`
	ContentErrors       map[ContentType]string             `json:"content_errors,omitempty" gorm:"type:jsonb;serializer:json"`
	Verification        map[ContentType]VerificationResult `json:"verification,omitempty" gorm:"type:jsonb;serializer:json"`
	OverallConfidence   float64                            `json:"overall_confidence"`
	RequiresHumanReview bool                               `json:"requires_human_review"`
	ReviewReason        string                             `json:"review_reason,omitempty" gorm:"type:text"`
	ProcessingTimeMs    int64                              `json:"processing_time_ms"`
	StartedAt           time.Time                          `json:"started_at"`
	CompletedAt         *time.Time                         `json:"completed_at,omitempty"`
	ErrorMessage        string                             `json:"error_message,omitempty" gorm:"type:text"`
	FailedStage         ProcessingStage                    `json:"failed_stage,omitempty" gorm:"type:varchar(50)"`
	ArchiveKey          string                             `json:"archive_key,omitempty" gorm:"type:varchar(500)"`
}

// TableName specifies the table name for GORM
func (DocumentProcessingResult) TableName() string {
	return "document_results"
}

// NewDocumentProcessingResult starts a run at the upload stage
func NewDocumentProcessingResult(orgID uuid.UUID, documentID, filename, documentType string) *DocumentProcessingResult {
	return &DocumentProcessingResult{
		ID:           uuid.New(),
		OrgID:        orgID,
		DocumentID:   documentID,
		Filename:     filename,
		DocumentType: documentType,
		CurrentStage: StageUpload,
		Status:       ProcessingStatusProcessing,
		StartedAt:    time.Now().UTC(),
	}
}

// FlagForReview sets the review flag. The first reason recorded is kept.
func (r *DocumentProcessingResult) FlagForReview(reason string) {
	r.RequiresHumanReview = true
	if r.ReviewReason == "" {
		r.ReviewReason = reason
	}
}

// Fail moves the run into the absorbing FAILED state
func (r *DocumentProcessingResult) Fail(stage ProcessingStage, err error) {
	r.Status = ProcessingStatusFailed
	r.FailedStage = stage
	r.CurrentStage = StageFailed
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Finish stamps completion timing
func (r *DocumentProcessingResult) Finish() {
	now := time.Now().UTC()
	r.CompletedAt = &now
	r.ProcessingTimeMs = now.Sub(r.StartedAt).Milliseconds()
}
