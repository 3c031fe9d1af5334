package ai

import (
	"context"
	"fmt"
	"os"

	aai "github.com/AssemblyAI/assemblyai-go-sdk"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	"github.com/johnquangdev/meeting-intelligence/pkg/config"
)

// AssemblyAIProvider is the source provider name stamped on imported transcripts
const AssemblyAIProvider = "assemblyai"

// AssemblyAISource turns finished AssemblyAI transcripts into Layer 1 input
type AssemblyAISource struct {
	client *aai.Client
	logger *zap.Logger
}

// NewAssemblyAISource creates a source using the provided config.
// If cfg is nil, falls back to environment variables.
func NewAssemblyAISource(cfg *config.AssemblyAIConfig, logger *zap.Logger) *AssemblyAISource {
	var apiKey string
	if cfg != nil {
		apiKey = cfg.APIKey
	}
	if apiKey == "" {
		apiKey = os.Getenv("ASSEMBLYAI_API_KEY")
	}
	return &AssemblyAISource{client: aai.NewClient(apiKey), logger: logger}
}

// NewAssemblyAISourceWithClient wraps an existing SDK client
func NewAssemblyAISourceWithClient(client *aai.Client, logger *zap.Logger) *AssemblyAISource {
	return &AssemblyAISource{client: client, logger: logger}
}

// Fetch retrieves a completed transcript and maps its utterances to raw segments.
// Timestamps are converted from milliseconds to seconds and speaker labels
// are prefixed so "A" becomes "SPEAKER_A".
func (s *AssemblyAISource) Fetch(ctx context.Context, orgID uuid.UUID, transcriptID string) (*entities.RawTranscriptInput, error) {
	transcript, err := s.client.Transcripts.Get(ctx, transcriptID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transcript: %w", err)
	}

	switch transcript.Status {
	case aai.TranscriptStatusCompleted:
	case aai.TranscriptStatusError:
		msg := "transcription failed"
		if transcript.Error != nil {
			msg = *transcript.Error
		}
		return nil, fmt.Errorf("assemblyai transcript %s: %s", transcriptID, msg)
	default:
		return nil, fmt.Errorf("assemblyai transcript %s not ready: status %s", transcriptID, transcript.Status)
	}

	in := &entities.RawTranscriptInput{
		OrgID:          orgID,
		ArtifactID:     transcriptID,
		Language:       string(transcript.LanguageCode),
		SourceProvider: AssemblyAIProvider,
		SourceMetadata: map[string]interface{}{"transcript_id": transcriptID},
	}
	if transcript.Text != nil {
		in.Text = *transcript.Text
	}
	if transcript.Confidence != nil {
		in.Confidence = *transcript.Confidence
	}
	if transcript.AudioDuration != nil {
		in.SourceMetadata["audio_duration_seconds"] = float64(*transcript.AudioDuration)
	}

	in.Segments = make([]entities.RawSegment, 0, len(transcript.Utterances))
	for _, utt := range transcript.Utterances {
		seg := entities.RawSegment{}
		if utt.Text != nil {
			seg.Text = *utt.Text
		}
		if utt.Speaker != nil {
			seg.SpeakerID = "SPEAKER_" + *utt.Speaker
		}
		if utt.Start != nil {
			start := float64(*utt.Start) / 1000.0
			seg.Start = &start
		}
		if utt.End != nil {
			end := float64(*utt.End) / 1000.0
			seg.End = &end
		}
		if utt.Confidence != nil {
			seg.Confidence = *utt.Confidence
		}
		in.Segments = append(in.Segments, seg)
	}

	if s.logger != nil {
		s.logger.Info("✅ Fetched transcript from AssemblyAI",
			zap.String("transcript_id", transcriptID),
			zap.Int("utterances", len(in.Segments)),
			zap.Int("text_length", len(in.Text)),
		)
	}
	return in, nil
}
