package entities

import "errors"

// Domain errors
var (
	// Transcript errors
	ErrEmptyTranscript    = errors.New("transcript text is empty")
	ErrInvalidConfidence  = errors.New("confidence must be between 0 and 1")
	ErrInvalidSegmentTime = errors.New("segment end precedes start")

	// Extraction errors
	ErrInvalidStateTransition = errors.New("invalid extraction state transition")
	ErrUnknownQAGoal          = errors.New("unknown qa goal")

	// Document errors
	ErrEmptyDocument       = errors.New("document content is empty")
	ErrUnsupportedMimeType = errors.New("unsupported mime type")

	// Generic errors
	ErrInvalidRequest = errors.New("invalid request")
)
