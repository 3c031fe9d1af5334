package errors

import "errors"

// Common errors
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInternalError = errors.New("internal server error")
)

// Transcript errors
var (
	ErrRawTranscriptNotFound        = errors.New("raw transcript not found")
	ErrNormalizedTranscriptNotFound = errors.New("normalized transcript not found")
	ErrNotTrainable                 = errors.New("transcript contains non-trainable content")
	ErrObjectStoreNotConfigured     = errors.New("object store not configured")
)

// Extraction errors
var (
	ErrGenerationFailed = errors.New("candidate generation failed")
	ErrNoSegments       = errors.New("normalized transcript has no segments")
)

// Document errors
var (
	ErrStageFailed       = errors.New("processing stage failed")
	ErrCompleterRequired = errors.New("completion capability not configured")
)
