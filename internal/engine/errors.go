package engine

import "errors"

// Error taxonomy. Callers wrap these with fmt.Errorf("...: %w", Err...) and
// match with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicateName       = errors.New("duplicate creator name")
	ErrPlatformAPI         = errors.New("platform api error")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrTranscription       = errors.New("transcription failed")
	ErrStorageIO           = errors.New("storage i/o error")
	ErrConfiguration       = errors.New("configuration error")
)
