package fetcher

import (
	"errors"
	"net/http"
	"strings"
)

// FFmpegHint is appended to download failures that mention ffmpeg.
const FFmpegHint = ". Please install FFmpeg and add it to your PATH."

// Kind classifies a failure so the HTTP layer can attribute it to the client
// or to the server.
type Kind int

const (
	// KindUnknown is reported for errors that did not originate in this package.
	KindUnknown Kind = iota
	// KindValidation means a required input was missing or malformed.
	KindValidation
	// KindUnsupportedInput means the URL resolved to something the service does not handle.
	KindUnsupportedInput
	// KindExtraction means the extractor failed.
	KindExtraction
	// KindProcessing means the download finished without a usable result.
	KindProcessing
	// KindFileMissing means the extractor reported a file that is not on disk.
	KindFileMissing
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnsupportedInput:
		return "unsupported_input"
	case KindExtraction:
		return "extraction"
	case KindProcessing:
		return "processing"
	case KindFileMissing:
		return "file_missing"
	default:
		return "unknown"
	}
}

// HTTPStatus maps the kind to a response status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindUnsupportedInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure. Message is safe to return to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation returns a KindValidation error.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// Unsupported returns a KindUnsupportedInput error.
func Unsupported(msg string) *Error {
	return &Error{Kind: KindUnsupportedInput, Message: msg}
}

// Extraction returns a KindExtraction error carrying the extractor's message.
func Extraction(msg string, err error) *Error {
	return &Error{Kind: KindExtraction, Message: msg, Err: err}
}

// Processing returns a KindProcessing error.
func Processing(msg string, err error) *Error {
	return &Error{Kind: KindProcessing, Message: msg, Err: err}
}

// FileMissing returns a KindFileMissing error.
func FileMissing(msg string, err error) *Error {
	return &Error{Kind: KindFileMissing, Message: msg, Err: err}
}

// KindOf returns the kind of err, or KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Status returns the HTTP status code for err.
func Status(err error) int {
	return KindOf(err).HTTPStatus()
}

// WithFFmpegHint appends FFmpegHint when msg mentions ffmpeg in any letter case.
func WithFFmpegHint(msg string) string {
	if strings.Contains(strings.ToLower(msg), "ffmpeg") {
		return msg + FFmpegHint
	}
	return msg
}
