// Package export renders invoices and share cards and plans how a share card
// reaches the user's device.
package export

import (
	"context"
	"errors"
	"time"
)

// Error codes for render failures.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeRenderFailed  = "RENDER_FAILED"
	ErrCodeRenderTimeout = "RENDER_TIMEOUT"
)

// RenderError is returned by renderers and carries one of the ErrCode values.
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// NewRenderError creates a RenderError.
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{Code: code, Message: message, Cause: cause}
}

// RenderErrorCode returns the code of a RenderError in err's chain, or "".
func RenderErrorCode(err error) string {
	var re *RenderError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// RenderResult is a rendered invoice.
type RenderResult struct {
	PDF      []byte
	Width    int
	Height   int
	Duration time.Duration
}

// PDFRenderer turns an HTML document into a single-page PDF built from a
// bitmap of the page.
type PDFRenderer interface {
	RenderPDF(ctx context.Context, html string) (*RenderResult, error)
	Close() error
}

// Artifact is a file produced by an export.
type Artifact struct {
	FileName    string
	ContentType string
	Data        []byte
}
