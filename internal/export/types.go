// Package export renders board reports as PDF or DOCX.
package export

import "errors"

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Request contains parameters for an export operation
type Request struct {
	BoardID string
	Format  Format
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
