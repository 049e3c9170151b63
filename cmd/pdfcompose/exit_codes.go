package main

import (
	"errors"
	"os"

	pdfcompose "github.com/alnah/go-pdfcompose"
	"github.com/alnah/go-pdfcompose/internal/config"
	"github.com/alnah/go-pdfcompose/internal/fileutil"
)

// Exit codes for the pdfcompose CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess = 0 // Successful composition
	ExitGeneral = 1 // General/unexpected error
	ExitUsage   = 2 // Invalid flags, config, or validation
	ExitIO      = 3 // File not found, permission denied
	ExitBrowser = 4 // Browser/Chrome errors
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Browser errors (exit 4)
	if errors.Is(err, pdfcompose.ErrBrowserConnect) ||
		errors.Is(err, pdfcompose.ErrPageCreate) ||
		errors.Is(err, pdfcompose.ErrPageLoad) ||
		errors.Is(err, pdfcompose.ErrPDFGeneration) ||
		errors.Is(err, pdfcompose.ErrLayoutProbe) ||
		errors.Is(err, pdfcompose.ErrSignaturePlacement) {
		return ExitBrowser
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, fileutil.ErrFileTooLarge) ||
		errors.Is(err, ErrNoInput) ||
		errors.Is(err, ErrReadInput) ||
		errors.Is(err, ErrReadSignature) ||
		errors.Is(err, ErrReadAttachment) ||
		errors.Is(err, ErrWritePDF) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, ErrUsage) ||
		errors.Is(err, ErrInvalidWorkerCount) ||
		errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrInvalidValue) ||
		pdfcompose.IsValidationError(err) {
		return ExitUsage
	}

	return ExitGeneral
}
