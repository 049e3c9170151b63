package main

// Notes:
// - exitCodeFor: we test the sentinels from the library, config and CLI,
//   plus wrapped errors to verify the errors.Is() chain works.
// These are acceptable gaps: we test observable behavior, not implementation details.

import (
	"errors"
	"fmt"
	"os"
	"testing"

	pdfcompose "github.com/alnah/go-pdfcompose"
	"github.com/alnah/go-pdfcompose/internal/config"
	"github.com/alnah/go-pdfcompose/internal/fileutil"
)

// ---------------------------------------------------------------------------
// TestExitCodeFor - Error to exit code mapping
// ---------------------------------------------------------------------------

func TestExitCodeFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error", nil, ExitSuccess},

		// Browser errors (exit 4)
		{"browser connect", pdfcompose.ErrBrowserConnect, ExitBrowser},
		{"page create", pdfcompose.ErrPageCreate, ExitBrowser},
		{"page load", pdfcompose.ErrPageLoad, ExitBrowser},
		{"pdf generation", pdfcompose.ErrPDFGeneration, ExitBrowser},
		{"layout probe", fmt.Errorf("placing signature: %w", pdfcompose.ErrLayoutProbe), ExitBrowser},
		{"signature placement", pdfcompose.ErrSignaturePlacement, ExitBrowser},

		// I/O errors (exit 3)
		{"file not exist", os.ErrNotExist, ExitIO},
		{"permission denied", os.ErrPermission, ExitIO},
		{"file too large", fileutil.ErrFileTooLarge, ExitIO},
		{"no input", ErrNoInput, ExitIO},
		{"read input", ErrReadInput, ExitIO},
		{"read signature", fmt.Errorf("%w: sig.png", ErrReadSignature), ExitIO},
		{"read attachment", ErrReadAttachment, ExitIO},
		{"write pdf", ErrWritePDF, ExitIO},

		// Usage/config/validation errors (exit 2)
		{"usage", fmt.Errorf("%w: unknown flag --nope", ErrUsage), ExitUsage},
		{"worker count", ErrInvalidWorkerCount, ExitUsage},
		{"config not found", config.ErrConfigNotFound, ExitUsage},
		{"config parse", config.ErrConfigParse, ExitUsage},
		{"field too long", config.ErrFieldTooLong, ExitUsage},
		{"config value", config.ErrInvalidValue, ExitUsage},
		{"empty markup", pdfcompose.ErrEmptyMarkup, ExitUsage},
		{"invalid margin", pdfcompose.ErrInvalidMargin, ExitUsage},
		{"invalid watermark", pdfcompose.ErrInvalidWatermark, ExitUsage},
		{"invalid signature", pdfcompose.ErrInvalidSignatureImage, ExitUsage},

		// General (exit 1)
		{"unknown error", errors.New("boom"), ExitGeneral},
		{"pool closed", pdfcompose.ErrComposerClosed, ExitGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestExitCodes_Conventions(t *testing.T) {
	t.Parallel()

	if ExitSuccess != 0 || ExitGeneral != 1 || ExitUsage != 2 {
		t.Error("exit codes must follow Unix conventions")
	}
	for _, code := range []int{ExitIO, ExitBrowser} {
		if code >= 126 {
			t.Errorf("exit code %d collides with shell-reserved codes", code)
		}
	}
}
