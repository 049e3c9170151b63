package merge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var errEmptyPDF = errors.New("empty document")

// pdfcpu otherwise creates a config directory under the user's home on
// first use, which fails in read-only containers.
var disableConfigDir sync.Once

// PDFCPUBackend implements Backend with pdfcpu.
type PDFCPUBackend struct{}

// Compile-time interface check.
var _ Backend = (*PDFCPUBackend)(nil)

// NewPDFCPUBackend returns a Backend using pdfcpu with relaxed validation, so
// that attachments produced by lenient writers still merge.
func NewPDFCPUBackend() *PDFCPUBackend {
	disableConfigDir.Do(api.DisableConfigDir)
	return &PDFCPUBackend{}
}

func (b *PDFCPUBackend) config() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// PageCount reads, validates and counts the pages of data.
func (b *PDFCPUBackend) PageCount(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, errEmptyPDF
	}

	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), b.config())
	if err != nil {
		return 0, err
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return 0, fmt.Errorf("counting pages: %w", err)
	}
	return ctx.PageCount, nil
}

// Append merges src after dst and returns the written document.
func (b *PDFCPUBackend) Append(dst, src []byte) ([]byte, error) {
	readers := []io.ReadSeeker{bytes.NewReader(dst), bytes.NewReader(src)}

	var out bytes.Buffer
	if err := api.MergeRaw(readers, &out, false, b.config()); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
