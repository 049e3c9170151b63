// Package pdfcompose renders HTML or Markdown into A4 PDF reports using
// headless Chrome, places a signature block at the true end of the content,
// and appends PDF attachments after the generated pages.
//
// # Quick Start
//
// Create a composer, compose a request, and close when done:
//
//	c := pdfcompose.NewComposer()
//	defer c.Close()
//
//	result, err := c.Compose(ctx, pdfcompose.Request{
//	    Markup:    "<h1>Inspection report</h1><p>...</p>",
//	    Signature: &pdfcompose.Signature{ImageData: pngBase64, LabelText: "Inspector"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("report.pdf", result.PDF, 0644)
//
// # Composition Pipeline
//
//  1. Markdown conversion via goldmark (Format "markdown" only)
//  2. Document preparation: root container, print styles, watermark layer
//  3. Page load in headless Chrome (go-rod), sized to the printable area
//  4. Signature fitting: shrink large images, shrink the signature, insert
//     inline, verify, and fall back to absolute placement on the last page
//  5. PDF export on A4 with the request margins
//  6. Attachment merge via pdfcpu, skipping unreadable or non-PDF files
//
// The signature never ends up alone on a new trailing page: when the last
// page has no room left even after shrinking, it is drawn at the bottom of
// that page instead of in the document flow. Result.Placement reports which
// way it went.
//
// # Attachments
//
// Attachments are appended in order. A file that is not a PDF, cannot be
// parsed, or cannot be merged is skipped and reported in Result.Attachments;
// the other files are still merged. If the generated report itself cannot be
// reopened, the report is returned without attachments and
// Result.MergeDegraded is set.
//
// # Parallel Processing
//
// For servers, use ComposerPool to manage multiple browser instances:
//
//	pool := pdfcompose.NewComposerPool(pdfcompose.ResolvePoolSize(0))
//	defer pool.Close()
//
//	c, err := pool.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Release(c)
//	result, err := c.Compose(ctx, req)
//
// # Browser Requirements
//
// PDF generation requires Chrome/Chromium. The go-rod library automatically
// downloads a managed Chromium instance on first run (~/.cache/rod/browser/).
//
// For containers and CI environments, set ROD_NO_SANDBOX=1 to disable the
// Chrome sandbox. Use ROD_BROWSER_BIN to specify a custom Chrome binary.
package pdfcompose
