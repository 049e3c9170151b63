package server

// Notes:
// - The composer is faked: these tests cover HTTP parsing, defaults, error
//   mapping and headers. Rendering is covered by the root package tests and
//   the Chrome integration tests.
// - PoolComposer is only exercised against a closed pool; acquiring a live
//   composer would start a browser.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	pdfcompose "github.com/alnah/go-pdfcompose"
	"github.com/alnah/go-pdfcompose/internal/merge"
)

// ---------------------------------------------------------------------------
// Fakes and helpers
// ---------------------------------------------------------------------------

type fakeComposer struct {
	mu     sync.Mutex
	calls  int
	last   pdfcompose.Request
	result *pdfcompose.Result
	err    error
	panics bool
}

func (f *fakeComposer) Compose(ctx context.Context, req pdfcompose.Request) (*pdfcompose.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = req
	if f.panics {
		panic("composer exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &pdfcompose.Result{PDF: []byte("%PDF-1.7 fake")}, nil
}

type part struct {
	field       string
	filename    string // empty = plain field
	contentType string
	data        string
}

func multipartBody(t *testing.T, parts ...part) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		if p.filename == "" {
			if err := mw.WriteField(p.field, p.data); err != nil {
				t.Fatalf("WriteField: %v", err)
			}
			continue
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.filename))
		ct := p.contentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		w, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		if _, err := io.WriteString(w, p.data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func newTestServer(c Composer, cfg Config) (*Server, *bytes.Buffer) {
	var logs bytes.Buffer
	cfg.Logger = log.New(&logs, "", 0)
	return New(c, cfg), &logs
}

func postCompose(t *testing.T, s *Server, parts ...part) *httptest.ResponseRecorder {
	t.Helper()

	body, ct := multipartBody(t, parts...)
	req := httptest.NewRequest(http.MethodPost, "/v1/compose", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", ct)
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body %q: %v", rec.Body.String(), err)
	}
	return body
}

const pngDataURL = "data:image/png;base64,iVBORw0KGgo="

// ---------------------------------------------------------------------------
// TestHealth
// ---------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	t.Parallel()

	s, logs := newTestServer(&fakeComposer{}, Config{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %q, want status ok", rec.Body.String())
	}
	if _, err := uuid.Parse(rec.Header().Get(HeaderRequestID)); err != nil {
		t.Errorf("X-Request-ID %q is not a UUID", rec.Header().Get(HeaderRequestID))
	}
	if !strings.Contains(logs.String(), "[server]") || !strings.Contains(logs.String(), "GET /healthz 200") {
		t.Errorf("access log missing, got %q", logs.String())
	}
}

// ---------------------------------------------------------------------------
// TestRequestID
// ---------------------------------------------------------------------------

func TestRequestID(t *testing.T) {
	t.Parallel()

	upstream := uuid.NewString()

	tests := []struct {
		name     string
		incoming string
		wantSame bool
	}{
		{"uuid from proxy is kept", upstream, true},
		{"non-uuid is replaced", "abc; drop table", false},
		{"missing is generated", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, _ := newTestServer(&fakeComposer{}, Config{})
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			if tt.incoming != "" {
				req.Header.Set(HeaderRequestID, tt.incoming)
			}
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			got := rec.Header().Get(HeaderRequestID)
			if tt.wantSame && got != tt.incoming {
				t.Errorf("X-Request-ID = %q, want %q", got, tt.incoming)
			}
			if !tt.wantSame {
				if got == tt.incoming {
					t.Errorf("X-Request-ID %q should have been replaced", got)
				}
				if _, err := uuid.Parse(got); err != nil {
					t.Errorf("X-Request-ID %q is not a UUID", got)
				}
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestCompose_Success
// ---------------------------------------------------------------------------

func TestCompose_Success(t *testing.T) {
	t.Parallel()

	fc := &fakeComposer{result: &pdfcompose.Result{
		PDF:       []byte("%PDF-1.7 composed"),
		Placement: &pdfcompose.SignaturePlacement{Mode: pdfcompose.PlacementAbsolute},
		Attachments: []pdfcompose.AttachmentOutcome{
			{Filename: "annex.pdf", Pages: 2},
			{Filename: "notes.txt", Skipped: true, Reason: "not a PDF"},
		},
	}}
	s, _ := newTestServer(fc, Config{})

	rec := postCompose(t, s,
		part{field: "markup", data: "<h1>Report</h1><p>Body</p>"},
		part{field: "title", data: "Inspection"},
		part{field: "signature", data: pngDataURL},
		part{field: "signature_label", data: "Inspector"},
		part{field: "margin_top", data: "10"},
		part{field: "attachments", filename: "annex.pdf", data: "%PDF-1.4 annex"},
		part{field: "attachments", filename: "notes.txt", contentType: "text/plain", data: "notes"},
	)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Errorf("Content-Type = %q, want application/pdf", got)
	}
	if rec.Body.String() != "%PDF-1.7 composed" {
		t.Errorf("body = %q", rec.Body.String())
	}

	headers := map[string]string{
		HeaderSignatureMode:      "absolute",
		HeaderAttachmentsMerged:  "1",
		HeaderAttachmentsSkipped: "1",
	}
	for k, want := range headers {
		if got := rec.Header().Get(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
	if rec.Header().Get(HeaderMergeDegraded) != "" {
		t.Error("X-Merge-Degraded set on a clean merge")
	}

	req := fc.last
	if req.Markup != "<h1>Report</h1><p>Body</p>" || req.Title != "Inspection" {
		t.Errorf("request markup/title = %q/%q", req.Markup, req.Title)
	}
	if req.Signature == nil || req.Signature.ImageData != pngDataURL || req.Signature.LabelText != "Inspector" {
		t.Errorf("signature = %+v", req.Signature)
	}
	if req.Margins == nil || req.Margins.Top != 10 || req.Margins.Bottom != pdfcompose.DefaultMargins().Bottom {
		t.Errorf("margins = %+v, want top 10 and default bottom", req.Margins)
	}
	if len(req.Attachments) != 2 {
		t.Fatalf("attachments = %d, want 2", len(req.Attachments))
	}
	if req.Attachments[0].Filename != "annex.pdf" || req.Attachments[0].MIMEType != "application/octet-stream" {
		t.Errorf("first attachment = %q %q, want annex.pdf application/octet-stream", req.Attachments[0].Filename, req.Attachments[0].MIMEType)
	}
	if req.Attachments[1].MIMEType != "text/plain" {
		t.Errorf("second attachment MIME = %q, want text/plain", req.Attachments[1].MIMEType)
	}
}

func TestCompose_AttachmentTypeIsDeclared(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		filename      string
		contentType   string
		wantMIME      string
		wantMergeable bool
	}{
		{"pdf bytes without pdf name or type", "scan", "application/octet-stream", "application/octet-stream", false},
		{"pdf name with octet-stream", "scan.pdf", "application/octet-stream", "application/octet-stream", true},
		{"declared pdf without extension", "scan", "application/pdf", "application/pdf", true},
		{"image named like a pdf", "photo.png", "image/png", "image/png", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fc := &fakeComposer{}
			s, _ := newTestServer(fc, Config{})

			rec := postCompose(t, s,
				part{field: "markup", data: "<p>x</p>"},
				part{field: "attachments", filename: tt.filename, contentType: tt.contentType, data: "%PDF-1.4\n%\xe2\xe3\n"},
			)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
			}
			if len(fc.last.Attachments) != 1 {
				t.Fatalf("attachments = %d, want 1", len(fc.last.Attachments))
			}
			a := fc.last.Attachments[0]
			if a.MIMEType != tt.wantMIME {
				t.Errorf("MIMEType = %q, want %q", a.MIMEType, tt.wantMIME)
			}
			got := merge.IsMergeable(merge.Attachment{Data: a.Data, Filename: a.Filename, MIMEType: a.MIMEType})
			if got != tt.wantMergeable {
				t.Errorf("IsMergeable = %v, want %v", got, tt.wantMergeable)
			}
		})
	}
}

func TestCompose_NoSignatureReportsNone(t *testing.T) {
	t.Parallel()

	fc := &fakeComposer{}
	s, _ := newTestServer(fc, Config{})

	rec := postCompose(t, s, part{field: "markup", data: "<p>x</p>"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get(HeaderSignatureMode); got != "none" {
		t.Errorf("X-Signature-Mode = %q, want none", got)
	}
	if fc.last.Margins != nil {
		t.Errorf("margins = %+v, want nil (library defaults)", fc.last.Margins)
	}
}

func TestCompose_MarkdownFileUpload(t *testing.T) {
	t.Parallel()

	fc := &fakeComposer{}
	s, _ := newTestServer(fc, Config{})

	rec := postCompose(t, s, part{field: "markup", filename: "report.md", data: "# Title"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	if fc.last.Markup != "# Title" || fc.last.Format != pdfcompose.FormatMarkdown {
		t.Errorf("request = %q/%q, want markdown file contents", fc.last.Markup, fc.last.Format)
	}
}

func TestCompose_SignatureFileUpload(t *testing.T) {
	t.Parallel()

	fc := &fakeComposer{}
	s, _ := newTestServer(fc, Config{SignatureLabel: "Approved by"})

	png := "\x89PNG\r\n\x1a\n0000"
	rec := postCompose(t, s,
		part{field: "markup", data: "<p>x</p>"},
		part{field: "signature", filename: "sig.png", data: png},
	)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	sig := fc.last.Signature
	if sig == nil || !strings.HasPrefix(sig.ImageData, "data:image/png;base64,") {
		t.Fatalf("signature = %+v, want PNG data URL", sig)
	}
	if sig.LabelText != "Approved by" {
		t.Errorf("label = %q, want server default", sig.LabelText)
	}
}

func TestCompose_ServerDefaults(t *testing.T) {
	t.Parallel()

	fc := &fakeComposer{}
	s, _ := newTestServer(fc, Config{
		Watermark: &pdfcompose.Watermark{Text: "DRAFT", Color: "#ff0000", Opacity: 0.2},
		Margins:   &pdfcompose.Margins{Top: 15, Bottom: 15, Left: 10, Right: 10},
	})

	rec := postCompose(t, s,
		part{field: "markup", data: "<p>x</p>"},
		part{field: "watermark", data: "COPY"},
		part{field: "margin_left", data: "20"},
	)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	wm := fc.last.Watermark
	if wm == nil || wm.Text != "COPY" || wm.Color != "#ff0000" || wm.Opacity != 0.2 {
		t.Errorf("watermark = %+v, want COPY over server defaults", wm)
	}
	m := fc.last.Margins
	if m == nil || m.Top != 15 || m.Left != 20 {
		t.Errorf("margins = %+v, want server top 15 and request left 20", m)
	}
}

// ---------------------------------------------------------------------------
// TestCompose_Rejections
// ---------------------------------------------------------------------------

func TestCompose_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		parts    []part
		wantCode string
	}{
		{
			name:     "missing markup",
			parts:    []part{{field: "format", data: "html"}},
			wantCode: codeValidation,
		},
		{
			name:     "unknown format",
			parts:    []part{{field: "markup", data: "x"}, {field: "format", data: "docx"}},
			wantCode: codeValidation,
		},
		{
			name:     "margin not a number",
			parts:    []part{{field: "markup", data: "x"}, {field: "margin_top", data: "ten"}},
			wantCode: codeBadRequest,
		},
		{
			name:     "margin out of range",
			parts:    []part{{field: "markup", data: "x"}, {field: "margin_top", data: "500"}},
			wantCode: codeValidation,
		},
		{
			name:     "signature is not an image",
			parts:    []part{{field: "markup", data: "x"}, {field: "signature", data: "data:text/html,<b>"}},
			wantCode: codeValidation,
		},
		{
			name:     "empty signature upload",
			parts:    []part{{field: "markup", data: "x"}, {field: "signature", filename: "sig.png", contentType: "image/png", data: ""}},
			wantCode: codeValidation,
		},
		{
			name:     "watermark opacity not a number",
			parts:    []part{{field: "markup", data: "x"}, {field: "watermark", data: "DRAFT"}, {field: "watermark_opacity", data: "half"}},
			wantCode: codeBadRequest,
		},
		{
			name:     "watermark color invalid",
			parts:    []part{{field: "markup", data: "x"}, {field: "watermark", data: "DRAFT"}, {field: "watermark_color", data: "red"}},
			wantCode: codeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fc := &fakeComposer{}
			s, _ := newTestServer(fc, Config{})
			rec := postCompose(t, s, tt.parts...)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400; body %s", rec.Code, rec.Body.String())
			}
			body := decodeError(t, rec)
			if body.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Error.Code, tt.wantCode)
			}
			if body.RequestID == "" || body.RequestID != rec.Header().Get(HeaderRequestID) {
				t.Errorf("requestId = %q, want header value %q", body.RequestID, rec.Header().Get(HeaderRequestID))
			}
			if fc.calls != 0 {
				t.Errorf("composer called %d times for an invalid request", fc.calls)
			}
		})
	}
}

func TestCompose_NotMultipart(t *testing.T) {
	t.Parallel()

	fc := &fakeComposer{}
	s, _ := newTestServer(fc, Config{})

	req := httptest.NewRequest(http.MethodPost, "/v1/compose", strings.NewReader(`{"markup":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if decodeError(t, rec).Error.Code != codeBadRequest {
		t.Error("expected bad_request code")
	}
}

// ---------------------------------------------------------------------------
// TestCompose_UploadLimit
// ---------------------------------------------------------------------------

func TestCompose_UploadLimit(t *testing.T) {
	t.Parallel()

	big := strings.Repeat("x", 4096)

	t.Run("declared length over limit", func(t *testing.T) {
		t.Parallel()

		fc := &fakeComposer{}
		s, _ := newTestServer(fc, Config{MaxUploadBytes: 1024})
		rec := postCompose(t, s, part{field: "markup", data: big})

		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("status = %d, want 413", rec.Code)
		}
		if decodeError(t, rec).Error.Code != codeTooLarge {
			t.Error("expected payload_too_large code")
		}
		if fc.calls != 0 {
			t.Error("composer called for an oversize request")
		}
	})

	t.Run("streamed body over limit", func(t *testing.T) {
		t.Parallel()

		fc := &fakeComposer{}
		s, _ := newTestServer(fc, Config{MaxUploadBytes: 1024})

		body, ct := multipartBody(t, part{field: "attachments", filename: "big.pdf", data: big})
		req := httptest.NewRequest(http.MethodPost, "/v1/compose", io.MultiReader(body))
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("status = %d, want 413; body %s", rec.Code, rec.Body.String())
		}
		if fc.calls != 0 {
			t.Error("composer called for an oversize request")
		}
	})
}

// ---------------------------------------------------------------------------
// TestCompose_ErrorMapping
// ---------------------------------------------------------------------------

func TestCompose_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"render failure", fmt.Errorf("%w: net::ERR_FAILED", pdfcompose.ErrPageLoad), http.StatusInternalServerError, codeRenderFailed},
		{"probe failure", fmt.Errorf("placing signature: %w", pdfcompose.ErrLayoutProbe), http.StatusInternalServerError, codeRenderFailed},
		{"validation from composer", pdfcompose.ErrInvalidMargin, http.StatusBadRequest, codeValidation},
		{"timeout", fmt.Errorf("exporting: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, codeTimeout},
		{"pool closed", pdfcompose.ErrComposerClosed, http.StatusServiceUnavailable, codeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, logs := newTestServer(&fakeComposer{err: tt.err}, Config{})
			rec := postCompose(t, s, part{field: "markup", data: "<p>x</p>"})

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decodeError(t, rec)
			if body.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Error.Code, tt.wantCode)
			}
			if !strings.Contains(body.Error.Message, tt.err.Error()) {
				t.Errorf("message = %q, want it to carry %q", body.Error.Message, tt.err.Error())
			}
			if !strings.Contains(logs.String(), "compose failed") {
				t.Errorf("failure not logged: %q", logs.String())
			}
		})
	}
}

func TestCompose_MergeDegradedHeader(t *testing.T) {
	t.Parallel()

	fc := &fakeComposer{result: &pdfcompose.Result{
		PDF:           []byte("%PDF-1.7"),
		MergeDegraded: true,
		MergeErr:      pdfcompose.ErrMergeTarget,
		Attachments:   []pdfcompose.AttachmentOutcome{{Filename: "a.pdf", Skipped: true, Reason: "merge target unreadable"}},
	}}
	s, logs := newTestServer(fc, Config{})

	rec := postCompose(t, s, part{field: "markup", data: "<p>x</p>"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get(HeaderMergeDegraded) != "true" {
		t.Error("X-Merge-Degraded not set")
	}
	if rec.Header().Get(HeaderAttachmentsSkipped) != "1" {
		t.Errorf("X-Attachments-Skipped = %q, want 1", rec.Header().Get(HeaderAttachmentsSkipped))
	}
	if !strings.Contains(logs.String(), `attachment "a.pdf" skipped`) {
		t.Errorf("skip not logged: %q", logs.String())
	}
}

// ---------------------------------------------------------------------------
// TestRecovery / routing
// ---------------------------------------------------------------------------

func TestRecovery(t *testing.T) {
	t.Parallel()

	s, logs := newTestServer(&fakeComposer{panics: true}, Config{})
	rec := postCompose(t, s, part{field: "markup", data: "<p>x</p>"})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if decodeError(t, rec).Error.Code != codeInternal {
		t.Error("expected internal_error code")
	}
	if !strings.Contains(logs.String(), "PANIC: composer exploded") {
		t.Errorf("panic not logged: %q", logs.String())
	}
}

func TestRouting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		method, path string
		wantStatus   int
		wantCode     string
	}{
		{http.MethodGet, "/nope", http.StatusNotFound, codeNotFound},
		{http.MethodGet, "/v1/compose", http.StatusMethodNotAllowed, codeMethodNotAllowed},
	}

	for _, tt := range tests {
		s, _ := newTestServer(&fakeComposer{}, Config{})
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

		if rec.Code != tt.wantStatus {
			t.Errorf("%s %s status = %d, want %d", tt.method, tt.path, rec.Code, tt.wantStatus)
			continue
		}
		if decodeError(t, rec).Error.Code != tt.wantCode {
			t.Errorf("%s %s: wrong error code", tt.method, tt.path)
		}
	}
}

// ---------------------------------------------------------------------------
// TestPoolComposer
// ---------------------------------------------------------------------------

func TestPoolComposer_ClosedPool(t *testing.T) {
	t.Parallel()

	pool := pdfcompose.NewComposerPool(1)
	if err := pool.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	_, err := (&PoolComposer{Pool: pool}).Compose(context.Background(), pdfcompose.Request{Markup: "x"})
	if !errors.Is(err, pdfcompose.ErrComposerClosed) {
		t.Errorf("error = %v, want ErrComposerClosed", err)
	}
}

// ---------------------------------------------------------------------------
// TestListenAndServe
// ---------------------------------------------------------------------------

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(&fakeComposer{}, Config{Addr: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()
	cancel()

	if err := <-done; err != nil {
		t.Errorf("ListenAndServe() error = %v, want nil after cancel", err)
	}
}

func TestListenAndServe_BadAddress(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(&fakeComposer{}, Config{Addr: "256.0.0.1:-1"})
	if err := s.ListenAndServe(context.Background()); err == nil {
		t.Error("expected listen error")
	}
}
