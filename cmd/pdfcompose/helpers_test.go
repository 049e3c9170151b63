package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	pdfcompose "github.com/alnah/go-pdfcompose"
	"github.com/alnah/go-pdfcompose/internal/config"
	"github.com/alnah/go-pdfcompose/internal/server"
)

// ---------------------------------------------------------------------------
// Test Infrastructure - Fakes shared by command tests
// ---------------------------------------------------------------------------

// fakePDF is what fakeComposer returns unless told otherwise.
var fakePDF = []byte("%PDF-1.7 fake")

// fakeComposer records the request and returns a canned result.
type fakeComposer struct {
	mu       sync.Mutex
	calls    int
	req      pdfcompose.Request
	optCount int
	closed   bool
	result   *pdfcompose.Result
	err      error
}

func (f *fakeComposer) Compose(_ context.Context, req pdfcompose.Request) (*pdfcompose.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &pdfcompose.Result{PDF: fakePDF, HTML: []byte("<html></html>")}, nil
}

func (f *fakeComposer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// fakeServer records how it was built and returns immediately.
type fakeServer struct {
	composer server.Composer
	cfg      server.Config
	err      error
}

func (f *fakeServer) ListenAndServe(context.Context) error {
	return f.err
}

// testEnv bundles an Environment with its captured output.
type testEnv struct {
	*Environment
	stdout   *bytes.Buffer
	stderr   *bytes.Buffer
	composer *fakeComposer
	server   *fakeServer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	te := &testEnv{
		stdout:   &bytes.Buffer{},
		stderr:   &bytes.Buffer{},
		composer: &fakeComposer{},
		server:   &fakeServer{},
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	te.Environment = &Environment{
		Now:    func() time.Time { return now },
		Stdout: te.stdout,
		Stderr: te.stderr,
		Config: config.DefaultConfig(),
		NewComposer: func(opts ...pdfcompose.Option) Composer {
			te.composer.optCount = len(opts)
			return te.composer
		},
		NewServer: func(c server.Composer, cfg server.Config) Server {
			te.server.composer = c
			te.server.cfg = cfg
			return te.server
		},
	}
	return te
}

// writeFile writes content under dir and returns the path.
func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// pngBytes is a minimal PNG header, enough for content sniffing.
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
