package main

// Notes:
// - printUsage/printComposeUsage/printServeUsage: we test that required
//   content strings are present. We don't test exact formatting as that's
//   an implementation detail.
// - runHelp: we test routing to the correct help topic.
// These are acceptable gaps: we test observable behavior, not implementation details.

import (
	"bytes"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// TestUsageContent - Usage output mentions every command and flag group
// ---------------------------------------------------------------------------

func TestUsageContent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		print    func(w *bytes.Buffer)
		required []string
	}{
		{
			name:     "main",
			print:    func(w *bytes.Buffer) { printUsage(w) },
			required: []string{"Usage: pdfcompose", "compose", "serve", "doctor", "version", "help"},
		},
		{
			name:  "compose",
			print: func(w *bytes.Buffer) { printComposeUsage(w) },
			required: []string{
				"Usage: pdfcompose compose <input>",
				"--output", "--format", "--attach", "--max-file-mb",
				"--signature", "--label", "--sig-width",
				"--margin-top", "--margin-right",
				"--watermark", "--wm-angle", "--no-watermark",
				"--timeout", "--browser-bin", "--no-sandbox",
				"--quiet", "--verbose",
			},
		},
		{
			name:  "serve",
			print: func(w *bytes.Buffer) { printServeUsage(w) },
			required: []string{
				"Usage: pdfcompose serve",
				"/v1/compose", "--addr", "--workers", "--max-upload-mb", "--request-timeout",
				"--no-sandbox",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			tt.print(&buf)
			for _, s := range tt.required {
				if !strings.Contains(buf.String(), s) {
					t.Errorf("output should contain %q", s)
				}
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestRunHelp - Help topic routing
// ---------------------------------------------------------------------------

func TestRunHelp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		args       []string
		wantStdout string
		wantStderr string
	}{
		{"no topic", nil, "Commands:", ""},
		{"compose", []string{"compose"}, "pdfcompose compose <input>", ""},
		{"serve", []string{"serve"}, "pdfcompose serve", ""},
		{"doctor", []string{"doctor"}, "pdfcompose doctor [--json]", ""},
		{"version", []string{"version"}, "pdfcompose version", ""},
		{"help", []string{"help"}, "pdfcompose help [command]", ""},
		{"unknown", []string{"merge"}, "", "Unknown command: merge"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			te := newTestEnv(t)
			runHelp(tt.args, te.Environment)

			if tt.wantStdout != "" && !strings.Contains(te.stdout.String(), tt.wantStdout) {
				t.Errorf("stdout should contain %q, got:\n%s", tt.wantStdout, te.stdout.String())
			}
			if tt.wantStderr != "" && !strings.Contains(te.stderr.String(), tt.wantStderr) {
				t.Errorf("stderr should contain %q, got:\n%s", tt.wantStderr, te.stderr.String())
			}
		})
	}
}
