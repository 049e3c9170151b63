package main

import (
	"context"
	"io"
	"os"
	"time"

	pdfcompose "github.com/alnah/go-pdfcompose"
	"github.com/alnah/go-pdfcompose/internal/config"
	"github.com/alnah/go-pdfcompose/internal/server"
)

// Composer is the part of *pdfcompose.Composer the compose command uses.
type Composer interface {
	Compose(ctx context.Context, req pdfcompose.Request) (*pdfcompose.Result, error)
	Close() error
}

// Compile-time interface implementation checks.
var (
	_ Composer = (*pdfcompose.Composer)(nil)
	_ Server   = (*server.Server)(nil)
)

// Environment holds injectable dependencies for testability.
type Environment struct {
	Now    func() time.Time
	Stdout io.Writer
	Stderr io.Writer
	Config *config.Config // Loaded once per command

	// NewComposer builds the composer for one compose run.
	NewComposer func(opts ...pdfcompose.Option) Composer

	// NewServer builds the HTTP server for serve.
	NewServer func(c server.Composer, cfg server.Config) Server
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Now:    time.Now,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Config: config.DefaultConfig(),
		NewComposer: func(opts ...pdfcompose.Option) Composer {
			return pdfcompose.NewComposer(opts...)
		},
		NewServer: func(c server.Composer, cfg server.Config) Server {
			return server.New(c, cfg)
		},
	}
}
