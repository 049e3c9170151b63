package pdfcompose

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// Pool sizing constants.
const (
	// MinPoolSize ensures at least one worker is available.
	MinPoolSize = 1

	// MaxPoolSize caps browser instances to limit memory (~200MB each).
	MaxPoolSize = 8

	// cpuDivisor leaves headroom for Chrome child processes.
	cpuDivisor = 2
)

// ComposerPool manages Composer instances for parallel requests. Each
// composer has its own browser. Composers are created lazily on first
// acquire to avoid startup delay.
type ComposerPool struct {
	size      int
	opts      []Option
	composers []*Composer
	sem       chan *Composer
	mu        sync.Mutex
	created   int
	closed    bool

	newComposer func(opts ...Option) *Composer
}

// NewComposerPool creates a pool with capacity for n composers, each built
// with opts.
func NewComposerPool(n int, opts ...Option) *ComposerPool {
	if n < 1 {
		n = 1
	}

	return &ComposerPool{
		size:        n,
		opts:        opts,
		composers:   make([]*Composer, 0, n),
		sem:         make(chan *Composer, n),
		newComposer: NewComposer,
	}
}

// Acquire gets a composer from the pool, creating one if capacity allows.
// Blocks until one is released, ctx ends, or the pool is closed.
func (p *ComposerPool) Acquire(ctx context.Context) (*Composer, error) {
	select {
	case c, ok := <-p.sem:
		if !ok {
			return nil, ErrComposerClosed
		}
		return c, nil
	default:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrComposerClosed
	}
	if p.created < p.size {
		p.created++
		c := p.newComposer(p.opts...)
		p.composers = append(p.composers, c)
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	select {
	case c, ok := <-p.sem:
		if !ok {
			return nil, ErrComposerClosed
		}
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a composer to the pool. After Close, the composer is closed
// instead.
func (p *ComposerPool) Release(c *Composer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		_ = c.Close()
		return
	}
	p.sem <- c
}

// Close releases all browser resources.
// Returns an aggregated error if multiple composers fail to close.
func (p *ComposerPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.sem)
	composers := p.composers
	p.mu.Unlock()

	var errs []error
	for _, c := range composers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Size returns the pool capacity.
func (p *ComposerPool) Size() int {
	return p.size
}

// ResolvePoolSize determines the pool size.
// Priority: explicit workers > GOMAXPROCS-based calculation.
func ResolvePoolSize(workers int) int {
	if workers > 0 {
		return workers
	}

	// GOMAXPROCS is container-aware once automaxprocs has run.
	n := runtime.GOMAXPROCS(0) / cpuDivisor

	if n < MinPoolSize {
		return MinPoolSize
	}
	if n > MaxPoolSize {
		return MaxPoolSize
	}
	return n
}
