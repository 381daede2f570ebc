package main

import (
	"context"
	"sync"
	"time"

	"github.com/winnow-sh/winnow"
	"github.com/winnow-sh/winnow/filter"
)

// pipeline adapts the filter engine to the server. A source instruction
// replaces the whole engine: the matcher mode is fixed per source, and the
// previous scan is cancelled so a slow command cannot write into the new
// snapshot.
type pipeline struct {
	cacheTTL time.Duration

	mu     sync.Mutex
	eng    *filter.Engine
	cancel context.CancelFunc
}

func newPipeline(cfg *winnow.Config) *pipeline {
	p := &pipeline{}
	if cfg != nil && cfg.Filter.CacheTTLSeconds > 0 {
		p.cacheTTL = time.Duration(cfg.Filter.CacheTTLSeconds) * time.Second
	}
	return p
}

// Source swaps in a fresh engine for src and runs the backing command until
// it finishes or the next source arrives.
func (p *pipeline) Source(ctx context.Context, src winnow.Source) {
	ctx, cancel := context.WithCancel(ctx)
	eng := filter.NewEngine(src.Matcher, p.cacheTTL)

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	if p.eng != nil {
		p.eng.Close()
	}
	p.eng = eng
	p.cancel = cancel
	p.mu.Unlock()

	filter.Run(ctx, eng, src)
}

// Filter answers against the current snapshot. Before any source arrives
// there are no candidates.
func (p *pipeline) Filter(terms []string) []string {
	p.mu.Lock()
	eng := p.eng
	p.mu.Unlock()

	if eng == nil {
		return nil
	}
	return eng.Filter(terms)
}

func (p *pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
	if p.eng != nil {
		p.eng.Close()
	}
}
