package filter

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultCacheTTL bounds how long a filter result is served from cache.
const DefaultCacheTTL = 30 * time.Second

// Snapshot is one consistent view of the candidate lines. Generation
// increases whenever the lines change, so a snapshot identifies both the
// content and its age.
type Snapshot struct {
	Generation uint64
	Lines      []string
}

// Engine holds the candidate snapshot fed by the source runner and answers
// filter queries against it. Results are memoized per (generation, terms)
// with TTL-based expiration.
type Engine struct {
	mode    string
	matcher Matcher

	mu    sync.RWMutex
	gen   uint64
	lines []string

	cache *ttlcache.Cache[string, []string]
}

// NewEngine creates an engine matching with the given mode. A cacheTTL of
// zero or less selects DefaultCacheTTL.
func NewEngine(mode string, cacheTTL time.Duration) *Engine {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	c := ttlcache.New[string, []string](
		ttlcache.WithTTL[string, []string](cacheTTL),
		ttlcache.WithDisableTouchOnHit[string, []string](),
	)
	go c.Start()
	return &Engine{
		mode:    mode,
		matcher: NewMatcher(mode),
		cache:   c,
	}
}

// Close stops the cache expiration loop.
func (e *Engine) Close() {
	e.cache.Stop()
}

// Replace resets the candidate lines, starting a new generation.
func (e *Engine) Replace(lines []string) {
	e.mu.Lock()
	e.lines = lines
	e.gen++
	e.mu.Unlock()
}

// Append adds candidate lines, starting a new generation.
func (e *Engine) Append(lines ...string) {
	if len(lines) == 0 {
		return
	}
	e.mu.Lock()
	e.lines = append(e.lines, lines...)
	e.gen++
	e.mu.Unlock()
}

// Snapshot returns the current candidate view.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Snapshot{Generation: e.gen, Lines: e.lines}
}

// Filter returns the candidates matching terms, best match first. When no
// usable terms remain the unfiltered snapshot is returned.
func (e *Engine) Filter(terms []string) []string {
	snap := e.Snapshot()
	terms = ValidTerms(terms, e.mode)
	if len(terms) == 0 {
		return snap.Lines
	}

	key := cacheKey(snap.Generation, terms)
	if item := e.cache.Get(key); item != nil {
		return item.Value()
	}

	idxs := e.matcher.Match(snap, terms)
	out := make([]string, len(idxs))
	for i, idx := range idxs {
		out[i] = snap.Lines[idx]
	}
	e.cache.Set(key, out, ttlcache.DefaultTTL)
	return out
}

func cacheKey(gen uint64, terms []string) string {
	return fmt.Sprintf("%d\x00%s", gen, strings.Join(terms, "\x00"))
}
