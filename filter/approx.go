package filter

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/coder/hnsw"
	"golang.org/x/sync/errgroup"
)

const (
	// trigramDims is the hashed trigram vector width.
	trigramDims = 256
	// approxLimit caps how many nearest candidates one query returns.
	approxLimit = 100
	// approxBatchSize is how many lines one build goroutine vectorizes.
	approxBatchSize = 512
)

// approxMatcher answers queries by nearest-neighbor search over hashed
// character-trigram vectors, tolerating typos the exact matchers reject.
// The graph is rebuilt whenever the snapshot generation changes.
type approxMatcher struct {
	mu    sync.RWMutex
	gen   uint64
	built bool
	graph *hnsw.Graph[int] // keyed by line index
}

func newApproxMatcher() *approxMatcher {
	return &approxMatcher{graph: hnsw.NewGraph[int]()}
}

func (m *approxMatcher) Match(snap Snapshot, terms []string) []int {
	m.rebuild(snap)

	query := trigramVector(strings.Join(terms, " "))

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.graph.Len() == 0 {
		return nil
	}
	k := approxLimit
	if len(snap.Lines) < k {
		k = len(snap.Lines)
	}
	neighbors := m.graph.Search(query, k)
	idxs := make([]int, len(neighbors))
	for i, n := range neighbors {
		idxs[i] = n.Key
	}
	return idxs
}

// rebuild revectorizes the snapshot when its generation is newer than the
// built graph. Vector building fans out in batches; graph insertion happens
// once at the end.
func (m *approxMatcher) rebuild(snap Snapshot) {
	m.mu.RLock()
	current := m.built && m.gen == snap.Generation
	m.mu.RUnlock()
	if current {
		return
	}

	nodes := make([]hnsw.Node[int], len(snap.Lines))
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(16)
	for start := 0; start < len(nodes); start += approxBatchSize {
		end := start + approxBatchSize
		if end > len(nodes) {
			end = len(nodes)
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				nodes[i] = hnsw.MakeNode(i, trigramVector(snap.Lines[i]))
			}
			return nil
		})
	}
	_ = g.Wait()

	graph := hnsw.NewGraph[int]()
	if len(nodes) > 0 {
		graph.Add(nodes...)
	}

	m.mu.Lock()
	if !m.built || snap.Generation > m.gen {
		m.graph = graph
		m.gen = snap.Generation
		m.built = true
	}
	m.mu.Unlock()
}

// trigramVector hashes the lowercased character trigrams of s into a fixed
// number of buckets and L2-normalizes the result. Strings shorter than one
// trigram are padded with spaces so they still produce a signal.
func trigramVector(s string) []float32 {
	v := make([]float32, trigramDims)
	b := []byte(strings.ToLower(s))
	if n := len(b); n > 0 && n < 3 {
		b = append(b, "  "[:3-n]...)
	}
	for i := 0; i+3 <= len(b); i++ {
		v[trigramHash(b[i], b[i+1], b[i+2])%trigramDims]++
	}
	normalize(v)
	return v
}

// trigramHash is FNV-1a over three bytes.
func trigramHash(a, b, c byte) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	h := uint32(offset32)
	h = (h ^ uint32(a)) * prime32
	h = (h ^ uint32(b)) * prime32
	h = (h ^ uint32(c)) * prime32
	return h
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
