// Package lexical maintains a keyword scoring structure (BM25) over the
// indexed chunk corpus. The index is built lazily on first use and rebuilt
// atomically: readers see either the old or the new index, never a mix.
package lexical

import (
	"context"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Document is one unit of corpus text fed to the index.
type Document struct {
	ID   string
	Text string
}

// Source supplies the current corpus for (re)builds.
type Source func(ctx context.Context) ([]Document, error)

type Index struct {
	source  Source
	current atomic.Pointer[bm25Index]
	buildMu sync.Mutex
	stale   atomic.Bool
}

func NewIndex(source Source) *Index {
	idx := &Index{source: source}
	idx.stale.Store(true)
	return idx
}

// Invalidate marks the corpus as changed; the next scoring call rebuilds.
func (i *Index) Invalidate() {
	i.stale.Store(true)
}

// Score computes normalized BM25 scores in [0, 1] for the given candidate
// ids against the query, building the index first if needed. Unknown ids
// score zero.
func (i *Index) Score(ctx context.Context, query string, ids []string) (map[string]float64, error) {
	idx, err := i.ensure(ctx)
	if err != nil {
		return nil, err
	}
	terms := tokenize(query)
	scores := make(map[string]float64, len(ids))
	var max float64
	for _, id := range ids {
		s := idx.score(terms, id)
		scores[id] = s
		if s > max {
			max = s
		}
	}
	if max > 0 {
		for id := range scores {
			scores[id] /= max
		}
	}
	return scores, nil
}

// Rebuild forces a full rebuild regardless of staleness.
func (i *Index) Rebuild(ctx context.Context) error {
	i.buildMu.Lock()
	defer i.buildMu.Unlock()
	return i.rebuildLocked(ctx)
}

func (i *Index) ensure(ctx context.Context) (*bm25Index, error) {
	if !i.stale.Load() {
		if idx := i.current.Load(); idx != nil {
			return idx, nil
		}
	}
	i.buildMu.Lock()
	defer i.buildMu.Unlock()
	// another query may have rebuilt while we waited
	if !i.stale.Load() {
		if idx := i.current.Load(); idx != nil {
			return idx, nil
		}
	}
	if err := i.rebuildLocked(ctx); err != nil {
		return nil, err
	}
	return i.current.Load(), nil
}

func (i *Index) rebuildLocked(ctx context.Context) error {
	start := time.Now()
	docs, err := i.source(ctx)
	if err != nil {
		return err
	}
	idx := buildBM25(docs)
	i.current.Store(idx)
	i.stale.Store(false)
	logutil.GetLogger(ctx).Info("lexical index built",
		zap.Int("documents", len(docs)),
		zap.Int("terms", len(idx.postings)),
		zap.Duration("duration", time.Since(start)))
	return nil
}

type bm25Index struct {
	postings map[string]map[string]int // term -> docID -> term frequency
	docLen   map[string]int
	avgLen   float64
	total    int
}

func buildBM25(docs []Document) *bm25Index {
	idx := &bm25Index{
		postings: make(map[string]map[string]int),
		docLen:   make(map[string]int, len(docs)),
	}
	var lenSum int
	for _, doc := range docs {
		terms := tokenize(doc.Text)
		idx.docLen[doc.ID] = len(terms)
		lenSum += len(terms)
		for _, term := range terms {
			m := idx.postings[term]
			if m == nil {
				m = make(map[string]int)
				idx.postings[term] = m
			}
			m[doc.ID]++
		}
	}
	idx.total = len(docs)
	if idx.total > 0 {
		idx.avgLen = float64(lenSum) / float64(idx.total)
	}
	return idx
}

func (idx *bm25Index) score(terms []string, docID string) float64 {
	dl, ok := idx.docLen[docID]
	if !ok || idx.total == 0 {
		return 0
	}
	var score float64
	for _, term := range terms {
		docFreqs := idx.postings[term]
		tf := docFreqs[docID]
		if tf == 0 {
			continue
		}
		df := len(docFreqs)
		idf := math.Log(1 + (float64(idx.total)-float64(df)+0.5)/(float64(df)+0.5))
		num := float64(tf) * (bm25K1 + 1)
		den := float64(tf) + bm25K1*(1-bm25B+bm25B*float64(dl)/idx.avgLen)
		score += idf * num / den
	}
	return score
}

func tokenize(text string) []string {
	var sb strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		} else {
			sb.WriteRune(' ')
		}
	}
	return strings.Fields(sb.String())
}
