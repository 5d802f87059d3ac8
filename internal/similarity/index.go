// Package similarity builds per-run semantic indexes over closed-ticket
// snapshots and answers distance-scored nearest-neighbor queries.
package similarity

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-resolver/internal/domain"
	"github.com/spec-kit/support-resolver/internal/llm"
)

// Searcher answers similarity queries against one partition snapshot.
type Searcher interface {
	// Search returns up to k hits ascending by score (a distance,
	// lower = more similar). A blank query returns no hits without
	// invoking the embedding backend.
	Search(ctx context.Context, query string, k int) ([]domain.SimilarityHit, error)
}

// IndexBuilder constructs a Searcher from a closed-ticket snapshot.
type IndexBuilder interface {
	Build(ctx context.Context, tickets []domain.Ticket) (Searcher, error)
}

type indexEntry struct {
	ticketID    string
	requesterID string
	description string
	solution    string
	vector      []float32
}

// Index is an immutable snapshot-scoped similarity index. Built once
// per run per partition, never mutated, discarded at end of run.
type Index struct {
	embedder llm.Embedder
	entries  []indexEntry
}

// Empty returns an index that is valid to query but always yields zero
// hits.
func Empty() *Index {
	return &Index{}
}

// Builder embeds filtered ticket descriptions into fresh indexes.
type Builder struct {
	embedder llm.Embedder
	logger   *zap.Logger
}

// NewBuilder constructs a Builder.
func NewBuilder(embedder llm.Embedder, logger *zap.Logger) *Builder {
	return &Builder{embedder: embedder, logger: logger}
}

// Build filters the snapshot to tickets with a non-blank description
// and a non-blank solution, embeds every remaining description, and
// returns the resulting index. An all-filtered snapshot yields a valid
// empty index. Embedding failures surface as ErrRetrievalUnavailable.
func (b *Builder) Build(ctx context.Context, tickets []domain.Ticket) (Searcher, error) {
	entries := make([]indexEntry, 0, len(tickets))
	texts := make([]string, 0, len(tickets))
	for _, t := range tickets {
		description := strings.TrimSpace(t.Description)
		solution := ""
		if t.Solution != nil {
			solution = strings.TrimSpace(*t.Solution)
		}
		if description == "" || solution == "" {
			continue
		}
		entries = append(entries, indexEntry{
			ticketID:    t.ID,
			requesterID: t.RequesterID,
			description: description,
			solution:    solution,
		})
		texts = append(texts, description)
	}

	if len(entries) == 0 {
		return Empty(), nil
	}

	vectors, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: embed %d descriptions: %v", domain.ErrRetrievalUnavailable, len(texts), err)
	}
	if len(vectors) != len(entries) {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for %d texts", domain.ErrRetrievalUnavailable, len(vectors), len(entries))
	}
	for i := range entries {
		entries[i].vector = vectors[i]
	}

	if b.logger != nil {
		b.logger.Debug("similarity index built",
			zap.Int("snapshot", len(tickets)),
			zap.Int("indexed", len(entries)))
	}
	return &Index{embedder: b.embedder, entries: entries}, nil
}

// Search implements Searcher.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]domain.SimilarityHit, error) {
	query = strings.TrimSpace(query)
	if query == "" || len(ix.entries) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = 5
	}

	queryVec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", domain.ErrRetrievalUnavailable, err)
	}

	hits := make([]domain.SimilarityHit, 0, len(ix.entries))
	for _, entry := range ix.entries {
		score, ok := cosineDistance(queryVec, entry.vector)
		if !ok {
			continue
		}
		hits = append(hits, domain.SimilarityHit{
			TicketID:    entry.ticketID,
			RequesterID: entry.requesterID,
			Description: entry.description,
			Solution:    entry.solution,
			Score:       score,
		})
	}

	// Stable: ties keep insertion order.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score < hits[j].Score
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// cosineDistance returns 1 - cosine similarity, clamped to [0, 2].
// Reports false on dimension mismatch or zero-magnitude vectors.
func cosineDistance(a, b []float32) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	var dot, aMag, bMag float64
	for i := 0; i < len(a); i++ {
		dot += float64(a[i]) * float64(b[i])
		aMag += float64(a[i]) * float64(a[i])
		bMag += float64(b[i]) * float64(b[i])
	}
	if aMag == 0 || bMag == 0 {
		return 0, false
	}
	distance := 1 - dot/(math.Sqrt(aMag)*math.Sqrt(bMag))
	if distance < 0 {
		distance = 0
	}
	return distance, true
}
