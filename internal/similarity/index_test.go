package similarity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-resolver/internal/domain"
)

// fakeEmbedder maps known texts to fixed vectors.
type fakeEmbedder struct {
	vectors    map[string][]float32
	err        error
	embedCalls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.embedCalls++
	if f.err != nil {
		return nil, f.err
	}
	vec, ok := f.vectors[text]
	if !ok {
		return nil, errors.New("unknown text")
	}
	return vec, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, ok := f.vectors[text]
		if !ok {
			return nil, errors.New("unknown text")
		}
		out = append(out, vec)
	}
	return out, nil
}

func strPtr(s string) *string { return &s }

func closedTicket(id, description, solution string) domain.Ticket {
	return domain.Ticket{
		ID:          id,
		RequesterID: "user-" + id,
		Description: description,
		Solution:    strPtr(solution),
		Status:      domain.TicketStatusClosed,
	}
}

func TestBuildFiltersUnusableTickets(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"password rejected": {1, 0},
	}}
	builder := NewBuilder(embedder, nil)

	tickets := []domain.Ticket{
		closedTicket("a", "password rejected", "reset it"),
		closedTicket("b", "   ", "reset it"),
		closedTicket("c", "otp missing", "   "),
		{ID: "d", Description: "no solution at all"},
	}
	index, err := builder.Build(context.Background(), tickets)
	require.NoError(t, err)

	embedder.vectors["password rejected again"] = []float32{1, 0}
	hits, err := index.Search(context.Background(), "password rejected again", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].TicketID)
}

func TestBuildEmptySnapshotYieldsEmptyIndex(t *testing.T) {
	builder := NewBuilder(&fakeEmbedder{err: errors.New("must not be called")}, nil)

	index, err := builder.Build(context.Background(), nil)
	require.NoError(t, err)

	hits, err := index.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestBuildEmbeddingFailureIsRetrievalUnavailable(t *testing.T) {
	builder := NewBuilder(&fakeEmbedder{err: errors.New("quota exceeded")}, nil)

	_, err := builder.Build(context.Background(), []domain.Ticket{
		closedTicket("a", "password rejected", "reset it"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRetrievalUnavailable)
}

func TestSearchOrdersAscendingAndTruncates(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"exact":   {1, 0},
		"close":   {1, 0.2},
		"far":     {0, 1},
		"query-x": {1, 0},
	}}
	builder := NewBuilder(embedder, nil)

	index, err := builder.Build(context.Background(), []domain.Ticket{
		closedTicket("far", "far", "s"),
		closedTicket("exact", "exact", "s"),
		closedTicket("close", "close", "s"),
	})
	require.NoError(t, err)

	hits, err := index.Search(context.Background(), "query-x", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "exact", hits[0].TicketID)
	assert.Equal(t, "close", hits[1].TicketID)
	assert.Less(t, hits[0].Score, hits[1].Score)
	assert.InDelta(t, 0, hits[0].Score, 1e-9)
}

func TestSearchBlankQuerySkipsEmbedding(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{"desc": {1, 0}}}
	builder := NewBuilder(embedder, nil)
	index, err := builder.Build(context.Background(), []domain.Ticket{
		closedTicket("a", "desc", "s"),
	})
	require.NoError(t, err)

	hits, err := index.Search(context.Background(), "   ", 5)
	require.NoError(t, err)
	assert.Nil(t, hits)
	assert.Zero(t, embedder.embedCalls)
}

func TestSearchQueryEmbedFailureIsRetrievalUnavailable(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{"desc": {1, 0}}}
	index, err := NewBuilder(embedder, nil).Build(context.Background(), []domain.Ticket{
		closedTicket("a", "desc", "s"),
	})
	require.NoError(t, err)

	embedder.err = errors.New("backend down")
	_, err = index.Search(context.Background(), "query", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRetrievalUnavailable)
}

func TestCosineDistance(t *testing.T) {
	d, ok := cosineDistance([]float32{1, 0}, []float32{1, 0})
	require.True(t, ok)
	assert.InDelta(t, 0, d, 1e-9)

	d, ok = cosineDistance([]float32{1, 0}, []float32{0, 1})
	require.True(t, ok)
	assert.InDelta(t, 1, d, 1e-9)

	d, ok = cosineDistance([]float32{1, 0}, []float32{-1, 0})
	require.True(t, ok)
	assert.InDelta(t, 2, d, 1e-9)

	_, ok = cosineDistance([]float32{1, 0}, []float32{1})
	assert.False(t, ok)
	_, ok = cosineDistance([]float32{0, 0}, []float32{1, 0})
	assert.False(t, ok)
}
