package embed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeProvider implements core.EmbeddingProvider with per-text failure
// control and call accounting.
type fakeProvider struct {
	mu           sync.Mutex
	dim          int
	failTexts    map[string]bool // always fail these texts
	failUntil    map[string]int  // fail the first n attempts for a text
	badDimTexts  map[string]bool // return a wrong-length vector
	calls        map[string]int
	queryCalls   int
	queryErr     error
}

func newFakeProvider(dim int) *fakeProvider {
	return &fakeProvider{
		dim:         dim,
		failTexts:   make(map[string]bool),
		failUntil:   make(map[string]int),
		badDimTexts: make(map[string]bool),
		calls:       make(map[string]int),
	}
}

func (p *fakeProvider) vector(n int) []float32 {
	return make([]float32, n)
}

func (p *fakeProvider) EmbedDocument(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls[text]++
	if p.failTexts[text] {
		return nil, errors.New("provider unavailable")
	}
	if until, ok := p.failUntil[text]; ok && p.calls[text] <= until {
		return nil, errors.New("rate limited")
	}
	if p.badDimTexts[text] {
		return p.vector(p.dim + 1), nil
	}
	return p.vector(p.dim), nil
}

func (p *fakeProvider) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.queryCalls++
	if p.queryErr != nil {
		return nil, p.queryErr
	}
	return p.vector(p.dim), nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Dimension = 8
	cfg.BaseDelay = time.Millisecond
	return cfg
}

func newTestService(p *fakeProvider, cfg Config) *Service {
	return NewService(p, cfg, zap.NewNop())
}

func manyTexts(n int) []string {
	texts := make([]string, n)
	for i := range texts {
		texts[i] = "text " + string(rune('a'+i%26)) + " " + string(rune('0'+i/26%10))
	}
	return texts
}

func TestEmbedBatchPreservesLengthAcrossWindows(t *testing.T) {
	p := newFakeProvider(8)
	svc := newTestService(p, testConfig())

	// 250 texts span three windows of 100.
	texts := manyTexts(250)
	vecs, err := svc.EmbedBatch(context.Background(), texts, false)
	require.NoError(t, err)
	require.Len(t, vecs, 250)
	for i, v := range vecs {
		assert.Len(t, v, 8, "vector %d", i)
	}
}

func TestEmbedBatchBlankItemsNotAttempted(t *testing.T) {
	p := newFakeProvider(8)
	svc := newTestService(p, testConfig())

	texts := []string{"first", "", "   ", "second"}
	vecs, err := svc.EmbedBatch(context.Background(), texts, true)
	require.NoError(t, err)
	require.Len(t, vecs, 4)

	assert.NotNil(t, vecs[0])
	assert.Nil(t, vecs[1])
	assert.Nil(t, vecs[2])
	assert.NotNil(t, vecs[3])
	assert.Zero(t, p.calls[""])
	assert.Zero(t, p.calls["   "])
}

func TestEmbedBatchAllBlankFails(t *testing.T) {
	svc := newTestService(newFakeProvider(8), testConfig())

	_, err := svc.EmbedBatch(context.Background(), []string{"", "  "}, true)
	assert.ErrorIs(t, err, ErrAllFailed)
}

func TestEmbedBatchPartialLoss(t *testing.T) {
	p := newFakeProvider(8)
	p.failTexts["bad one"] = true
	p.failTexts["bad two"] = true
	svc := newTestService(p, testConfig())

	texts := []string{"good one", "bad one", "good two", "bad two", "good three"}
	vecs, err := svc.EmbedBatch(context.Background(), texts, true)
	require.NoError(t, err)
	require.Len(t, vecs, 5)

	assert.NotNil(t, vecs[0])
	assert.Nil(t, vecs[1])
	assert.NotNil(t, vecs[2])
	assert.Nil(t, vecs[3])
	assert.NotNil(t, vecs[4])
}

func TestEmbedBatchTotalLoss(t *testing.T) {
	p := newFakeProvider(8)
	p.failTexts["only"] = true
	svc := newTestService(p, testConfig())

	_, err := svc.EmbedBatch(context.Background(), []string{"only"}, true)
	assert.ErrorIs(t, err, ErrAllFailed)
}

func TestEmbedBatchRetriesTransientFailure(t *testing.T) {
	p := newFakeProvider(8)
	p.failUntil["flaky"] = 2 // succeeds on the third attempt
	svc := newTestService(p, testConfig())

	vecs, err := svc.EmbedBatch(context.Background(), []string{"flaky"}, true)
	require.NoError(t, err)
	assert.NotNil(t, vecs[0])
	assert.Equal(t, 3, p.calls["flaky"])
}

func TestEmbedBatchNoRetryWhenDisallowed(t *testing.T) {
	p := newFakeProvider(8)
	p.failUntil["flaky"] = 2
	p.failTexts["steady"] = false
	svc := newTestService(p, testConfig())

	vecs, err := svc.EmbedBatch(context.Background(), []string{"flaky", "steady"}, false)
	require.NoError(t, err)
	assert.Nil(t, vecs[0])
	assert.NotNil(t, vecs[1])
	assert.Equal(t, 1, p.calls["flaky"])
}

func TestEmbedBatchDimensionMismatchFailsItem(t *testing.T) {
	p := newFakeProvider(8)
	p.badDimTexts["wide"] = true
	svc := newTestService(p, testConfig())

	vecs, err := svc.EmbedBatch(context.Background(), []string{"wide", "fine"}, false)
	require.NoError(t, err)
	assert.Nil(t, vecs[0])
	assert.NotNil(t, vecs[1])
}

func TestEmbedQuery(t *testing.T) {
	p := newFakeProvider(8)
	svc := newTestService(p, testConfig())

	vec, err := svc.EmbedQuery(context.Background(), "what is photosynthesis")
	require.NoError(t, err)
	assert.Len(t, vec, 8)
	assert.Equal(t, 1, p.queryCalls)

	_, err = svc.EmbedQuery(context.Background(), "   ")
	assert.Error(t, err)
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	svc := newTestService(newFakeProvider(8), testConfig())

	vecs, err := svc.EmbedBatch(context.Background(), nil, true)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}
