package location

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-card/backend/internal/cache"
	"github.com/campus-card/backend/internal/gazetteer"
	"github.com/campus-card/backend/internal/llm"
)

type stubModel struct {
	mu      sync.Mutex
	calls   int
	reply   string
	err     error
	lastReq llm.CompletionRequest
}

func (s *stubModel) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Content: s.reply}, nil
}

func (s *stubModel) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestResolver(model ModelClient) (*Resolver, *cache.Memory[Result]) {
	c := cache.NewMemory[Result](time.Hour)
	return NewResolver(testGazetteer(), c, model), c
}

func TestResolveExactMatchSkipsModel(t *testing.T) {
	model := &stubModel{reply: `{"best_match": "南门", "confidence": 0.5}`}
	r, _ := newTestResolver(model)

	res := r.Resolve(context.Background(), "东南门", ModeBestMatch)

	best, ok := res.Best()
	require.True(t, ok)
	assert.Equal(t, "东南门", best)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, SourceLexical, res.Source)
	assert.Equal(t, 0, model.Calls())
}

func TestResolveRankedPrefersExactOverSubstring(t *testing.T) {
	model := &stubModel{err: errors.New("must not be called")}
	r, _ := newTestResolver(model)

	res := r.Resolve(context.Background(), "东南门", ModeRanked)

	require.Len(t, res.Locations, 2)
	assert.Equal(t, "东南门", res.Locations[0])
	assert.Equal(t, "南门", res.Locations[1])
	assert.Equal(t, 0, model.Calls())
}

func TestResolveEscalatesWeakLexicalResult(t *testing.T) {
	model := &stubModel{reply: `Here you go: {"best_match": "东南门", "confidence": 0.92, "reasoning": "gate mentioned"}`}
	r, _ := newTestResolver(model)

	res := r.Resolve(context.Background(), "dropped near the southeast_gate bus stop", ModeBestMatch)

	best, ok := res.Best()
	require.True(t, ok)
	assert.Equal(t, "东南门", best)
	assert.Equal(t, 0.92, res.Confidence)
	assert.Equal(t, SourceModel, res.Source)
	assert.Equal(t, 1, model.Calls())

	assert.Equal(t, systemPrompt, model.lastReq.SystemPrompt)
	assert.Contains(t, model.lastReq.UserPrompt, "dropped near the southeast_gate bus stop")
	assert.Contains(t, model.lastReq.UserPrompt, "南门、东南门、图书馆、梧桐苑、保卫处招领点")
	assert.Contains(t, model.lastReq.UserPrompt, `"best_match"`)
}

func TestResolveIsCachedWithinTTL(t *testing.T) {
	model := &stubModel{reply: `{"found_locations": ["梧桐苑"], "confidence": 0.7, "reasoning": "dorm"}`}
	r, c := newTestResolver(model)
	ctx := context.Background()

	first := r.Resolve(ctx, "the dorm by the lake", ModeRanked)
	second := r.Resolve(ctx, "  THE DORM BY THE LAKE ", ModeRanked)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"梧桐苑"}, first.Locations)
	assert.Equal(t, 1, model.Calls())
	assert.Equal(t, 1, c.Len())

	r.Resolve(ctx, "the dorm by the lake", ModeBestMatch)
	assert.Equal(t, 2, model.Calls(), "modes are cached separately")
}

func TestResolveCacheExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	model := &stubModel{reply: `{"found_locations": ["梧桐苑"], "confidence": 0.7}`}
	c := cache.NewMemory[Result](2 * time.Hour).WithClock(clock)
	r := NewResolver(testGazetteer(), c, model)
	ctx := context.Background()

	r.Resolve(ctx, "the dorm by the lake", ModeRanked)
	now = now.Add(2 * time.Hour)
	r.Resolve(ctx, "the dorm by the lake", ModeRanked)

	assert.Equal(t, 2, model.Calls())
}

func TestResolveFallsBackWhenModelFails(t *testing.T) {
	failures := []error{
		llm.ErrAuth,
		llm.ErrServer,
		llm.ErrTransport,
		errors.New("socket closed"),
	}

	for _, failure := range failures {
		t.Run(failure.Error(), func(t *testing.T) {
			model := &stubModel{err: failure}
			r, _ := newTestResolver(model)
			ctx := context.Background()

			res := r.Resolve(ctx, "lost it at the south_gate kiosk", ModeBestMatch)

			assert.Equal(t, 1, model.Calls())
			assert.Equal(t, SourceFallback, res.Source)
			best, ok := res.Best()
			require.True(t, ok)
			assert.Equal(t, "南门", best)
			assert.Less(t, res.Confidence, bestMatchAccept)

			again := r.Resolve(ctx, "lost it at the south_gate kiosk", ModeBestMatch)
			assert.Equal(t, res, again)
			assert.Equal(t, 1, model.Calls(), "fallback result is cached")
		})
	}
}

func TestResolveFallsBackOnUnparseableReply(t *testing.T) {
	model := &stubModel{reply: "Sorry, I can't help with that."}
	r, _ := newTestResolver(model)

	res := r.Resolve(context.Background(), "somewhere by the lake", ModeRanked)

	assert.Equal(t, SourceFallback, res.Source)
	assert.Empty(t, res.Locations)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Equal(t, reasonNoMatch, res.Reasoning)
}

func TestResolveWithoutModel(t *testing.T) {
	r, _ := newTestResolver(nil)

	res := r.Resolve(context.Background(), "somewhere by the lake", ModeBestMatch)

	assert.Nil(t, res.BestMatch)
	assert.Equal(t, SourceLexical, res.Source)
}

func TestResolveBlankText(t *testing.T) {
	model := &stubModel{}
	r, c := newTestResolver(model)

	res := r.Resolve(context.Background(), "   ", ModeRanked)

	assert.Empty(t, res.Locations)
	assert.Equal(t, 0, model.Calls())
	assert.Equal(t, 0, c.Len())
}

func TestResolveConcurrentCallers(t *testing.T) {
	model := &stubModel{reply: `{"found_locations": ["图书馆"], "confidence": 0.9}`}
	r, _ := newTestResolver(model)

	var wg sync.WaitGroup
	results := make([]Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Resolve(context.Background(), "the big reading building", ModeRanked)
		}(i)
	}
	wg.Wait()

	for _, res := range results {
		assert.Equal(t, []string{"图书馆"}, res.Locations)
	}
	assert.LessOrEqual(t, model.Calls(), len(results))
}

func TestCacheKeyNormalization(t *testing.T) {
	assert.Equal(t, CacheKey("  ABC ", ModeRanked), CacheKey("abc", ModeRanked))
	assert.Equal(t, CacheKey("南门\n", ModeBestMatch), CacheKey("南门", ModeBestMatch))
	assert.NotEqual(t, CacheKey("abc", ModeRanked), CacheKey("abc", ModeBestMatch))
	assert.NotEqual(t, CacheKey("南门", ModeRanked), CacheKey("东南门", ModeRanked))
	assert.Len(t, CacheKey("x", ModeRanked), 32)
}

func TestBuildPromptListsVocabulary(t *testing.T) {
	names := []string{"南门", "东南门"}

	best := BuildPrompt("在南门", names, ModeBestMatch)
	assert.Contains(t, best, `"在南门"`)
	assert.Contains(t, best, "南门、东南门")
	assert.Contains(t, best, "best_match")
	assert.NotContains(t, best, "found_locations")

	ranked := BuildPrompt("在南门", names, ModeRanked)
	assert.Contains(t, ranked, "found_locations")
	assert.True(t, strings.Contains(ranked, "东南门"))
	assert.Contains(t, ranked, "语义相关性")
}

func TestPromptsShareTheGazetteerRegister(t *testing.T) {
	for _, p := range []string{systemPrompt, BuildPrompt("x", nil, ModeBestMatch), BuildPrompt("x", nil, ModeRanked)} {
		assert.Contains(t, p, "校园")
		assert.NotContains(t, p, "campus")
	}
	assert.Contains(t, BuildPrompt("x", nil, ModeBestMatch), reasonNoMatch)
}

func TestResolveWithEmptyGazetteerStillAnswers(t *testing.T) {
	model := &stubModel{err: llm.ErrTransport}
	r := NewResolver(gazetteer.New(), cache.NewMemory[Result](time.Hour), model)

	res := r.Resolve(context.Background(), "南门", ModeRanked)
	assert.Empty(t, res.Locations)
	assert.Equal(t, 0.0, res.Confidence)
}
