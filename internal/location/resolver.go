package location

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campus-card/backend/internal/gazetteer"
	"github.com/campus-card/backend/internal/llm"
	"github.com/campus-card/backend/internal/metrics"
	"github.com/campus-card/backend/pkg/logger"
)

const (
	// Lexical results at or above these confidences skip the model call.
	bestMatchAccept = 0.9
	rankedAccept    = 0.8
)

// ModelClient is the chat-completion endpoint used to escalate unclear input.
type ModelClient interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// ResultCache memoizes resolutions by CacheKey.
type ResultCache interface {
	Get(ctx context.Context, key string) (Result, bool)
	Put(ctx context.Context, key string, r Result)
	PurgeExpired(ctx context.Context) int
}

// Resolver turns free text into campus locations. It tries the cache, then
// lexical matching, and asks the model only when the lexical answer is weak.
// Resolve never returns an error.
type Resolver struct {
	gaz        *gazetteer.Gazetteer
	fallback   *Fallback
	cache      ResultCache
	model      ModelClient
	vocabulary []string
}

// NewResolver wires a resolver. A nil model disables escalation.
func NewResolver(gaz *gazetteer.Gazetteer, cache ResultCache, model ModelClient) *Resolver {
	return &Resolver{
		gaz:        gaz,
		fallback:   NewFallback(gaz),
		cache:      cache,
		model:      model,
		vocabulary: gaz.Names(),
	}
}

func (r *Resolver) Resolve(ctx context.Context, text string, mode Mode) Result {
	start := time.Now()
	res := r.resolve(ctx, text, mode)

	metrics.ResolutionDuration.WithLabelValues(mode.String()).Observe(time.Since(start).Seconds())
	metrics.ResolutionTotal.WithLabelValues(mode.String(), string(res.Source)).Inc()
	metrics.ConfidenceScore.WithLabelValues(string(res.Source)).Observe(res.Confidence)

	return res
}

func (r *Resolver) resolve(ctx context.Context, text string, mode Mode) Result {
	if strings.TrimSpace(text) == "" {
		return r.fallback.Resolve(text, mode)
	}

	if purged := r.cache.PurgeExpired(ctx); purged > 0 {
		logger.Debug("Expired resolutions purged", zap.Int("count", purged))
	}

	key := CacheKey(text, mode)
	if cached, ok := r.cache.Get(ctx, key); ok {
		logger.Debug("Resolution cache hit", zap.String("key", key), zap.String("mode", mode.String()))
		return cached
	}

	lexical := r.fallback.Resolve(text, mode)
	if accept(lexical) {
		logger.Debug("Lexical match accepted",
			zap.String("text", text),
			zap.Float64("confidence", lexical.Confidence),
		)
		r.cache.Put(ctx, key, lexical)
		return lexical
	}

	if r.model == nil {
		r.cache.Put(ctx, key, lexical)
		return lexical
	}

	res, err := r.askModel(ctx, text, mode)
	if err != nil {
		logger.Warn("Model resolution failed, using lexical result",
			zap.String("text", text),
			zap.String("mode", mode.String()),
			zap.String("kind", errorKind(err)),
			zap.Error(err),
		)
		lexical.Source = SourceFallback
		r.cache.Put(ctx, key, lexical)
		return lexical
	}

	logger.Info("Model resolution completed",
		zap.String("text", text),
		zap.String("mode", mode.String()),
		zap.Float64("confidence", res.Confidence),
	)
	r.cache.Put(ctx, key, res)
	return res
}

func (r *Resolver) askModel(ctx context.Context, text string, mode Mode) (Result, error) {
	resp, err := r.model.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   BuildPrompt(text, r.vocabulary, mode),
	})
	if err != nil {
		return Result{}, err
	}
	return ParseReply(resp.Content, mode)
}

func accept(res Result) bool {
	if res.Mode == ModeBestMatch {
		return res.Confidence >= bestMatchAccept
	}
	return res.Confidence >= rankedAccept && len(res.Locations) > 0
}

func errorKind(err error) string {
	if errors.Is(err, ErrParse) {
		return "parse"
	}
	return llm.ErrorKind(err)
}
