// Package refine resolves the free-text location of reported cards in the
// background and stores the canonical name on the card.
package refine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-card/backend/internal/location"
	"github.com/campus-card/backend/internal/metrics"
	"github.com/campus-card/backend/pkg/logger"
)

var ErrStopped = errors.New("refinement scheduler stopped")

type LocationResolver interface {
	Resolve(ctx context.Context, text string, mode location.Mode) location.Result
}

// CardStore applies a resolved name only while the card still carries the
// raw text it was resolved from; stored is false when a newer report won.
type CardStore interface {
	SetResolvedLocation(ctx context.Context, cardID int64, rawText, name string) (stored bool, err error)
}

type Config struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
	// Only results strictly above MinConfidence are stored.
	MinConfidence float64
}

func DefaultConfig() Config {
	return Config{
		Workers:       4,
		QueueSize:     256,
		TaskTimeout:   400 * time.Second,
		MinConfidence: 0.5,
	}
}

type task struct {
	id     string
	cardID int64
	text   string
}

// Scheduler runs refinement tasks on a fixed pool of workers. Tasks are
// independent and complete in no particular order.
type Scheduler struct {
	resolver LocationResolver
	store    CardStore
	cfg      Config

	queue   chan task
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	stopped bool
}

func NewScheduler(resolver LocationResolver, store CardStore, cfg Config) *Scheduler {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = def.TaskTimeout
	}

	return &Scheduler{
		resolver: resolver,
		store:    store,
		cfg:      cfg,
		queue:    make(chan task, cfg.QueueSize),
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	logger.Info("Refinement scheduler started",
		zap.Int("workers", s.cfg.Workers),
		zap.Int("queue_size", s.cfg.QueueSize),
	)
}

// Schedule enqueues a card for refinement without blocking. It reports false
// when the queue is full or the scheduler is stopped; the card then keeps
// its raw location.
func (s *Scheduler) Schedule(cardID int64, rawText string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.stopped {
		metrics.RefinementTotal.WithLabelValues("rejected").Inc()
		return false
	}

	t := task{id: uuid.NewString(), cardID: cardID, text: rawText}
	select {
	case s.queue <- t:
		metrics.RefinementQueueDepth.Set(float64(len(s.queue)))
		logger.Debug("Refinement scheduled", zap.String("task_id", t.id), zap.Int64("card_id", cardID))
		return true
	default:
		metrics.RefinementTotal.WithLabelValues("dropped").Inc()
		logger.Warn("Refinement queue full, task dropped",
			zap.Int64("card_id", cardID),
			zap.Int("queue_size", s.cfg.QueueSize),
		)
		return false
	}
}

// Stop rejects new tasks and waits for queued ones to finish or for ctx to
// expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.queue)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Refinement scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrStopped, ctx.Err())
	}
}

func (s *Scheduler) worker(n int) {
	defer s.wg.Done()
	for t := range s.queue {
		metrics.RefinementQueueDepth.Set(float64(len(s.queue)))
		s.run(n, t)
	}
}

func (s *Scheduler) run(worker int, t task) {
	log := logger.GetLogger().With(
		zap.String("task_id", t.id),
		zap.Int64("card_id", t.cardID),
		zap.Int("worker", worker),
	)

	defer func() {
		if r := recover(); r != nil {
			metrics.RefinementTotal.WithLabelValues("panic").Inc()
			log.Error("Refinement task panicked", zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.TaskTimeout)
	defer cancel()

	res := s.resolver.Resolve(ctx, t.text, location.ModeBestMatch)
	name, ok := res.Best()
	if !ok || res.Confidence <= s.cfg.MinConfidence {
		metrics.RefinementTotal.WithLabelValues("low_confidence").Inc()
		log.Info("Refinement confidence too low, keeping raw location",
			zap.String("text", t.text),
			zap.Float64("confidence", res.Confidence),
		)
		return
	}

	stored, err := s.store.SetResolvedLocation(ctx, t.cardID, t.text, name)
	if err != nil {
		metrics.RefinementTotal.WithLabelValues("store_error").Inc()
		log.Error("Failed to store resolved location", zap.String("select_loc", name), zap.Error(err))
		return
	}
	if !stored {
		metrics.RefinementTotal.WithLabelValues("superseded").Inc()
		log.Info("Card re-reported since scheduling, discarding result",
			zap.String("text", t.text),
			zap.String("select_loc", name),
		)
		return
	}

	metrics.RefinementTotal.WithLabelValues("stored").Inc()
	log.Info("Card location refined",
		zap.String("text", t.text),
		zap.String("select_loc", name),
		zap.Float64("confidence", res.Confidence),
		zap.String("source", string(res.Source)),
	)
}
