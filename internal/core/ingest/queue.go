package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// QueueConfig tunes the in-process ingestion queue.
type QueueConfig struct {
	// Workers is the number of materials processed concurrently.
	Workers int
	// QueueSize bounds jobs waiting for a worker; Enqueue fails beyond it.
	QueueSize int
	// MaxAttempts bounds delivery attempts per material.
	MaxAttempts int
	// RetryDelay is the wait before a failed job is re-delivered.
	RetryDelay time.Duration
	// ProcessTimeout is the wall-clock budget for one pipeline run.
	ProcessTimeout time.Duration
}

func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Workers:        2,
		QueueSize:      64,
		MaxAttempts:    3,
		RetryDelay:     30 * time.Second,
		ProcessTimeout: 25 * time.Minute,
	}
}

// Queue runs ingestion jobs on a bounded worker pool. Jobs survive only
// in memory; a restart loses queued work, and those materials stay in
// their last written status.
type Queue struct {
	proc *Processor
	pool *ants.Pool
	cfg  QueueConfig
	log  *zap.Logger

	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool
}

func NewQueue(proc *Processor, cfg QueueConfig, log *zap.Logger) (*Queue, error) {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	pool, err := ants.NewPool(cfg.Workers, ants.WithMaxBlockingTasks(cfg.QueueSize))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		proc:    proc,
		pool:    pool,
		cfg:     cfg,
		log:     log,
		baseCtx: ctx,
		cancel:  cancel,
		timers:  make(map[*time.Timer]struct{}),
	}, nil
}

// Enqueue schedules a material for ingestion. It blocks while the pool
// is saturated and fails with ants.ErrPoolOverload once the waiting
// backlog exceeds QueueSize.
func (q *Queue) Enqueue(materialID string) error {
	return q.submit(materialID, 1)
}

func (q *Queue) submit(materialID string, attempt int) error {
	return q.pool.Submit(func() {
		q.run(materialID, attempt)
	})
}

func (q *Queue) run(materialID string, attempt int) {
	ctx, cancel := context.WithTimeout(q.baseCtx, q.cfg.ProcessTimeout)
	defer cancel()

	_, err := q.proc.Process(ctx, materialID)
	if err == nil {
		return
	}

	if attempt >= q.cfg.MaxAttempts {
		q.log.Error("ingestion giving up",
			zap.String("material_id", materialID),
			zap.Int("attempts", attempt),
			zap.Error(err))
		return
	}

	q.log.Warn("ingestion attempt failed, scheduling retry",
		zap.String("material_id", materialID),
		zap.Int("attempt", attempt),
		zap.Duration("delay", q.cfg.RetryDelay),
		zap.Error(err))
	q.scheduleRetry(materialID, attempt+1)
}

func (q *Queue) scheduleRetry(materialID string, attempt int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(q.cfg.RetryDelay, func() {
		q.mu.Lock()
		delete(q.timers, timer)
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return
		}
		if err := q.submit(materialID, attempt); err != nil {
			q.log.Error("retry enqueue failed",
				zap.String("material_id", materialID),
				zap.Error(err))
		}
	})
	q.timers[timer] = struct{}{}
}

// Release stops the queue: pending retries are dropped, running jobs
// are cancelled through their contexts, and the pool is torn down.
func (q *Queue) Release() {
	q.mu.Lock()
	q.closed = true
	for t := range q.timers {
		t.Stop()
	}
	q.timers = make(map[*time.Timer]struct{})
	q.mu.Unlock()

	q.cancel()
	q.pool.Release()
}
