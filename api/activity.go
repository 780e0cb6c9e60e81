package api

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/Abhinavmohindersingh/bigslick-admin/domain"
)

// SenderConfig sizes the activity worker pool.
type SenderConfig struct {
	Workers        int
	Buffer         int
	Timeout        time.Duration
	HandoffTimeout time.Duration
}

func (c SenderConfig) withDefaults() SenderConfig {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Buffer < 0 {
		c.Buffer = 0
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

type activityJob struct {
	userID string
	acts   []domain.Activity
}

// ActivitySender hands audit records to a pool of workers. When the buffer
// stays full past the handoff timeout the caller enqueues inline instead.
type ActivitySender struct {
	sink ActivitySink
	log  *log.Logger
	cfg  SenderConfig

	mu     sync.RWMutex
	jobs   chan activityJob
	closed bool
	wg     sync.WaitGroup
}

// NewActivitySender starts cfg.Workers workers writing to sink.
func NewActivitySender(sink ActivitySink, cfg SenderConfig, logger *log.Logger) *ActivitySender {
	if logger == nil {
		logger = log.StandardLogger()
	}
	cfg = cfg.withDefaults()
	s := &ActivitySender{
		sink: sink,
		log:  logger,
		cfg:  cfg,
		jobs: make(chan activityJob, cfg.Buffer),
	}
	for i := 0; i < cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	logger.WithFields(log.Fields{
		"workers": cfg.Workers,
		"buffer":  cfg.Buffer,
		"timeout": cfg.Timeout,
		"handoff": cfg.HandoffTimeout,
	}).Info("activity sender started")
	return s
}

func (s *ActivitySender) worker(id int) {
	defer s.wg.Done()
	for j := range s.jobs {
		if err := s.enqueue(j); err != nil {
			s.log.WithError(err).WithFields(log.Fields{
				"user":   j.userID,
				"count":  len(j.acts),
				"worker": id,
			}).Error("activity enqueue failed")
		}
	}
}

func (s *ActivitySender) enqueue(j activityJob) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()
	return s.sink.EnqueueActivities(ctx, j.userID, j.acts)
}

// Send records acts for userID. It only blocks when the pool is saturated.
func (s *ActivitySender) Send(userID string, acts ...domain.Activity) error {
	if len(acts) == 0 {
		return nil
	}
	job := activityJob{userID: userID, acts: acts}
	if s.tryHandoff(job) {
		return nil
	}
	s.log.Warn("activity buffer saturated; enqueueing inline")
	return s.enqueue(job)
}

func (s *ActivitySender) tryHandoff(job activityJob) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.jobs <- job:
		return true
	default:
	}
	if s.cfg.HandoffTimeout <= 0 {
		return false
	}
	timer := time.NewTimer(s.cfg.HandoffTimeout)
	defer timer.Stop()
	select {
	case s.jobs <- job:
		return true
	case <-timer.C:
		return false
	}
}

// Close stops accepting work and waits for queued jobs to drain.
func (s *ActivitySender) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.jobs)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

var lastTimestamp int64

// nextTimestamp returns strictly increasing unix nanoseconds.
func nextTimestamp() int64 {
	for {
		now := time.Now().UnixNano()
		last := atomic.LoadInt64(&lastTimestamp)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastTimestamp, last, now) {
			return now
		}
	}
}

// newActivity builds an audit record. data is encoded as JSON; encoding
// failures drop the payload but keep the record.
func newActivity(action, table string, data any) domain.Activity {
	act := domain.Activity{
		ID:        uuid.NewString(),
		Action:    action,
		Table:     table,
		Timestamp: nextTimestamp(),
	}
	if data != nil {
		if raw, err := sonic.Marshal(data); err == nil {
			act.Data = sonic.NoCopyRawMessage(raw)
		}
	}
	return act
}
