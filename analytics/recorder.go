package analytics

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hatefsystems/search-engine-core-sub000/model"
	"github.com/hatefsystems/search-engine-core-sub000/utils"
	"github.com/rs/zerolog/log"
)

// Sink persists events; store.AnalyticsStore satisfies it
type Sink interface {
	RecordClick(ctx context.Context, e *model.ClickEvent) error
	RecordView(ctx context.Context, e *model.ViewEvent) error
}

// Options configures a Recorder
type Options struct {
	Async        bool          // Write from worker goroutines instead of the request goroutine
	QueueSize    int           // Pending events before new ones are dropped
	Workers      int           // Writer goroutines
	WriteTimeout time.Duration // Deadline of each store write
	TrustProxy   bool          // Read the client address from forwarding headers
}

type job struct {
	click *model.ClickEvent
	view  *model.ViewEvent
}

// Recorder records profile views and link clicks. Recording never fails the
// request: errors are logged and, in async mode, a full queue drops the event.
type Recorder struct {
	sink    Sink
	geo     GeoLocator
	opts    Options
	now     func() time.Time
	queue   chan job
	wg      sync.WaitGroup
	mu      sync.RWMutex // guards closed against sends on a closed queue
	closed  bool
	dropped atomic.Int64
	written atomic.Int64
	failed  atomic.Int64
}

// NewRecorder creates a recorder and, in async mode, starts its workers
func NewRecorder(sink Sink, geo GeoLocator, opts Options) *Recorder {
	if geo == nil {
		geo = NoopLocator{}
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = time.Second
	}

	r := &Recorder{
		sink: sink,
		geo:  geo,
		opts: opts,
		now:  time.Now,
	}

	if opts.Async {
		r.queue = make(chan job, opts.QueueSize)
		for i := 0; i < opts.Workers; i++ {
			r.wg.Add(1)
			go r.worker()
		}
	}
	return r
}

// RecordClick records a redirect through /l/{linkId}
func (r *Recorder) RecordClick(req *http.Request, link *model.LinkBlock) {
	now := r.now().UTC()
	r.submit(job{click: &model.ClickEvent{
		ID:          utils.NewULID(now),
		LinkID:      link.ID,
		ProfileID:   link.ProfileID,
		ClickedAt:   now,
		AccessEvent: AccessFromRequest(req, r.geo, r.opts.TrustProxy),
	}})
}

// RecordView records a public profile view
func (r *Recorder) RecordView(req *http.Request, profile *model.Profile) {
	now := r.now().UTC()
	r.submit(job{view: &model.ViewEvent{
		ID:          utils.NewULID(now),
		ProfileID:   profile.ID,
		ViewedAt:    now,
		AccessEvent: AccessFromRequest(req, r.geo, r.opts.TrustProxy),
	}})
}

func (r *Recorder) submit(j job) {
	if !r.opts.Async {
		r.write(j)
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.dropped.Add(1)
		return
	}
	select {
	case r.queue <- j:
	default:
		r.dropped.Add(1)
		log.Warn().Int("queue_size", r.opts.QueueSize).Msg("Analytics queue full, dropping event")
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()
	for j := range r.queue {
		r.write(j)
	}
}

// write persists one event under its own deadline, detached from the request
func (r *Recorder) write(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.WriteTimeout)
	defer cancel()

	var err error
	switch {
	case j.click != nil:
		err = r.sink.RecordClick(ctx, j.click)
	case j.view != nil:
		err = r.sink.RecordView(ctx, j.view)
	}

	if err != nil {
		r.failed.Add(1)
		log.Error().Err(err).Msg("Failed to record analytics event")
		return
	}
	r.written.Add(1)
}

// Close stops accepting events and waits for queued ones to be written
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	if r.queue != nil {
		close(r.queue)
	}
	r.mu.Unlock()

	r.wg.Wait()
	log.Info().
		Int64("written", r.written.Load()).
		Int64("dropped", r.dropped.Load()).
		Int64("failed", r.failed.Load()).
		Msg("Analytics recorder stopped")
}

// RecorderStats reports recorder counters
type RecorderStats struct {
	Written int64 `json:"written"`
	Dropped int64 `json:"dropped"`
	Failed  int64 `json:"failed"`
	Pending int   `json:"pending"`
}

// Stats returns a snapshot of the recorder counters
func (r *Recorder) Stats() RecorderStats {
	return RecorderStats{
		Written: r.written.Load(),
		Dropped: r.dropped.Load(),
		Failed:  r.failed.Load(),
		Pending: len(r.queue),
	}
}
