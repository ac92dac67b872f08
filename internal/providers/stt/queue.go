package stt

import (
	"context"
	"sync"
	"sync/atomic"
)

type job struct {
	ctx   context.Context
	audio Audio
	done  chan jobResult
}

type jobResult struct {
	res *Result
	err error
}

// Queue feeds a single worker goroutine, so the wrapped provider never
// sees two calls at once.
type Queue struct {
	p       Provider
	jobs    chan job
	quit    chan struct{}
	stopped chan struct{}
	once    sync.Once
	waiting atomic.Int64
}

func NewQueue(p Provider) *Queue {
	q := &Queue{
		p:       p,
		jobs:    make(chan job),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.stopped)
	for {
		select {
		case <-q.quit:
			return
		case j := <-q.jobs:
			if err := j.ctx.Err(); err != nil {
				j.done <- jobResult{err: err}
				continue
			}
			res, err := q.p.Transcribe(j.ctx, j.audio)
			j.done <- jobResult{res: res, err: err}
		}
	}
}

func (q *Queue) Transcribe(ctx context.Context, a Audio) (*Result, error) {
	j := job{ctx: ctx, audio: a, done: make(chan jobResult, 1)}

	q.waiting.Add(1)
	select {
	case q.jobs <- j:
		q.waiting.Add(-1)
	case <-ctx.Done():
		q.waiting.Add(-1)
		return nil, ctx.Err()
	case <-q.quit:
		q.waiting.Add(-1)
		return nil, ErrClosed
	}

	// the worker owns a.Reader until it answers
	r := <-j.done
	return r.res, r.err
}

// Waiting reports callers blocked behind the running transcription.
func (q *Queue) Waiting() int64 { return q.waiting.Load() }

func (q *Queue) Name() string  { return q.p.Name() }
func (q *Queue) Model() string { return q.p.Model() }

// Close stops the worker after the running job and closes the provider.
func (q *Queue) Close() error {
	var err error
	q.once.Do(func() {
		close(q.quit)
		<-q.stopped
		err = q.p.Close()
	})
	return err
}
