package stt

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvider records the highest number of overlapping calls.
type countingProvider struct {
	active  atomic.Int32
	maxSeen atomic.Int32
	closed  atomic.Bool
	delay   time.Duration
}

func (p *countingProvider) Transcribe(ctx context.Context, a Audio) (*Result, error) {
	n := p.active.Add(1)
	defer p.active.Add(-1)
	for {
		old := p.maxSeen.Load()
		if n <= old || p.maxSeen.CompareAndSwap(old, n) {
			break
		}
	}
	select {
	case <-time.After(p.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &Result{Text: "ok " + a.Filename}, nil
}

func (p *countingProvider) Name() string  { return "counting" }
func (p *countingProvider) Model() string { return "tiny" }
func (p *countingProvider) Close() error  { p.closed.Store(true); return nil }

type safeProvider struct{ countingProvider }

func (p *safeProvider) ConcurrencySafe() bool { return true }

func TestQueue_SerializesCalls(t *testing.T) {
	p := &countingProvider{delay: 10 * time.Millisecond}
	q := NewQueue(p)
	defer q.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := q.Transcribe(context.Background(), Audio{Filename: "a.wav", Reader: strings.NewReader("x")})
			assert.NoError(t, err)
			assert.Equal(t, "ok a.wav", res.Text)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), p.maxSeen.Load())
	assert.Equal(t, "counting", q.Name())
	assert.Equal(t, "tiny", q.Model())
}

func TestQueue_CancelledWhileWaiting(t *testing.T) {
	p := &countingProvider{delay: 200 * time.Millisecond}
	q := NewQueue(p)
	defer q.Close()

	go func() { _, _ = q.Transcribe(context.Background(), Audio{Filename: "slow.wav"}) }()
	require.Eventually(t, func() bool { return p.active.Load() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := q.Transcribe(ctx, Audio{Filename: "late.wav"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_Close(t *testing.T) {
	p := &countingProvider{}
	q := NewQueue(p)

	require.NoError(t, q.Close())
	assert.True(t, p.closed.Load())
	assert.NoError(t, q.Close())

	_, err := q.Transcribe(context.Background(), Audio{Filename: "a.wav"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSerialize(t *testing.T) {
	unsafe := &countingProvider{}
	wrapped := Serialize(unsafe)
	_, isQueue := wrapped.(*Queue)
	assert.True(t, isQueue)
	_ = wrapped.Close()

	safe := &safeProvider{}
	assert.Same(t, safe, Serialize(safe).(*safeProvider))
}
