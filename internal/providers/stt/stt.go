// Package stt wraps the speech-to-text engines behind one Provider contract.
package stt

import (
	"context"
	"errors"
	"io"
	"time"
)

// Audio is one stored upload handed to an engine.
type Audio struct {
	Filename string // stored name, extension included
	Reader   io.Reader
	Size     int64
	Language string // empty lets the engine detect it
}

type Result struct {
	Text       string
	Language   string
	Confidence float64
	Duration   time.Duration
}

// Provider is resolved once at startup and shared by all requests.
// Implementations must return promptly once ctx is done.
type Provider interface {
	Transcribe(ctx context.Context, a Audio) (*Result, error)
	Name() string
	Model() string
	Close() error
}

// ConcurrencySafe is implemented by providers that may serve
// several Transcribe calls at once.
type ConcurrencySafe interface {
	ConcurrencySafe() bool
}

var ErrClosed = errors.New("stt: provider closed")

// Serialize returns p unchanged when it declares itself concurrency safe,
// otherwise a Queue running one transcription at a time.
func Serialize(p Provider) Provider {
	if cs, ok := p.(ConcurrencySafe); ok && cs.ConcurrencySafe() {
		return p
	}
	return NewQueue(p)
}
