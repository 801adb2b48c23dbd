// Package stream turns the callback-driven response stream of an agent call
// into an ordered pull sequence and serializes that sequence for HTTP
// delivery.
package stream

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync"
	"time"

	v1 "github.com/furisto/switchboard/api/go/v1"
)

// Receiver is the inbound side of a server-streamed call, as returned by
// connect.Client.CallServerStream.
type Receiver interface {
	Receive() bool
	Msg() *v1.AgentResponse
	Err() error
	Close() error
}

// Stream buffers the responses of a single agent call. The transport pushes
// with Publish, End and Fail; a single consumer pulls with Next.
//
// Publishing never blocks. Responses are returned in arrival order, each
// exactly once, and a transport failure is delivered as one trailing error
// response rather than as an error from Next.
type Stream struct {
	mu     sync.Mutex
	queue  []*v1.AgentResponse
	done   bool
	closed bool

	ready  chan struct{}
	cancel context.CancelFunc
	once   sync.Once
	now    func() time.Time

	metrics *Metrics
}

type Option func(*Stream)

// WithCancel registers the function that aborts the underlying call when the
// consumer closes the stream.
func WithCancel(cancel context.CancelFunc) Option {
	return func(s *Stream) {
		s.cancel = cancel
	}
}

// WithMetrics records stream activity in m. A nil Metrics disables recording.
func WithMetrics(m *Metrics) Option {
	return func(s *Stream) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Stream) {
		s.now = now
	}
}

func New(opts ...Option) *Stream {
	s := &Stream{
		ready: make(chan struct{}, 1),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.metrics.IncrementOpened()
	return s
}

// Failed returns a stream holding only the error response for err.
func Failed(err error, opts ...Option) *Stream {
	s := New(opts...)
	s.Fail(err)
	return s
}

// Publish appends a response to the queue. Responses published after the
// stream completed are dropped.
func (s *Stream) Publish(resp *v1.AgentResponse) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, resp)
	s.mu.Unlock()

	s.notify()
}

// End marks the stream as complete. Queued responses remain readable.
func (s *Stream) End() {
	if s.complete(nil) {
		s.metrics.IncrementFinished(outcomeCompleted)
	}
}

// Fail appends the error response for err and marks the stream as complete.
// It has no effect once the stream completed.
func (s *Stream) Fail(err error) {
	if err == nil {
		err = errors.New("stream failed")
	}
	if s.complete(v1.NewErrorResponse(err.Error(), s.now())) {
		s.metrics.IncrementFinished(outcomeFailed)
	}
}

func (s *Stream) complete(last *v1.AgentResponse) bool {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return false
	}
	if last != nil {
		s.queue = append(s.queue, last)
	}
	s.done = true
	s.mu.Unlock()

	s.notify()
	return true
}

func (s *Stream) notify() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Next returns the oldest queued response, waiting for one to arrive if the
// queue is empty. It returns io.EOF once the queue is drained and the stream
// is complete, and ctx.Err() if ctx ends first.
func (s *Stream) Next(ctx context.Context) (*v1.AgentResponse, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			resp := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.mu.Unlock()

			s.metrics.IncrementEvents(resp.Kind())
			return resp, nil
		}
		if s.done {
			s.mu.Unlock()
			return nil, io.EOF
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.ready:
		}
	}
}

// All ranges over the remaining responses. Breaking out of the loop closes
// the stream. Iteration stops silently when ctx ends.
func (s *Stream) All(ctx context.Context) iter.Seq[*v1.AgentResponse] {
	return func(yield func(*v1.AgentResponse) bool) {
		for {
			resp, err := s.Next(ctx)
			if err != nil {
				if !errors.Is(err, io.EOF) {
					s.Close()
				}
				return
			}
			if !yield(resp) {
				s.Close()
				return
			}
		}
	}
}

// Close abandons the stream: the underlying call is cancelled and queued
// responses are discarded. Safe to call multiple times.
func (s *Stream) Close() error {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}

		s.mu.Lock()
		wasDone := s.done
		s.closed = true
		s.done = true
		s.queue = nil
		s.mu.Unlock()

		if !wasDone {
			s.metrics.IncrementFinished(outcomeAbandoned)
		}
		s.notify()
	})
	return nil
}

func (s *Stream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Pump forwards everything recv produces into the stream and closes recv when
// it is exhausted. onFinish, if set, receives the transport error (nil on a
// clean end) before the stream completes, unless the consumer closed the
// stream first.
func (s *Stream) Pump(recv Receiver, onFinish func(error)) {
	defer recv.Close()

	for recv.Receive() {
		s.Publish(recv.Msg())
	}

	if s.isClosed() {
		return
	}

	err := recv.Err()
	if onFinish != nil {
		onFinish(err)
	}

	if err != nil {
		s.Fail(err)
	} else {
		s.End()
	}
}
