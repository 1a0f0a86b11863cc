package llmprovider

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync"
)

// DefaultStreamBuffer is the default number of pending items a stream buffers
// before the producer blocks.
const DefaultStreamBuffer = 100

// ErrStreamClosed is reported to observers when the consumer closes a stream
// before its end.
var ErrStreamClosed = errors.New("stream closed by consumer")

// StreamObserver is notified of what the consumer of a MessageStream receives.
// OnEnd is called exactly once: with nil after the end-of-stream marker, with
// the terminal error, or with ErrStreamClosed. It may run on the goroutine
// that calls Close.
type StreamObserver interface {
	OnItem(item StreamItem)
	OnEnd(err error)
}

// StreamItem is one successful result of a stream:
//
//   - Message set: a text snapshot, or the final message
//   - Usage set: token usage, once, after the final message
//   - neither set: end of stream
type StreamItem struct {
	Message *Message
	Usage   *ProviderUsage
}

// IsEnd reports whether the item is the end-of-stream marker.
func (i StreamItem) IsEnd() bool {
	return i.Message == nil && i.Usage == nil
}

type streamResult struct {
	item StreamItem
	err  error
}

// outputChannel is a bounded single-producer/single-consumer queue.
// The producer closes items when it exits; the consumer closes done to abandon the stream.
type outputChannel struct {
	items     chan streamResult
	done      chan struct{}
	closeOnce sync.Once

	// abortErr is set by the producer before closing items when it could
	// not deliver its terminal error.
	abortErr error
}

func newOutputChannel(capacity int) *outputChannel {
	if capacity < 1 {
		capacity = 1
	}
	return &outputChannel{
		items: make(chan streamResult, capacity),
		done:  make(chan struct{}),
	}
}

// send blocks until there is capacity. It returns false if the consumer
// closed the channel or ctx is done.
func (c *outputChannel) send(ctx context.Context, r streamResult) bool {
	// Closure takes priority over free capacity.
	if c.isClosed() {
		return false
	}
	select {
	case c.items <- r:
		return true
	case <-c.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// trySend delivers r only if capacity is available right now.
func (c *outputChannel) trySend(r streamResult) bool {
	if c.isClosed() {
		return false
	}
	select {
	case c.items <- r:
		return true
	default:
		return false
	}
}

func (c *outputChannel) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// finish is called once by the producer when it exits.
func (c *outputChannel) finish(abortErr error) {
	c.abortErr = abortErr
	close(c.items)
}

func (c *outputChannel) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// MessageStream is the consumer side of a streamed response. It is a finite,
// forward-only sequence and is not restartable.
//
// Usage:
//
//	stream, err := provider.Stream(ctx, req)
//	if err != nil { return err }
//	defer stream.Close()
//	for item, err := range stream.All() {
//	  if err != nil { handle error; break }
//	  if item.Message != nil { render snapshot or final message }
//	  if item.Usage != nil { record usage }
//	}
//
// A MessageStream is meant for one consumer goroutine. Close may be called
// from any goroutine.
type MessageStream struct {
	id     string
	out    *outputChannel
	cancel context.CancelFunc
	ended  bool
	exited chan struct{} // closed when the producer goroutine returns

	observers []StreamObserver
	endOnce   sync.Once
}

// ID returns the stream identifier used in log records.
func (s *MessageStream) ID() string {
	return s.id
}

// Recv returns the next item. It blocks until one is available.
//
// The end-of-stream item (IsEnd) is returned once; subsequent calls, and calls
// after a terminal error or Close, return io.EOF.
func (s *MessageStream) Recv() (StreamItem, error) {
	if s.ended {
		return StreamItem{}, io.EOF
	}
	item, err := s.recv()
	s.notify(item, err)
	return item, err
}

func (s *MessageStream) recv() (StreamItem, error) {
	if s.out.isClosed() {
		return StreamItem{}, io.EOF
	}
	select {
	case r, ok := <-s.out.items:
		if !ok {
			s.ended = true
			if s.out.abortErr != nil {
				return StreamItem{}, s.out.abortErr
			}
			return StreamItem{}, io.EOF
		}
		if r.err != nil {
			s.ended = true
			return StreamItem{}, r.err
		}
		if r.item.IsEnd() {
			s.ended = true
		}
		return r.item, nil
	case <-s.out.done:
		return StreamItem{}, io.EOF
	}
}

// All returns the stream as a lazy sequence. The end-of-stream marker is not
// yielded. Breaking out of the loop closes the stream.
func (s *MessageStream) All() iter.Seq2[StreamItem, error] {
	return func(yield func(StreamItem, error) bool) {
		defer s.Close()
		for {
			item, err := s.Recv()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(StreamItem{}, err)
				return
			}
			if item.IsEnd() {
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// Collect drains the stream and returns the last message, the usage report,
// and the terminal error. After an abrupt disconnect the synthesized final
// message is returned together with the error.
func (s *MessageStream) Collect() (*Message, *ProviderUsage, error) {
	var last *Message
	var usage *ProviderUsage
	for item, err := range s.All() {
		if err != nil {
			return last, usage, err
		}
		if item.Message != nil {
			last = item.Message
		}
		if item.Usage != nil {
			usage = item.Usage
		}
	}
	return last, usage, nil
}

// Close abandons the stream. The producer stops at its next suspension point
// without reading further events. Close is idempotent and always returns nil.
func (s *MessageStream) Close() error {
	s.end(ErrStreamClosed)
	s.out.close()
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// Observe registers o. It must be called before the stream is consumed.
func (s *MessageStream) Observe(o StreamObserver) {
	s.observers = append(s.observers, o)
}

func (s *MessageStream) notify(item StreamItem, err error) {
	switch {
	case err == io.EOF:
		s.end(nil)
	case err != nil:
		s.end(err)
	default:
		for _, o := range s.observers {
			o.OnItem(item)
		}
		if item.IsEnd() {
			s.end(nil)
		}
	}
}

func (s *MessageStream) end(err error) {
	s.endOnce.Do(func() {
		for _, o := range s.observers {
			o.OnEnd(err)
		}
	})
}

// Done returns a channel that is closed once the producer goroutine has exited.
func (s *MessageStream) Done() <-chan struct{} {
	return s.exited
}
