package llmprovider

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EventSource is an open wire stream of one response.
//
// Recv blocks until the next event is available. It returns io.EOF when the
// stream completes normally and any other error on transport failure; it must
// return promptly once ctx is cancelled. Close releases the underlying
// connection and may be called more than once.
type EventSource interface {
	Recv(ctx context.Context) (StreamEvent, error)
	Close() error
}

type streamOptions struct {
	bufferSize int
	mapErr     ErrorMapper
	logger     zerolog.Logger
	provider   string
}

// StreamOption configures StreamEvents.
type StreamOption func(*streamOptions)

// WithBufferSize sets the output capacity. Values below 1 are raised to 1.
func WithBufferSize(n int) StreamOption {
	return func(o *streamOptions) {
		o.bufferSize = n
	}
}

// WithErrorMapper overrides the classification of source errors.
func WithErrorMapper(m ErrorMapper) StreamOption {
	return func(o *streamOptions) {
		if m != nil {
			o.mapErr = m
		}
	}
}

// WithLogger sets the logger. The default is the zerolog global logger.
func WithLogger(l zerolog.Logger) StreamOption {
	return func(o *streamOptions) {
		o.logger = l
	}
}

// WithProviderName sets the provider name used in errors and logs.
func WithProviderName(name string) StreamOption {
	return func(o *streamOptions) {
		o.provider = name
	}
}

// StreamEvents starts a goroutine that reads src, folds its events through a
// fresh Accumulator, and publishes the results on the returned stream:
// snapshots and the final message in receipt order, then the usage report if
// one was captured, then the end-of-stream marker.
//
// When src fails, or ends without a message stop, any accumulated content is
// published as a final message with StopReasonIncomplete, followed by the
// mapped error. A stream that ends with no events at all, or without a
// message stop, is reported as a TransportFailed error wrapping
// ErrStreamTruncated and never as a successful completion.
// Closing the returned stream stops production without error.
// StreamEvents takes ownership of src and closes it.
func StreamEvents(ctx context.Context, model string, src EventSource, opts ...StreamOption) *MessageStream {
	o := streamOptions{
		bufferSize: DefaultStreamBuffer,
		mapErr:     DefaultErrorMapper,
		logger:     log.Logger,
		provider:   "unknown",
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	s := &MessageStream{
		id:     id,
		out:    newOutputChannel(o.bufferSize),
		cancel: cancel,
		exited: make(chan struct{}),
	}

	p := &producer{
		model:  model,
		src:    src,
		out:    s.out,
		acc:    NewAccumulator(),
		opts:   o,
		logger: o.logger.With().Str("stream_id", id).Str("provider", o.provider).Str("model", model).Logger(),
	}

	go func() {
		defer close(s.exited)
		defer cancel()
		p.run(ctx)
	}()

	return s
}

// producer is the state of one production goroutine.
type producer struct {
	model  string
	src    EventSource
	out    *outputChannel
	acc    *Accumulator
	opts   streamOptions
	logger zerolog.Logger

	events int
	items  int
}

func (p *producer) run(ctx context.Context) {
	var abortErr error
	defer func() {
		p.out.finish(abortErr)
	}()
	defer func() {
		if err := p.src.Close(); err != nil {
			p.logger.Debug().Err(err).Msg("closing event source")
		}
	}()

	p.logger.Debug().Int("buffer", cap(p.out.items)).Msg("stream started")

	for {
		ev, err := p.src.Recv(ctx)
		if err != nil {
			if p.out.isClosed() {
				p.logger.Debug().Int("events", p.events).Int("items", p.items).Msg("stream closed by consumer")
				return
			}
			if errors.Is(err, io.EOF) {
				if p.acc.Finished() {
					abortErr = p.complete(ctx)
					return
				}
				err = ErrStreamTruncated
			}
			abortErr = p.fail(ctx, err)
			return
		}
		p.events++

		if u, ok := ev.(UnknownEvent); ok {
			p.logger.Debug().Str("type", u.Type).Msg("ignoring unknown stream event")
		}

		msg := p.acc.Apply(ev)
		if msg == nil {
			continue
		}
		if !p.push(ctx, StreamItem{Message: msg}) {
			abortErr = p.interrupted(ctx)
			return
		}
	}
}

func (p *producer) push(ctx context.Context, item StreamItem) bool {
	if !p.out.send(ctx, streamResult{item: item}) {
		return false
	}
	p.items++
	return true
}

// interrupted handles a push that did not go through. A consumer close ends
// the stream silently; a cancelled context is reported as a failure.
func (p *producer) interrupted(ctx context.Context) error {
	if p.out.isClosed() {
		p.logger.Debug().Int("events", p.events).Int("items", p.items).Msg("stream closed by consumer")
		return nil
	}
	return p.fail(ctx, ctx.Err())
}

// complete publishes the usage report and the end marker after a normal finish.
func (p *producer) complete(ctx context.Context) error {
	if u := p.acc.Usage(); u != nil {
		if !p.push(ctx, StreamItem{Usage: &ProviderUsage{Model: p.model, Usage: *u}}) {
			return p.interrupted(ctx)
		}
	}
	if !p.push(ctx, StreamItem{}) {
		return p.interrupted(ctx)
	}
	p.logger.Debug().
		Int("events", p.events).
		Int("items", p.items).
		Str("stop_reason", string(p.acc.StopReason())).
		Msg("stream completed")
	return nil
}

// fail publishes the partial message, if any, and the mapped error. It
// returns the error when it could not be delivered.
func (p *producer) fail(ctx context.Context, cause error) error {
	mapped := p.opts.mapErr(p.opts.provider, cause)
	if mapped == nil {
		mapped = DefaultErrorMapper(p.opts.provider, cause)
	}
	partial := p.acc.HasContent() && !p.acc.Finished()
	p.logger.Warn().
		Err(cause).
		Str("kind", mapped.Kind.String()).
		Int("events", p.events).
		Bool("partial", partial).
		Msg("stream failed")

	// Once the caller's context is gone nothing may block.
	deliver := func(r streamResult) bool {
		if ctx.Err() != nil {
			return p.out.trySend(r)
		}
		return p.out.send(ctx, r)
	}

	if partial {
		final := p.acc.Finalize(StopReasonIncomplete)
		if !deliver(streamResult{item: StreamItem{Message: final}}) {
			if p.out.isClosed() {
				return nil
			}
			return mapped
		}
		p.items++
	}

	if !deliver(streamResult{err: mapped}) && !p.out.isClosed() {
		return mapped
	}
	return nil
}
