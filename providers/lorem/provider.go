package lorem

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	loremgen "github.com/bozaro/golorem"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cronus42/goose"
)

// ErrInjectedFailure is raised mid-stream by "lorem-fail" models.
var ErrInjectedFailure = errors.New("lorem: injected model failure")

// Provider is a mock LLM provider that generates lorem ipsum text.
// Used for testing and development without requiring real API keys.
//
// Model names select the behavior: "slow", "medium" and "fast" set the pace,
// "cutoff" stops at max_tokens, "fail" fails halfway with an execution error
// and "truncate" ends the stream without a message stop.
type Provider struct {
	mu        sync.Mutex
	generator *loremgen.Lorem

	delay      *time.Duration
	bufferSize int
	logger     zerolog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithDelay replaces the per-word delay derived from the model name.
func WithDelay(d time.Duration) Option {
	return func(p *Provider) {
		p.delay = &d
	}
}

// WithBufferSize sets the stream output capacity.
func WithBufferSize(n int) Option {
	return func(p *Provider) {
		p.bufferSize = n
	}
}

// WithLogger sets the logger used by the provider and its streams.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Provider) {
		p.logger = l
	}
}

// NewProvider creates a new lorem ipsum provider.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		generator:  loremgen.New(),
		bufferSize: llmprovider.DefaultStreamBuffer,
		logger:     log.Logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With().Str("provider", p.Name().String()).Logger()
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() llmprovider.ProviderID {
	return llmprovider.ProviderLorem
}

// SupportsModel returns true if the model name starts with "lorem-".
// Example models: "lorem-fast", "lorem-slow", "lorem-test"
func (p *Provider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "lorem-")
}

// Stream generates a scripted response and streams it through the shared
// pipeline, pacing deltas by the model's speed.
func (p *Provider) Stream(ctx context.Context, req *llmprovider.GenerateRequest) (*llmprovider.MessageStream, error) {
	model := req.ModelOrDefault(llmprovider.GetCapabilityRegistry().DefaultModel(p.Name().String()))
	if !p.SupportsModel(model) {
		return nil, &llmprovider.ModelError{
			Model:    model,
			Provider: p.Name().String(),
			Reason:   "model not supported by Lorem provider (must start with 'lorem-')",
			Err:      llmprovider.ErrInvalidModel,
		}
	}
	if err := llmprovider.ValidateRequestParams(req.Params); err != nil {
		return nil, err
	}

	src, err := p.newEventSource(model, req)
	if err != nil {
		return nil, err
	}

	p.logger.Debug().
		Str("model", model).
		Int("events", len(src.steps)).
		Dur("delay", src.delay).
		Msg("lorem stream scripted")

	return llmprovider.StreamEvents(ctx, model, src,
		llmprovider.WithProviderName(p.Name().String()),
		llmprovider.WithErrorMapper(mapError),
		llmprovider.WithLogger(p.logger),
		llmprovider.WithBufferSize(p.bufferSize),
	), nil
}

// Complete drains a stream of the same script.
func (p *Provider) Complete(ctx context.Context, req *llmprovider.GenerateRequest) (*llmprovider.Message, *llmprovider.ProviderUsage, error) {
	stream, err := p.Stream(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	return stream.Collect()
}

func (p *Provider) newEventSource(model string, req *llmprovider.GenerateRequest) (*eventSource, error) {
	b := modelBehavior(model)
	if p.delay != nil {
		b.delay = *p.delay
	}

	maxTokens := req.Params.GetMaxTokens(DefaultWords)
	target := maxTokens
	if b.cutoff {
		// Cutoff models generate 50% more to simulate hitting max_tokens
		target = maxTokens + maxTokens/2
	}

	w := &scriptWriter{delay: b.delay}
	w.emit(llmprovider.MessageStartEvent{Role: llmprovider.RoleAssistant}, 0)

	words := p.words(target)
	reason := llmprovider.StopReasonEndTurn
	if b.cutoff {
		words = words[:maxTokens]
		reason = llmprovider.StopReasonMaxTokens
	}
	w.text(words)

	if tool := pickTool(req); tool != nil && !b.cutoff {
		if err := w.toolUse(tool.Function.Name, mockInput(tool, p.word)); err != nil {
			return nil, err
		}
		reason = llmprovider.StopReasonToolUse
	}

	if !b.truncate {
		w.emit(llmprovider.MessageStopEvent{StopReason: reason}, 0)
		input, output := estimateTokens(req.System, req.Messages), w.output
		usage := llmprovider.NewUsage(&input, &output)
		w.emit(llmprovider.MetadataEvent{Usage: &usage}, 0)
	}

	src := &eventSource{steps: w.steps, delay: b.delay, failAt: -1}
	if b.fail {
		src.failAt = len(w.steps) / 2
	}
	return src, nil
}

// words generates exactly n lorem ipsum words.
func (p *Provider) words(n int) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	words := make([]string, 0, n+15)
	for len(words) < n {
		// Sentences of 5-15 words
		words = append(words, strings.Fields(p.generator.Sentence(5, 15))...)
	}
	return words[:n]
}

func (p *Provider) word() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generator.Word(4, 10)
}

// eventSource replays a script, sleeping before each step.
type eventSource struct {
	steps  []step
	delay  time.Duration
	pos    int
	failAt int
}

func (s *eventSource) Recv(ctx context.Context) (llmprovider.StreamEvent, error) {
	if s.pos == s.failAt {
		return nil, ErrInjectedFailure
	}
	if s.pos >= len(s.steps) {
		return nil, io.EOF
	}

	st := s.steps[s.pos]
	if st.delay > 0 {
		timer := time.NewTimer(st.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.pos++
	return st.event, nil
}

func (s *eventSource) Close() error {
	return nil
}

// mapError classifies injected failures as model execution errors.
func mapError(provider string, err error) *llmprovider.ProviderError {
	if errors.Is(err, ErrInjectedFailure) {
		return llmprovider.MapFailure(provider, llmprovider.Failure{
			Code:     llmprovider.FailureModelStream,
			WireCode: "InjectedFailure",
			Err:      err,
		})
	}
	return llmprovider.DefaultErrorMapper(provider, err)
}
