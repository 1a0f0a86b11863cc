package anthropic

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cronus42/goose"
)

// Provider implements the llmprovider.Provider interface for Anthropic (Claude) models.
type Provider struct {
	client       anthropic.Client
	defaultModel string
	bufferSize   int
	logger       zerolog.Logger
	requestOpts  []option.RequestOption
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger used by the provider and its streams.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Provider) {
		p.logger = l
	}
}

// WithBufferSize sets the stream output capacity.
func WithBufferSize(n int) Option {
	return func(p *Provider) {
		p.bufferSize = n
	}
}

// WithDefaultModel sets the model used when a request names none.
func WithDefaultModel(model string) Option {
	return func(p *Provider) {
		p.defaultModel = model
	}
}

// WithRequestOptions passes options to the SDK client (base URL, retries, HTTP client).
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(p *Provider) {
		p.requestOpts = append(p.requestOpts, opts...)
	}
}

// NewProvider creates a new Anthropic provider from the environment configuration.
// HTTP retries of Complete are left to the SDK client.
func NewProvider(cfg *llmprovider.Config, opts ...Option) (*Provider, error) {
	if cfg.AnthropicAPIKey == "" {
		return nil, &llmprovider.ProviderError{
			Kind:     llmprovider.KindAuthenticationFailed,
			Provider: llmprovider.ProviderAnthropic.String(),
			Message:  "ANTHROPIC_API_KEY is not set",
		}
	}

	p := &Provider{
		defaultModel: llmprovider.GetCapabilityRegistry().DefaultModel(llmprovider.ProviderAnthropic.String()),
		bufferSize:   cfg.StreamBuffer,
		logger:       log.Logger,
		requestOpts:  []option.RequestOption{option.WithAPIKey(cfg.AnthropicAPIKey)},
	}
	if cfg.AnthropicBaseURL != "" {
		p.requestOpts = append(p.requestOpts, option.WithBaseURL(cfg.AnthropicBaseURL))
	}
	if cfg.Model != "" {
		p.defaultModel = cfg.Model
	}
	if p.bufferSize < 1 {
		p.bufferSize = llmprovider.DefaultStreamBuffer
	}
	for _, opt := range opts {
		opt(p)
	}

	p.client = anthropic.NewClient(p.requestOpts...)
	p.logger = p.logger.With().Str("provider", p.Name().String()).Logger()
	return p, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() llmprovider.ProviderID {
	return llmprovider.ProviderAnthropic
}

// SupportsModel returns true if this provider supports the given model.
// Anthropic models start with "claude-"
func (p *Provider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "claude-")
}

func (p *Provider) prepare(req *llmprovider.GenerateRequest) (string, anthropic.MessageNewParams, error) {
	model := req.ModelOrDefault(p.defaultModel)
	if !p.SupportsModel(model) {
		return "", anthropic.MessageNewParams{}, &llmprovider.ModelError{
			Model:    model,
			Provider: p.Name().String(),
			Reason:   "model not supported by Anthropic (must start with 'claude-')",
			Err:      llmprovider.ErrInvalidModel,
		}
	}

	if err := llmprovider.ValidateRequestParams(req.Params); err != nil {
		return "", anthropic.MessageNewParams{}, err
	}

	llmprovider.LogValidationWarnings(p.logger, llmprovider.GetValidationWarnings(p.Name().String(), &llmprovider.GenerateRequest{
		Model:    model,
		Messages: req.Messages,
		Tools:    req.Tools,
		Params:   req.Params,
	}))

	params, err := buildMessageParams(model, req)
	return model, params, err
}

// Stream starts a streamed Messages call. The call is opened before Stream
// returns, so HTTP failures are returned directly.
func (p *Provider) Stream(ctx context.Context, req *llmprovider.GenerateRequest) (*llmprovider.MessageStream, error) {
	model, params, err := p.prepare(req)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	src := newEventSource(p.client.Messages.NewStreaming(streamCtx, params), cancel)
	if err := src.open(ctx); err != nil {
		_ = src.Close()
		return nil, MapError(p.Name().String(), err)
	}

	return llmprovider.StreamEvents(ctx, model, src,
		llmprovider.WithProviderName(p.Name().String()),
		llmprovider.WithErrorMapper(MapError),
		llmprovider.WithLogger(p.logger),
		llmprovider.WithBufferSize(p.bufferSize),
	), nil
}

// Complete makes a single Messages call and returns the whole response.
func (p *Provider) Complete(ctx context.Context, req *llmprovider.GenerateRequest) (*llmprovider.Message, *llmprovider.ProviderUsage, error) {
	model, params, err := p.prepare(req)
	if err != nil {
		return nil, nil, err
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, nil, MapError(p.Name().String(), err)
	}

	msg, usage := convertResponse(resp)
	if resp.Model != "" {
		model = string(resp.Model)
	}
	return msg, &llmprovider.ProviderUsage{Model: model, Usage: *usage}, nil
}
