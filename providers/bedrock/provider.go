package bedrock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cronus42/goose"
)

// Provider implements the llmprovider.Provider interface for Claude models on
// Amazon Bedrock through the Converse and ConverseStream APIs.
type Provider struct {
	client       converseClient
	defaultModel string
	retry        llmprovider.RetryConfig
	bufferSize   int
	logger       zerolog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger used by the provider and its streams.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Provider) {
		p.logger = l
	}
}

// WithRetryConfig sets the backoff used by Complete.
func WithRetryConfig(r llmprovider.RetryConfig) Option {
	return func(p *Provider) {
		p.retry = r
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

// NewProvider loads the AWS configuration (shared config files, SSO profiles
// and environment variables) and verifies that credentials can be retrieved.
func NewProvider(ctx context.Context, cfg *llmprovider.Config, opts ...Option) (*Provider, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.AWSProfile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
	}
	if cfg.AWSRegion != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if awsCfg.Credentials == nil {
		return nil, fmt.Errorf("no AWS credentials provider configured")
	}
	if _, err := awsCfg.Credentials.Retrieve(ctx); err != nil {
		return nil, &llmprovider.ProviderError{
			Kind:     llmprovider.KindAuthenticationFailed,
			Provider: llmprovider.ProviderBedrock.String(),
			Message: fmt.Sprintf("failed to load AWS credentials; make sure to run 'aws sso login --profile %s' if using SSO",
				cfg.AWSProfile),
			Err: err,
		}
	}

	base := []Option{
		WithRetryConfig(cfg.Retry),
		WithBufferSize(cfg.StreamBuffer),
	}
	if cfg.Model != "" {
		base = append(base, WithDefaultModel(cfg.Model))
	}

	return newProvider(&sdkClient{client: bedrockruntime.NewFromConfig(awsCfg)}, append(base, opts...)...), nil
}

func newProvider(client converseClient, opts ...Option) *Provider {
	p := &Provider{
		client:       client,
		defaultModel: llmprovider.GetCapabilityRegistry().DefaultModel(llmprovider.ProviderBedrock.String()),
		retry:        llmprovider.DefaultRetryConfig(),
		bufferSize:   llmprovider.DefaultStreamBuffer,
		logger:       log.Logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With().Str("provider", p.Name().String()).Logger()
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() llmprovider.ProviderID {
	return llmprovider.ProviderBedrock
}

// SupportsModel returns true for Anthropic Claude model ids and inference
// profiles, e.g. "anthropic.claude-3-5-haiku-20241022-v1:0" or
// "us.anthropic.claude-sonnet-4-5-20250929-v1:0".
func (p *Provider) SupportsModel(model string) bool {
	if llmprovider.GetCapabilityRegistry().SupportsModel(p.Name().String(), model) {
		return true
	}
	return strings.Contains(model, "anthropic.claude")
}

// prepare resolves the model and converts the request.
func (p *Provider) prepare(req *llmprovider.GenerateRequest) (converseRequest, error) {
	model := req.ModelOrDefault(p.defaultModel)
	if !p.SupportsModel(model) {
		return converseRequest{}, &llmprovider.ModelError{
			Model:    model,
			Provider: p.Name().String(),
			Reason:   "model not supported by Bedrock provider (must be an Anthropic Claude model id)",
			Err:      llmprovider.ErrInvalidModel,
		}
	}

	if err := llmprovider.ValidateRequestParams(req.Params); err != nil {
		return converseRequest{}, err
	}

	llmprovider.LogValidationWarnings(p.logger, llmprovider.GetValidationWarnings(p.Name().String(), &llmprovider.GenerateRequest{
		Model:    model,
		Messages: req.Messages,
		Tools:    req.Tools,
		Params:   req.Params,
	}))

	return buildRequest(model, req)
}

// Stream opens a ConverseStream call and returns the streamed response.
// Failures to open the stream are returned directly.
func (p *Provider) Stream(ctx context.Context, req *llmprovider.GenerateRequest) (*llmprovider.MessageStream, error) {
	creq, err := p.prepare(req)
	if err != nil {
		return nil, err
	}

	reader, err := p.client.OpenStream(ctx, creq.streamInput())
	if err != nil {
		return nil, MapError(p.Name().String(), err)
	}

	return llmprovider.StreamEvents(ctx, creq.model, newEventSource(reader),
		llmprovider.WithProviderName(p.Name().String()),
		llmprovider.WithErrorMapper(MapError),
		llmprovider.WithLogger(p.logger),
		llmprovider.WithBufferSize(p.bufferSize),
	), nil
}

// Complete calls Converse and returns the whole response. Rate limits and
// transport failures are retried with exponential backoff.
func (p *Provider) Complete(ctx context.Context, req *llmprovider.GenerateRequest) (*llmprovider.Message, *llmprovider.ProviderUsage, error) {
	creq, err := p.prepare(req)
	if err != nil {
		return nil, nil, err
	}

	var out *bedrockruntime.ConverseOutput
	for attempt := 0; ; attempt++ {
		out, err = p.client.Converse(ctx, creq.input())
		if err == nil {
			break
		}

		mapped := MapError(p.Name().String(), err)
		if attempt >= p.retry.MaxRetries || !llmprovider.IsRetryable(mapped) {
			return nil, nil, mapped
		}

		delay := p.retry.Delay(attempt + 1)
		p.logger.Warn().
			Err(err).
			Str("kind", mapped.Kind.String()).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("converse failed, retrying")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, nil, MapError(p.Name().String(), ctx.Err())
		}
	}

	msg, err := convertOutput(out)
	if err != nil {
		return nil, nil, MapError(p.Name().String(), err)
	}

	usage := &llmprovider.ProviderUsage{Model: creq.model}
	if u := convertUsage(out.Usage); u != nil {
		usage.Usage = *u
	}
	return msg, usage, nil
}
