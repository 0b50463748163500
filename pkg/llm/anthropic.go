package llm

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/enrich-cli/internal/resilience"
)

// AnthropicOption configures the Anthropic provider.
type AnthropicOption func(*anthropicProvider)

// WithRateLimit overrides the default client-side throttle (2 req/s).
func WithRateLimit(rps float64) AnthropicOption {
	return func(p *anthropicProvider) {
		if rps > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			p.limiter = nil
		}
	}
}

// anthropicProvider implements Provider using the official anthropic-sdk-go.
type anthropicProvider struct {
	client  sdk.Client
	model   string
	limiter *rate.Limiter
}

// NewAnthropic creates a Provider backed by the Anthropic API.
// Calls are throttled client-side to 2 req/s by default; the admission
// controller upstream enforces the per-tenant quotas.
func NewAnthropic(apiKey, model string, opts ...AnthropicOption) Provider {
	p := &anthropicProvider{
		client: sdk.NewClient(
			option.WithAPIKey(apiKey),
		),
		model:   model,
		limiter: rate.NewLimiter(2, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *anthropicProvider) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

func (p *anthropicProvider) Complete(ctx context.Context, req Request) (*Result, error) {
	if err := p.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "llm: rate limit")
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(p.model),
		MaxTokens: req.MaxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(eris.Wrap(err, "llm: create message"))
	}

	return fromSDKMessage(msg), nil
}

// classify tags a provider error as transient or permanent so the retry
// layer can decide whether another attempt is worthwhile.
func classify(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		if resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
			return resilience.NewTransientError(err, apiErr.StatusCode)
		}
		return resilience.NewPermanentError(err)
	}
	if resilience.IsTransient(err) {
		return resilience.NewTransientError(err, 0)
	}
	return err
}

func fromSDKMessage(msg *sdk.Message) *Result {
	var text strings.Builder
	for _, b := range msg.Content {
		if b.Type == "text" {
			text.WriteString(b.Text)
		}
	}
	return &Result{
		Text:       text.String(),
		ModelID:    string(msg.Model),
		StopReason: string(msg.StopReason),
		Usage: TokenUsage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}
}
