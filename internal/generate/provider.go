// Package generate writes personalized outreach emails for leads with a
// large language model.
package generate

import (
	"context"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"google.golang.org/genai"

	"github.com/sells-group/lead-enricher/pkg/anthropic"
	"github.com/sells-group/lead-enricher/pkg/chat"
)

// Supported provider names.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderPerplexity = "perplexity"
)

// Providers lists every supported provider name.
var Providers = []string{ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderOpenRouter, ProviderPerplexity}

// Provider turns a prompt into text.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Tokens counts model usage.
type Tokens struct {
	Input  int64
	Output int64
}

// Metered is implemented by providers that report token usage.
type Metered interface {
	Usage() Tokens
	Model() string
}

// Settings configures a provider.
type Settings struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	System      string
	MaxTokens   int
	Temperature float64
}

// meter accumulates token usage.
type meter struct {
	mu     sync.Mutex
	model  string
	tokens Tokens
}

func (m *meter) add(in, out int64) {
	m.mu.Lock()
	m.tokens.Input += in
	m.tokens.Output += out
	m.mu.Unlock()
}

func (m *meter) Usage() Tokens {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens
}

func (m *meter) Model() string { return m.model }

// NewProvider builds the backend named by s.Provider.
func NewProvider(ctx context.Context, s Settings) (Provider, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, eris.Errorf("generate: %s api key is required", s.Provider)
	}
	if s.Model == "" {
		return nil, eris.Errorf("generate: %s model is required", s.Provider)
	}

	switch strings.ToLower(s.Provider) {
	case ProviderAnthropic:
		var opts []option.RequestOption
		if s.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(s.BaseURL))
		}
		return NewAnthropicProvider(anthropic.NewClient(s.APIKey, opts...), s), nil

	case ProviderGemini:
		cfg := &genai.ClientConfig{APIKey: s.APIKey, Backend: genai.BackendGeminiAPI}
		if s.BaseURL != "" {
			cfg.HTTPOptions = genai.HTTPOptions{BaseURL: s.BaseURL}
		}
		client, err := genai.NewClient(ctx, cfg)
		if err != nil {
			return nil, eris.Wrap(err, "generate: create gemini client")
		}
		return NewGeminiProvider(client.Models, s), nil

	case ProviderOpenAI, ProviderOpenRouter, ProviderPerplexity:
		name := strings.ToLower(s.Provider)
		opts := []chat.Option{chat.WithModel(s.Model)}
		if s.BaseURL != "" {
			opts = append(opts, chat.WithBaseURL(s.BaseURL))
		}
		if name == ProviderOpenRouter {
			opts = append(opts, chat.WithHeader("X-Title", "lead-enricher"))
		}
		return NewChatProvider(chat.NewClient(name, s.APIKey, opts...), s), nil

	default:
		return nil, eris.Errorf("generate: unknown provider %q (want one of %s)", s.Provider, strings.Join(Providers, ", "))
	}
}

// AnthropicProvider generates with the Anthropic Messages API.
type AnthropicProvider struct {
	meter
	client    anthropic.Client
	system    string
	maxTokens int64
	temp      float64
}

// NewAnthropicProvider wraps an Anthropic client.
func NewAnthropicProvider(client anthropic.Client, s Settings) *AnthropicProvider {
	return &AnthropicProvider{
		meter:     meter{model: s.Model},
		client:    client,
		system:    s.System,
		maxTokens: int64(s.MaxTokens),
		temp:      s.Temperature,
	}
}

func (p *AnthropicProvider) Generate(ctx context.Context, prompt string) (string, error) {
	temp := p.temp
	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		System:      p.system,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return "", err
	}
	p.add(resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return resp.Text(), nil
}

// ChatProvider generates with an OpenAI-compatible chat completions API.
type ChatProvider struct {
	meter
	client    chat.Client
	system    string
	maxTokens int
	temp      float64
}

// NewChatProvider wraps a chat completions client.
func NewChatProvider(client chat.Client, s Settings) *ChatProvider {
	return &ChatProvider{
		meter:     meter{model: s.Model},
		client:    client,
		system:    s.System,
		maxTokens: s.MaxTokens,
		temp:      s.Temperature,
	}
}

func (p *ChatProvider) Generate(ctx context.Context, prompt string) (string, error) {
	msgs := make([]chat.Message, 0, 2)
	if p.system != "" {
		msgs = append(msgs, chat.Message{Role: "system", Content: p.system})
	}
	msgs = append(msgs, chat.Message{Role: "user", Content: prompt})

	temp, maxTokens := p.temp, p.maxTokens
	resp, err := p.client.ChatCompletion(ctx, chat.ChatCompletionRequest{
		Model:       p.model,
		Messages:    msgs,
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return "", err
	}
	p.add(int64(resp.Usage.PromptTokens), int64(resp.Usage.CompletionTokens))
	return resp.Text(), nil
}

// ContentGenerator is the slice of the genai Models service used here.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiProvider generates with the Gemini API.
type GeminiProvider struct {
	meter
	models    ContentGenerator
	system    string
	maxTokens int32
	temp      float32
}

// NewGeminiProvider wraps a genai Models service.
func NewGeminiProvider(models ContentGenerator, s Settings) *GeminiProvider {
	return &GeminiProvider{
		meter:     meter{model: s.Model},
		models:    models,
		system:    s.System,
		maxTokens: int32(s.MaxTokens), //nolint:gosec // bounded by config validation
		temp:      float32(s.Temperature),
	}
}

func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(p.temp),
		MaxOutputTokens: p.maxTokens,
	}
	if p.system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(p.system, genai.RoleUser)
	}

	resp, err := p.models.GenerateContent(ctx, p.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", eris.Wrap(err, "gemini: generate content")
	}
	if resp.UsageMetadata != nil {
		p.add(int64(resp.UsageMetadata.PromptTokenCount), int64(resp.UsageMetadata.CandidatesTokenCount))
	}
	return resp.Text(), nil
}
