package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ShaharSGA/Project/internal/config"
	"github.com/ShaharSGA/Project/pkg/logger"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ollama/ollama/api"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

const (
	defaultTemperature = 0.3
	defaultMaxTokens   = 1024
)

// ErrNoProvider is returned when no LLM provider is configured.
var ErrNoProvider = errors.New("no LLM provider configured")

// AIService sends chat completions to the configured providers, trying each in order.
type AIService struct {
	providers  []config.LLMProviderConfig
	httpClient *http.Client
}

type AIOption func(*AIService)

// WithHTTPClient routes every provider SDK through client.
func WithHTTPClient(client *http.Client) AIOption {
	return func(s *AIService) { s.httpClient = client }
}

func NewAIService(cfg *config.LLMConfig, opts ...AIOption) *AIService {
	s := &AIService{httpClient: http.DefaultClient}
	if cfg != nil {
		s.providers = append(s.providers, cfg.Providers...)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CompletionRequest struct {
	System      string
	Prompt      string
	JSON        bool
	MaxTokens   int
	Temperature float64
}

// Usage is the token accounting reported by whichever provider answered.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

func (u Usage) Total() int { return u.PromptTokens + u.CompletionTokens }

type Completion struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Usage    Usage  `json:"usage"`
}

func (s *AIService) Configured() bool {
	return len(s.providers) > 0
}

// Complete returns the first successful completion across the provider list.
func (s *AIService) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	if len(s.providers) == 0 {
		return nil, ErrNoProvider
	}

	var lastErr error
	for i := range s.providers {
		p := &s.providers[i]
		logger.Debug().Str("provider", p.Name).Str("model", p.Model).
			Msgf("[AI] Attempting LLM %d/%d", i+1, len(s.providers))

		result, err := s.callLLM(ctx, p, &req)
		if err == nil {
			logger.Debug().Str("provider", p.Name).Int("tokens", result.Usage.Total()).Msg("[AI] completion succeeded")
			return result, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			break
		}
		logger.Warnf("[AI] LLM %s failed: %v, trying next...", p.Name, err)
	}

	return nil, fmt.Errorf("all LLMs failed, last error: %w", lastErr)
}

func (s *AIService) callLLM(ctx context.Context, p *config.LLMProviderConfig, req *CompletionRequest) (*Completion, error) {
	switch p.Provider {
	case "anthropic":
		return s.callAnthropic(ctx, p, req)
	case "ollama":
		return s.callOllama(ctx, p, req)
	case "gemini":
		return s.callGemini(ctx, p, req)
	case "azure":
		return s.callAzure(ctx, p, req)
	default:
		// openai and other OpenAI-compatible services
		return s.callOpenAI(ctx, p, req)
	}
}

func (s *AIService) callOpenAI(ctx context.Context, p *config.LLMProviderConfig, req *CompletionRequest) (*Completion, error) {
	clientConfig := openai.DefaultConfig(p.APIKey)
	if p.BaseURL != "" {
		clientConfig.BaseURL = p.BaseURL
	}
	clientConfig.HTTPClient = s.httpClient

	return s.chatCompletion(ctx, openai.NewClientWithConfig(clientConfig), "OpenAI", p, req)
}

// callAzure expects BaseURL https://{resource-name}.openai.azure.com; Model is the deployment name.
func (s *AIService) callAzure(ctx context.Context, p *config.LLMProviderConfig, req *CompletionRequest) (*Completion, error) {
	clientConfig := openai.DefaultAzureConfig(p.APIKey, p.BaseURL)
	clientConfig.HTTPClient = s.httpClient

	return s.chatCompletion(ctx, openai.NewClientWithConfig(clientConfig), "Azure OpenAI", p, req)
}

func (s *AIService) chatCompletion(ctx context.Context, client *openai.Client, label string, p *config.LLMProviderConfig, req *CompletionRequest) (*Completion, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	chatReq := openai.ChatCompletionRequest{
		Model:       p.Model,
		Messages:    messages,
		Temperature: float32(temperatureFor(p, req)),
		MaxTokens:   maxTokensFor(p, req),
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("%s API error: %w", label, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from %s", label)
	}

	return &Completion{
		Text:     resp.Choices[0].Message.Content,
		Provider: p.Name,
		Model:    p.Model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

func (s *AIService) callAnthropic(ctx context.Context, p *config.LLMProviderConfig, req *CompletionRequest) (*Completion, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(p.APIKey),
		option.WithHTTPClient(s.httpClient),
	}
	if p.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(p.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	model := p.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}

	prompt := req.Prompt
	if req.JSON {
		// no native JSON mode; the instruction is appended instead
		prompt += "\n\nRespond with a single JSON object and nothing else."
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(maxTokensFor(p, req)),
		Temperature: anthropic.Float(temperatureFor(p, req)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("Anthropic API error: %w", err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &Completion{
		Text:     content.String(),
		Provider: p.Name,
		Model:    model,
		Usage: Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

func (s *AIService) callOllama(ctx context.Context, p *config.LLMProviderConfig, req *CompletionRequest) (*Completion, error) {
	baseURL := p.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama base URL: %w", err)
	}
	client := api.NewClient(u, s.httpClient)

	model := p.Model
	if model == "" {
		model = "llama3"
	}

	messages := make([]api.Message, 0, 2)
	if req.System != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.System})
	}
	messages = append(messages, api.Message{Role: "user", Content: req.Prompt})

	chatReq := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Options: map[string]interface{}{
			"temperature": temperatureFor(p, req),
			"num_predict": maxTokensFor(p, req),
		},
	}
	if req.JSON {
		chatReq.Format = json.RawMessage(`"json"`)
	}

	var (
		content strings.Builder
		usage   Usage
	)
	err = client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		if resp.Done {
			usage.PromptTokens = resp.PromptEvalCount
			usage.CompletionTokens = resp.EvalCount
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Ollama API error: %w", err)
	}

	return &Completion{Text: content.String(), Provider: p.Name, Model: model, Usage: usage}, nil
}

func (s *AIService) callGemini(ctx context.Context, p *config.LLMProviderConfig, req *CompletionRequest) (*Completion, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:     p.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: s.httpClient,
	}
	if p.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: p.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("Gemini client error: %w", err)
	}

	model := p.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	genConfig := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temperatureFor(p, req))),
		MaxOutputTokens: int32(maxTokensFor(p, req)),
	}
	if req.System != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		genConfig.ResponseMIMEType = "application/json"
	}

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), genConfig)
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}

	completion := &Completion{Text: resp.Text(), Provider: p.Name, Model: model}
	if resp.UsageMetadata != nil {
		completion.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return completion, nil
}

func temperatureFor(p *config.LLMProviderConfig, req *CompletionRequest) float64 {
	switch {
	case req.Temperature > 0:
		return req.Temperature
	case p.Temperature > 0:
		return p.Temperature
	default:
		return defaultTemperature
	}
}

func maxTokensFor(p *config.LLMProviderConfig, req *CompletionRequest) int {
	switch {
	case req.MaxTokens > 0:
		return req.MaxTokens
	case p.MaxTokens > 0:
		return p.MaxTokens
	default:
		return defaultMaxTokens
	}
}
