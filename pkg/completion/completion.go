// Package completion builds single prompt chat-completion callers for the
// hosted and local model providers vellum talks to.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	ProviderOpenAI    = "openai"
	ProviderGroq      = "groq"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"

	defaultTimeout     = 60 * time.Second
	defaultTemperature = 0.1

	systemPrompt = "You are a document processing assistant that splits text into logical chunks."
)

// Func sends one prompt and returns the model's text reply.
type Func func(ctx context.Context, prompt string) (string, error)

// Config holds configuration for creating a caller.
type Config struct {
	Provider string        // "openai", "groq", "anthropic" or "ollama"
	Model    string        // e.g. "llama-3.1-8b-instant"
	APIKey   string        // explicit API key (highest priority)
	BaseURL  string        // override base URL
	Timeout  time.Duration // per call timeout
	Logger   *slog.Logger
}

// NewCaller creates a Func from the configuration.
// Resolution order for API key:
//  1. Explicit APIKey in config
//  2. Environment variables (OPENAI_API_KEY / GROQ_API_KEY / ANTHROPIC_API_KEY)
//  3. Fall back to Ollama at localhost:11434
func NewCaller(cfg Config) (Func, error) {
	requested := strings.ToLower(cfg.Provider)
	provider := requested
	model := cfg.Model

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	client := &http.Client{Timeout: timeout}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = resolveAPIKeyFromEnv(provider)
	}

	if apiKey == "" && provider != ProviderOllama {
		if cfg.Logger != nil {
			cfg.Logger.Warn("no API key found for completion provider, falling back to ollama",
				"provider", provider,
			)
		}
		provider = ProviderOllama
		model = ""
	}

	switch provider {
	case ProviderOpenAI, "":
		if model == "" {
			model = "gpt-4o-mini"
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.openai.com"
		}
		return newOpenAICaller(client, apiKey, model, baseURL), nil

	case ProviderGroq:
		if model == "" {
			model = "llama-3.1-8b-instant"
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.groq.com/openai"
		}
		return newOpenAICaller(client, apiKey, model, baseURL), nil

	case ProviderAnthropic:
		if model == "" {
			model = "claude-haiku-4-5-20251001"
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.anthropic.com"
		}
		return newAnthropicCaller(client, apiKey, model, baseURL), nil

	case ProviderOllama:
		if model == "" {
			model = "llama3.2"
		}
		baseURL := cfg.BaseURL
		if baseURL == "" || requested != ProviderOllama {
			baseURL = "http://localhost:11434"
		}
		return newOllamaCaller(client, model, baseURL), nil

	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func resolveAPIKeyFromEnv(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case ProviderGroq:
		return os.Getenv("GROQ_API_KEY")
	case ProviderOpenAI, "":
		return os.Getenv("OPENAI_API_KEY")
	default:
		return ""
	}
}

// postJSON sends body and returns the raw response, failing on non-200.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(raw))
	}
	return raw, nil
}

// --- OpenAI compatible caller (OpenAI, Groq) ---

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func newOpenAICaller(client *http.Client, apiKey, model, baseURL string) Func {
	return func(ctx context.Context, prompt string) (string, error) {
		raw, err := postJSON(ctx, client, baseURL+"/v1/chat/completions",
			map[string]string{"Authorization": "Bearer " + apiKey},
			openAIRequest{
				Model: model,
				Messages: []openAIMessage{
					{Role: "system", Content: systemPrompt},
					{Role: "user", Content: prompt},
				},
				Temperature: defaultTemperature,
			},
		)
		if err != nil {
			return "", fmt.Errorf("openai request: %w", err)
		}

		var result openAIResponse
		if err := json.Unmarshal(raw, &result); err != nil {
			return "", fmt.Errorf("unmarshal response: %w", err)
		}
		if result.Error != nil {
			return "", fmt.Errorf("openai error: %s", result.Error.Message)
		}
		if len(result.Choices) == 0 {
			return "", errors.New("openai returned no choices")
		}
		return result.Choices[0].Message.Content, nil
	}
}

// --- Anthropic caller ---

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func newAnthropicCaller(client *http.Client, apiKey, model, baseURL string) Func {
	return func(ctx context.Context, prompt string) (string, error) {
		raw, err := postJSON(ctx, client, baseURL+"/v1/messages",
			map[string]string{
				"x-api-key":         apiKey,
				"anthropic-version": "2023-06-01",
			},
			anthropicRequest{
				Model:       model,
				MaxTokens:   8192,
				System:      systemPrompt,
				Temperature: defaultTemperature,
				Messages: []anthropicMessage{
					{Role: "user", Content: prompt},
				},
			},
		)
		if err != nil {
			return "", fmt.Errorf("anthropic request: %w", err)
		}

		var result anthropicResponse
		if err := json.Unmarshal(raw, &result); err != nil {
			return "", fmt.Errorf("unmarshal response: %w", err)
		}
		if result.Error != nil {
			return "", fmt.Errorf("anthropic error: %s", result.Error.Message)
		}
		if len(result.Content) == 0 {
			return "", errors.New("anthropic returned no content")
		}
		return result.Content[0].Text, nil
	}
}

// --- Ollama caller ---

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

func newOllamaCaller(client *http.Client, model, baseURL string) Func {
	return func(ctx context.Context, prompt string) (string, error) {
		raw, err := postJSON(ctx, client, baseURL+"/api/chat", nil,
			ollamaChatRequest{
				Model: model,
				Messages: []ollamaChatMessage{
					{Role: "system", Content: systemPrompt},
					{Role: "user", Content: prompt},
				},
				Stream:  false,
				Options: map[string]any{"temperature": defaultTemperature},
			},
		)
		if err != nil {
			return "", fmt.Errorf("ollama request: %w", err)
		}

		var result ollamaChatResponse
		if err := json.Unmarshal(raw, &result); err != nil {
			return "", fmt.Errorf("unmarshal response: %w", err)
		}
		if result.Message.Content == "" {
			return "", errors.New("ollama returned empty content")
		}
		return result.Message.Content, nil
	}
}
