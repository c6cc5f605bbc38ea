// Package generator asks an OpenAI-compatible chat model for new facts.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/conorfennell/curio/internal/domain"
)

// Config holds the chat model connection settings.
type Config struct {
	BaseURL           string
	APIKey            string
	Model             string
	Temperature       float32
	MaxTokens         int
	MaxRetries        int
	RequestsPerSecond float64
	// RetryWait is the first backoff; it doubles on every retry.
	RetryWait time.Duration
}

// DefaultConfig returns the settings of the DeepSeek chat endpoint.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://api.deepseek.com/v1",
		Model:             "deepseek-chat",
		Temperature:       0.8,
		MaxTokens:         2000,
		MaxRetries:        3,
		RequestsPerSecond: 1,
		RetryWait:         time.Second,
	}
}

// Client generates raw facts through a chat completion endpoint.
type Client struct {
	client  *openai.Client
	config  Config
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a client. Unset values fall back to DefaultConfig.
func New(cfg Config, logger *slog.Logger) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryWait == 0 {
		cfg.RetryWait = def.RetryWait
	}
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.BaseURL

	return &Client{
		client:  openai.NewClientWithConfig(clientConfig),
		config:  cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Name identifies the model behind the generated facts.
func (c *Client) Name() string {
	return c.config.Model
}

// Generate asks for count facts about topic.
func (c *Client) Generate(ctx context.Context, topic string, count int) ([]domain.RawFact, error) {
	var facts []domain.RawFact
	err := c.doWithRetry(ctx, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.config.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: topicPrompt(topic, count)},
			},
			Temperature: c.config.Temperature,
			MaxTokens:   c.config.MaxTokens,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty chat response")
		}

		parsed, err := ParseFacts(resp.Choices[0].Message.Content, topic)
		if err != nil {
			return err
		}
		facts = parsed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s facts: %w", topic, err)
	}

	c.logger.Debug("Generated raw facts", "topic", topic, "requested", count, "received", len(facts))
	return facts, nil
}

// doWithRetry executes fn with exponential backoff.
func (c *Client) doWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < c.config.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < c.config.MaxRetries-1 {
			wait := time.Duration(math.Pow(2, float64(attempt))) * c.config.RetryWait
			c.logger.Debug("Generation request failed, retrying",
				"attempt", attempt+1,
				"wait_time", wait,
				"error", err)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}
