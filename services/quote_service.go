package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/go-deepseek/deepseek"
	"github.com/go-deepseek/deepseek/request"
	"github.com/rs/zerolog"
)

var (
	ErrQuoteNotConfigured = errors.New("quote generation is not configured: DEEPSEEK_API_KEY is missing")
	ErrQuoteUpstream      = errors.New("AI service returned an error")
	// ErrQuoteUnavailable marks requests that never got an answer from the API.
	ErrQuoteUnavailable = errors.New("failed to connect to AI service")
)

const quoteSystemPrompt = "You are a professional writer specializing in creating heartfelt and meaningful quotes for special occasions. You write only the quote itself without any additional commentary or explanation."

type QuoteRequest struct {
	Topic        string `json:"topic" binding:"required,oneof=birthday anniversary"`
	Relationship string `json:"relationship"`
	Tone         string `json:"tone" binding:"omitempty,oneof=heartfelt funny inspirational romantic"`
	Length       string `json:"length" binding:"omitempty,oneof=short medium long"`
}

// QuotePrompt builds the user prompt for a quote request.
func QuotePrompt(req QuoteRequest) string {
	length := "medium-length"
	if req.Length != "" {
		length = req.Length
	}
	tone := "heartfelt"
	if req.Tone != "" {
		tone = req.Tone
	}
	prompt := fmt.Sprintf("Generate a %s %s quote for a %s", length, tone, req.Topic)
	if req.Relationship != "" {
		prompt += " for my " + req.Relationship
	}
	return prompt + ". The quote should be meaningful, original, and appropriate for the occasion."
}

type QuoteService struct {
	client deepseek.Client
	model  string
	log    zerolog.Logger
}

func NewQuoteService(apiKey, model string, log zerolog.Logger) (*QuoteService, error) {
	if apiKey == "" {
		return nil, ErrQuoteNotConfigured
	}
	client, err := deepseek.NewClient(apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create DeepSeek client: %w", err)
	}
	return newQuoteService(client, model, log), nil
}

func newQuoteService(client deepseek.Client, model string, log zerolog.Logger) *QuoteService {
	return &QuoteService{client: client, model: model, log: log.With().Str("component", "quotes").Logger()}
}

func (s *QuoteService) Generate(ctx context.Context, req QuoteRequest) (string, error) {
	prompt := QuotePrompt(req)
	s.log.Debug().Str("prompt", prompt).Msg("sending prompt to DeepSeek")

	temp := float32(0.7)
	resp, err := s.client.CallChatCompletionsChat(ctx, &request.ChatCompletionsRequest{
		Model: s.model,
		Messages: []*request.Message{
			{Role: "system", Content: quoteSystemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   300,
		Temperature: &temp,
		Stream:      false,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("DeepSeek API request failed")
		var netErr net.Error
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
			return "", fmt.Errorf("%w: %w", ErrQuoteUnavailable, err)
		}
		return "", fmt.Errorf("%w: %w", ErrQuoteUpstream, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return "", fmt.Errorf("%w: unexpected response format", ErrQuoteUpstream)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
