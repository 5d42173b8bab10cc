package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const (
	defaultChatModelName      = "gemini-1.5-flash-latest"
	defaultEmbeddingModelName = "text-embedding-004"

	chatSystemInstruction = "You are a helpful business assistant for a dealer network. Answer questions about orders, " +
		"dealers, payments and inventory based on the provided context. " +
		"If the answer is not found in the provided context, clearly state that you don't have the information. " +
		"Keep your answers concise and format them as Markdown (lists, tables, bold figures) when it helps. " +
		"Do not make up information."
)

var ErrEmptyResponse = errors.New("model returned no text")

type LLMService struct {
	client *genai.Client
	logger *zap.Logger
}

func NewLLMService(ctx context.Context, apiKey string, logger *zap.Logger) (*LLMService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &LLMService{client: client, logger: logger}, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Warn("error closing GenAI client", zap.Error(err))
		}
	}
}

func (s *LLMService) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	em := s.client.EmbeddingModel(defaultEmbeddingModelName)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}

	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data received from gemini")
	}
	return res.Embedding.Values, nil
}

// GetChatCompletion sends the last entry of promptHistory, which must be a
// user turn, with everything before it as chat history.
func (s *LLMService) GetChatCompletion(ctx context.Context, promptHistory []*genai.Content) (string, error) {
	if len(promptHistory) == 0 {
		return "", fmt.Errorf("prompt history is empty for chat completion")
	}
	last := promptHistory[len(promptHistory)-1]
	if last.Role != roleUser {
		return "", fmt.Errorf("last message in history is not from %q", roleUser)
	}

	model := s.client.GenerativeModel(defaultChatModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(chatSystemInstruction)},
	}

	chatSession := model.StartChat()
	chatSession.History = promptHistory[:len(promptHistory)-1]

	resp, err := chatSession.SendMessage(ctx, last.Parts...)
	if err != nil {
		return "", fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			s.logger.Debug("skipping non-text response part", zap.String("type", fmt.Sprintf("%T", part)))
		}
	}
	if strings.TrimSpace(responseText.String()) == "" {
		return "", ErrEmptyResponse
	}
	return responseText.String(), nil
}
