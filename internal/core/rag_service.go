package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"

	"gwi.com/assistant/internal/store"
	"gwi.com/assistant/internal/utils"
)

const (
	NumRelevantChunks   = 3   // Number of chunks to retrieve for context
	SimilarityThreshold = 0.7 // Minimum similarity score to consider a chunk relevant

	roleUser  = "user"
	roleModel = "model"
)

type Embedder interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
}

type Completer interface {
	GetChatCompletion(ctx context.Context, promptHistory []*genai.Content) (string, error)
}

type ChunkLoader interface {
	GetAllDataChunks(ctx context.Context) ([]store.DataChunk, error)
}

type RAGService struct {
	embedder  Embedder
	completer Completer
	loader    ChunkLoader
	logger    *zap.Logger

	mu         sync.RWMutex
	dataChunks []store.DataChunk // In-memory cache of data chunks and their embeddings
}

func NewRAGService(ctx context.Context, loader ChunkLoader, embedder Embedder, completer Completer, logger *zap.Logger) (*RAGService, error) {
	s := &RAGService{
		embedder:  embedder,
		completer: completer,
		loader:    loader,
		logger:    logger,
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload refreshes the chunk cache from the store, e.g. after an ingest.
func (s *RAGService) Reload(ctx context.Context) error {
	chunks, err := s.loader.GetAllDataChunks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load data chunks for RAG service: %w", err)
	}
	if len(chunks) == 0 {
		s.logger.Warn("RAG service has no data chunks; run the server with -ingest first")
	} else {
		s.logger.Info("RAG service loaded data chunks", zap.Int("chunks", len(chunks)))
	}

	s.mu.Lock()
	s.dataChunks = chunks
	s.mu.Unlock()
	return nil
}

type ScoredChunk struct {
	Chunk      store.DataChunk
	Similarity float32
}

func (s *RAGService) GetRelevantContext(ctx context.Context, query string) (string, error) {
	s.mu.RLock()
	chunks := s.dataChunks
	s.mu.RUnlock()

	if len(chunks) == 0 {
		return "", nil // No context if no data
	}

	queryEmbedding, err := s.embedder.GetEmbedding(ctx, query)
	if err != nil {
		return "", fmt.Errorf("failed to get query embedding: %w", err)
	}

	scoredChunks := make([]ScoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			continue
		}
		similarity, err := utils.CosineSimilarity(queryEmbedding, chunk.Embedding)
		if err != nil {
			s.logger.Debug("skipping chunk", zap.Int64("chunk_id", chunk.ID), zap.Error(err))
			continue
		}
		if similarity >= SimilarityThreshold {
			scoredChunks = append(scoredChunks, ScoredChunk{Chunk: chunk, Similarity: similarity})
		}
	}

	sort.Slice(scoredChunks, func(i, j int) bool {
		return scoredChunks[i].Similarity > scoredChunks[j].Similarity
	})

	var contextBuilder strings.Builder
	retrieved := 0
	for i := 0; i < len(scoredChunks) && retrieved < NumRelevantChunks; i++ {
		contextBuilder.WriteString(scoredChunks[i].Chunk.Content)
		contextBuilder.WriteString("\n\n")
		retrieved++
	}
	if retrieved == 0 {
		s.logger.Debug("no relevant chunks found", zap.Float32("threshold", SimilarityThreshold))
		return "", nil
	}

	s.logger.Debug("retrieved relevant chunks", zap.Int("count", retrieved))
	return strings.TrimSpace(contextBuilder.String()), nil
}

// GenerateResponse answers userQuery using the retrieved context and the
// user's previous exchanges, oldest first.
func (s *RAGService) GenerateResponse(ctx context.Context, history []store.QueryRecord, userQuery string) (string, error) {
	relevantContext, err := s.GetRelevantContext(ctx, userQuery)
	if err != nil {
		// Retrieval failures degrade to an answer without context.
		s.logger.Warn("failed to get relevant context, proceeding without it", zap.Error(err))
		relevantContext = ""
	}

	prompt := make([]*genai.Content, 0, 2*len(history)+1)
	for _, rec := range history {
		if !rec.Success {
			continue
		}
		prompt = append(prompt,
			&genai.Content{Role: roleUser, Parts: []genai.Part{genai.Text(rec.Query)}},
			&genai.Content{Role: roleModel, Parts: []genai.Part{genai.Text(rec.Answer)}},
		)
	}
	prompt = append(prompt, &genai.Content{
		Role:  roleUser,
		Parts: []genai.Part{genai.Text(buildFinalPrompt(relevantContext, userQuery))},
	})

	answer, err := s.completer.GetChatCompletion(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to get LLM completion: %w", err)
	}
	return answer, nil
}

func buildFinalPrompt(relevantContext, userQuery string) string {
	if relevantContext == "" {
		return fmt.Sprintf("Based on our previous conversation (if any), and noting that I couldn't find specific business records for your current question, please answer: %s", userQuery)
	}
	return fmt.Sprintf("Based on our previous conversation and the following potentially relevant business records:\n\n--- CONTEXT START ---\n%s\n--- CONTEXT END ---\n\nNow, please answer my question: %s", relevantContext, userQuery)
}
