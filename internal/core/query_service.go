package core

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"gwi.com/assistant/internal/auth"
	"gwi.com/assistant/internal/store"
)

const historyTurns = 4 // Previous exchanges sent along with a query

var (
	ErrUnauthorized       = errors.New("unknown user")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Responder interface {
	GenerateResponse(ctx context.Context, history []store.QueryRecord, userQuery string) (string, error)
}

// QueryService answers queries on behalf of known users and keeps a log of
// every exchange.
type QueryService struct {
	dbStore   *store.SQLiteStore
	responder Responder
	logger    *zap.Logger
}

func NewQueryService(db *store.SQLiteStore, responder Responder, logger *zap.Logger) *QueryService {
	return &QueryService{
		dbStore:   db,
		responder: responder,
		logger:    logger,
	}
}

func (s *QueryService) Answer(ctx context.Context, username, query string) (string, error) {
	user, err := s.dbStore.GetUserByUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("failed to resolve user: %w", err)
	}
	if user == nil {
		return "", ErrUnauthorized
	}
	log := s.logger.With(zap.Int64("user_id", user.ID))

	recent, err := s.dbStore.GetRecentQueries(ctx, user.ID, historyTurns)
	if err != nil {
		log.Warn("failed to load query history, proceeding without it", zap.Error(err))
		recent = nil
	}
	history := make([]store.QueryRecord, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		history = append(history, recent[i])
	}

	answer, genErr := s.responder.GenerateResponse(ctx, history, query)

	rec := store.QueryRecord{UserID: user.ID, Query: query, Answer: answer, Success: genErr == nil}
	if err := s.dbStore.RecordQuery(ctx, &rec); err != nil {
		log.Warn("failed to record query", zap.Error(err))
	}

	if genErr != nil {
		return "", fmt.Errorf("failed to generate answer: %w", genErr)
	}
	log.Info("query answered", zap.String("query_id", rec.ID), zap.Int("answer_len", len(answer)))
	return answer, nil
}

func (s *QueryService) Login(ctx context.Context, username, password string) (*store.User, error) {
	user, err := s.dbStore.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	if user == nil || !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *QueryService) Signup(ctx context.Context, username, password, role string) (*store.User, error) {
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return s.dbStore.CreateUser(ctx, username, hashed, role)
}
