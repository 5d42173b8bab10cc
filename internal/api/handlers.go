package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"gwi.com/assistant/internal/core"
	"gwi.com/assistant/internal/store"
)

// FallbackAnswer is what the service says when it cannot produce an answer.
const FallbackAnswer = "Sorry, I can't assist with that."

type QueryService interface {
	Answer(ctx context.Context, username, query string) (string, error)
	Login(ctx context.Context, username, password string) (*store.User, error)
	Signup(ctx context.Context, username, password, role string) (*store.User, error)
}

type APIHandler struct {
	queryService QueryService
	logger       *zap.Logger
}

func NewAPIHandler(qs QueryService, logger *zap.Logger) *APIHandler {
	return &APIHandler{queryService: qs, logger: logger}
}

// envelope is the body of every response: success plus either the payload
// or a human-readable message.
type envelope struct {
	Success bool        `json:"success"`
	Answer  *string     `json:"answer,omitempty"`
	Message string      `json:"message,omitempty"`
	User    *store.User `json:"user,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func fail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

type QueryRequest struct {
	Username string `json:"username"`
	Query    string `json:"query"`
}

func (h *APIHandler) QueryHandler(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		fail(w, http.StatusBadRequest, "Query cannot be empty")
		return
	}

	answer, err := h.queryService.Answer(r.Context(), req.Username, req.Query)
	if err != nil {
		if errors.Is(err, core.ErrUnauthorized) {
			fail(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		h.logger.Error("failed to answer query", zap.String("username", req.Username), zap.Error(err))
		fail(w, http.StatusInternalServerError, FallbackAnswer)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Answer: &answer})
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		fail(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := h.queryService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if !errors.Is(err, core.ErrInvalidCredentials) {
			h.logger.Error("login failed", zap.String("username", req.Username), zap.Error(err))
		}
		// Login clients read success=false rather than the status code.
		fail(w, http.StatusOK, "Invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Login successful", User: user})
}

type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		fail(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := h.queryService.Signup(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		if errors.Is(err, store.ErrUserExists) {
			fail(w, http.StatusConflict, "User already exists")
			return
		}
		h.logger.Error("signup failed", zap.String("username", req.Username), zap.Error(err))
		fail(w, http.StatusInternalServerError, "Failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Success: true, Message: "User created", User: user})
}
