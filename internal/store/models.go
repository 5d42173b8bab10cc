package store

import "time"

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Do not expose this in JSON responses
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// QueryRecord is one answered (or refused) question, kept for auditing.
type QueryRecord struct {
	ID        string    `json:"id"` // UUID
	UserID    int64     `json:"user_id"`
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at"`
}

type DataChunk struct {
	ID            int64     `json:"id"`
	Content       string    `json:"content"`
	Embedding     []float32 `json:"-"` // Don't marshal to JSON response, internal
	EmbeddingJSON string    `json:"-"` // Store as JSON string for DB
}
