package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"
)

var ErrUserExists = errors.New("user already exists")

type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteStore(dataSourceName string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db, logger: logger}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        username TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        role TEXT NOT NULL DEFAULT 'user',
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS queries (
        id TEXT PRIMARY KEY, -- UUID
        user_id INTEGER NOT NULL,
        query TEXT NOT NULL,
        answer TEXT NOT NULL,
        success BOOLEAN NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS data_chunks (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        content TEXT NOT NULL,
        embedding_json TEXT -- Storing as JSON string of []float32
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// NormalizeUsername folds the spellings users type for the same account
// ("Deepak.Mehta ", "deepakmehta") into one key.
func NormalizeUsername(username string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(username)), ".", "")
}

// User methods
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, "SELECT id, username, password_hash, role, created_at FROM users WHERE username = ?", NormalizeUsername(username)).
		Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash, role string) (*User, error) {
	existing, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}
	if role == "" {
		role = "user"
	}

	res, err := s.db.ExecContext(ctx, "INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)", NormalizeUsername(username), passwordHash, role)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.getUserByID(ctx, id)
}

func (s *SQLiteStore) getUserByID(ctx context.Context, id int64) (*User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, "SELECT id, username, password_hash, role, created_at FROM users WHERE id = ?", id).
		Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &user, nil
}

// Query log methods
func (s *SQLiteStore) RecordQuery(ctx context.Context, rec *QueryRecord) error {
	rec.ID = uuid.NewString() // Ensure ID is set
	rec.CreatedAt = time.Now()

	stmt, err := s.db.PrepareContext(ctx, "INSERT INTO queries (id, user_id, query, answer, success, created_at) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare query insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, rec.ID, rec.UserID, rec.Query, rec.Answer, rec.Success, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute query insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetRecentQueries(ctx context.Context, userID int64, n int) ([]QueryRecord, error) {
	query := `
        SELECT id, user_id, query, answer, success, created_at
        FROM queries
        WHERE user_id = ?
        ORDER BY created_at DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, query, userID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []QueryRecord
	for rows.Next() {
		var rec QueryRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Query, &rec.Answer, &rec.Success, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan query row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DataChunk methods (for RAG)
func (s *SQLiteStore) createDataChunk(ctx context.Context, chunk *DataChunk) error {
	embeddingBytes, err := json.Marshal(chunk.Embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}
	chunk.EmbeddingJSON = string(embeddingBytes)

	res, err := s.db.ExecContext(ctx, "INSERT INTO data_chunks (content, embedding_json) VALUES (?, ?)", chunk.Content, chunk.EmbeddingJSON)
	if err != nil {
		return fmt.Errorf("failed to execute data_chunk insert: %w", err)
	}
	chunk.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) GetAllDataChunks(ctx context.Context) ([]DataChunk, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, content, embedding_json FROM data_chunks")
	if err != nil {
		return nil, fmt.Errorf("failed to query data_chunks: %w", err)
	}
	defer rows.Close()

	var chunks []DataChunk
	for rows.Next() {
		var chunk DataChunk
		var embeddingJSON sql.NullString
		if err := rows.Scan(&chunk.ID, &chunk.Content, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("failed to scan data_chunk row: %w", err)
		}
		if embeddingJSON.String == "" {
			s.logger.Warn("empty embedding for chunk", zap.Int64("chunk_id", chunk.ID))
		} else if err := json.Unmarshal([]byte(embeddingJSON.String), &chunk.Embedding); err != nil {
			s.logger.Warn("failed to unmarshal embedding for chunk", zap.Int64("chunk_id", chunk.ID), zap.Error(err))
			chunk.Embedding = nil
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (s *SQLiteStore) ClearDataChunks(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM data_chunks")
	if err != nil {
		return fmt.Errorf("failed to delete data_chunks: %w", err)
	}
	_, err = s.db.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name='data_chunks'")
	if err != nil && !strings.Contains(err.Error(), "no such table") {
		s.logger.Warn("could not reset sequence for data_chunks", zap.Error(err))
	}
	return nil
}

// ParseDataTable extracts the cells of a single-column markdown table, one
// chunk per row. The header and separator rows are skipped.
func ParseDataTable(content string) []string {
	var chunks []string
	for i, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if i == 0 && strings.Contains(trimmed, "|") {
			lower := strings.ToLower(trimmed)
			if strings.Contains(lower, "text") || strings.Contains(lower, "content") {
				continue
			}
		}
		if strings.Contains(trimmed, "|") && strings.Contains(trimmed, "---") {
			continue
		}
		if !strings.HasPrefix(trimmed, "|") || !strings.HasSuffix(trimmed, "|") {
			continue
		}
		parts := strings.Split(trimmed, "|")
		if len(parts) < 3 {
			continue
		}
		if cell := strings.TrimSpace(parts[1]); cell != "" {
			chunks = append(chunks, cell)
		}
	}
	return chunks
}

// IngestDataFromFile replaces the knowledge base with the rows of the
// markdown table in filePath, embedding each row with embedder.
func (s *SQLiteStore) IngestDataFromFile(ctx context.Context, filePath string, embedder func(context.Context, string) ([]float32, error), pace time.Duration) (int, error) {
	contentBytes, err := os.ReadFile(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to read data file %s: %w", filePath, err)
	}

	rawChunks := ParseDataTable(string(contentBytes))
	if len(rawChunks) == 0 {
		s.logger.Warn("no chunks generated from data file", zap.String("path", filePath))
		return 0, nil
	}
	s.logger.Info("embedding chunks", zap.Int("chunks", len(rawChunks)))

	if err := s.ClearDataChunks(ctx); err != nil {
		return 0, fmt.Errorf("failed to clear existing data chunks: %w", err)
	}

	if pace <= 0 {
		pace = time.Millisecond
	}
	ticker := time.NewTicker(pace) // delay to not hit the embedding rate limit
	defer ticker.Stop()

	count := 0
	for i, rawChunk := range rawChunks {
		select {
		case <-ctx.Done():
			return count, ctx.Err()
		case <-ticker.C:
		}

		embedding, err := embedder(ctx, rawChunk)
		if err != nil {
			s.logger.Warn("failed to embed chunk, skipping", zap.Int("chunk", i+1), zap.Error(err))
			continue
		}

		chunk := DataChunk{Content: rawChunk, Embedding: embedding}
		if err := s.createDataChunk(ctx, &chunk); err != nil {
			s.logger.Warn("failed to store chunk, skipping", zap.Int("chunk", i+1), zap.Error(err))
			continue
		}
		count++
		if count%10 == 0 || count == len(rawChunks) {
			s.logger.Info("ingest progress", zap.Int("ingested", count), zap.Int("total", len(rawChunks)))
		}
	}
	return count, nil
}
