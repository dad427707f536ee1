package db

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"readgate/models"

	_ "github.com/lib/pq"
)

// AttemptRepository is append-only: attempts are audit rows, never updated
// or deleted by normal flow.
type AttemptRepository interface {
	CreateAttempt(attempt *models.QuizAttempt) error
	CountAttemptsByUserAndQuiz(userID, quizID string) (int, error)
	ListAttemptsByUser(userID string) ([]*models.QuizAttempt, error)
}

type PostgresAttemptRepository struct {
	db *sql.DB
}

func NewPostgresAttemptRepository(databaseURL string) (*PostgresAttemptRepository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresAttemptRepository{db: db}, nil
}

func (r *PostgresAttemptRepository) CreateAttempt(attempt *models.QuizAttempt) error {
	answersJSON, err := json.Marshal(attempt.Answers)
	if err != nil {
		return fmt.Errorf("failed to marshal answers: %w", err)
	}

	query := `
		INSERT INTO readgate.quiz_attempts (id, user_id, content_id, source_url, quiz_id, answers, score, passed, gate_type, latency_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`

	row := r.db.QueryRow(query, attempt.ID, attempt.UserID, attempt.ContentID, attempt.SourceURL, attempt.QuizID, answersJSON, attempt.Score, attempt.Passed, string(attempt.GateType), attempt.LatencyMs)

	if err := row.Scan(&attempt.CreatedAt); err != nil {
		return fmt.Errorf("failed to create quiz attempt: %w", err)
	}

	return nil
}

func (r *PostgresAttemptRepository) CountAttemptsByUserAndQuiz(userID, quizID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM readgate.quiz_attempts WHERE user_id = $1 AND quiz_id = $2`

	if err := r.db.QueryRow(query, userID, quizID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count quiz attempts: %w", err)
	}

	return count, nil
}

func (r *PostgresAttemptRepository) ListAttemptsByUser(userID string) ([]*models.QuizAttempt, error) {
	query := `
		SELECT id, user_id, content_id, source_url, quiz_id, answers, score, passed, gate_type, latency_ms, created_at
		FROM readgate.quiz_attempts
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query quiz attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]*models.QuizAttempt, 0)
	for rows.Next() {
		attempt := &models.QuizAttempt{}
		var answersJSON []byte
		var gateType string

		err := rows.Scan(&attempt.ID, &attempt.UserID, &attempt.ContentID, &attempt.SourceURL, &attempt.QuizID, &answersJSON, &attempt.Score, &attempt.Passed, &gateType, &attempt.LatencyMs, &attempt.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quiz attempt: %w", err)
		}

		if err := json.Unmarshal(answersJSON, &attempt.Answers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal answers: %w", err)
		}
		attempt.GateType = models.GateType(gateType)

		attempts = append(attempts, attempt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over quiz attempts: %w", err)
	}

	return attempts, nil
}

func (r *PostgresAttemptRepository) Close() error {
	return r.db.Close()
}
