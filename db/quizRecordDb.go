package db

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"readgate/models"

	_ "github.com/lib/pq"
)

type QuizRecordRepository interface {
	CreateQuizRecord(record *models.QuizRecord) error
	GetQuizRecordByID(id string) (*models.QuizRecord, error)
	GetActiveQuizRecord(contentID *string, sourceURL string) (*models.QuizRecord, error)
	DeleteExpiredQuizRecords() (int64, error)
}

type PostgresQuizRecordRepository struct {
	db *sql.DB
}

func NewPostgresQuizRecordRepository(databaseURL string) (*PostgresQuizRecordRepository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresQuizRecordRepository{db: db}, nil
}

// persistedQuestion is the storage shape of a question. The domain type
// hides the correct choice id from JSON on purpose; the column must keep it.
type persistedQuestion struct {
	ID              string              `json:"id"`
	Prompt          string              `json:"prompt"`
	Choices         []models.QuizChoice `json:"choices"`
	CorrectChoiceID string              `json:"correct_choice_id"`
}

func toPersistedQuestions(questions []models.QuizQuestion) []persistedQuestion {
	persisted := make([]persistedQuestion, len(questions))
	for i, q := range questions {
		persisted[i] = persistedQuestion{
			ID:              q.ID,
			Prompt:          q.Prompt,
			Choices:         q.Choices,
			CorrectChoiceID: q.CorrectChoiceID,
		}
	}
	return persisted
}

func fromPersistedQuestions(persisted []persistedQuestion) []models.QuizQuestion {
	questions := make([]models.QuizQuestion, len(persisted))
	for i, p := range persisted {
		questions[i] = models.QuizQuestion{
			ID:              p.ID,
			Prompt:          p.Prompt,
			Choices:         p.Choices,
			CorrectChoiceID: p.CorrectChoiceID,
		}
	}
	return questions
}

func (r *PostgresQuizRecordRepository) CreateQuizRecord(record *models.QuizRecord) error {
	questionsJSON, err := json.Marshal(toPersistedQuestions(record.Questions))
	if err != nil {
		return fmt.Errorf("failed to marshal questions: %w", err)
	}

	query := `
		INSERT INTO readgate.quiz_records (id, content_id, source_url, questions, provenance, owner_id, content_visible, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	row := r.db.QueryRow(query, record.ID, record.ContentID, record.SourceURL, questionsJSON, record.Provenance, record.OwnerID, record.ContentVisible, record.ExpiresAt)

	if err := row.Scan(&record.CreatedAt); err != nil {
		return fmt.Errorf("failed to create quiz record: %w", err)
	}

	return nil
}

func (r *PostgresQuizRecordRepository) GetQuizRecordByID(id string) (*models.QuizRecord, error) {
	query := `
		SELECT id, content_id, source_url, questions, provenance, owner_id, content_visible, created_at, expires_at
		FROM readgate.quiz_records
		WHERE id = $1`

	record, err := r.scanQuizRecord(r.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("quiz record %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get quiz record: %w", err)
	}

	// An expired record is treated as absent, distinguishable as Gone so the
	// caller can re-request generation.
	if expired, err := r.isExpired(record.ID); err != nil {
		return nil, err
	} else if expired {
		return nil, fmt.Errorf("quiz record %s: %w", id, ErrGone)
	}

	return record, nil
}

// GetActiveQuizRecord looks up an unexpired record by content identity plus
// source URL, falling back to the pre-publish record keyed by source URL
// alone (content id NULL) when no content exists yet.
func (r *PostgresQuizRecordRepository) GetActiveQuizRecord(contentID *string, sourceURL string) (*models.QuizRecord, error) {
	base := `
		SELECT id, content_id, source_url, questions, provenance, owner_id, content_visible, created_at, expires_at
		FROM readgate.quiz_records
		WHERE source_url = $1 AND expires_at > NOW()`

	if contentID != nil {
		record, err := r.scanQuizRecord(r.db.QueryRow(base+` AND content_id = $2 ORDER BY created_at DESC LIMIT 1`, sourceURL, *contentID))
		if err == nil {
			return record, nil
		}
		if err != sql.ErrNoRows {
			return nil, fmt.Errorf("failed to get quiz record: %w", err)
		}
	}

	record, err := r.scanQuizRecord(r.db.QueryRow(base+` AND content_id IS NULL ORDER BY created_at DESC LIMIT 1`, sourceURL))
	if err == nil {
		return record, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get quiz record: %w", err)
	}

	var expiredExists bool
	probe := `SELECT EXISTS (SELECT 1 FROM readgate.quiz_records WHERE source_url = $1)`
	if err := r.db.QueryRow(probe, sourceURL).Scan(&expiredExists); err != nil {
		return nil, fmt.Errorf("failed to probe quiz records: %w", err)
	}
	if expiredExists {
		return nil, fmt.Errorf("quiz record for %s: %w", sourceURL, ErrGone)
	}

	return nil, fmt.Errorf("quiz record for %s: %w", sourceURL, ErrNotFound)
}

func (r *PostgresQuizRecordRepository) DeleteExpiredQuizRecords() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM readgate.quiz_records WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired quiz records: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

func (r *PostgresQuizRecordRepository) isExpired(id string) (bool, error) {
	var expired bool
	query := `SELECT expires_at <= NOW() FROM readgate.quiz_records WHERE id = $1`
	if err := r.db.QueryRow(query, id).Scan(&expired); err != nil {
		return false, fmt.Errorf("failed to check quiz record expiry: %w", err)
	}
	return expired, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresQuizRecordRepository) scanQuizRecord(row rowScanner) (*models.QuizRecord, error) {
	record := &models.QuizRecord{}
	var questionsJSON []byte

	err := row.Scan(&record.ID, &record.ContentID, &record.SourceURL, &questionsJSON, &record.Provenance, &record.OwnerID, &record.ContentVisible, &record.CreatedAt, &record.ExpiresAt)
	if err != nil {
		return nil, err
	}

	var persisted []persistedQuestion
	if err := json.Unmarshal(questionsJSON, &persisted); err != nil {
		return nil, fmt.Errorf("failed to unmarshal questions: %w", err)
	}
	record.Questions = fromPersistedQuestions(persisted)

	return record, nil
}

func (r *PostgresQuizRecordRepository) Close() error {
	return r.db.Close()
}
