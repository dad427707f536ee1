package quiz

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"readgate/db"
	"readgate/models"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// minAnalyzableChars is the floor below which content cannot support a fair
// quiz; the oracle is not even consulted.
const minAnalyzableChars = 50

const generationProvenance = "llm/gpt-4o-mini"

type Service struct {
	records  db.QuizRecordRepository
	attempts db.AttemptRepository
	oracle   Oracle
	ttl      time.Duration
	retryCap int
	now      func() time.Time
}

func NewService(records db.QuizRecordRepository, attempts db.AttemptRepository, oracle Oracle, ttl time.Duration, retryCap int) *Service {
	return &Service{
		records:  records,
		attempts: attempts,
		oracle:   oracle,
		ttl:      ttl,
		retryCap: retryCap,
		now:      time.Now,
	}
}

// GenerateQuiz returns the sanitized quiz for (content identity, source
// URL). A valid cached record is returned as is, so repeated calls with the
// same inputs are idempotent while the record lives; otherwise the oracle is
// invoked and the result persisted as a new immutable record. An expired
// record is replaced, never mutated.
func (s *Service) GenerateQuiz(ctx context.Context, req *models.GenerateQuizRequest) (*models.GenerateQuizResponse, error) {
	log.Printf("[INFO] Starting quiz generation for source %s", req.SourceURL)

	if err := s.validateGenerateRequest(req); err != nil {
		log.Printf("[ERROR] Quiz generation validation failed: %v", err)
		return nil, err
	}

	// Opportunistic sweep so expired records get replaced rather than pile up.
	if deleted, err := s.records.DeleteExpiredQuizRecords(); err != nil {
		log.Printf("[ERROR] Failed to sweep expired quiz records: %v", err)
	} else if deleted > 0 {
		log.Printf("[INFO] Swept %d expired quiz records", deleted)
	}

	existing, err := s.records.GetActiveQuizRecord(req.ContentID, req.SourceURL)
	if err == nil {
		log.Printf("[INFO] Returning cached quiz record %s", existing.ID)
		return &models.GenerateQuizResponse{Quiz: sanitize(existing)}, nil
	}

	analyzable := strings.TrimSpace(req.Title + " " + req.Summary + " " + req.Excerpt)
	if len(analyzable) < minAnalyzableChars {
		log.Printf("[INFO] Content for %s too short to quiz (%d chars)", req.SourceURL, len(analyzable))
		return &models.GenerateQuizResponse{InsufficientContext: true}, nil
	}

	output, err := s.oracle.GenerateQuestions(ctx, GenerationInput{
		Title:     req.Title,
		Summary:   req.Summary,
		Excerpt:   req.Excerpt,
		SourceURL: req.SourceURL,
	})
	if err != nil {
		// Oracle failures (network, malformed output) degrade to the
		// insufficient-context signal; they never hard-fail the gate flow.
		log.Printf("[ERROR] Quiz oracle failed for %s, signalling insufficient context: %v", req.SourceURL, err)
		return &models.GenerateQuizResponse{InsufficientContext: true}, nil
	}
	if output.Insufficient {
		return &models.GenerateQuizResponse{InsufficientContext: true}, nil
	}

	record := &models.QuizRecord{
		ID:             uuid.NewString(),
		ContentID:      req.ContentID,
		SourceURL:      req.SourceURL,
		Questions:      output.Questions,
		Provenance:     generationProvenance,
		OwnerID:        req.UserID,
		ContentVisible: req.ContentVisible,
		ExpiresAt:      s.now().Add(s.ttl),
	}

	if err := s.records.CreateQuizRecord(record); err != nil {
		log.Printf("[ERROR] Failed to persist quiz record: %v", err)
		return nil, fmt.Errorf("failed to persist quiz record: %w", err)
	}

	log.Printf("[INFO] Successfully created quiz record %s", record.ID)
	return &models.GenerateQuizResponse{Quiz: sanitize(record)}, nil
}

// GetQuizByID returns the sanitized quiz, enforcing access: the caller must
// own the record or the record must be tied to publicly visible content.
func (s *Service) GetQuizByID(ctx context.Context, id, callerID string) (*models.SanitizedQuiz, error) {
	log.Printf("[INFO] Starting get quiz %s for caller %s", id, callerID)

	record, err := s.records.GetQuizRecordByID(id)
	if err != nil {
		log.Printf("[ERROR] Failed to get quiz %s: %v", id, err)
		return nil, err
	}

	if err := s.checkAccess(record, callerID); err != nil {
		return nil, err
	}

	return sanitize(record), nil
}

// GetQuizBySource resolves a quiz by (content identity, source URL),
// including the pre-publish fallback keyed by source URL alone.
func (s *Service) GetQuizBySource(ctx context.Context, contentID *string, sourceURL, callerID string) (*models.SanitizedQuiz, error) {
	log.Printf("[INFO] Starting get quiz for source %s", sourceURL)

	record, err := s.records.GetActiveQuizRecord(contentID, sourceURL)
	if err != nil {
		log.Printf("[ERROR] Failed to get quiz for source %s: %v", sourceURL, err)
		return nil, err
	}

	if err := s.checkAccess(record, callerID); err != nil {
		return nil, err
	}

	return sanitize(record), nil
}

// ListAttemptsByUser is the audit read side of the append-only attempt store.
func (s *Service) ListAttemptsByUser(ctx context.Context, userID string) ([]*models.QuizAttempt, error) {
	log.Printf("[INFO] Starting list attempts for user %s", userID)

	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}

	attempts, err := s.attempts.ListAttemptsByUser(userID)
	if err != nil {
		log.Printf("[ERROR] Failed to list attempts for user %s: %v", userID, err)
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	log.Printf("[INFO] Successfully retrieved %d attempts for user %s", len(attempts), userID)
	return attempts, nil
}

func (s *Service) checkAccess(record *models.QuizRecord, callerID string) error {
	if record.OwnerID == callerID || record.ContentVisible {
		return nil
	}
	log.Printf("[ERROR] Caller %s denied access to quiz %s", callerID, record.ID)
	return fmt.Errorf("quiz record %s: %w", record.ID, db.ErrForbidden)
}

// sanitize strips everything that must not cross the trust boundary: only
// question and choice text leave the server, never correct choice ids.
func sanitize(record *models.QuizRecord) *models.SanitizedQuiz {
	return &models.SanitizedQuiz{
		QuizID: record.ID,
		Questions: lo.Map(record.Questions, func(q models.QuizQuestion, _ int) models.SanitizedQuestion {
			return models.SanitizedQuestion{
				ID:      q.ID,
				Prompt:  q.Prompt,
				Choices: q.Choices,
			}
		}),
		GeneratedAt: record.CreatedAt,
		ExpiresAt:   record.ExpiresAt,
	}
}

func (s *Service) validateGenerateRequest(req *models.GenerateQuizRequest) error {
	if req == nil {
		return fmt.Errorf("request cannot be nil")
	}
	if strings.TrimSpace(req.SourceURL) == "" {
		return fmt.Errorf("source URL is required")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	return nil
}
