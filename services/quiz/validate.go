package quiz

import (
	"context"
	"fmt"
	"log"
	"strings"

	"readgate/models"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// ValidateAnswers is the authoritative scorer: the correct answers live only
// here, client-side scoring is never trusted. The attempt is persisted win
// or lose. When no record matches either key shape, the validator fails with
// NotFound; callers must not treat that as a pass.
func (s *Service) ValidateAnswers(ctx context.Context, req *models.ValidateAnswersRequest) (*models.ValidationResult, error) {
	startedAt := s.now()
	log.Printf("[INFO] Starting answer validation for user %s on source %s", req.UserID, req.SourceURL)

	if err := s.validateAnswersRequest(req); err != nil {
		log.Printf("[ERROR] Answer validation request invalid: %v", err)
		return nil, err
	}

	// Lookup order: (content identity, source URL), then the pre-publish
	// record keyed by source URL alone. Both are handled by the repository.
	record, err := s.records.GetActiveQuizRecord(req.ContentID, req.SourceURL)
	if err != nil {
		log.Printf("[ERROR] No correct-answer record for source %s: %v", req.SourceURL, err)
		return nil, err
	}

	score := 0
	failedIDs := make([]string, 0, len(record.Questions))
	for _, question := range record.Questions {
		if req.Answers[question.ID] == question.CorrectChoiceID {
			score++
		} else {
			failedIDs = append(failedIDs, question.ID)
		}
	}
	passed := score >= models.PassThreshold

	latencyMs := req.CompletionLatencyMs
	if latencyMs <= 0 {
		latencyMs = s.now().Sub(startedAt).Milliseconds()
	}

	attempt := &models.QuizAttempt{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		ContentID: req.ContentID,
		SourceURL: req.SourceURL,
		QuizID:    record.ID,
		Answers:   req.Answers,
		Score:     score,
		Passed:    passed,
		GateType:  req.GateType,
		LatencyMs: latencyMs,
	}
	if err := s.attempts.CreateAttempt(attempt); err != nil {
		log.Printf("[ERROR] Failed to persist quiz attempt: %v", err)
		return nil, fmt.Errorf("failed to persist quiz attempt: %w", err)
	}

	result := &models.ValidationResult{
		Passed:            passed,
		Score:             score,
		Total:             models.QuizQuestionCount,
		FailedQuestionIDs: failedIDs,
		LatencyMs:         latencyMs,
	}

	// Correct choices are disclosed only once the user has exhausted the
	// retry cap, so the failed questions can be auto-filled and advanced.
	if !passed {
		attemptCount, err := s.attempts.CountAttemptsByUserAndQuiz(req.UserID, record.ID)
		if err != nil {
			log.Printf("[ERROR] Failed to count attempts for user %s on quiz %s: %v", req.UserID, record.ID, err)
		} else if attemptCount >= s.retryCap {
			result.RevealedAnswers = lo.SliceToMap(failedIDs, func(questionID string) (string, string) {
				question, _ := lo.Find(record.Questions, func(q models.QuizQuestion) bool {
					return q.ID == questionID
				})
				return questionID, question.CorrectChoiceID
			})
			log.Printf("[INFO] Retry cap reached for user %s on quiz %s, revealing %d answers", req.UserID, record.ID, len(result.RevealedAnswers))
		}
	}

	log.Printf("[INFO] Validation complete for user %s: score %d/%d, passed=%t", req.UserID, score, models.QuizQuestionCount, passed)
	return result, nil
}

func (s *Service) validateAnswersRequest(req *models.ValidateAnswersRequest) error {
	if req == nil {
		return fmt.Errorf("request cannot be nil")
	}
	if strings.TrimSpace(req.SourceURL) == "" {
		return fmt.Errorf("source URL is required")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	if len(req.Answers) == 0 {
		return fmt.Errorf("at least one answer is required")
	}
	if req.GateType != models.GateTypeShare && req.GateType != models.GateTypeComment {
		return fmt.Errorf("gate type must be %q or %q", models.GateTypeShare, models.GateTypeComment)
	}
	return nil
}
