package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"readgate/db"
	"readgate/models"
)

type fakeRecordRepo struct {
	records     map[string]*models.QuizRecord
	createErr   error
	createCalls int
	sweepCalls  int
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{records: make(map[string]*models.QuizRecord)}
}

func (r *fakeRecordRepo) CreateQuizRecord(record *models.QuizRecord) error {
	r.createCalls++
	if r.createErr != nil {
		return r.createErr
	}
	record.CreatedAt = time.Now()
	r.records[record.ID] = record
	return nil
}

func (r *fakeRecordRepo) GetQuizRecordByID(id string) (*models.QuizRecord, error) {
	record, ok := r.records[id]
	if !ok {
		return nil, fmt.Errorf("quiz record %s: %w", id, db.ErrNotFound)
	}
	if !record.ExpiresAt.After(time.Now()) {
		return nil, fmt.Errorf("quiz record %s: %w", id, db.ErrGone)
	}
	return record, nil
}

func (r *fakeRecordRepo) GetActiveQuizRecord(contentID *string, sourceURL string) (*models.QuizRecord, error) {
	anyForSource := false
	var fallback *models.QuizRecord

	for _, record := range r.records {
		if record.SourceURL != sourceURL {
			continue
		}
		anyForSource = true
		if !record.ExpiresAt.After(time.Now()) {
			continue
		}
		if contentID != nil && record.ContentID != nil && *record.ContentID == *contentID {
			return record, nil
		}
		if record.ContentID == nil {
			fallback = record
		}
	}

	if fallback != nil {
		return fallback, nil
	}
	if anyForSource {
		return nil, fmt.Errorf("quiz record for %s: %w", sourceURL, db.ErrGone)
	}
	return nil, fmt.Errorf("quiz record for %s: %w", sourceURL, db.ErrNotFound)
}

func (r *fakeRecordRepo) DeleteExpiredQuizRecords() (int64, error) {
	r.sweepCalls++
	var deleted int64
	for id, record := range r.records {
		if !record.ExpiresAt.After(time.Now()) {
			delete(r.records, id)
			deleted++
		}
	}
	return deleted, nil
}

type fakeAttemptRepo struct {
	attempts  []*models.QuizAttempt
	createErr error
}

func (r *fakeAttemptRepo) CreateAttempt(attempt *models.QuizAttempt) error {
	if r.createErr != nil {
		return r.createErr
	}
	attempt.CreatedAt = time.Now()
	r.attempts = append(r.attempts, attempt)
	return nil
}

func (r *fakeAttemptRepo) CountAttemptsByUserAndQuiz(userID, quizID string) (int, error) {
	count := 0
	for _, attempt := range r.attempts {
		if attempt.UserID == userID && attempt.QuizID == quizID {
			count++
		}
	}
	return count, nil
}

func (r *fakeAttemptRepo) ListAttemptsByUser(userID string) ([]*models.QuizAttempt, error) {
	matched := make([]*models.QuizAttempt, 0)
	for _, attempt := range r.attempts {
		if attempt.UserID == userID {
			matched = append(matched, attempt)
		}
	}
	return matched, nil
}

type fakeOracle struct {
	output *GenerationOutput
	err    error
	calls  int
}

func (o *fakeOracle) GenerateQuestions(ctx context.Context, input GenerationInput) (*GenerationOutput, error) {
	o.calls++
	return o.output, o.err
}

func oracleQuestions() []models.QuizQuestion {
	return []models.QuizQuestion{
		{ID: "q1", Prompt: "What is the article about?", Choices: threeChoices(), CorrectChoiceID: "a"},
		{ID: "q2", Prompt: "Who is quoted in it?", Choices: threeChoices(), CorrectChoiceID: "b"},
		{ID: "q3", Prompt: "What does it conclude?", Choices: threeChoices(), CorrectChoiceID: "c"},
	}
}

func threeChoices() []models.QuizChoice {
	return []models.QuizChoice{
		{ID: "a", Text: "First option"},
		{ID: "b", Text: "Second option"},
		{ID: "c", Text: "Third option"},
	}
}

func newTestService(records db.QuizRecordRepository, attempts db.AttemptRepository, oracle Oracle) *Service {
	return NewService(records, attempts, oracle, 24*time.Hour, 2)
}

func generateRequest() *models.GenerateQuizRequest {
	return &models.GenerateQuizRequest{
		SourceURL: "https://example.com/article",
		UserID:    "user-1",
		Title:     "A detailed article about distributed systems",
		Summary:   "Consensus, replication and failure detection explained at length.",
		Excerpt:   "Paxos and Raft take different routes to the same safety property.",
	}
}

func TestGenerateQuizReturnsCachedRecord(t *testing.T) {
	records := newFakeRecordRepo()
	oracle := &fakeOracle{output: &GenerationOutput{Questions: oracleQuestions()}}
	service := newTestService(records, &fakeAttemptRepo{}, oracle)

	records.records["existing"] = &models.QuizRecord{
		ID:        "existing",
		SourceURL: "https://example.com/article",
		Questions: oracleQuestions(),
		OwnerID:   "user-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}

	resp, err := service.GenerateQuiz(context.Background(), generateRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Quiz == nil || resp.Quiz.QuizID != "existing" {
		t.Fatalf("expected the cached record to be returned, got %+v", resp)
	}
	if oracle.calls != 0 {
		t.Errorf("oracle must not run on a cache hit, got %d calls", oracle.calls)
	}
	if records.createCalls != 0 {
		t.Errorf("no new record must be created on a cache hit, got %d", records.createCalls)
	}
}

func TestGenerateQuizShortContentIsInsufficient(t *testing.T) {
	oracle := &fakeOracle{output: &GenerationOutput{Questions: oracleQuestions()}}
	service := newTestService(newFakeRecordRepo(), &fakeAttemptRepo{}, oracle)

	req := generateRequest()
	req.Title = "Hi"
	req.Summary = ""
	req.Excerpt = ""

	resp, err := service.GenerateQuiz(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.InsufficientContext {
		t.Error("content below the analyzable floor must signal insufficient context")
	}
	if oracle.calls != 0 {
		t.Errorf("oracle must not be consulted below the floor, got %d calls", oracle.calls)
	}
}

func TestGenerateQuizOracleFailureDegrades(t *testing.T) {
	records := newFakeRecordRepo()
	oracle := &fakeOracle{err: errors.New("upstream timeout")}
	service := newTestService(records, &fakeAttemptRepo{}, oracle)

	resp, err := service.GenerateQuiz(context.Background(), generateRequest())
	if err != nil {
		t.Fatalf("oracle trouble must not hard-fail generation, got %v", err)
	}
	if !resp.InsufficientContext {
		t.Error("oracle failure must degrade to the insufficient-context signal")
	}
	if records.createCalls != 0 {
		t.Errorf("nothing must be persisted on oracle failure, got %d creates", records.createCalls)
	}
}

func TestGenerateQuizPersistsRecordWithTTL(t *testing.T) {
	records := newFakeRecordRepo()
	oracle := &fakeOracle{output: &GenerationOutput{Questions: oracleQuestions()}}
	service := newTestService(records, &fakeAttemptRepo{}, oracle)

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return fixed }

	resp, err := service.GenerateQuiz(context.Background(), generateRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Quiz == nil || len(resp.Quiz.Questions) != models.QuizQuestionCount {
		t.Fatalf("expected a %d-question quiz, got %+v", models.QuizQuestionCount, resp)
	}

	record, ok := records.records[resp.Quiz.QuizID]
	if !ok {
		t.Fatal("generated record was not persisted")
	}
	if !record.ExpiresAt.Equal(fixed.Add(24 * time.Hour)) {
		t.Errorf("expected expiry 24h from creation, got %v", record.ExpiresAt)
	}
	if record.Questions[0].CorrectChoiceID == "" {
		t.Error("persisted record must keep the correct choice ids")
	}
	if records.sweepCalls != 1 {
		t.Errorf("expected one expired-record sweep per generation, got %d", records.sweepCalls)
	}
}

func TestGenerateQuizRequestValidation(t *testing.T) {
	service := newTestService(newFakeRecordRepo(), &fakeAttemptRepo{}, &fakeOracle{})

	tests := []struct {
		name   string
		mutate func(*models.GenerateQuizRequest)
	}{
		{"missing source URL", func(req *models.GenerateQuizRequest) { req.SourceURL = "  " }},
		{"missing user id", func(req *models.GenerateQuizRequest) { req.UserID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := generateRequest()
			tt.mutate(req)
			if _, err := service.GenerateQuiz(context.Background(), req); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestSanitizedQuizCarriesNoCorrectIDs(t *testing.T) {
	record := &models.QuizRecord{
		ID:        "rec-1",
		Questions: oracleQuestions(),
	}

	payload, err := json.Marshal(sanitize(record))
	if err != nil {
		t.Fatalf("unexpected marshal error: %v", err)
	}
	if strings.Contains(string(payload), "correct") {
		t.Errorf("sanitized quiz payload leaked correct-answer material: %s", payload)
	}
}

func TestQuizQuestionJSONHidesCorrectChoice(t *testing.T) {
	payload, err := json.Marshal(oracleQuestions())
	if err != nil {
		t.Fatalf("unexpected marshal error: %v", err)
	}
	if strings.Contains(string(payload), "correct") {
		t.Errorf("question JSON leaked correct-answer material: %s", payload)
	}
}

func TestGetQuizByIDAccessControl(t *testing.T) {
	tests := []struct {
		name           string
		ownerID        string
		contentVisible bool
		callerID       string
		expectErr      error
	}{
		{"owner reads own record", "user-1", false, "user-1", nil},
		{"stranger reads visible record", "user-1", true, "user-2", nil},
		{"stranger denied on hidden record", "user-1", false, "user-2", db.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := newFakeRecordRepo()
			records.records["rec-1"] = &models.QuizRecord{
				ID:             "rec-1",
				SourceURL:      "https://example.com/article",
				Questions:      oracleQuestions(),
				OwnerID:        tt.ownerID,
				ContentVisible: tt.contentVisible,
				ExpiresAt:      time.Now().Add(time.Hour),
			}
			service := newTestService(records, &fakeAttemptRepo{}, &fakeOracle{})

			quiz, err := service.GetQuizByID(context.Background(), "rec-1", tt.callerID)
			if tt.expectErr != nil {
				if !errors.Is(err, tt.expectErr) {
					t.Fatalf("expected %v, got %v", tt.expectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if quiz.QuizID != "rec-1" {
				t.Errorf("expected record rec-1, got %s", quiz.QuizID)
			}
		})
	}
}

func TestGetQuizByIDExpiredReadsAsGone(t *testing.T) {
	records := newFakeRecordRepo()
	records.records["rec-1"] = &models.QuizRecord{
		ID:        "rec-1",
		SourceURL: "https://example.com/article",
		Questions: oracleQuestions(),
		OwnerID:   "user-1",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	service := newTestService(records, &fakeAttemptRepo{}, &fakeOracle{})

	_, err := service.GetQuizByID(context.Background(), "rec-1", "user-1")
	if !errors.Is(err, db.ErrGone) {
		t.Errorf("expected ErrGone for an expired record, got %v", err)
	}
}

func TestListAttemptsByUser(t *testing.T) {
	attempts := &fakeAttemptRepo{attempts: []*models.QuizAttempt{
		{ID: "at-1", UserID: "user-1", QuizID: "rec-1"},
		{ID: "at-2", UserID: "user-2", QuizID: "rec-1"},
		{ID: "at-3", UserID: "user-1", QuizID: "rec-2"},
	}}
	service := newTestService(newFakeRecordRepo(), attempts, &fakeOracle{})

	listed, err := service.ListAttemptsByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listed) != 2 {
		t.Errorf("expected 2 attempts for user-1, got %d", len(listed))
	}

	if _, err := service.ListAttemptsByUser(context.Background(), "  "); err == nil {
		t.Error("expected an error for a blank user id")
	}
}
