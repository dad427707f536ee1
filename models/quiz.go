package models

import "time"

const QuizQuestionCount = 3

// PassThreshold is the minimum score out of QuizQuestionCount needed to pass
// a comprehension quiz. Two out of three tolerates one careless mistake.
const PassThreshold = 2

type QuizChoice struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuizQuestion carries the correct choice id server-side only; it is never
// serialized into client responses.
type QuizQuestion struct {
	ID              string       `json:"id"`
	Prompt          string       `json:"prompt"`
	Choices         []QuizChoice `json:"choices"`
	CorrectChoiceID string       `json:"-"`
}

// QuizRecord is the persisted quiz for a (content, source URL) identity.
// Immutable once created; an expired record is replaced, never mutated.
type QuizRecord struct {
	ID             string         `json:"id" db:"id"`
	ContentID      *string        `json:"content_id,omitempty" db:"content_id"`
	SourceURL      string         `json:"source_url" db:"source_url"`
	Questions      []QuizQuestion `json:"questions" db:"questions"`
	Provenance     string         `json:"provenance" db:"provenance"`
	OwnerID        string         `json:"owner_id" db:"owner_id"`
	ContentVisible bool           `json:"content_visible" db:"content_visible"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	ExpiresAt      time.Time      `json:"expires_at" db:"expires_at"`
}

// SanitizedQuestion is the client-facing view of a question: prompt and
// choices only.
type SanitizedQuestion struct {
	ID      string       `json:"id"`
	Prompt  string       `json:"prompt"`
	Choices []QuizChoice `json:"choices"`
}

type SanitizedQuiz struct {
	QuizID      string              `json:"quiz_id"`
	Questions   []SanitizedQuestion `json:"questions"`
	GeneratedAt time.Time           `json:"generated_at"`
	ExpiresAt   time.Time           `json:"expires_at"`
}

// QuizAttempt is the append-only audit row for one submitted quiz. Never
// updated or deleted by normal flow.
type QuizAttempt struct {
	ID        string            `json:"id" db:"id"`
	UserID    string            `json:"user_id" db:"user_id"`
	ContentID *string           `json:"content_id,omitempty" db:"content_id"`
	SourceURL string            `json:"source_url" db:"source_url"`
	QuizID    string            `json:"quiz_id" db:"quiz_id"`
	Answers   map[string]string `json:"answers" db:"answers"`
	Score     int               `json:"score" db:"score"`
	Passed    bool              `json:"passed" db:"passed"`
	GateType  GateType          `json:"gate_type" db:"gate_type"`
	LatencyMs int64             `json:"latency_ms" db:"latency_ms"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}

type GenerateQuizRequest struct {
	ContentID      *string `json:"content_id,omitempty"`
	Title          string  `json:"title"`
	Summary        string  `json:"summary"`
	Excerpt        string  `json:"excerpt"`
	SourceURL      string  `json:"source_url"`
	UserID         string  `json:"user_id"`
	ContentVisible bool    `json:"content_visible"`
}

type GenerateQuizResponse struct {
	InsufficientContext bool           `json:"insufficient_context,omitempty"`
	Quiz                *SanitizedQuiz `json:"quiz,omitempty"`
}

type ValidateAnswersRequest struct {
	ContentID *string `json:"content_id,omitempty"`
	SourceURL string  `json:"source_url"`
	// Answers maps question id to the submitted choice id.
	Answers             map[string]string `json:"answers"`
	UserID              string            `json:"user_id"`
	GateType            GateType          `json:"gate_type"`
	CompletionLatencyMs int64             `json:"completion_latency_ms,omitempty"`
}

// ValidationResult is what the validator returns to the caller. The raw
// correct answers stay server-side except for RevealedAnswers, which is
// populated only once the retry cap is exhausted.
type ValidationResult struct {
	Passed            bool              `json:"passed"`
	Score             int               `json:"score"`
	Total             int               `json:"total"`
	FailedQuestionIDs []string          `json:"failed_question_ids"`
	LatencyMs         int64             `json:"latency_ms"`
	RevealedAnswers   map[string]string `json:"revealed_answers,omitempty"`
}
