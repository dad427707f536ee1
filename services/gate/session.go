package gate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"readgate/models"
)

type State string

const (
	StateIdle              State = "idle"
	StateTracking          State = "tracking"
	StateReadyPendingClick State = "ready_pending_click"
	StateQuizRequested     State = "quiz_requested"
	StateQuizPresented     State = "quiz_presented"
	StateSubmitting        State = "submitting"
	StatePassed            State = "passed"
	StateFailed            State = "failed"
)

// InsufficientContextPolicy is a per-call-site choice: when the oracle cannot
// generate a quiz for the content, the caller decides whether the gated
// action goes through or stays blocked.
type InsufficientContextPolicy int

const (
	BlockAction InsufficientContextPolicy = iota
	AllowAction
)

const DefaultRetryCap = 2

var (
	ErrSessionClosed = errors.New("gate session closed")
	ErrGateBusy      = errors.New("gate request already in flight")
)

// QuizGateway is the server-side quiz surface the session talks to.
// *quiz.Service satisfies it directly.
type QuizGateway interface {
	GenerateQuiz(ctx context.Context, req *models.GenerateQuizRequest) (*models.GenerateQuizResponse, error)
	ValidateAnswers(ctx context.Context, req *models.ValidateAnswersRequest) (*models.ValidationResult, error)
}

type SessionConfig struct {
	UserID         string
	ContentID      *string
	SourceURL      string
	ContentVisible bool
	WordCount      int
	TotalBlocks    int
	GateType       models.GateType
	Policy         models.GatePolicy
	Surface        ScrollSurface
	Clock          Clock
	RetryCap       int
	OnInsufficientContext InsufficientContextPolicy
	// Continuation receives the attempt result on pass; it never sees the
	// raw answers.
	Continuation func(models.ValidationResult)
}

// Registry enforces at most one active session per (user, content) pair.
type Registry struct {
	mu     sync.Mutex
	active map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{active: make(map[string]*Session)}
}

func sessionKey(cfg SessionConfig) string {
	contentKey := cfg.SourceURL
	if cfg.ContentID != nil {
		contentKey = *cfg.ContentID
	}
	return cfg.UserID + "|" + contentKey
}

// Open returns a new session, or the already-active one with opened=false:
// opening the same gate twice is a no-op, not a parallel session.
func (r *Registry) Open(cfg SessionConfig, gateway QuizGateway) (session *Session, opened bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := sessionKey(cfg)
	if existing, ok := r.active[key]; ok {
		log.Printf("[INFO] Gate session for %s already active, rejecting duplicate", key)
		return existing, false
	}

	if cfg.RetryCap <= 0 {
		cfg.RetryCap = DefaultRetryCap
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}

	session = &Session{
		cfg:      cfg,
		gateway:  gateway,
		registry: r,
		key:      key,
		state:    StateIdle,
		tracker:  NewTracker(cfg.Clock, cfg.Surface, cfg.WordCount, cfg.Policy),
		visible:  make(map[string]struct{}),
	}
	r.active[key] = session
	return session, true
}

func (r *Registry) release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, key)
}

type ClickResult struct {
	Rejected            bool                  `json:"rejected"`
	Readiness           models.Readiness      `json:"readiness"`
	InsufficientContext bool                  `json:"insufficient_context,omitempty"`
	Allowed             bool                  `json:"allowed,omitempty"`
	Quiz                *models.SanitizedQuiz `json:"quiz,omitempty"`
}

// Session is the gate facade the UI mounts: start tracking, poll readiness,
// click to open the quiz, submit answers, and on pass the continuation runs.
type Session struct {
	cfg      SessionConfig
	gateway  QuizGateway
	registry *Registry
	key      string
	tracker  *Tracker
	cancel   context.CancelFunc

	mu          sync.Mutex
	state       State
	quiz        *models.SanitizedQuiz
	presentedAt time.Time
	failedCount int
	disposed    bool
	visible     map[string]struct{}
}

// Start begins tracking. The session owns a derived context so Close tears
// the poll loop down even if the caller's context lives on.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed || s.state != StateIdle {
		return
	}

	trackerCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.tracker.Start(trackerCtx)
	s.state = StateTracking
	log.Printf("[INFO] Gate session %s started tracking (%d words)", s.key, s.cfg.WordCount)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// MarkBlockVisible records that a reading block has been exposed at or above
// the policy's unlock threshold. The set only grows.
func (s *Session) MarkBlockVisible(blockID string, exposedRatio float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed || exposedRatio < s.cfg.Policy.UnlockThresholdRatio {
		return
	}
	s.visible[blockID] = struct{}{}
}

// Poll evaluates readiness from the tracker signal and advances
// Tracking -> ReadyPendingClick. No UI transition is forced; the user must
// still click the gated action.
func (s *Session) Poll() models.Readiness {
	progress := s.tracker.Progress()
	readiness := Evaluate(progress, s.cfg.Policy)

	if readiness.Ready && !s.blockCoverageSatisfied() {
		readiness.Ready = false
		readiness.Message = "keep reading: skipped sections remain"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if readiness.Ready && s.state == StateTracking {
		s.state = StateReadyPendingClick
	}
	return readiness
}

// blockCoverageSatisfied applies the grace ratio: a fraction of blocks may
// be skipped without penalty when progressive reveal is in use.
func (s *Session) blockCoverageSatisfied() bool {
	if s.cfg.TotalBlocks <= 0 {
		return true
	}

	s.mu.Lock()
	seen := len(s.visible)
	s.mu.Unlock()

	required := int(math.Ceil(float64(s.cfg.TotalBlocks) * (1 - s.cfg.Policy.GraceRatio)))
	return seen >= required
}

// Click triggers the gated action. Premature clicks are rejected with the
// deficit feedback and the session stays in Tracking; ready clicks fetch the
// sanitized quiz (or resolve the insufficient-context escape hatch).
func (s *Session) Click(ctx context.Context) (*ClickResult, error) {
	readiness := s.Poll()

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}

	switch s.state {
	case StateQuizPresented:
		// Re-clicking while the quiz is open just hands the same quiz back.
		quiz := s.quiz
		s.mu.Unlock()
		return &ClickResult{Readiness: readiness, Quiz: quiz}, nil
	case StateQuizRequested, StateSubmitting:
		s.mu.Unlock()
		return nil, ErrGateBusy
	case StateTracking:
		s.mu.Unlock()
		log.Printf("[INFO] Gate session %s rejected premature click: %s", s.key, readiness.Message)
		return &ClickResult{Rejected: true, Readiness: readiness}, nil
	case StateReadyPendingClick:
		s.state = StateQuizRequested
		s.mu.Unlock()
	default:
		s.mu.Unlock()
		return nil, fmt.Errorf("gate session in state %s cannot accept a click", s.state)
	}

	resp, err := s.gateway.GenerateQuiz(ctx, &models.GenerateQuizRequest{
		ContentID:      s.cfg.ContentID,
		SourceURL:      s.cfg.SourceURL,
		UserID:         s.cfg.UserID,
		ContentVisible: s.cfg.ContentVisible,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	// A result arriving after teardown must not touch a disposed session.
	if s.disposed {
		return nil, ErrSessionClosed
	}

	if err != nil {
		s.state = StateReadyPendingClick
		return nil, fmt.Errorf("failed to request quiz: %w", err)
	}

	if resp.InsufficientContext {
		if s.cfg.OnInsufficientContext == AllowAction {
			log.Printf("[INFO] Gate session %s: insufficient context, call site allows the action", s.key)
			s.completeLocked()
			return &ClickResult{Readiness: readiness, InsufficientContext: true, Allowed: true}, nil
		}
		log.Printf("[INFO] Gate session %s: insufficient context, call site blocks the action", s.key)
		s.state = StateReadyPendingClick
		return &ClickResult{Readiness: readiness, InsufficientContext: true}, nil
	}

	s.quiz = resp.Quiz
	s.presentedAt = s.cfg.Clock.Now()
	s.state = StateQuizPresented
	return &ClickResult{Readiness: readiness, Quiz: resp.Quiz}, nil
}

// SubmitAnswers sends all three answers to the authoritative validator. On
// pass the continuation runs with the attempt result and the session resets;
// a failed attempt is retryable until the cap, after which the validator's
// revealed answers force the questions forward and the session resets.
func (s *Session) SubmitAnswers(ctx context.Context, answers map[string]string) (*models.ValidationResult, error) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.state != StateQuizPresented {
		s.mu.Unlock()
		return nil, fmt.Errorf("gate session in state %s cannot accept answers", s.state)
	}
	if err := s.checkAnswersComplete(answers); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.state = StateSubmitting
	completionLatency := s.cfg.Clock.Now().Sub(s.presentedAt)
	s.mu.Unlock()

	result, err := s.gateway.ValidateAnswers(ctx, &models.ValidateAnswersRequest{
		ContentID:           s.cfg.ContentID,
		SourceURL:           s.cfg.SourceURL,
		Answers:             answers,
		UserID:              s.cfg.UserID,
		GateType:            s.cfg.GateType,
		CompletionLatencyMs: completionLatency.Milliseconds(),
	})

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}

	if err != nil {
		s.state = StateQuizPresented
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to validate answers: %w", err)
	}

	if result.Passed {
		s.state = StatePassed
		continuation := s.cfg.Continuation
		s.completeLocked()
		s.mu.Unlock()

		log.Printf("[INFO] Gate session %s passed with score %d/%d", s.key, result.Score, result.Total)
		if continuation != nil {
			continuation(*result)
		}
		return result, nil
	}

	s.failedCount++
	if s.failedCount < s.cfg.RetryCap {
		log.Printf("[INFO] Gate session %s failed attempt %d, retry allowed", s.key, s.failedCount)
		s.state = StateQuizPresented
		s.mu.Unlock()
		return result, nil
	}

	// Retry cap exhausted: the result carries the revealed answers, the
	// questions are force-advanced, and the session resets.
	log.Printf("[INFO] Gate session %s failed attempt %d, retry cap reached", s.key, s.failedCount)
	s.state = StateFailed
	s.completeLocked()
	s.mu.Unlock()
	return result, nil
}

func (s *Session) checkAnswersComplete(answers map[string]string) error {
	if s.quiz == nil {
		return fmt.Errorf("no quiz presented")
	}
	for _, question := range s.quiz.Questions {
		if answers[question.ID] == "" {
			return fmt.Errorf("question %s has no answer", question.ID)
		}
	}
	return nil
}

// Close tears the session down: the poll loop stops immediately and results
// from in-flight calls are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completeLocked()
}

func (s *Session) completeLocked() {
	if s.disposed {
		return
	}
	s.disposed = true
	s.state = StateIdle
	s.quiz = nil
	if s.cancel != nil {
		s.cancel()
	}
	s.registry.release(s.key)
}
