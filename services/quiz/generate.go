package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"readgate/models"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const quizGenSystemPrompt = `You are a comprehension quiz generator for a content-sharing platform. Given the title, summary and excerpt of a piece of content, produce exactly 3 multiple-choice questions that verify a reader actually engaged with it.

Rules:
1. Each question must be answerable from the provided text alone, no outside knowledge.
2. Each question has exactly 3 answer choices with exactly one correct choice.
3. Wrong choices must be plausible, not absurd.
4. Questions must cover different parts of the content, not rephrase each other.
5. If the provided text is too short, too vague or too fragmented to support 3 fair questions, call report_insufficient_context instead of inventing questions.

Call exactly one of the provided functions.`

const quizGenUserPromptTemplate = `Generate the comprehension quiz for this content.

Title: %s

Summary: %s

Excerpt:
%s

Source URL: %s`

// GenerationInput is the analyzable content handed to the oracle.
type GenerationInput struct {
	Title     string
	Summary   string
	Excerpt   string
	SourceURL string
}

// GenerationOutput carries either 3 validated questions or the
// insufficient-context signal. Never both.
type GenerationOutput struct {
	Questions    []models.QuizQuestion
	Insufficient bool
}

// Oracle generates comprehension questions from content text. The LLM
// behind it is an untyped external boundary: implementations must validate
// the response shape before returning it.
type Oracle interface {
	GenerateQuestions(ctx context.Context, input GenerationInput) (*GenerationOutput, error)
}

type submitQuizParams struct {
	Questions []oracleQuestion `json:"questions"`
}

type oracleQuestion struct {
	Prompt       string   `json:"prompt"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correct_index"`
}

type insufficientContextParams struct {
	Reason string `json:"reason"`
}

var quizGenTools = []llms.Tool{
	{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        "submit_quiz",
			Description: "Submit the generated comprehension quiz",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"questions": map[string]any{
						"type":        "array",
						"description": "Exactly 3 multiple-choice questions",
						"minItems":    3,
						"maxItems":    3,
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"prompt": map[string]any{
									"type":        "string",
									"description": "The question text",
								},
								"choices": map[string]any{
									"type":        "array",
									"description": "Exactly 3 answer choices",
									"minItems":    3,
									"maxItems":    3,
									"items": map[string]any{
										"type": "string",
									},
								},
								"correct_index": map[string]any{
									"type":        "integer",
									"description": "Zero-based index of the correct choice",
									"minimum":     0,
									"maximum":     2,
								},
							},
							"required": []string{"prompt", "choices", "correct_index"},
						},
					},
				},
				"required": []string{"questions"},
			},
		},
	},
	{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        "report_insufficient_context",
			Description: "Report that the content does not carry enough analyzable text for a fair quiz",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"reason": map[string]any{
						"type":        "string",
						"description": "Short explanation of what is missing",
					},
				},
				"required": []string{"reason"},
			},
		},
	},
}

type LLMOracle struct {
	llm llms.Model
}

func NewLLMOracle(apiKey string) (*LLMOracle, error) {
	llm, err := openai.New(
		openai.WithModel("gpt-4o-mini"),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
	}

	return &LLMOracle{llm: llm}, nil
}

func (o *LLMOracle) GenerateQuestions(ctx context.Context, input GenerationInput) (*GenerationOutput, error) {
	log.Printf("[INFO] Calling LLM for quiz generation (source: %s)", input.SourceURL)

	messageHistory := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, quizGenSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf(quizGenUserPromptTemplate, input.Title, input.Summary, input.Excerpt, input.SourceURL)),
	}

	resp, err := o.llm.GenerateContent(ctx, messageHistory,
		llms.WithTools(quizGenTools),
		llms.WithTemperature(0.3),
		llms.WithToolChoice("required"))
	if err != nil {
		log.Printf("[ERROR] Failed to generate quiz questions: %v", err)
		return nil, fmt.Errorf("failed to generate quiz questions: %w", err)
	}

	if len(resp.Choices) == 0 || len(resp.Choices[0].ToolCalls) == 0 {
		log.Printf("[ERROR] No tool calls in LLM response")
		return nil, fmt.Errorf("no tool calls in LLM response")
	}

	toolCall := resp.Choices[0].ToolCalls[0]
	log.Printf("[INFO] LLM called function: %s", toolCall.FunctionCall.Name)

	switch toolCall.FunctionCall.Name {
	case "submit_quiz":
		var params submitQuizParams
		if err := json.Unmarshal([]byte(toolCall.FunctionCall.Arguments), &params); err != nil {
			log.Printf("[ERROR] Failed to parse submit_quiz arguments: %v", err)
			return nil, fmt.Errorf("failed to parse submit_quiz arguments: %w", err)
		}

		questions, err := buildQuestions(params.Questions)
		if err != nil {
			log.Printf("[ERROR] LLM returned malformed quiz: %v", err)
			return nil, fmt.Errorf("malformed quiz from LLM: %w", err)
		}

		log.Printf("[INFO] Successfully generated %d quiz questions", len(questions))
		return &GenerationOutput{Questions: questions}, nil

	case "report_insufficient_context":
		var params insufficientContextParams
		if err := json.Unmarshal([]byte(toolCall.FunctionCall.Arguments), &params); err != nil {
			log.Printf("[ERROR] Failed to parse report_insufficient_context arguments: %v", err)
			return nil, fmt.Errorf("failed to parse report_insufficient_context arguments: %w", err)
		}

		log.Printf("[INFO] LLM reported insufficient context: %s", params.Reason)
		return &GenerationOutput{Insufficient: true}, nil

	default:
		log.Printf("[ERROR] Unknown function call: %s", toolCall.FunctionCall.Name)
		return nil, fmt.Errorf("unknown function call: %s", toolCall.FunctionCall.Name)
	}
}

// buildQuestions validates the oracle payload shape before any field is
// trusted: exactly 3 questions, 3 non-empty choices each, correct index in
// range. Stable ids are assigned here, letters for choices.
func buildQuestions(raw []oracleQuestion) ([]models.QuizQuestion, error) {
	if len(raw) != models.QuizQuestionCount {
		return nil, fmt.Errorf("expected %d questions, got %d", models.QuizQuestionCount, len(raw))
	}

	choiceIDs := []string{"a", "b", "c"}
	questions := make([]models.QuizQuestion, len(raw))

	for i, q := range raw {
		if strings.TrimSpace(q.Prompt) == "" {
			return nil, fmt.Errorf("question %d has an empty prompt", i+1)
		}
		if len(q.Choices) != len(choiceIDs) {
			return nil, fmt.Errorf("question %d has %d choices, expected %d", i+1, len(q.Choices), len(choiceIDs))
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Choices) {
			return nil, fmt.Errorf("question %d has correct index %d out of range", i+1, q.CorrectIndex)
		}

		choices := make([]models.QuizChoice, len(q.Choices))
		for j, text := range q.Choices {
			if strings.TrimSpace(text) == "" {
				return nil, fmt.Errorf("question %d choice %d is empty", i+1, j+1)
			}
			choices[j] = models.QuizChoice{ID: choiceIDs[j], Text: strings.TrimSpace(text)}
		}

		questions[i] = models.QuizQuestion{
			ID:              fmt.Sprintf("q%d", i+1),
			Prompt:          strings.TrimSpace(q.Prompt),
			Choices:         choices,
			CorrectChoiceID: choiceIDs[q.CorrectIndex],
		}
	}

	return questions, nil
}
