package trust

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/invopop/jsonschema"
)

const trustEvalSystemPrompt = `You are a source trustworthiness evaluator for a content-sharing platform. Given a source URL and optionally the text of the post referencing it, assess how defensible the source is as an information origin.

Consider: domain reputation, whether the outlet has editorial standards, whether the URL points at primary material or aggregation, and whether the post text misrepresents the source.

Report your assessment by calling report_trust_score exactly once:
- band ALTO for established outlets and primary sources
- band MEDIO when reputation is mixed or unknown
- band BASSO for known misinformation vectors, spam domains or link shorteners hiding the destination
- score 0-100 consistent with the band
- up to 3 short reasons a reader can understand at a glance`

// Verdict is the oracle's raw payload. It is untrusted until the resolver
// clamps and coerces it.
type Verdict struct {
	Band    string   `json:"band" jsonschema:"required,enum=ALTO,enum=MEDIO,enum=BASSO,description=Coarse trust classification"`
	Score   int      `json:"score" jsonschema:"required,minimum=0,maximum=100,description=Numeric trust score from 0 to 100"`
	Reasons []string `json:"reasons" jsonschema:"required,description=Up to 3 short human-readable reasons"`
}

// Oracle evaluates a source URL and returns a raw verdict. Implementations
// may fail; the resolver owns the fallback policy.
type Oracle interface {
	EvaluateSource(ctx context.Context, normalizedURL, postText string) (*Verdict, error)
}

type AnthropicOracle struct {
	client *anthropic.Client
}

func NewAnthropicOracle(apiKey string) *AnthropicOracle {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicOracle{client: &client}
}

func generateAnthropicSchema[T any]() anthropic.ToolInputSchemaParam {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)

	return anthropic.ToolInputSchemaParam{
		Properties: schema.Properties,
	}
}

func (o *AnthropicOracle) EvaluateSource(ctx context.Context, normalizedURL, postText string) (*Verdict, error) {
	log.Printf("[INFO] Calling trust oracle for %s", normalizedURL)

	prompt := fmt.Sprintf("Evaluate this source URL: %s", normalizedURL)
	if postText != "" {
		prompt += fmt.Sprintf("\n\nPost text referencing it:\n%s", postText)
	}

	response, err := o.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.ModelClaude4Sonnet20250514,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: trustEvalSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Tools: []anthropic.ToolUnionParam{
			{
				OfTool: &anthropic.ToolParam{
					Name:        "report_trust_score",
					Description: anthropic.String("Report the trust assessment of the source"),
					InputSchema: generateAnthropicSchema[Verdict](),
				},
			},
		},
	})
	if err != nil {
		log.Printf("[ERROR] Failed to call trust oracle: %v", err)
		return nil, fmt.Errorf("failed to call trust oracle: %w", err)
	}

	for _, block := range response.Content {
		toolUse, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok || toolUse.Name != "report_trust_score" {
			continue
		}

		inputJSON, err := json.Marshal(toolUse.Input)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal trust oracle output: %w", err)
		}

		verdict := &Verdict{}
		if err := json.Unmarshal(inputJSON, verdict); err != nil {
			log.Printf("[ERROR] Failed to parse trust oracle output: %v", err)
			return nil, fmt.Errorf("failed to parse trust oracle output: %w", err)
		}

		log.Printf("[INFO] Trust oracle returned band %s score %d for %s", verdict.Band, verdict.Score, normalizedURL)
		return verdict, nil
	}

	log.Printf("[ERROR] Trust oracle returned no report_trust_score call")
	return nil, fmt.Errorf("trust oracle returned no report_trust_score call")
}
