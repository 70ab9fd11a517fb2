package questions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abhisek/lunareading/internal/llm"
)

// LLMGenerator implements Generator using the LLM provider.
type LLMGenerator struct {
	provider llm.Provider
	config   Config
}

// New creates a new LLMGenerator with the given provider and config.
func New(provider llm.Provider, cfg Config) *LLMGenerator {
	return &LLMGenerator{provider: provider, config: cfg}
}

// questionOutput is one raw question before normalization.
type questionOutput struct {
	QuestionNumber *int   `json:"question_number"`
	QuestionText   string `json:"question_text"`
	ModelAnswer    string `json:"model_answer"`
}

type questionSetOutput struct {
	Questions []questionOutput `json:"questions"`
}

// Generate produces in.Count questions for the assignment.
func (g *LLMGenerator) Generate(ctx context.Context, in Input) ([]Question, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeQuestionGen)

	req := llm.UserPrompt(systemPrompt, buildUserMessage(in))
	req.Schema = QuestionSetSchema
	req.MaxTokens = g.config.MaxTokens
	req.Temperature = g.config.Temperature

	resp, err := g.provider.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("LLM generation failed: %w", err)
	}

	raw, err := decodeQuestions(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse generated questions: %w", err)
	}
	return normalize(raw, in.Count)
}

// decodeQuestions accepts the wrapped set or, from providers that skip
// validation, a bare list.
func decodeQuestions(content json.RawMessage) ([]questionOutput, error) {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []questionOutput
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var set questionSetOutput
	if err := json.Unmarshal(trimmed, &set); err != nil {
		return nil, err
	}
	return set.Questions, nil
}

// normalize trims text, drops blank questions, fills missing numbers from
// position and keeps at most max questions.
func normalize(raw []questionOutput, max int) ([]Question, error) {
	out := make([]Question, 0, len(raw))
	for _, r := range raw {
		text := strings.TrimSpace(r.QuestionText)
		if text == "" {
			continue
		}
		num := len(out) + 1
		if r.QuestionNumber != nil && *r.QuestionNumber > 0 {
			num = *r.QuestionNumber
		}
		out = append(out, Question{
			Number:      num,
			Text:        text,
			ModelAnswer: strings.TrimSpace(r.ModelAnswer),
		})
	}
	if len(out) == 0 {
		return nil, &ValidationError{Message: "no questions returned"}
	}
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out, nil
}
