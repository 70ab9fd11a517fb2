package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"text/template"

	"github.com/abhisek/lunareading/internal/llm"
)

// Config holds configuration for the Evaluator.
type Config struct {
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns the settings answers are evaluated with.
func DefaultConfig() Config {
	return Config{
		MaxTokens:   1024,
		Temperature: 0.3,
	}
}

// Evaluator scores answers with an LLM.
type Evaluator struct {
	provider llm.Provider
	cfg      Config
}

// New creates an Evaluator.
func New(provider llm.Provider, cfg Config) *Evaluator {
	return &Evaluator{provider: provider, cfg: cfg}
}

// evaluationOutput is the raw LLM response. Fields are pointers so that
// missing values can be told apart from zero values.
type evaluationOutput struct {
	Score        *float64 `json:"score"`
	Feedback     string   `json:"feedback"`
	Examples     []string `json:"examples"`
	Rating       *float64 `json:"rating"`
	IsSufficient *bool    `json:"is_sufficient"`
}

// Evaluate scores req.AnswerText against the question and its model answer.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (*Evaluation, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeEvaluation)

	kind := KindFor(req.SubmissionType, req.FirstSubmission)
	userMsg, err := buildEvaluationMessage(kind, req)
	if err != nil {
		return nil, fmt.Errorf("build evaluation prompt: %w", err)
	}

	llmReq := llm.UserPrompt(systemPrompt, userMsg)
	llmReq.Schema = schemaFor(kind)
	llmReq.MaxTokens = e.cfg.MaxTokens
	llmReq.Temperature = e.cfg.Temperature

	resp, err := e.provider.Generate(ctx, llmReq)
	if err != nil {
		return nil, fmt.Errorf("LLM evaluation failed: %w", err)
	}

	var raw evaluationOutput
	if err := json.Unmarshal(resp.Content, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse evaluation: %w", err)
	}
	return normalize(kind, raw), nil
}

func normalize(kind Kind, raw evaluationOutput) *Evaluation {
	ev := &Evaluation{Kind: kind, Feedback: raw.Feedback}
	if raw.Score != nil {
		ev.Score = math.Min(1, math.Max(0, *raw.Score))
	}
	if raw.IsSufficient != nil {
		ev.IsSufficient = *raw.IsSufficient
	} else {
		ev.IsSufficient = ev.Score >= SufficientScore
	}
	if raw.Rating != nil {
		r := int(math.Round(*raw.Rating))
		r = min(5, max(1, r))
		ev.Rating = &r
	}
	for _, ex := range raw.Examples {
		if ex != "" {
			ev.Examples = append(ev.Examples, ex)
		}
	}
	return ev
}

const systemPrompt = `You are an expert reading comprehension teacher evaluating elementary students' answers.

Instructions:
- Score each answer from 0.0 to 1.0, where 1.0 is excellent and matches the model answer well.
- Feedback must be constructive and encouraging. Point out what the student did well and give specific guidance on what to improve.
- Respond with JSON only.`

var initialTemplate = template.Must(template.New("initial").Parse(`Evaluate the student's answer.

Question: {{.QuestionText}}

Model Answer (what a good answer should include): {{.ModelAnswer}}

Student's Answer: {{.AnswerText}}

Provide:
1. "score": a number from 0.0 to 1.0.
2. "feedback": what the student did well, what is missing or could be improved, specific guidance on how to improve, and encouragement.
3. "examples": two example answers based on the model answer with key details replaced by blanks [_____]. They show the structure and key points while leaving the specifics for the student to fill in, e.g. "The main character [_____] because [_____]. This shows that [_____]."
`))

var retryTemplate = template.Must(template.New("retry").Parse(`Evaluate the student's revised answer.

Question: {{.QuestionText}}

Model Answer (what a good answer should include): {{.ModelAnswer}}

Student's Revised Answer: {{.AnswerText}}

Provide:
1. "score": a number from 0.0 to 1.0.
2. "feedback": what the student improved, what is still missing, specific guidance on how to improve further, and encouragement.
3. "rating": a number from 1 to 5 (5 is the highest) ONLY if the score is 0.7 or higher. If the score is below 0.7, rating must be null.
4. "is_sufficient": true if the score is 0.7 or higher, false otherwise.
`))

var finalTemplate = template.Must(template.New("final").Parse(`Evaluate the student's final answer.

Question: {{.QuestionText}}

Model Answer (what a good answer should include): {{.ModelAnswer}}

Student's Final Answer: {{.AnswerText}}

Provide:
1. "score": a number from 0.0 to 1.0.
2. "feedback": what the student did well, what could still be improved (if anything), and encouragement.
3. "rating": a number from 1 to 5 (5 is the highest) based on the overall quality of the answer. Always provide a rating.
4. "is_sufficient": true if the score is 0.7 or higher, false otherwise.
`))

func buildEvaluationMessage(kind Kind, req Request) (string, error) {
	tmpl := finalTemplate
	switch kind {
	case KindInitial:
		tmpl = initialTemplate
	case KindRetry:
		tmpl = retryTemplate
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, req); err != nil {
		return "", err
	}
	return buf.String(), nil
}
