package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

const demoQuestionCount = 5

var questionCountRE = regexp.MustCompile(`Generate (\d+) `)

// NewDemoProvider returns a MockProvider that answers every request with
// fixed, schema-shaped content chosen by the request purpose. It backs the
// "mock" provider setting so the API and CLI work without an API key.
func NewDemoProvider() *MockProvider {
	m := NewNamedMockProvider("mock")
	m.fallback = demoContent
	return m
}

func demoContent(ctx context.Context, req Request) (json.RawMessage, error) {
	switch PurposeFrom(ctx) {
	case PurposeQuestionGen:
		return demoQuestions(lastUserMessage(req)), nil
	case PurposeEvaluation:
		return json.RawMessage(`{
			"score": 0.7,
			"feedback": "Good start. Add one more detail from the chapter to support your answer.",
			"examples": ["The character [_____] because [_____].", "This shows that [_____]."],
			"rating": 4,
			"is_sufficient": true
		}`), nil
	case PurposePing:
		return json.RawMessage(`{"ok": true}`), nil
	default:
		return nil, &ErrProviderUnavailable{}
	}
}

func demoQuestions(prompt string) json.RawMessage {
	n := demoQuestionCount
	if m := questionCountRE.FindStringSubmatch(prompt); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil && v > 0 {
			n = v
		}
	}

	type item struct {
		Number      int    `json:"question_number"`
		Text        string `json:"question_text"`
		ModelAnswer string `json:"model_answer"`
	}
	set := struct {
		Questions []item `json:"questions"`
	}{Questions: make([]item, 0, n)}
	for i := 1; i <= n; i++ {
		set.Questions = append(set.Questions, item{
			Number:      i,
			Text:        fmt.Sprintf("What is one important thing that happens in part %d of the chapter?", i),
			ModelAnswer: "A clear event from the chapter with a detail that supports it.",
		})
	}
	out, _ := json.Marshal(set)
	return out
}

func lastUserMessage(req Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			return req.Messages[i].Content
		}
	}
	return ""
}
