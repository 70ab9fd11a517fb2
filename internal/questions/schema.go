package questions

import (
	"encoding/json"

	"github.com/abhisek/lunareading/internal/llm"
)

// QuestionSetSchema defines the JSON schema for question generation responses.
var QuestionSetSchema = &llm.Schema{
	Name:        "reading-questions",
	Description: "A set of reading comprehension questions with model answers",
	Normalize:   coerceQuestionSet,
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"question_number": map[string]any{
							"type":        "integer",
							"description": "1-based position of the question in the set",
						},
						"question_text": map[string]any{
							"type":        "string",
							"description": "The question shown to the student",
						},
						"model_answer": map[string]any{
							"type":        "string",
							"description": "What a good answer should include",
						},
					},
					"required":             []any{"question_number", "question_text", "model_answer"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"questions"},
		"additionalProperties": false,
	},
}

// coerceQuestionSet rewrites a bare question list, or a set whose items
// omit optional fields, into the wrapped shape the schema requires.
// Missing numbers are filled from position. Anything it cannot decode into
// at least one question is returned unchanged for validation to reject.
func coerceQuestionSet(raw json.RawMessage) json.RawMessage {
	list, err := decodeQuestions(raw)
	if err != nil || len(list) == 0 {
		return raw
	}
	for i := range list {
		if list[i].QuestionNumber == nil {
			n := i + 1
			list[i].QuestionNumber = &n
		}
	}
	out, err := json.Marshal(questionSetOutput{Questions: list})
	if err != nil {
		return raw
	}
	return out
}
