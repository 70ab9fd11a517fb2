package evaluation

import "github.com/abhisek/lunareading/internal/llm"

var scoreProperty = map[string]any{
	"type":        "number",
	"description": "Score from 0.0 to 1.0 where 1.0 is excellent and matches the model answer well",
}

var feedbackProperty = map[string]any{
	"type":        "string",
	"description": "Constructive, encouraging feedback for the student",
}

var sufficientProperty = map[string]any{
	"type":        "boolean",
	"description": "True when the score is 0.7 or higher",
}

// InitialSchema is the response shape for a first attempt.
var InitialSchema = &llm.Schema{
	Name:        "answer-eval-initial",
	Description: "Evaluation of a first answer with example answers containing blanks",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score":    scoreProperty,
			"feedback": feedbackProperty,
			"examples": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Two example answers with key details replaced by [_____]",
			},
		},
		"required":             []any{"score", "feedback", "examples"},
		"additionalProperties": false,
	},
}

// RetrySchema is the response shape for a revised answer.
var RetrySchema = &llm.Schema{
	Name:        "answer-eval-retry",
	Description: "Evaluation of a revised answer, rated only when sufficient",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score":    scoreProperty,
			"feedback": feedbackProperty,
			"rating": map[string]any{
				"type":        []any{"integer", "null"},
				"description": "Rating from 1 to 5 when the score is 0.7 or higher, otherwise null",
			},
			"is_sufficient": sufficientProperty,
		},
		"required":             []any{"score", "feedback", "rating", "is_sufficient"},
		"additionalProperties": false,
	},
}

// FinalSchema is the response shape for a final answer.
var FinalSchema = &llm.Schema{
	Name:        "answer-eval-final",
	Description: "Evaluation of a final answer with a rating",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score":    scoreProperty,
			"feedback": feedbackProperty,
			"rating": map[string]any{
				"type":        "integer",
				"description": "Rating from 1 to 5 based on the overall quality of the answer",
			},
			"is_sufficient": sufficientProperty,
		},
		"required":             []any{"score", "feedback", "rating", "is_sufficient"},
		"additionalProperties": false,
	},
}

func schemaFor(k Kind) *llm.Schema {
	switch k {
	case KindInitial:
		return InitialSchema
	case KindRetry:
		return RetrySchema
	default:
		return FinalSchema
	}
}
