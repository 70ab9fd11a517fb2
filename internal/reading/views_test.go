package reading

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitResultJSON_Rating(t *testing.T) {
	final, err := json.Marshal(SubmitResult{AnswerID: 3, Score: 0.2, Feedback: "Try again.", IsFinal: true, SubmissionType: "final"})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"answer_id": 3, "score": 0.2, "feedback": "Try again.", "is_sufficient": false,
		"is_final": true, "submission_type": "final", "rating": null
	}`, string(final))

	four := 4
	retry, err := json.Marshal(&SubmitResult{AnswerID: 4, Score: 0.7, Feedback: "Good.", IsSufficient: true, IsFinal: true, SubmissionType: "retry", Rating: &four})
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(retry, &got))
	assert.Equal(t, float64(4), got["rating"])

	initial, err := json.Marshal(SubmitResult{AnswerID: 5, SubmissionType: "initial", Examples: []string{"x"}})
	require.NoError(t, err)
	assert.NotContains(t, string(initial), "rating")
}
