// Package questions generates reading-comprehension questions for a book
// chapter with an LLM.
package questions

import (
	"context"
	"fmt"
)

// Input describes the student and the reading assignment.
type Input struct {
	GradeLevel   int
	ReadingLevel float64
	BookTitle    string
	Chapter      string
	Count        int
}

// EffectiveReadingLevel returns the reading level the prompt targets. A
// student without a recorded level is assumed to read at 80% of grade.
func (in Input) EffectiveReadingLevel() float64 {
	if in.ReadingLevel != 0 {
		return in.ReadingLevel
	}
	return float64(in.GradeLevel) * 0.8
}

// Question is one generated question with the answer a strong student
// would give.
type Question struct {
	Number      int
	Text        string
	ModelAnswer string
}

// Generator produces the questions for a reading session.
type Generator interface {
	Generate(ctx context.Context, in Input) ([]Question, error)
}

// ValidationError describes a generated set that cannot be used.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("generated questions rejected: %s", e.Message)
}
