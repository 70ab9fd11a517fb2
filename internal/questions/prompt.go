package questions

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are an expert reading comprehension teacher for elementary students.

Rules:
- Questions must be slightly above the student's current reading level, to challenge them appropriately.
- Base every question on the specified book and chapter.
- Keep the language appropriate for elementary students.
- Include a mix of question types: literal, inferential, and evaluative.
- For each question provide the question text and a model answer describing what a good answer should include.
- Number the questions starting at 1.`

// buildUserMessage describes the student and the assignment.
func buildUserMessage(in Input) string {
	var b strings.Builder

	b.WriteString("Student Information:\n")
	fmt.Fprintf(&b, "- Grade Level: %d\n", in.GradeLevel)
	fmt.Fprintf(&b, "- Current Reading Level: %.1f\n", in.EffectiveReadingLevel())
	fmt.Fprintf(&b, "- Book: %s\n", in.BookTitle)
	fmt.Fprintf(&b, "- Chapter: %s\n", in.Chapter)
	fmt.Fprintf(&b, "\nGenerate %d reading comprehension questions.\n", in.Count)
	b.WriteString(`Respond with a JSON object of the form {"questions": [{"question_number": 1, "question_text": "...", "model_answer": "..."}]}.`)

	return b.String()
}
