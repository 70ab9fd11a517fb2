package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// CleanJSON extracts a JSON value from model output. It strips markdown
// code fences and, when the remaining text is not valid JSON, falls back to
// the first balanced object or array in the text.
func CleanJSON(text string) (json.RawMessage, error) {
	s := stripFences(text)
	if json.Valid([]byte(s)) {
		return json.RawMessage(s), nil
	}

	start := strings.IndexByte(s, '{')
	if start == -1 {
		start = strings.IndexByte(s, '[')
	}
	if start == -1 {
		return nil, &ErrInvalidResponse{
			Content: json.RawMessage(text),
			Err:     errors.New("no JSON value in response"),
		}
	}

	if end := matchingClose(s, start); end != -1 {
		candidate := s[start : end+1]
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), nil
		}
	}

	return nil, &ErrInvalidResponse{
		Content: json.RawMessage(text),
		Err:     errors.New("response is not valid JSON"),
	}
}

func stripFences(text string) string {
	s := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = s[len("```json"):]
	case strings.HasPrefix(s, "```"):
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// matchingClose returns the index of the bracket closing the one at start,
// ignoring brackets inside string literals. Returns -1 when unbalanced.
func matchingClose(s string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
