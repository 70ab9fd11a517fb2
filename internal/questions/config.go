package questions

// Config controls the behavior of the LLMGenerator.
type Config struct {
	// MaxTokens is the token budget for the whole question set.
	MaxTokens int

	// Temperature controls LLM output randomness (0.0-1.0).
	Temperature float64
}

// DefaultConfig returns the settings questions are generated with.
func DefaultConfig() Config {
	return Config{
		MaxTokens:   4096,
		Temperature: 0.7,
	}
}
