package clarify

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

// The system policy is an opaque configuration blob as far as the
// pipeline is concerned; the parser only depends on the strict response
// format it mandates.
//
//go:embed prompt.txt
var defaultSystemPrompt string

// LoadSystemPrompt returns the system policy text. If path is empty the
// embedded default is used.
func LoadSystemPrompt(path string) (string, error) {
	if path == "" {
		return strings.TrimSpace(defaultSystemPrompt), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read system prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(b))
	if prompt == "" {
		return "", fmt.Errorf("system prompt file %s is empty", path)
	}
	return prompt, nil
}
