package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var thinkTagRegex = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThinkTags removes DeepSeek R1 reasoning tags from the response.
func StripThinkTags(text string) string {
	return strings.TrimSpace(thinkTagRegex.ReplaceAllString(text, ""))
}

// ParseVerdict parses the model response into a Verdict.
// Handles markdown code fences and surrounding prose.
func ParseVerdict(text string) (*Verdict, error) {
	cleaned := StripThinkTags(text)

	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var verdict Verdict
	if err := json.Unmarshal([]byte(cleaned), &verdict); err == nil {
		return &verdict, nil
	}

	// Try to extract the JSON object from surrounding text
	jsonStart := strings.Index(cleaned, "{")
	jsonEnd := strings.LastIndex(cleaned, "}")
	if jsonStart >= 0 && jsonEnd > jsonStart {
		substr := cleaned[jsonStart : jsonEnd+1]
		if err := json.Unmarshal([]byte(substr), &verdict); err == nil {
			return &verdict, nil
		}
	}

	return nil, fmt.Errorf("failed to parse AI response as JSON: %.200s", cleaned)
}
