package validators

import "strings"

func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen > 0 && len(trimmed) > maxLen {
		return strings.ToValidUTF8(trimmed[:maxLen], "")
	}
	return trimmed
}

// SanitizeOptional trims a free-text field and drops it when empty.
func SanitizeOptional(input *string, maxLen int) *string {
	if input == nil {
		return nil
	}
	out := SanitizeString(*input, maxLen)
	if out == "" {
		return nil
	}
	return &out
}
