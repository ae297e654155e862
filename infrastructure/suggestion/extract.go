package suggestion

import (
	"strings"
	"unicode"

	"github.com/goccy/go-json"
)

// extractObject finds the first balanced {...} span in text that decodes as
// a JSON object carrying a suggestion list. When no span has one, the first
// object found is returned.
func extractObject(text string) (map[string]json.RawMessage, error) {
	text = stripFences(stripThinking(text))

	var fallback map[string]json.RawMessage
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end := matchBrace(text, start); end > start {
			var object map[string]json.RawMessage
			if err := json.Unmarshal([]byte(text[start:end+1]), &object); err == nil && object != nil {
				if hasList(object) {
					return object, nil
				}
				if fallback == nil {
					fallback = object
				}
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, ErrNoJSONObject
}

func hasList(object map[string]json.RawMessage) bool {
	_, nearby := object[ListNearby]
	_, similar := object[ListSimilar]
	return nearby || similar
}

// stripThinking removes <think>...</think> reasoning blocks. An unclosed
// block drops everything after its opening tag.
func stripThinking(text string) string {
	const open, closing = "<think>", "</think>"
	for {
		start := strings.Index(text, open)
		if start < 0 {
			return text
		}
		end := strings.Index(text[start:], closing)
		if end < 0 {
			return text[:start]
		}
		text = text[:start] + text[start+end+len(closing):]
	}
}

// stripFences removes markdown code fence markers such as ``` and ```json.
// Content after a marker on the same line is kept.
func stripFences(text string) string {
	if !strings.Contains(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			rest := strings.TrimLeft(trimmed, "`")
			rest = strings.TrimLeftFunc(rest, isFenceTag)
			rest = strings.TrimRight(strings.TrimSpace(rest), "`")
			if rest != "" {
				kept = append(kept, rest)
			}
			continue
		}
		kept = append(kept, strings.TrimSuffix(line, "```"))
	}
	return strings.Join(kept, "\n")
}

// isFenceTag matches the characters of a fence language tag like json or c++.
func isFenceTag(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '-' || r == '_'
}

// matchBrace returns the index of the brace closing the one at start, or -1.
// Braces inside JSON strings are ignored.
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
