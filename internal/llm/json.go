package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	fencedJSONPattern   = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")
	trailingCommaRegexp = regexp.MustCompile(`,\s*([}\]])`)
	bareKeyRegexp       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)
	controlCharRegexp   = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)
)

// ExtractJSONObject finds the first JSON object in a model reply. It accepts a
// bare object, an object inside a markdown fence, an object surrounded by
// prose, and objects with trailing commas or unquoted keys.
func ExtractJSONObject(reply string) (json.RawMessage, error) {
	reply = strings.TrimPrefix(strings.TrimSpace(reply), "\ufeff")
	if reply == "" {
		return nil, ErrEmptyResponse
	}

	candidates := []string{reply}
	if m := fencedJSONPattern.FindStringSubmatch(reply); len(m) > 1 {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if start := strings.Index(reply, "{"); start >= 0 {
		if balanced := balancedObject(reply[start:]); balanced != "" {
			candidates = append(candidates, balanced)
		}
	}

	for _, c := range candidates {
		if obj, ok := asObject(c); ok {
			return obj, nil
		}
	}
	for _, c := range candidates {
		if obj, ok := asObject(repairJSON(c)); ok {
			return obj, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNoJSON, truncate(reply, 100))
}

func asObject(s string) (json.RawMessage, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &fields); err != nil {
		return nil, false
	}
	return json.RawMessage(s), true
}

// balancedObject returns the prefix of s up to the brace closing its first '{'
func balancedObject(s string) string {
	depth := 0
	inString := false
	escape := false
	start := -1

	for i, ch := range s {
		if escape {
			escape = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escape = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			if depth == 0 {
				start = i
			}
			depth++
		case ch == '}':
			depth--
			if depth == 0 && start >= 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// repairJSON fixes trailing commas, unquoted keys and stray control
// characters. Commas and keys are only rewritten outside string literals.
func repairJSON(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)

	inString := false
	escape := false
	segStart := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if !inString {
			if ch == '"' {
				b.WriteString(repairStructure(s[segStart:i]))
				segStart = i
				inString = true
			}
			continue
		}
		switch {
		case escape:
			escape = false
		case ch == '\\':
			escape = true
		case ch == '"':
			b.WriteString(s[segStart : i+1])
			segStart = i + 1
			inString = false
		}
	}
	if inString {
		b.WriteString(s[segStart:])
	} else {
		b.WriteString(repairStructure(s[segStart:]))
	}
	return controlCharRegexp.ReplaceAllString(b.String(), "")
}

func repairStructure(seg string) string {
	seg = trailingCommaRegexp.ReplaceAllString(seg, "$1")
	return bareKeyRegexp.ReplaceAllString(seg, `$1"$2"$3`)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
