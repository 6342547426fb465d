package llmclient

import (
	"encoding/json"
	"strings"

	"github.com/Valecer/market-sub001/internal/domainerr"
)

// ExtractJSON implements the raw-JSON fallback: strip Markdown
// code fences, locate the outermost JSON object or array in the text, and
// unmarshal it into dst. Used when the model ignores the structured-output
// request and wraps its JSON in prose or fenced code blocks.
func ExtractJSON(text string, dst any) error {
	candidate := stripFences(text)
	jsonSlice, err := outermostJSON(candidate)
	if err != nil {
		return domainerr.Parsing("raw-json fallback: %v", err)
	}
	if err := json.Unmarshal([]byte(jsonSlice), dst); err != nil {
		return domainerr.Wrap(domainerr.KindParsing, err, "raw-json fallback: unmarshal")
	}
	return nil
}

func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx != -1 {
		first := strings.TrimSpace(s[:idx])
		if first == "" || strings.EqualFold(first, "json") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// outermostJSON scans for the first '{' or '[' and returns the text up to
// its matching close, tolerating leading/trailing prose around the JSON
// payload.
func outermostJSON(s string) (string, error) {
	start := -1
	var openCh, closeCh byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			start = i
			openCh = s[i]
			if openCh == '{' {
				closeCh = '}'
			} else {
				closeCh = ']'
			}
			break
		}
	}
	if start == -1 {
		return "", errNoJSON
	}

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
		case openCh:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", errUnbalancedJSON
}

var (
	errNoJSON         = errUnbalanced("no JSON object or array found in text")
	errUnbalancedJSON = errUnbalanced("unbalanced JSON braces in text")
)

type errUnbalanced string

func (e errUnbalanced) Error() string { return string(e) }
