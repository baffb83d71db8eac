package summary

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var errNoJSON = errors.New("no json object in response")

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ExtractJSON finds the JSON object in a model reply: the whole reply when
// it is a valid object, else a fenced ```json block, else the first balanced
// {...} span.
func ExtractJSON(resp string) (string, error) {
	resp = strings.TrimSpace(resp)
	if strings.HasPrefix(resp, "{") && json.Valid([]byte(resp)) {
		return resp, nil
	}
	if m := fencedJSON.FindStringSubmatch(resp); m != nil {
		return strings.TrimSpace(m[1]), nil
	}
	if obj, ok := firstObject(resp); ok {
		return obj, nil
	}
	return "", errNoJSON
}

// firstObject returns the first brace-balanced object, ignoring braces that
// appear inside JSON strings.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// ParseSections decodes a model reply into Sections. The Korean prompts ask
// for what_changed and conversation_flow; those fill Changes and Context
// when the newer keys are missing.
func ParseSections(resp string) (Sections, error) {
	raw, err := ExtractJSON(resp)
	if err != nil {
		return Sections{}, err
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return Sections{}, fmt.Errorf("decode summary: %w", err)
	}

	s := Sections{
		Intent:  field(fields, "intent"),
		Changes: field(fields, "changes", "what_changed"),
		Context: field(fields, "context", "conversation_flow"),
	}
	if s.Empty() {
		return Sections{}, errors.New("summary has no intent, changes or context")
	}
	return s, nil
}

// field returns the first non-empty value among keys. Lists become one item
// per line.
func field(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v := stringify(m[k]); strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		lines := make([]string, 0, len(t))
		for _, item := range t {
			if s := stringify(item); s != "" {
				lines = append(lines, "- "+s)
			}
		}
		return strings.Join(lines, "\n")
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
