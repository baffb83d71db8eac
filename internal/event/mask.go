package event

import (
	"fmt"
	"regexp"
)

const redacted = "[REDACTED]"

// builtinSecrets are applied whenever secret masking is enabled.
var builtinSecrets = []*regexp.Regexp{
	regexp.MustCompile(`(?i)["']?[a-z0-9_-]*api[_-]?key[_-]?["']?\s*[:=]\s*["']?[a-z0-9_\-]+["']?`),
	regexp.MustCompile(`\bsk-[A-Za-z0-9_\-]{16,}`),
	regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
	regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{30,}\b`),
	regexp.MustCompile(`(?i)bearer\s+[a-z0-9._\-]{16,}`),
}

var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

// Masker replaces sensitive substrings in event text.
type Masker struct {
	secrets  bool
	emails   bool
	patterns []*regexp.Regexp
}

// NewMasker compiles the user patterns. Invalid patterns are reported
// together; the valid ones are still used.
func NewMasker(maskSecrets, maskEmails bool, patterns []string) (*Masker, error) {
	m := &Masker{secrets: maskSecrets, emails: maskEmails}
	var bad []string
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			bad = append(bad, p)
			continue
		}
		m.patterns = append(m.patterns, re)
	}
	if len(bad) > 0 {
		return m, fmt.Errorf("invalid mask patterns: %q", bad)
	}
	return m, nil
}

// Apply returns text with every configured pattern replaced.
func (m *Masker) Apply(text string) string {
	if m == nil {
		return text
	}
	if m.secrets {
		for _, re := range builtinSecrets {
			text = re.ReplaceAllString(text, redacted)
		}
	}
	if m.emails {
		text = emailPattern.ReplaceAllString(text, redacted)
	}
	for _, re := range m.patterns {
		text = re.ReplaceAllString(text, redacted)
	}
	return text
}

// Redact returns a masked copy of e. The original is left untouched.
func Redact(e Event, m *Masker) Event {
	masked := m.Apply(e.Text)
	if masked == e.Text {
		return e
	}
	return e.WithText(masked)
}
