package summary

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/MikeSquared-Agency/sayu/internal/event"
)

const (
	Delimiter = "---"
	Header    = "AI-Context (sayu)"

	LineWidth     = 80
	sectionIndent = 2
	rawSummaryMax = 500
	minimalFiles  = 3
)

// Sections is the three-part summary a model is asked to return.
type Sections struct {
	Intent  string `json:"intent"`
	Changes string `json:"changes"`
	Context string `json:"context"`
}

func (s Sections) Empty() bool {
	return strings.TrimSpace(s.Intent) == "" &&
		strings.TrimSpace(s.Changes) == "" &&
		strings.TrimSpace(s.Context) == ""
}

// envelope wraps body lines in the delimiter and header every trailer shares.
func envelope(body []string) string {
	lines := append([]string{Delimiter, Header, ""}, body...)
	lines = append(lines, Delimiter)
	return strings.Join(lines, "\n")
}

// FormatTrailer renders the labeled sections. Empty sections are omitted.
func FormatTrailer(s Sections) string {
	var body []string
	for _, sec := range []struct{ label, text string }{
		{"Intent:", s.Intent},
		{"Changes:", s.Changes},
		{"Context:", s.Context},
	} {
		if strings.TrimSpace(sec.text) == "" {
			continue
		}
		if len(body) > 0 {
			body = append(body, "")
		}
		body = append(body, sec.label, Wrap(sec.text, sectionIndent))
	}
	return envelope(body)
}

var lineBreaks = regexp.MustCompile(`[\r\n]+`)

// FormatRaw keeps an unparseable model reply as a single Summary line.
func FormatRaw(text string) string {
	clean := strings.TrimSpace(lineBreaks.ReplaceAllString(text, " "))
	if utf8.RuneCountInString(clean) > rawSummaryMax {
		clean = truncateRunes(clean, rawSummaryMax) + "..."
	}
	return envelope([]string{"Summary: " + clean})
}

// FormatMinimal builds the no-LLM trailer from the staged files and the
// tools the conversation events came from.
func FormatMinimal(events []event.Event, files []string) string {
	var body []string
	if len(files) > 0 {
		shown := files
		if len(shown) > minimalFiles {
			shown = shown[:minimalFiles]
		}
		line := "Files: " + strings.Join(shown, ", ")
		if len(files) > minimalFiles {
			line += fmt.Sprintf(" (+%d more)", len(files)-minimalFiles)
		}
		body = append(body, line)
	}

	if len(events) == 0 {
		body = append(body, "Events: Code changes only")
	} else {
		var tools []string
		seen := map[string]bool{}
		for _, e := range events {
			tool := e.MetaString("tool")
			if tool == "" || seen[tool] {
				continue
			}
			seen[tool] = true
			tools = append(tools, tool)
		}
		list := "unknown"
		if len(tools) > 0 {
			list = strings.Join(tools, ", ")
		}
		body = append(body, fmt.Sprintf("Events: %d LLM interactions (%s)", len(events), list))
	}
	return envelope(body)
}

// Wrap word-wraps text to LineWidth columns with indent leading spaces. Line
// breaks already in text are kept; blank lines stay blank.
func Wrap(text string, indent int) string {
	pad := strings.Repeat(" ", indent)
	var out []string
	for _, original := range strings.Split(text, "\n") {
		original = strings.TrimSpace(original)
		if original == "" {
			out = append(out, "")
			continue
		}
		current := pad
		for _, word := range strings.Split(original, " ") {
			if utf8.RuneCountInString(current)+utf8.RuneCountInString(word)+1 <= LineWidth {
				if current == pad {
					current += word
				} else {
					current += " " + word
				}
				continue
			}
			if current != pad {
				out = append(out, current)
			}
			current = pad + word
		}
		if strings.TrimSpace(current) != "" {
			out = append(out, current)
		}
	}
	return strings.Join(out, "\n")
}

// scissors is the cut line git writes above the diff for "git commit -v",
// after the comment character.
const scissors = " ------------------------ >8 ------------------------"

// scissorsIndex returns the offset of the scissors line in msg, or len(msg).
// Git discards that line and everything below it.
func scissorsIndex(msg string) int {
	for off := 0; off < len(msg); {
		line := msg[off:]
		if i := strings.IndexByte(line, '\n'); i >= 0 {
			line = line[:i]
		}
		if len(line) > 1 && strings.TrimRight(line[1:], "\r") == scissors {
			return off
		}
		off += len(line) + 1
	}
	return len(msg)
}

// HasTrailer reports whether the part of msg git keeps already carries a
// sayu trailer.
func HasTrailer(msg string) bool {
	return strings.Contains(msg[:scissorsIndex(msg)], Header)
}

// ExtractTrailer returns the trailer block of msg, delimiters included, or
// "" when msg has none.
func ExtractTrailer(msg string) string {
	start := strings.Index(msg, Delimiter+"\n"+Header)
	if start < 0 {
		return ""
	}
	bodyStart := start + len(Delimiter) + 1 + len(Header)
	end := strings.Index(msg[bodyStart:], "\n"+Delimiter)
	if end < 0 {
		return ""
	}
	return msg[start : bodyStart+end+1+len(Delimiter)]
}

// ApplyTrailer appends trailer to msg, above the scissors line when there
// is one. A message that already has one is returned unchanged.
func ApplyTrailer(msg, trailer string) string {
	if HasTrailer(msg) {
		return msg
	}
	cut := scissorsIndex(msg)
	return strings.TrimRight(msg[:cut], " \t\r\n") + "\n\n" + trailer + "\n" + msg[cut:]
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
