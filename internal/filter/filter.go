// Package filter reduces a window of events to the conversational turns worth
// sending to a summarizer.
package filter

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/MikeSquared-Agency/sayu/internal/event"
)

// Verdict is what a matching rule decides about an event.
type Verdict string

const (
	Exclude Verdict = "exclude"
	Include Verdict = "include"
)

// Rule flags assistant text that carries no information of its own.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Verdict Verdict
}

// LowValueRules is the table applied to assistant responses. Locales extend
// it by appending; the first matching rule wins.
var LowValueRules = []Rule{
	{"ko-confirmation", regexp.MustCompile(`^(완료|성공|확인|좋습니다|네,?\s*$|알겠습니다)`), Exclude},
	{"ko-build-done", regexp.MustCompile(`(빌드|테스트|설치).*완료`), Exclude},
	{"ko-timeout", regexp.MustCompile(`시간.*초과|제한.*도달`), Exclude},
	{"en-confirmation", regexp.MustCompile(`(?i)^(done|ok(ay)?|sure|got it|understood|great|perfect|yes)[.!]?\s*$`), Exclude},
	{"en-build-done", regexp.MustCompile(`(?i)(build|tests?|install(ation)?)\s+(is\s+|are\s+)?(complete|completed|succeeded|passed)`), Exclude},
	{"en-timeout", regexp.MustCompile(`(?i)timed out|rate limit|limit reached`), Exclude},
}

// toolResultPrefixes mark user turns that only echo tool output.
var toolResultPrefixes = []string{"[Result:", "[Tool result:", "[Tool Result]"}

const toolCallMarker = "[Tool:"

// HighValue scans events from newest to oldest, keeps at most maxEvents that
// pass IsHighValue, and returns them in ascending order.
func HighValue(events []event.Event, maxEvents, minResponseLength int) []event.Event {
	if maxEvents <= 0 {
		return nil
	}
	picked := make([]event.Event, 0, min(maxEvents, len(events)))
	for i := len(events) - 1; i >= 0 && len(picked) < maxEvents; i-- {
		if IsHighValue(events[i], minResponseLength) {
			picked = append(picked, events[i])
		}
	}
	for i, j := 0, len(picked)-1; i < j; i, j = i+1, j-1 {
		picked[i], picked[j] = picked[j], picked[i]
	}
	return picked
}

// IsHighValue applies the per-actor rules to a single event.
func IsHighValue(e event.Event, minResponseLength int) bool {
	if e.Actor == nil {
		return false
	}
	text := strings.TrimSpace(e.Text)

	switch *e.Actor {
	case event.ActorUser:
		if text == "" {
			return false
		}
		for _, p := range toolResultPrefixes {
			if strings.HasPrefix(text, p) {
				return false
			}
		}
		return true

	case event.ActorAssistant:
		if strings.Contains(text, toolCallMarker) {
			return false
		}
		if utf8.RuneCountInString(text) < minResponseLength {
			return false
		}
		if r, ok := Match(text); ok && r.Verdict == Exclude {
			return false
		}
		return true
	}
	return false
}

// Match returns the first low-value rule matching text.
func Match(text string) (Rule, bool) {
	for _, r := range LowValueRules {
		if r.Pattern.MatchString(text) {
			return r, true
		}
	}
	return Rule{}, false
}
