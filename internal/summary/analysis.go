package summary

import (
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/sayu/internal/event"
)

var (
	goalWords     = []string{"implement", "create", "add", "build", "fix"}
	investigation = []string{"why", "how", "what", "debug", "error"}
	questionWords = []string{"how", "why", "what", "where"}

	problemWords   = []string{"error", "bug", "issue", "problem", "fail", "wrong", "broken", "not working"}
	solutionWords  = []string{"try", "attempt", "let me", "how about", "what if", "maybe", "could", "should"}
	iterationWords = []string{"again", "retry", "another", "different", "instead", "actually", "wait"}
	toolMarkers    = []string{"[Tool:", "Running:", "Executing:", "```"}
	docWords       = []string{"documentation", "docs", "reference", "guide", "example", "stackoverflow", "github"}
	decisionWords  = []string{"decided", "choosing", "better", "instead of", "rather than", "because", "since"}
	testWords      = []string{"test", "verify", "check", "confirm", "ensure", "validate"}
)

// topics is ordered so the "Focus areas" list is stable.
var topics = []struct {
	name     string
	keywords []string
}{
	{"performance", []string{"performance", "optimize", "speed", "efficiency", "memory"}},
	{"architecture", []string{"structure", "design", "pattern", "refactor", "organize"}},
	{"debugging", []string{"debug", "error", "exception", "stacktrace", "logs"}},
	{"testing", []string{"test", "unit", "integration", "coverage", "assert"}},
	{"configuration", []string{"config", "setting", "environment", "setup", "install"}},
}

const (
	extendedSession = 50
	quickSession    = 10
	complexProblems = 5
	manyIterations  = 3
	topicThreshold  = 2
	firstRequestLen = 100
)

// AnalyzeProcess describes how the conversation unfolded using keyword
// counts. The result is one line with parts joined by " | ".
func AnalyzeProcess(events []event.Event) string {
	if len(events) == 0 {
		return "No conversations: Direct code changes only"
	}

	var users, assistants []event.Event
	for _, e := range events {
		switch {
		case e.IsActor(event.ActorUser):
			users = append(users, e)
		case e.IsActor(event.ActorAssistant):
			assistants = append(assistants, e)
		}
	}

	parts := []string{fmt.Sprintf("Total %d exchanges (User: %d, Assistant: %d)", len(events), len(users), len(assistants))}

	var flow []string
	if len(users) > 0 {
		first := strings.ToLower(truncateRunes(users[0].Text, firstRequestLen))
		switch {
		case containsAny(first, goalWords):
			flow = append(flow, "Started with clear implementation goal")
		case containsAny(first, investigation):
			flow = append(flow, "Started with debugging/investigation")
		}
	}

	questions := 0
	for _, e := range users {
		if strings.Contains(e.Text, "?") || containsAny(strings.ToLower(e.Text), questionWords) {
			questions++
		}
	}
	if questions > 0 {
		flow = append(flow, fmt.Sprintf("%d clarification points", questions))
	}

	problems := countLower(events, problemWords)
	if problems > 0 {
		flow = append(flow, fmt.Sprintf("Encountered %d challenges", problems))
	}
	if n := countLower(events, solutionWords); n > 0 {
		flow = append(flow, fmt.Sprintf("%d solution attempts", n))
	}
	iterations := countLower(events, iterationWords)
	if iterations > 0 {
		flow = append(flow, fmt.Sprintf("%d iterations/refinements", iterations))
	}
	tools := 0
	for _, e := range events {
		if containsAny(e.Text, toolMarkers) {
			tools++
		}
	}
	if tools > 0 {
		flow = append(flow, fmt.Sprintf("%d tool/code executions", tools))
	}
	if n := countLower(events, docWords); n > 0 {
		flow = append(flow, fmt.Sprintf("Referenced external resources %d times", n))
	}
	if n := countLower(events, decisionWords); n > 0 {
		flow = append(flow, fmt.Sprintf("%d key decisions made", n))
	}
	if n := countLower(events, testWords); n > 0 {
		flow = append(flow, fmt.Sprintf("%d verification steps", n))
	}

	var session []string
	switch {
	case len(events) > extendedSession:
		session = append(session, fmt.Sprintf("Extended session (%d exchanges)", len(events)))
	case len(events) < quickSession:
		session = append(session, "Quick resolution")
	}
	if problems > complexProblems {
		session = append(session, "Complex debugging process")
	}
	if iterations > manyIterations {
		session = append(session, "Multiple approach changes")
	}

	var all strings.Builder
	for i, e := range events {
		if i > 0 {
			all.WriteByte(' ')
		}
		all.WriteString(e.Text)
	}
	text := strings.ToLower(all.String())
	var focus []string
	for _, t := range topics {
		hits := 0
		for _, k := range t.keywords {
			if strings.Contains(text, k) {
				hits++
			}
		}
		if hits > topicThreshold {
			focus = append(focus, t.name)
		}
	}
	if len(focus) > 0 {
		session = append(session, "Focus areas: "+strings.Join(focus, ", "))
	}

	if len(flow) > 0 {
		parts = append(parts, "Development flow: "+strings.Join(flow, " → "))
	}
	if len(session) > 0 {
		parts = append(parts, "Session: "+strings.Join(session, ", "))
	}
	return strings.Join(parts, " | ")
}

func countLower(events []event.Event, words []string) int {
	n := 0
	for _, e := range events {
		if containsAny(strings.ToLower(e.Text), words) {
			n++
		}
	}
	return n
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
