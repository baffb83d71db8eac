package pipeline

import (
	"errors"
	"testing"
)

func TestResult(t *testing.T) {
	ok := OK([]int{1, 2})
	if ok.IsDegraded() {
		t.Error("OK result should not be degraded")
	}

	first := errors.New("collector failed")
	second := errors.New("parse failed")
	r := Degrade([]int(nil), first).Join(nil).Join(second)

	if !r.IsDegraded() {
		t.Fatal("expected degraded result")
	}
	if !errors.Is(r.Degraded, first) || !errors.Is(r.Degraded, second) {
		t.Errorf("joined cause lost an error: %v", r.Degraded)
	}
	if r.Value != nil {
		t.Errorf("expected nil fallback value, got %v", r.Value)
	}
}
