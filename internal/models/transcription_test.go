package models

import "testing"

func TestCanTransition_AllowsExpectedPaths(t *testing.T) {
	cases := []struct {
		from string
		to   string
	}{
		{"", StatusProcessing},
		{StatusProcessing, StatusProcessing},
		{StatusProcessing, StatusCompleted},
		{StatusProcessing, StatusFailed},
	}

	for _, tc := range cases {
		if !CanTransition(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be allowed", tc.from, tc.to)
		}
	}
}

func TestCanTransition_TerminalStatesAreAbsorbing(t *testing.T) {
	for _, terminal := range []string{StatusCompleted, StatusFailed} {
		for _, to := range []string{StatusProcessing, StatusCompleted, StatusFailed} {
			if CanTransition(terminal, to) {
				t.Fatalf("expected transition %q -> %q to be rejected", terminal, to)
			}
		}
	}
}

func TestCanTransition_ProcessingIsOnlyInitialState(t *testing.T) {
	for _, to := range []string{StatusCompleted, StatusFailed, "queued"} {
		if CanTransition("", to) {
			t.Fatalf("expected %q to be rejected as initial state", to)
		}
	}
}

func TestIsTerminalStatus(t *testing.T) {
	cases := []struct {
		status string
		want   bool
	}{
		{StatusProcessing, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsTerminalStatus(tc.status); got != tc.want {
			t.Errorf("IsTerminalStatus(%q) = %v, want %v", tc.status, got, tc.want)
		}
	}
}
