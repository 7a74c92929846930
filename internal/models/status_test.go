package models

import "testing"

func TestParseStatus(t *testing.T) {
	cases := []struct {
		in   string
		want Status
	}{
		{"queued", StatusQueued},
		{"pending", StatusQueued},
		{"Running", StatusRunning},
		{"downloading", StatusRunning},
		{"resuming", StatusRunning},
		{"pausing", StatusPausing},
		{"paused", StatusPaused},
		{"retrying", StatusRetrying},
		{"canceling", StatusCancelling},
		{"cancelled", StatusCancelled},
		{"canceled", StatusCancelled},
		{"completed", StatusCompleted},
		{"done", StatusCompleted},
		{"completed_with_errors", StatusCompletedWithErrors},
		{"failed", StatusFailed},
		{"error", StatusFailed},
		{"", Status("")},
		{"???", StatusUnknown},
		{"  running  ", StatusRunning},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			if got := ParseStatus(tc.in); got != tc.want {
				t.Errorf("ParseStatus(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusCompletedWithErrors, StatusFailed, StatusCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%q should be terminal", s)
		}
	}

	nonTerminal := []Status{
		StatusQueued, StatusStarting, StatusRunning, StatusPausing,
		StatusPaused, StatusRetrying, StatusCancelling, StatusUnknown,
	}
	for _, s := range nonTerminal {
		if s.Terminal() {
			t.Errorf("%q should not be terminal", s)
		}
	}
}

func TestStatusActive(t *testing.T) {
	active := []Status{StatusQueued, StatusStarting, StatusRunning, StatusRetrying, StatusPausing, StatusCancelling}
	for _, s := range active {
		if !s.Active() {
			t.Errorf("%q should be active", s)
		}
	}

	inactive := []Status{StatusPaused, StatusCancelled, StatusCompleted, StatusCompletedWithErrors, StatusFailed, StatusUnknown}
	for _, s := range inactive {
		if s.Active() {
			t.Errorf("%q should not be active", s)
		}
	}
}

func TestParseKind(t *testing.T) {
	if got := ParseKind("Playlist"); got != KindPlaylist {
		t.Errorf("ParseKind(Playlist) = %q", got)
	}
	if got := ParseKind("livestream"); got != Kind("livestream") {
		t.Errorf("unrecognized kind should pass through, got %q", got)
	}
}
