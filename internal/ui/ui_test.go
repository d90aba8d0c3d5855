package ui

import (
	"strings"
	"testing"
)

func TestSpinner_StopIsIdempotent(t *testing.T) {
	s := NewWaitingSpinner("waiting")
	s.Start()
	s.UpdateMessage("still waiting")
	s.Stop()
	s.Stop() // second stop must not panic or re-close the done channel
}

func TestSpinner_UpdateMessageAfterStop(t *testing.T) {
	s := NewConnectionSpinner("connecting")
	s.Stop()
	s.UpdateMessage("too late") // harmless after stop
}

func TestShareCodeView_ContainsCodeAndReceiveHint(t *testing.T) {
	view := ShareCodeView("AB12CD")
	if !strings.Contains(view, "AB12CD") {
		t.Fatalf("share code missing from view:\n%s", view)
	}
	if !strings.Contains(view, "receive AB12CD") {
		t.Fatalf("receive hint missing from view:\n%s", view)
	}
}

func TestFormatSize(t *testing.T) {
	cases := []struct {
		in   int
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tc := range cases {
		if got := FormatSize(tc.in); got != tc.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
