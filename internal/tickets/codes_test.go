package tickets

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

var codePattern = regexp.MustCompile(`^(SELL|REP)-\d{8}-\d{3}$`)

func TestNewCode_Format(t *testing.T) {
	now := time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC)

	for i := 0; i < 100; i++ {
		code := newCode(TypeRepair, now)
		if !codePattern.MatchString(code) {
			t.Fatalf("code %q does not match expected format", code)
		}
		if !strings.HasPrefix(code, "REP-20260314-") {
			t.Fatalf("code %q does not carry the UTC creation date", code)
		}
	}
}

func TestNewCode_SellPrefix(t *testing.T) {
	code := newCode(TypeSell, time.Now())
	if !strings.HasPrefix(code, "SELL-") {
		t.Fatalf("expected SELL prefix, got %q", code)
	}
}

func TestNewCode_DateIsUTC(t *testing.T) {
	// 23:30 in UTC+2 is 21:30 UTC the same day; 01:30 in UTC+2 is the
	// previous day in UTC. The code must use the UTC date.
	loc := time.FixedZone("SAST", 2*60*60)
	local := time.Date(2026, 3, 15, 1, 30, 0, 0, loc)

	code := newCode(TypeRepair, local)
	if !strings.HasPrefix(code, "REP-20260314-") {
		t.Fatalf("expected UTC date 20260314 in code, got %q", code)
	}
}

func TestTransitionAllowed(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{StatusOpen, StatusAssigned, true},
		{StatusOpen, StatusInProgress, true},
		{StatusAssigned, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusCompleted, StatusClosed, true},
		{StatusOpen, StatusCompleted, false},
		{StatusClosed, StatusOpen, false},
		{StatusCompleted, StatusOpen, false},
	}

	for _, tc := range cases {
		if got := transitionAllowed(tc.from, tc.to); got != tc.want {
			t.Fatalf("transition %s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}
