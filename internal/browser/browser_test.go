package browser_test

import (
	"testing"

	"github.com/leginote/fiscalnote/internal/browser"
)

func TestPort_Deterministic(t *testing.T) {
	a := browser.Port("HB_1483_2025")
	b := browser.Port("HB_1483_2025")
	if a != b {
		t.Errorf("expected deterministic port, got %d and %d", a, b)
	}
}

func TestPort_InRange(t *testing.T) {
	p := browser.Port("SB_42_2024")
	if p < 9222 || p >= 10222 {
		t.Errorf("port %d out of expected range [9222, 10222)", p)
	}
}

func TestPort_DiffersAcrossJobs(t *testing.T) {
	a := browser.Port("HB_1_2025")
	b := browser.Port("HB_2_2025")
	if a == b {
		t.Skip("hash collision across distinct jobs is rare but not impossible")
	}
}
