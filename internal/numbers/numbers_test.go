package numbers_test

import (
	"testing"

	"github.com/leginote/fiscalnote/internal/numbers"
)

func TestExtract_LeadingAttached(t *testing.T) {
	occs := numbers.Extract("Appropriates $250,000 for pilot.")
	if len(occs) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(occs))
	}
	if occs[0].Amount != 250000 {
		t.Errorf("amount = %v, want 250000", occs[0].Amount)
	}
}

func TestExtract_LeadingWithSpace(t *testing.T) {
	occs := numbers.Extract("The sum of $ 1,200.50 is appropriated.")
	if len(occs) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(occs))
	}
	if occs[0].Amount != 1200.50 {
		t.Errorf("amount = %v, want 1200.50", occs[0].Amount)
	}
}

func TestExtract_TrailingAttached(t *testing.T) {
	occs := numbers.Extract("A total of 5000$ was spent.")
	if len(occs) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(occs))
	}
	if occs[0].Amount != 5000 {
		t.Errorf("amount = %v, want 5000", occs[0].Amount)
	}
}

func TestExtract_TrailingWithSpace(t *testing.T) {
	occs := numbers.Extract("A total of 5000 $ was spent.")
	if len(occs) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(occs))
	}
	if occs[0].Amount != 5000 {
		t.Errorf("amount = %v, want 5000", occs[0].Amount)
	}
}

func TestExtract_USDMarker(t *testing.T) {
	occs := numbers.Extract("Funding of USD 750,000 is requested.")
	if len(occs) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(occs))
	}
	if occs[0].Amount != 750000 {
		t.Errorf("amount = %v, want 750000", occs[0].Amount)
	}
}

func TestExtract_NoDedup(t *testing.T) {
	occs := numbers.Extract("First $100. Later, again $100 for a different reason.")
	if len(occs) != 2 {
		t.Fatalf("expected 2 occurrences (no dedup), got %d", len(occs))
	}
}

func TestExtract_RejectsBareNumber(t *testing.T) {
	occs := numbers.Extract("There were 12 hearings and 3 amendments.")
	if len(occs) != 0 {
		t.Fatalf("expected 0 occurrences for bare numbers, got %d", len(occs))
	}
}

func TestExtract_ContextWindow(t *testing.T) {
	text := "Appropriates $250,000 for the pilot program this year."
	occs := numbers.Extract(text)
	if len(occs) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(occs))
	}
	if occs[0].Context == "" {
		t.Error("expected non-empty context")
	}
}

func TestExtract_OffsetIsPositionOfAmount(t *testing.T) {
	text := "prefix $99 suffix"
	occs := numbers.Extract(text)
	if len(occs) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(occs))
	}
	if occs[0].OffsetChars != 7 {
		t.Errorf("offset = %d, want 7", occs[0].OffsetChars)
	}
}
