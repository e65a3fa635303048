package changes_test

import (
	"testing"

	"github.com/leginote/fiscalnote/internal/changes"
	"github.com/leginote/fiscalnote/internal/models"
)

func TestCompareSection_Unchanged(t *testing.T) {
	sc := changes.CompareSection("overview", "The bill appropriates funds.", "The   bill appropriates  funds.")
	if sc.Kind != models.ChangeUnchanged {
		t.Errorf("kind = %v, want unchanged", sc.Kind)
	}
}

func TestCompareSection_Added(t *testing.T) {
	sc := changes.CompareSection("overview", "", "This is new content.")
	if sc.Kind != models.ChangeAdded {
		t.Errorf("kind = %v, want added", sc.Kind)
	}
}

func TestCompareSection_Removed(t *testing.T) {
	sc := changes.CompareSection("overview", "This had content.", "")
	if sc.Kind != models.ChangeRemoved {
		t.Errorf("kind = %v, want removed", sc.Kind)
	}
}

func TestCompareSection_Revised(t *testing.T) {
	sc := changes.CompareSection("overview", "The bill appropriates $100.", "The bill appropriates $200 instead.")
	if sc.Kind != models.ChangeRevised {
		t.Errorf("kind = %v, want revised", sc.Kind)
	}
	if len(sc.ChangedSentences) == 0 {
		t.Error("expected changed sentences to be reported")
	}
}

func TestCompute_AllSectionKeysPresent(t *testing.T) {
	prev := models.FiscalNote{"overview": "old"}
	curr := models.FiscalNote{"overview": "new"}
	entry := changes.Compute("HB1", "HB1_HD1", prev, curr)
	if len(entry.Sections) != len(models.SectionKeys) {
		t.Fatalf("expected %d sections, got %d", len(models.SectionKeys), len(entry.Sections))
	}
}

func TestComputeHash_Stable(t *testing.T) {
	if changes.ComputeHash("abc") != changes.ComputeHash("abc") {
		t.Error("expected same hash for same content")
	}
	if changes.ComputeHash("abc") == changes.ComputeHash("abd") {
		t.Error("expected different hash for different content")
	}
}
