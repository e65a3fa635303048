package fiscalnote_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/leginote/fiscalnote/internal/fiscalnote"
	"github.com/leginote/fiscalnote/internal/models"
)

func TestIsCheckpoint_FirstDocument(t *testing.T) {
	if !fiscalnote.IsCheckpoint(models.Document{Name: "HB1", URL: "https://x/HB1.htm"}, true) {
		t.Error("expected first document to always be a checkpoint")
	}
}

func TestIsCheckpoint_CommitteeReport(t *testing.T) {
	doc := models.Document{Name: "HB1_HSCR7", URL: "https://x/CommReports/HSCR7.htm"}
	if !fiscalnote.IsCheckpoint(doc, false) {
		t.Error("expected a CommReports URL to be a checkpoint")
	}
}

func TestIsCheckpoint_AmendmentAlone(t *testing.T) {
	doc := models.Document{Name: "HB1_HD1", URL: "https://x/HB1_HD1.htm"}
	if fiscalnote.IsCheckpoint(doc, false) {
		t.Error("expected a bare amendment to not be a checkpoint")
	}
}

// TestVisibleNumbers_NumberLeakGuard is spec scenario 2: three documents
// in timeline order [HB1, HB1_HD1, HB1_HD1_HSCR7]. At the first
// checkpoint only HB1's number should be visible.
func TestVisibleNumbers_NumberLeakGuard(t *testing.T) {
	occurrences := []models.MoneyOccurrence{
		{Amount: 100, Filename: "HB1.txt"},
		{Amount: 200, Filename: "HB1_HD1.txt"},
		{Amount: 300, Filename: "HB1_HD1_HSCR7.txt"},
	}

	firstCheckpoint := fiscalnote.VisibleNumbers(occurrences, []string{"HB1"})
	if len(firstCheckpoint) != 1 || firstCheckpoint[0].Amount != 100 {
		t.Errorf("expected only the 100 occurrence visible at first checkpoint, got %+v", firstCheckpoint)
	}

	thirdCheckpoint := fiscalnote.VisibleNumbers(occurrences, []string{"HB1", "HB1_HD1", "HB1_HD1_HSCR7"})
	if len(thirdCheckpoint) != 3 {
		t.Errorf("expected all 3 occurrences visible at third checkpoint, got %+v", thirdCheckpoint)
	}
}

func TestVisibleNumbers_SuffixStripping(t *testing.T) {
	occurrences := []models.MoneyOccurrence{{Amount: 50, Filename: "HB1.PDF.txt"}}
	visible := fiscalnote.VisibleNumbers(occurrences, []string{"HB1"})
	if len(visible) != 1 {
		t.Errorf("expected suffix-stripped filename to match, got %+v", visible)
	}
}

type stubCompleter struct {
	response string
}

func (s stubCompleter) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	return s.response, nil
}

func sampleNoteJSON() string {
	note := make(map[string]string)
	for _, k := range models.SectionKeys {
		note[k] = "Appropriates $250,000 (HB999)."
	}
	data, _ := json.Marshal(note)
	return string(data)
}

func TestRun_SingleIntroductionEmitsOneNote(t *testing.T) {
	completer := stubCompleter{response: sampleNoteJSON()}
	docs := []models.Document{{Name: "HB999", URL: "https://x/HB999.htm", Text: "Appropriates $250,000 for pilot."}}
	occurrences := []models.MoneyOccurrence{{Amount: 250000, Filename: "HB999.txt"}}

	notes, err := fiscalnote.Run(context.Background(), completer, docs, occurrences)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("expected exactly 1 emitted note, got %d", len(notes))
	}
	if notes[0].Metadata.PrevNoteDigest != "" {
		t.Error("expected no previous-note digest for the first note")
	}
	if !strings.Contains(notes[0].Note["appropriations"], "$250,000") {
		t.Errorf("expected appropriations section to contain the amount, got %q", notes[0].Note["appropriations"])
	}
}
