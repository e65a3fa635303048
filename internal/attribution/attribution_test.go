package attribution_test

import (
	"context"
	"testing"

	"github.com/leginote/fiscalnote/internal/attribution"
	"github.com/leginote/fiscalnote/internal/models"
)

func TestResolveDocumentCitations_AssignsInDiscoveryOrder(t *testing.T) {
	table := attribution.NewCitationTable()
	body := "Appropriates funds (HB1). Later amended (HB1_HD1). Still about (HB1)."
	newBody := attribution.ResolveDocumentCitations(table, body, []string{"HB1", "HB1_HD1"})

	docnum := table.Docnum()
	if docnum[1] != "HB1" || docnum[2] != "HB1_HD1" {
		t.Fatalf("unexpected docnum map: %+v", docnum)
	}
	if newBody != "Appropriates funds [1]. Later amended [2]. Still about [1]." {
		t.Errorf("unexpected body: %q", newBody)
	}
}

func TestResolveDocumentCitations_LeavesUnknownParentheticalsAlone(t *testing.T) {
	table := attribution.NewCitationTable()
	body := "Some text (not a document)."
	newBody := attribution.ResolveDocumentCitations(table, body, []string{"HB1"})
	if newBody != body {
		t.Errorf("expected unknown parenthetical untouched, got %q", newBody)
	}
	if len(table.Docnum()) != 0 {
		t.Errorf("expected empty docnum map, got %+v", table.Docnum())
	}
}

func TestResolveDocumentCitations_SharesNumberingAcrossSections(t *testing.T) {
	table := attribution.NewCitationTable()
	section1 := attribution.ResolveDocumentCitations(table, "Funds appropriated (HB1).", []string{"HB1", "HB1_HD1"})
	section2 := attribution.ResolveDocumentCitations(table, "Later amended (HB1_HD1), still about (HB1).", []string{"HB1", "HB1_HD1"})

	if section1 != "Funds appropriated [1]." {
		t.Errorf("unexpected section1: %q", section1)
	}
	if section2 != "Later amended [2], still about [1]." {
		t.Errorf("unexpected section2: %q", section2)
	}
	docnum := table.Docnum()
	if docnum[1] != "HB1" || docnum[2] != "HB1_HD1" {
		t.Fatalf("unexpected docnum map after both sections: %+v", docnum)
	}
}

func TestResolveMoneyCitations_AppendsCitationForMatchingAmount(t *testing.T) {
	table := attribution.NewCitationTable()
	body := "The bill appropriates $250,000 for the pilot program."
	visible := []models.MoneyOccurrence{
		{Amount: 250000, Filename: "HB999.txt", Context: "appropriates $250,000 for the pilot program"},
	}
	newBody := attribution.ResolveMoneyCitations(table, body, visible)

	if newBody != "The bill appropriates $250,000 [1] for the pilot program." {
		t.Errorf("unexpected body: %q", newBody)
	}
	if table.Numnum()[1].Filename != "HB999.txt" {
		t.Errorf("unexpected numnum entry: %+v", table.Numnum()[1])
	}
}

func TestResolveMoneyCitations_PicksMostSimilarContextAmongDuplicates(t *testing.T) {
	table := attribution.NewCitationTable()
	body := "Phase two spends $100,000 on staffing."
	visible := []models.MoneyOccurrence{
		{Amount: 100000, Filename: "HB1.txt", Context: "phase one spends on equipment"},
		{Amount: 100000, Filename: "HB1_HD1.txt", Context: "phase two spends on staffing costs"},
	}
	attribution.ResolveMoneyCitations(table, body, visible)
	if table.Numnum()[1].Filename != "HB1_HD1.txt" {
		t.Errorf("expected the staffing-context occurrence to win, got %+v", table.Numnum()[1])
	}
}

func TestResolveMoneyCitations_NoMatchLeavesAmountUncited(t *testing.T) {
	table := attribution.NewCitationTable()
	body := "Spends $9,999 on nothing tracked."
	newBody := attribution.ResolveMoneyCitations(table, body, nil)
	if newBody != body {
		t.Errorf("expected body unchanged, got %q", newBody)
	}
	if len(table.Numnum()) != 0 {
		t.Errorf("expected empty numnum map, got %+v", table.Numnum())
	}
}

func TestResolveMoneyCitations_ReusesIDForRepeatOccurrenceAcrossSections(t *testing.T) {
	table := attribution.NewCitationTable()
	visible := []models.MoneyOccurrence{
		{Amount: 50000, Filename: "HB1.txt", Context: "spends $50,000 on staffing"},
	}
	attribution.ResolveMoneyCitations(table, "Spends $50,000 on staffing.", visible)
	attribution.ResolveMoneyCitations(table, "Again spends $50,000 on staffing.", visible)

	if len(table.Numnum()) != 1 {
		t.Errorf("expected the repeated occurrence to reuse one numnum id, got %+v", table.Numnum())
	}
}

type stubEmbedder struct {
	vectors map[string][]float32
}

func (s stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = s.vectors[t]
	}
	return out, nil
}

func TestSentenceAttributions_PicksHighestCosineSimilarity(t *testing.T) {
	sentence := "The pilot costs money."
	passageA := "unrelated passage about roads"
	passageB := "the pilot program costs money overall"

	embedder := stubEmbedder{vectors: map[string][]float32{
		sentence: {1, 0},
		passageA: {0, 1},
		passageB: {1, 0},
	}}

	sources := map[string]string{"roads.txt": passageA, "pilot.txt": passageB}
	attrs, err := attribution.SentenceAttributions(context.Background(), embedder, sentence, sources)
	if err != nil {
		t.Fatalf("SentenceAttributions() error = %v", err)
	}
	if len(attrs) != 1 {
		t.Fatalf("expected 1 sentence attribution, got %d", len(attrs))
	}
	if len(attrs[0].AttributedChunks) != 1 || attrs[0].AttributedChunks[0].Filename != "pilot.txt" {
		t.Errorf("expected attribution to pilot.txt, got %+v", attrs[0].AttributedChunks)
	}
}

func TestSentenceAttributions_EmptySourcesReturnsNil(t *testing.T) {
	attrs, err := attribution.SentenceAttributions(context.Background(), stubEmbedder{}, "A sentence.", nil)
	if err != nil {
		t.Fatalf("SentenceAttributions() error = %v", err)
	}
	if attrs != nil {
		t.Errorf("expected nil, got %+v", attrs)
	}
}
