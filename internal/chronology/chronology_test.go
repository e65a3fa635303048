package chronology_test

import (
	"context"
	"testing"

	"github.com/leginote/fiscalnote/internal/chronology"
	"github.com/leginote/fiscalnote/internal/models"
)

type stubCompleter struct {
	responses []string
	call      int
}

func (s *stubCompleter) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	r := s.responses[s.call]
	if s.call < len(s.responses)-1 {
		s.call++
	}
	return r, nil
}

var statusRows = []models.StatusEvent{
	{Date: "1/5/2025", Chamber: "H", Text: "Introduced"},
	{Date: "2/1/2025", Chamber: "H", Text: "Referred to WAM"},
}

func TestResolve_ValidProposalAccepted(t *testing.T) {
	completer := &stubCompleter{responses: []string{
		`[{"date":"1/5/2025","text":"Introduced","documents":["HB1"]},` +
			`{"date":"2/1/2025","text":"Referred to WAM","documents":["HB1_HD1"]}]`,
	}}
	docs := []models.Document{{Name: "HB1"}, {Name: "HB1_HD1"}}

	res, err := chronology.Resolve(context.Background(), completer, statusRows, docs, nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Degraded {
		t.Error("expected non-degraded result for a valid proposal")
	}
	if len(res.Timeline) != 2 || res.Timeline[0].Documents[0] != "HB1" {
		t.Errorf("unexpected timeline: %+v", res.Timeline)
	}
}

func TestResolve_FallsBackAfterTwoInvalidProposals(t *testing.T) {
	completer := &stubCompleter{responses: []string{
		`[{"date":"1/5/2025","text":"Introduced","documents":["HB1","HB1_HD1"]}]`,
		`[{"date":"1/5/2025","text":"Introduced","documents":["HB1","HB1_HD1"]}]`,
	}}
	docs := []models.Document{{Name: "HB1"}, {Name: "HB1_HD1"}}

	res, err := chronology.Resolve(context.Background(), completer, statusRows, docs, nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !res.Degraded {
		t.Error("expected degraded=true after two invalid proposals")
	}
	last := res.Timeline[len(res.Timeline)-1]
	if len(last.Documents) != 2 {
		t.Errorf("expected unassigned documents grouped at the end, got %+v", res.Timeline)
	}
}
