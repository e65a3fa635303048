package portal_test

import (
	"context"
	"testing"

	"github.com/leginote/fiscalnote/internal/models"
	"github.com/leginote/fiscalnote/internal/portal"
)

func TestBuildURL(t *testing.T) {
	id := models.BillID{Chamber: "H", Number: 1483, Year: 2025}
	got := portal.BuildURL("capitol.hawaii.gov", id)
	want := "https://capitol.hawaii.gov/session/measure_indiv.aspx?billtype=H&billnumber=1483&year=2025"
	if got != want {
		t.Errorf("BuildURL() = %q, want %q", got, want)
	}
}

func TestClassifyDocument(t *testing.T) {
	cases := []struct {
		name string
		want models.DocumentType
	}{
		{"HB1483", models.TypeIntroduction},
		{"HB1483_TESTIMONY_WAM", models.TypeTestimony},
		{"HB1483_HSCR629", models.TypeCommitteeReport},
		{"HB1483_HD1", models.TypeAmendment},
		{"HB1483_HD1_SSCR100", models.TypeCommitteeReport},
		{"HB1483_CONF_NOTES", models.TypeOther},
	}
	for _, c := range cases {
		if got := portal.ClassifyDocument(c.name); got != c.want {
			t.Errorf("ClassifyDocument(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

type stubFetcher struct {
	html string
	err  error
}

func (s stubFetcher) GetWithRetry(ctx context.Context, url string) (string, error) {
	return s.html, s.err
}

const samplePage = `<html><body>
<div class="noprint">
  <a href="/docs/HB1483.HTM">HB1483</a>
  <a href="/docs/HB1483.PDF">HB1483 (pdf)</a>
  <a href="/docs/HB1483_HD1.HTM">HB1483_HD1</a>
</div>
<table id="MainContent_GridViewStatus">
  <tr><th>Date</th><th>Chamber</th><th>Status</th></tr>
  <tr><td>1/5/2025</td><td>H</td><td>Introduced</td></tr>
  <tr><td>1/10/2025</td><td>H</td><td>Referred to WAM</td></tr>
</table>
</body></html>`

func TestScrape_DedupsPreferringHTM(t *testing.T) {
	env, err := portal.Scrape(context.Background(), stubFetcher{html: samplePage}, "capitol.hawaii.gov",
		models.BillID{Chamber: "H", Number: 1483, Year: 2025})
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if len(env.StatusRows) != 2 {
		t.Fatalf("expected 2 status rows, got %d", len(env.StatusRows))
	}
	if len(env.Documents) != 2 {
		t.Fatalf("expected 2 documents (deduped), got %d: %+v", len(env.Documents), env.Documents)
	}
	for _, d := range env.Documents {
		if d.Name == "HB1483" && d.Kind != models.KindHTM {
			t.Errorf("expected HB1483 to prefer HTM, got %v", d.Kind)
		}
	}
}

func TestScrape_EmptyBill(t *testing.T) {
	_, err := portal.Scrape(context.Background(), stubFetcher{html: "<html><body></body></html>"},
		"capitol.hawaii.gov", models.BillID{Chamber: "H", Number: 1, Year: 2025})
	if err != portal.ErrEmptyBill {
		t.Errorf("expected ErrEmptyBill, got %v", err)
	}
}
