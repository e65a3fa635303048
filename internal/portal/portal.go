// Package portal is the Portal Scraper (Stage 1, component B): it parses
// a bill's landing page into a status timeline and document list, using
// goquery to walk the status table and document-link rows of the Hawaii
// Capitol portal's bill page markup.
package portal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/leginote/fiscalnote/internal/models"
)

// ErrEmptyBill is returned when the portal page yields no status rows or
// no documents.
var ErrEmptyBill = errors.New("portal: empty bill")

// Fetcher is the subset of browser.Session the scraper depends on, kept
// as an interface so it can be exercised with a stub in tests.
type Fetcher interface {
	GetWithRetry(ctx context.Context, url string) (string, error)
}

// Envelope is the Stage 1 JSON output.
type Envelope struct {
	StatusRows             []models.StatusEvent `json:"status_rows"`
	Documents              []models.Document    `json:"documents"`
	CommitteeReportNames   []string              `json:"committee_report_names"`
}

// BuildURL constructs the canonical bill URL.
func BuildURL(portalHost string, id models.BillID) string {
	return fmt.Sprintf("https://%s/session/measure_indiv.aspx?billtype=%s&billnumber=%d&year=%d",
		portalHost, id.Chamber, id.Number, id.Year)
}

// Scrape loads the bill's landing page through fetcher and parses it into
// an Envelope.
func Scrape(ctx context.Context, fetcher Fetcher, portalHost string, id models.BillID) (*Envelope, error) {
	pageURL := BuildURL(portalHost, id)
	html, err := fetcher.GetWithRetry(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("portal: fetch %s: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("portal: parse page: %w", err)
	}

	env := &Envelope{}
	env.StatusRows = parseStatusTable(doc)
	env.Documents = parseDocuments(doc, pageURL)
	env.CommitteeReportNames = parseCommitteeReportNames(doc)

	if len(env.StatusRows) == 0 || len(env.Documents) == 0 {
		return nil, ErrEmptyBill
	}
	return env, nil
}

// parseStatusTable linearizes #MainContent_GridViewStatus's rows in DOM
// order, one StatusEvent per row.
func parseStatusTable(doc *goquery.Document) []models.StatusEvent {
	var events []models.StatusEvent
	doc.Find("#MainContent_GridViewStatus tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return // header row
		}
		date := strings.TrimSpace(cells.Eq(0).Text())
		chamber := ""
		text := strings.TrimSpace(cells.Eq(cells.Length() - 1).Text())
		if cells.Length() >= 3 {
			chamber = strings.TrimSpace(cells.Eq(1).Text())
			text = strings.TrimSpace(cells.Eq(2).Text())
		}
		if date == "" && text == "" {
			return
		}
		events = append(events, models.StatusEvent{Date: date, Chamber: chamber, Text: text})
	})
	return events
}

// parseDocuments collects every <a href> within the bill's detail region
// (div.noprint and div.measure-status.card.shadow), classifying by
// extension, normalizing to absolute URLs, and deduplicating by
// (path-without-extension, first-seen URL), preferring .htm over .pdf.
func parseDocuments(doc *goquery.Document, pageURL string) []models.Document {
	base, _ := url.Parse(pageURL)

	type found struct {
		name string
		abs  string
		kind models.DocumentKind
	}
	order := []string{}
	byBase := map[string]found{}

	add := func(sel *goquery.Selection) {
		sel.Find("a[href]").Each(func(i int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			if !ok || href == "" {
				return
			}
			lower := strings.ToLower(href)
			var kind models.DocumentKind
			switch {
			case strings.HasSuffix(lower, ".htm") || strings.HasSuffix(lower, ".html"):
				kind = models.KindHTM
			case strings.HasSuffix(lower, ".pdf"):
				kind = models.KindPDF
			default:
				return
			}

			abs := href
			if base != nil {
				if u, err := base.Parse(href); err == nil {
					abs = u.String()
				}
			}

			name := documentNameFromURL(href)
			baseKey := strings.TrimSuffix(strings.TrimSuffix(strings.ToLower(name), ".htm"), ".pdf")

			existing, seen := byBase[baseKey]
			if !seen {
				order = append(order, baseKey)
				byBase[baseKey] = found{name: name, abs: abs, kind: kind}
				return
			}
			if existing.kind == models.KindPDF && kind == models.KindHTM {
				byBase[baseKey] = found{name: name, abs: abs, kind: kind}
			}
		})
	}

	add(doc.Find("div.noprint"))
	add(doc.Find("div.measure-status.card.shadow"))

	docs := make([]models.Document, 0, len(order))
	for _, key := range order {
		f := byBase[key]
		docs = append(docs, models.Document{Name: f.name, URL: f.abs, Kind: f.kind})
	}
	return docs
}

// parseCommitteeReportNames extracts the committee-report label anchors,
// used downstream as hints to the chronology resolver.
func parseCommitteeReportNames(doc *goquery.Document) []string {
	var names []string
	doc.Find("a[id^='MainContent_RepeaterCommRpt_CategoryLink']").Each(func(i int, a *goquery.Selection) {
		if t := strings.TrimSpace(a.Text()); t != "" {
			names = append(names, t)
		}
	})
	return names
}

func documentNameFromURL(href string) string {
	href = strings.TrimSuffix(href, "/")
	idx := strings.LastIndexAny(href, "/\\")
	name := href
	if idx >= 0 {
		name = href[idx+1:]
	}
	if q := strings.IndexByte(name, '?'); q >= 0 {
		name = name[:q]
	}
	lower := strings.ToLower(name)
	for _, ext := range []string{".html", ".htm", ".pdf"} {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

var (
	amendmentTokenRe = regexp.MustCompile(`HD\d|SD\d|CD\d|HFA\d|SFA\d`)
	committeeTokenRe = regexp.MustCompile(`HSCR|SSCR|CCR|SCR|HCR`)
	introductionRe   = regexp.MustCompile(`^[HS]B\d+$`)
)

// ClassifyDocument derives a DocumentType purely from name, via
// syntactic rules.
func ClassifyDocument(name string) models.DocumentType {
	switch {
	case introductionRe.MatchString(name):
		return models.TypeIntroduction
	case strings.Contains(name, "TESTIMONY"):
		return models.TypeTestimony
	case committeeTokenRe.MatchString(name):
		return models.TypeCommitteeReport
	case amendmentTokenRe.MatchString(name):
		return models.TypeAmendment
	default:
		return models.TypeOther
	}
}
