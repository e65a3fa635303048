// Package documents is the Document Downloader (Stage 3, component D):
// it fetches each document in chronological order through the shared
// browser session and normalizes it to plain text: HTML is cleaned up via
// goquery, PDF text is extracted with ledongthuc/pdf as the primary
// extractor and pdfcpu as the secondary fallback below the 1000-byte
// threshold.
package documents

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/leginote/fiscalnote/internal/models"
)

const minPrimaryBytes = 1000

// Fetcher is the subset of browser.Session the downloader depends on.
type Fetcher interface {
	GetWithRetry(ctx context.Context, url string) (string, error)
	DownloadWithRetry(ctx context.Context, url, expectedExt string) (string, error)
}

// Outcome describes how one document's text was obtained, for the
// retrieval log.
type Outcome struct {
	Text      string
	Extractor string // "primary", "secondary", or "" for HTML
	Failed    bool
}

// Fetch downloads and extracts plain text for doc via fetcher.
func Fetch(ctx context.Context, fetcher Fetcher, doc models.Document) Outcome {
	switch doc.Kind {
	case models.KindHTM:
		return fetchHTML(ctx, fetcher, doc)
	case models.KindPDF:
		return fetchPDF(ctx, fetcher, doc)
	default:
		return Outcome{Failed: true}
	}
}

func fetchHTML(ctx context.Context, fetcher Fetcher, doc models.Document) Outcome {
	html, err := fetcher.GetWithRetry(ctx, doc.URL)
	if err != nil {
		return Outcome{Failed: true}
	}
	return Outcome{Text: CleanHTMLText(html)}
}

func fetchPDF(ctx context.Context, fetcher Fetcher, doc models.Document) Outcome {
	path, err := fetcher.DownloadWithRetry(ctx, doc.URL, ".pdf")
	if err != nil {
		return Outcome{Failed: true}
	}
	defer os.Remove(path)

	primary, _ := extractPrimary(path)
	if len(primary) >= minPrimaryBytes {
		return Outcome{Text: primary, Extractor: "primary"}
	}

	secondary, err := extractSecondary(path)
	if err == nil && len(secondary) >= minPrimaryBytes {
		return Outcome{Text: secondary, Extractor: "secondary"}
	}
	if len(secondary) > len(primary) {
		return Outcome{Text: secondary, Extractor: "secondary"}
	}
	if primary != "" {
		return Outcome{Text: primary, Extractor: "primary"}
	}
	return Outcome{Failed: true}
}

// extractPrimary reads PDF text with ledongthuc/pdf.
func extractPrimary(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("documents: open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("documents: extract pdf text: %w", err)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("documents: read pdf text: %w", err)
	}
	return normalizeWhitespace(string(data)), nil
}

var tjStringRe = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)\s*T[Jj]`)

// extractSecondary falls back to pdfcpu when the primary extractor yields
// too little text: it dumps raw page content streams via
// api.ExtractContentFile and recovers the text runs PDF content streams
// wrap in parenthesized Tj/TJ show-text operators.
func extractSecondary(path string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "pdfcpu-content-*")
	if err != nil {
		return "", fmt.Errorf("documents: mkdir temp: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := api.ExtractContentFile(path, tmpDir, nil, nil); err != nil {
		return "", fmt.Errorf("documents: pdfcpu extract content: %w", err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return "", fmt.Errorf("documents: read content dir: %w", err)
	}

	var b strings.Builder
	for _, e := range entries {
		data, err := os.ReadFile(tmpDir + "/" + e.Name())
		if err != nil {
			continue
		}
		for _, m := range tjStringRe.FindAllSubmatch(data, -1) {
			b.Write(unescapePDFString(m[1]))
			b.WriteByte(' ')
		}
	}
	return normalizeWhitespace(b.String()), nil
}

func unescapePDFString(s []byte) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				out = append(out, '\n')
			case 'r', 't', 'b', 'f':
				out = append(out, ' ')
			default:
				out = append(out, s[i])
			}
			continue
		}
		out = append(out, s[i])
	}
	return out
}

// CleanHTMLText strips script/style/noscript elements and normalizes
// whitespace: runs of whitespace collapse to a single space, and
// paragraph breaks (two or more newlines) are preserved.
func CleanHTMLText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script,style,noscript").Remove()

	var b strings.Builder
	doc.Find("body").Each(func(i int, s *goquery.Selection) {
		s.Find("p,div,br,tr,li,h1,h2,h3,h4,h5,h6").Each(func(i int, block *goquery.Selection) {
			block.AppendHtml("\n\n")
		})
		b.WriteString(s.Text())
	})
	if b.Len() == 0 {
		b.WriteString(doc.Text())
	}
	return normalizeWhitespace(b.String())
}

var whitespaceRunRe = regexp.MustCompile(`[ \t]+`)
var manyNewlinesRe = regexp.MustCompile(`\n{3,}`)

func normalizeWhitespace(s string) string {
	s = whitespaceRunRe.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = manyNewlinesRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	paragraphs := strings.Split(s, "\n\n")
	for i, p := range paragraphs {
		paragraphs[i] = strings.ReplaceAll(p, "\n", " ")
	}
	return strings.TrimSpace(strings.Join(paragraphs, "\n\n"))
}
