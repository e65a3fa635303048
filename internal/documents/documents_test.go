package documents_test

import (
	"strings"
	"testing"

	"github.com/leginote/fiscalnote/internal/documents"
)

func TestCleanHTMLText_StripsScriptAndStyle(t *testing.T) {
	html := `<html><body><script>evil()</script><style>.x{}</style><p>Hello   world.</p></body></html>`
	got := documents.CleanHTMLText(html)
	if strings.Contains(got, "evil") {
		t.Errorf("expected script content stripped, got %q", got)
	}
	if !strings.Contains(got, "Hello world.") {
		t.Errorf("expected normalized text, got %q", got)
	}
}

func TestCleanHTMLText_CollapsesWhitespace(t *testing.T) {
	html := `<html><body><p>Line   one</p></body></html>`
	got := documents.CleanHTMLText(html)
	if strings.Contains(got, "  ") {
		t.Errorf("expected collapsed whitespace, got %q", got)
	}
}
