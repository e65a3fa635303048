// Package chronology is the Chronology Resolver (Stage 2, component C):
// it infers a total order over a bill's documents from its textual status
// events, since the portal lists documents alphabetically rather than
// chronologically. An LLM proposes an event-to-document join; the
// resolver validates it, re-prompts once on failure, and otherwise falls
// back to a deterministic ordering with a degraded flag.
package chronology

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/leginote/fiscalnote/internal/models"
)

// Completer is the narrow LLM dependency this package needs.
type Completer interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

type llmEntry struct {
	Date      string   `json:"date"`
	Text      string   `json:"text"`
	Documents []string `json:"documents"`
}

// Result is the Stage 2 output: the ordered Timeline plus whether the
// resolver had to fall back to deterministic ordering.
type Result struct {
	Timeline []models.TimelineEntry `json:"timeline"`
	Degraded bool                   `json:"chronology_degraded"`
}

// Resolve builds the Timeline from statusRows and documents, using
// completer's proposed join when it validates, and a deterministic
// fallback otherwise.
func Resolve(ctx context.Context, completer Completer, statusRows []models.StatusEvent,
	documents []models.Document, committeeHints []string) (*Result, error) {

	names := make([]string, len(documents))
	for i, d := range documents {
		names[i] = d.Name
	}

	prompt := buildPrompt(statusRows, names, committeeHints, nil)
	entries, err := proposeAndValidate(ctx, completer, prompt, statusRows, names)
	if err == nil {
		return &Result{Timeline: entries, Degraded: false}, nil
	}

	// one re-prompt, now including the validation failure
	retryPrompt := buildPrompt(statusRows, names, committeeHints, err)
	entries, err2 := proposeAndValidate(ctx, completer, retryPrompt, statusRows, names)
	if err2 == nil {
		return &Result{Timeline: entries, Degraded: false}, nil
	}

	return &Result{Timeline: fallbackOrdering(statusRows, names), Degraded: true}, nil
}

func proposeAndValidate(ctx context.Context, completer Completer, prompt string,
	statusRows []models.StatusEvent, names []string) ([]models.TimelineEntry, error) {

	raw, err := completer.GenerateJSON(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("chronology: completion: %w", err)
	}

	var proposed []llmEntry
	if err := json.Unmarshal([]byte(raw), &proposed); err != nil {
		return nil, fmt.Errorf("chronology: invalid JSON: %w", err)
	}

	if err := validate(proposed, statusRows, names); err != nil {
		return nil, err
	}

	entries := make([]models.TimelineEntry, len(proposed))
	for i, p := range proposed {
		entries[i] = models.TimelineEntry{Date: p.Date, Text: p.Text, Documents: p.Documents}
	}
	return entries, nil
}

// validate checks two post-conditions: every input document
// name appears exactly once across all entries (set equality), and entry
// order matches the order status events were observed (positional
// equality).
func validate(proposed []llmEntry, statusRows []models.StatusEvent, names []string) error {
	if len(proposed) != len(statusRows) {
		return fmt.Errorf("chronology: expected %d entries, got %d", len(statusRows), len(proposed))
	}
	for i, p := range proposed {
		if p.Text != statusRows[i].Text || p.Date != statusRows[i].Date {
			return fmt.Errorf("chronology: entry %d out of positional order", i)
		}
	}

	seen := make(map[string]int, len(names))
	for _, p := range proposed {
		for _, d := range p.Documents {
			seen[d]++
		}
	}
	if len(seen) != len(names) {
		return fmt.Errorf("chronology: document set mismatch: assigned %d of %d", len(seen), len(names))
	}
	for _, n := range names {
		if seen[n] != 1 {
			return fmt.Errorf("chronology: document %q assigned %d times, want exactly 1", n, seen[n])
		}
	}
	return nil
}

// fallbackOrdering is the deterministic ordering used when the LLM's
// proposal can't be validated twice: status-event order first, with
// unassigned documents grouped at the end sorted by name.
func fallbackOrdering(statusRows []models.StatusEvent, names []string) []models.TimelineEntry {
	entries := make([]models.TimelineEntry, len(statusRows))
	for i, s := range statusRows {
		entries[i] = models.TimelineEntry{Date: s.Date, Text: s.Text}
	}

	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	if len(entries) == 0 {
		return entries
	}
	entries[len(entries)-1].Documents = sorted
	return entries
}

func buildPrompt(statusRows []models.StatusEvent, names, hints []string, validationErr error) string {
	var b strings.Builder
	b.WriteString("Assign each document name to exactly one status event, in the order the events occurred. ")
	b.WriteString("Testimony documents belong to the event describing the hearing they were submitted to; ")
	b.WriteString("committee-report documents belong to the event announcing the report. ")
	b.WriteString("Respond with a JSON array, one object per status event, each shaped ")
	b.WriteString(`{"date": "...", "text": "...", "documents": ["..."]}`)
	b.WriteString(". Every document name below must appear in exactly one documents array.\n\n")

	b.WriteString("Status events (in order):\n")
	for _, s := range statusRows {
		fmt.Fprintf(&b, "- %s | %s | %s\n", s.Date, s.Chamber, s.Text)
	}

	b.WriteString("\nDocument names:\n")
	for _, n := range names {
		fmt.Fprintf(&b, "- %s\n", n)
	}

	if len(hints) > 0 {
		b.WriteString("\nKnown committee report labels:\n")
		for _, h := range hints {
			fmt.Fprintf(&b, "- %s\n", h)
		}
	}

	if validationErr != nil {
		fmt.Fprintf(&b, "\nYour previous response was invalid: %v. Correct it and respond again.\n", validationErr)
	}

	return b.String()
}
