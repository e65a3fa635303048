// Package fiscalnote is the Fiscal-Note Generator (Stage 5, component F):
// the central cumulative-context state machine that decides when to emit
// a note, what numbers and documents are visible at each emission point,
// and how to avoid redundancy between successive notes.
package fiscalnote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/leginote/fiscalnote/internal/changes"
	"github.com/leginote/fiscalnote/internal/models"
)

// CheckpointURLMarker is the portal-specific substring whose presence in
// a document's URL path signals a published committee report. Kept as a
// var, not a literal, per the REDESIGN FLAG's suggestion to make the
// checkpoint predicate's portal-specific marker easy to override.
var CheckpointURLMarker = "CommReports"

// ErrLLMSchemaFailure is returned after the one schema-repair retry also
// fails to parse.
var ErrLLMSchemaFailure = errors.New("fiscalnote: LLM schema failure")

var forbiddenVersionTokens = []string{
	"CD1", "CD2", "CD3", "HD1", "HD2", "HD3",
	"SD1", "SD2", "SD3", "TESTIMONY", "HSCR", "SSCR", "CCR",
}

var sectionDescriptions = map[string]string{
	"overview":                           "A plain-language summary of the bill's purpose and fiscal scope.",
	"appropriations":                     "Every appropriation named in the bill, with amounts and recipients.",
	"assumptions_and_methodology":        "The assumptions and estimation methodology behind the fiscal figures.",
	"agency_impact":                      "Operational impact on the implementing state agency or agencies.",
	"economic_impact":                    "Broader economic effects on residents, businesses, or the local economy.",
	"policy_impact":                      "Non-fiscal policy consequences of enacting the bill.",
	"revenue_sources":                    "Where the funds appropriated or affected originate.",
	"six_year_fiscal_implications":       "Projected fiscal effects across the six-year financial plan.",
	"operating_revenue_impact":           "Effect on recurring operating revenue.",
	"capital_expenditure_impact":         "Effect on one-time capital expenditure.",
	"fiscal_implications_after_6_years":  "Projected fiscal effects beyond the six-year window.",
	"updates_from_previous_fiscal_note":  "What changed relative to the immediately preceding fiscal note, if any.",
}

// Completer is the narrow LLM dependency this package needs.
type Completer interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// EmittedNote pairs a generated FiscalNote with its metadata.
type EmittedNote struct {
	Note     models.FiscalNote
	Metadata models.FiscalNoteMetadata
}

// IsCheckpoint reports whether appending doc should trigger note
// emission: doc is the first document overall, or doc's URL contains the
// committee-report marker.
func IsCheckpoint(doc models.Document, isFirstDocument bool) bool {
	return isFirstDocument || strings.Contains(doc.URL, CheckpointURLMarker)
}

// stripFilenameSuffix removes the .txt/.PDF.txt/.HTM.txt suffix numbers.json
// filenames carry, so they can be compared against bare document names.
func stripFilenameSuffix(f string) string {
	for _, suf := range []string{".PDF.txt", ".HTM.txt", ".txt"} {
		if strings.HasSuffix(f, suf) {
			return strings.TrimSuffix(f, suf)
		}
	}
	return f
}

// matchesProcessed implements the visible-numbers rule: F matches
// some processed name N either exactly, or as N + "_" + suffix where the
// suffix contains none of the version/kind indicators that would mean F
// actually belongs to a later document.
func matchesProcessed(filename string, processedNames []string) bool {
	f := stripFilenameSuffix(filename)
	for _, n := range processedNames {
		if f == n {
			return true
		}
		prefix := n + "_"
		if strings.HasPrefix(f, prefix) {
			rest := strings.TrimPrefix(f, prefix)
			if !containsForbiddenToken(rest) {
				return true
			}
		}
	}
	return false
}

func containsForbiddenToken(s string) bool {
	for _, tok := range forbiddenVersionTokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}

// VisibleNumbers returns exactly those occurrences whose filename matches
// some already-processed document name.
func VisibleNumbers(occurrences []models.MoneyOccurrence, processedNames []string) []models.MoneyOccurrence {
	var out []models.MoneyOccurrence
	for _, o := range occurrences {
		if matchesProcessed(o.Filename, processedNames) {
			out = append(out, o)
		}
	}
	return out
}

// Run drives the checkpoint state machine over docsInOrder (the flattened
// Timeline, in chronological order) and returns one EmittedNote per
// qualifying checkpoint.
func Run(ctx context.Context, completer Completer, docsInOrder []models.Document,
	occurrences []models.MoneyOccurrence) ([]EmittedNote, error) {

	var (
		cumulativeContext strings.Builder
		processedNames    []string
		previousNote      models.FiscalNote
		havePrevious      bool
		predecessors      []string
		results           []EmittedNote
	)

	for i, doc := range docsInOrder {
		cumulativeContext.WriteString(fmt.Sprintf("=== Document: %s ===\n%s\n\n", doc.Name, doc.Text))
		processedNames = append(processedNames, doc.Name)
		predecessors = append(predecessors, doc.Name)

		if !IsCheckpoint(doc, i == 0) {
			continue
		}

		visible := VisibleNumbers(occurrences, processedNames)
		prompt := buildPrompt(cumulativeContext.String(), visible, previousNote, havePrevious)

		note, err := generateNote(ctx, completer, prompt)
		if err != nil {
			return results, err
		}

		meta := models.FiscalNoteMetadata{
			CheckpointDoc:  doc.Name,
			Predecessors:   append([]string(nil), predecessors...),
			ProcessedNames: append([]string(nil), processedNames...),
			NumbersUsed:    len(visible),
		}
		if havePrevious {
			meta.PrevNoteDigest = changes.ComputeHash(joinSections(previousNote))
		}

		results = append(results, EmittedNote{Note: note, Metadata: meta})

		previousNote = note
		havePrevious = true
		cumulativeContext.Reset()
		predecessors = nil
	}

	return results, nil
}

func generateNote(ctx context.Context, completer Completer, prompt string) (models.FiscalNote, error) {
	note, err := tryGenerate(ctx, completer, prompt)
	if err == nil {
		return note, nil
	}

	repairPrompt := prompt + "\n\nYour previous response was not valid JSON with exactly the required keys. " +
		"Respond again with only a JSON object containing all 12 section keys, no commentary."
	note, err2 := tryGenerate(ctx, completer, repairPrompt)
	if err2 == nil {
		return note, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrLLMSchemaFailure, err2)
}

func tryGenerate(ctx context.Context, completer Completer, prompt string) (models.FiscalNote, error) {
	raw, err := completer.GenerateJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}
	var note models.FiscalNote
	if err := json.Unmarshal([]byte(raw), &note); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	for _, key := range models.SectionKeys {
		if _, ok := note[key]; !ok {
			return nil, fmt.Errorf("missing section key %q", key)
		}
	}
	return note, nil
}

func buildPrompt(cumulativeContext string, visible []models.MoneyOccurrence, previous models.FiscalNote, havePrevious bool) string {
	var b strings.Builder

	b.WriteString("Generate a fiscal note as a JSON object with exactly these section keys:\n")
	for _, key := range models.SectionKeys {
		fmt.Fprintf(&b, "- %s: %s\n", key, sectionDescriptions[key])
	}

	b.WriteString("\nDocument context:\n")
	b.WriteString(cumulativeContext)

	b.WriteString("\nVisible amounts (cite each one you use with its filename in parentheses):\n")
	for _, v := range visible {
		fmt.Fprintf(&b, "- $%.2f from %s\n", v.Amount, v.Filename)
	}

	b.WriteString("\nEvery dollar amount in your response must be followed immediately by its source in parentheses, e.g. \"$250,000 (HB1483)\".\n")

	if havePrevious {
		b.WriteString("\nThe previous fiscal note for this bill was:\n")
		for _, key := range models.SectionKeys {
			fmt.Fprintf(&b, "%s: %s\n", key, previous[key])
		}
		b.WriteString("\nSurface only what has changed since the previous note; do not repeat unchanged analysis verbatim.\n")
	}

	return b.String()
}

func joinSections(note models.FiscalNote) string {
	var b strings.Builder
	for _, key := range models.SectionKeys {
		b.WriteString(note[key])
	}
	return b.String()
}
