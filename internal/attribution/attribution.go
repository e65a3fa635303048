// Package attribution is the Attribution Enhancer (Stage 6/7, component
// G): it binds generated sentences and cited amounts back to their source
// passages, replacing parenthetical document references with [n] and
// dollar amounts with a following [m], then records per-sentence
// embedding-based attribution to source passages.
package attribution

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/leginote/fiscalnote/internal/models"
)

// Embedder is the narrow LLM dependency sentence attribution needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// CitationTable is the single docnum/numnum assignment ledger for a bill.
// Every section of every note in the bill must resolve its citations
// through the same table, so a given [n]/[m] means the same document or
// occurrence everywhere it appears, and document_mapping.json reflects
// exactly the numbers embedded in the note bodies.
type CitationTable struct {
	docNameToID map[string]int
	docNames    map[int]string
	nextDoc     int

	numKeyToID map[string]int
	numEntries map[int]models.NumnumEntry
	nextNum    int
}

// NewCitationTable returns an empty table with both namespaces starting
// at 1.
func NewCitationTable() *CitationTable {
	return &CitationTable{
		docNameToID: map[string]int{},
		docNames:    map[int]string{},
		nextDoc:     1,
		numKeyToID:  map[string]int{},
		numEntries:  map[int]models.NumnumEntry{},
		nextNum:     1,
	}
}

// Docnum returns the bill-wide docnum map accumulated so far.
func (t *CitationTable) Docnum() map[int]string { return t.docNames }

// Numnum returns the bill-wide numnum map accumulated so far.
func (t *CitationTable) Numnum() map[int]models.NumnumEntry { return t.numEntries }

func (t *CitationTable) assignDoc(name string) int {
	if n, ok := t.docNameToID[name]; ok {
		return n
	}
	n := t.nextDoc
	t.nextDoc++
	t.docNameToID[name] = n
	t.docNames[n] = name
	return n
}

// numKey identifies a money occurrence for dedup purposes: the same
// amount cited from the same document context should always get the
// same numnum id, even across sections and notes.
func numKey(e models.NumnumEntry) string {
	return fmt.Sprintf("%s|%.2f|%s", e.Filename, e.Amount, e.Context)
}

func (t *CitationTable) assignNum(entry models.NumnumEntry) int {
	key := numKey(entry)
	if n, ok := t.numKeyToID[key]; ok {
		return n
	}
	n := t.nextNum
	t.nextNum++
	t.numKeyToID[key] = n
	t.numEntries[n] = entry
	return n
}

var parenCitationRe = regexp.MustCompile(`\(([^()]{1,120})\)`)

// ResolveDocumentCitations replaces every parenthetical string in body
// matching a known document name (exact first, then longest-prefix) with
// a numeric [n] citation in the docnum namespace, consulting and mutating
// table so the same document gets the same id everywhere in the bill.
func ResolveDocumentCitations(table *CitationTable, body string, docNames []string) string {
	sortedNames := append([]string(nil), docNames...)
	sort.Slice(sortedNames, func(i, j int) bool { return len(sortedNames[i]) > len(sortedNames[j]) })

	return parenCitationRe.ReplaceAllStringFunc(body, func(match string) string {
		inner := strings.TrimSuffix(strings.TrimPrefix(match, "("), ")")
		inner = strings.TrimSpace(inner)

		for _, name := range docNames {
			if inner == name {
				return fmt.Sprintf("[%d]", table.assignDoc(name))
			}
		}
		for _, name := range sortedNames {
			if strings.HasPrefix(inner, name) {
				return fmt.Sprintf("[%d]", table.assignDoc(name))
			}
		}
		return match
	})
}

var dollarRe = regexp.MustCompile(`\$[\d,]+(?:\.\d{1,2})?`)

// ResolveMoneyCitations appends a [m] citation (in the numnum namespace)
// after each dollar amount in body whose normalized value matches a
// visible MoneyOccurrence, picking the occurrence whose context is most
// textually similar to the amount's enclosing sentence when several share
// the same amount. Assignments consult and mutate table, so repeat
// citations of the same occurrence across sections/notes share one id.
func ResolveMoneyCitations(table *CitationTable, body string, visible []models.MoneyOccurrence) string {
	sentences := splitIntoSentences(body)

	return dollarRe.ReplaceAllStringFunc(body, func(match string) string {
		amount, ok := parseDollar(match)
		if !ok {
			return match
		}

		var candidates []models.MoneyOccurrence
		for _, occ := range visible {
			if occ.Amount == amount {
				candidates = append(candidates, occ)
			}
		}
		if len(candidates) == 0 {
			return match
		}

		enclosing := findSentenceContaining(sentences, match)
		best := candidates[0]
		bestScore := -1.0
		for _, c := range candidates {
			score := tokenOverlap(enclosing, c.Context)
			if score > bestScore {
				bestScore = score
				best = c
			}
		}

		n := table.assignNum(models.NumnumEntry{Amount: best.Amount, Filename: best.Filename, Context: best.Context})
		return fmt.Sprintf("%s [%d]", match, n)
	})
}

func parseDollar(s string) (float64, bool) {
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var sentenceBoundaryRe = regexp.MustCompile(`(?:[.!?]+)\s+`)

func splitIntoSentences(body string) []string {
	return sentenceBoundaryRe.Split(body, -1)
}

func findSentenceContaining(sentences []string, needle string) string {
	for _, s := range sentences {
		if strings.Contains(s, needle) {
			return s
		}
	}
	return ""
}

func tokenOverlap(a, b string) float64 {
	setA := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(a)) {
		setA[w] = true
	}
	if len(setA) == 0 {
		return 0
	}
	overlap := 0
	for _, w := range strings.Fields(strings.ToLower(b)) {
		if setA[w] {
			overlap++
		}
	}
	return float64(overlap) / float64(len(setA))
}

// SentenceAttributions splits body into sentences and attributes every
// non-empty one, whether or not it carries a citation, to the source
// passage in sourcePassages whose embedding has the highest cosine
// similarity. Embeddings are assumed L2-normalized, so cosine similarity
// reduces to a plain dot product.
func SentenceAttributions(ctx context.Context, embedder Embedder, body string,
	sourcePassages map[string]string) ([]models.SentenceAttribution, error) {

	sentences := splitIntoSentences(body)
	if len(sentences) == 0 {
		return nil, nil
	}

	passageNames := make([]string, 0, len(sourcePassages))
	passageTexts := make([]string, 0, len(sourcePassages))
	for name, text := range sourcePassages {
		passageNames = append(passageNames, name)
		passageTexts = append(passageTexts, text)
	}
	if len(passageTexts) == 0 {
		return nil, nil
	}

	toEmbed := append(append([]string{}, sentences...), passageTexts...)
	vectors, err := embedder.Embed(ctx, toEmbed)
	if err != nil {
		return nil, fmt.Errorf("attribution: embed: %w", err)
	}

	sentenceVecs := vectors[:len(sentences)]
	passageVecs := vectors[len(sentences):]

	out := make([]models.SentenceAttribution, 0, len(sentences))
	for i, s := range sentences {
		if strings.TrimSpace(s) == "" {
			continue
		}
		bestIdx, bestScore := -1, -1.0
		for j := range passageVecs {
			score := dot(sentenceVecs[i], passageVecs[j])
			if score > bestScore {
				bestScore = score
				bestIdx = j
			}
		}

		sa := models.SentenceAttribution{SentenceText: s}
		if bestIdx >= 0 {
			sa.AttributedChunks = []models.AttributedChunk{{
				Filename:  passageNames[bestIdx],
				ChunkText: passageTexts[bestIdx],
				Score:     bestScore,
			}}
			sa.BestChunkIndex = bestIdx
		}
		out = append(out, sa)
	}
	return out, nil
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return math.Max(-1, math.Min(1, sum))
}
