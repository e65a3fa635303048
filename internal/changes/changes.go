// Package changes is the Chronological Change Tracker (Stage 7/I): it
// diffs successive fiscal-note sections and classifies each section as
// unchanged, added, revised, or removed, using the same go-udiff/myers
// machinery a whole-document line-level differ would use, generalized to
// sentence-level diffing of note section bodies.
package changes

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/aymanbagabas/go-udiff"
	"github.com/aymanbagabas/go-udiff/myers"

	"github.com/leginote/fiscalnote/internal/models"
)

var sentenceSplitRe = regexp.MustCompile(`(?:[.!?]+)\s+`)

// ComputeHash generates a SHA-256 hash of the content, used to short-
// circuit diffing identical note bodies.
func ComputeHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// splitSentences splits a section body into whitespace-normalized
// sentences, dropping empties.
func splitSentences(body string) []string {
	normalized := strings.Join(strings.Fields(body), " ")
	if normalized == "" {
		return nil
	}
	parts := sentenceSplitRe.Split(normalized, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func sentenceSet(sentences []string) map[string]bool {
	set := make(map[string]bool, len(sentences))
	for _, s := range sentences {
		set[s] = true
	}
	return set
}

func equalSets(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// CompareSection classifies how one section changed between the previous
// and current note body, per spec: unchanged if the whitespace-normalized
// sentence sets are equal, added if the prior body was empty, removed if
// the current body is empty, revised otherwise.
func CompareSection(key, prevBody, currBody string) models.SectionChange {
	prevSentences := splitSentences(prevBody)
	currSentences := splitSentences(currBody)

	switch {
	case len(prevSentences) == 0 && len(currSentences) == 0:
		return models.SectionChange{Section: key, Kind: models.ChangeUnchanged}
	case len(prevSentences) == 0:
		return models.SectionChange{Section: key, Kind: models.ChangeAdded, ChangedSentences: currSentences}
	case len(currSentences) == 0:
		return models.SectionChange{Section: key, Kind: models.ChangeRemoved, ChangedSentences: prevSentences}
	}

	prevSet := sentenceSet(prevSentences)
	currSet := sentenceSet(currSentences)
	if equalSets(prevSet, currSet) {
		return models.SectionChange{Section: key, Kind: models.ChangeUnchanged}
	}

	return models.SectionChange{
		Section:          key,
		Kind:             models.ChangeRevised,
		ChangedSentences: changedSentences(prevSentences, currSentences),
	}
}

// changedSentences uses go-udiff's Myers implementation, one sentence per
// line, to report the sentences of the current body that are new or
// reworded relative to the previous one. Sentences found only in the
// previous body are not reported; if the diff yields no added sentence,
// all current sentences are returned.
func changedSentences(prevSentences, currSentences []string) []string {
	prevText := strings.Join(prevSentences, "\n")
	currText := strings.Join(currSentences, "\n")
	edits := myers.ComputeEdits(prevText, currText)
	unified, err := udiff.ToUnified("prev", "curr", prevText, edits, 0)
	if err != nil {
		return currSentences
	}

	var out []string
	for _, line := range strings.Split(unified, "\n") {
		if strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
			continue
		}
		if strings.HasPrefix(line, "+") {
			out = append(out, strings.TrimPrefix(line, "+"))
		}
	}
	if len(out) == 0 {
		return currSentences
	}
	return out
}

// Compute produces the full change ledger entry between two successive
// fiscal notes, one SectionChange per fixed section key in canonical order.
func Compute(fromCheckpoint, toCheckpoint string, prev, curr models.FiscalNote) models.ChangeLedgerEntry {
	entry := models.ChangeLedgerEntry{
		FromCheckpoint: fromCheckpoint,
		ToCheckpoint:   toCheckpoint,
	}
	for _, key := range models.SectionKeys {
		entry.Sections = append(entry.Sections, CompareSection(key, prev[key], curr[key]))
	}
	return entry
}
