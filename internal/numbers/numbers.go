// Package numbers implements the money-occurrence extraction grammar:
// a pure function over a document's whitespace-tokenized text that finds
// every dollar amount, in discovery order, each with a surrounding window
// of context tokens.
package numbers

import (
	"regexp"
	"strconv"
	"strings"
)

var amountRe = regexp.MustCompile(`^(\d{1,3}(,\d{3})*|\d+)(\.\d{1,2})?$`)

const contextWindow = 50

type token struct {
	text  string
	start int
	end   int
}

func tokenize(text string) []token {
	var toks []token
	inTok := false
	start := 0
	for i, r := range text {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if inTok {
				toks = append(toks, token{text: text[start:i], start: start, end: i})
				inTok = false
			}
			continue
		}
		if !inTok {
			start = i
			inTok = true
		}
	}
	if inTok {
		toks = append(toks, token{text: text[start:], start: start, end: len(text)})
	}
	return toks
}

func isMarker(s string) bool {
	return s == "$" || s == "USD"
}

// stripMarkers removes a leading/trailing '$' or "USD" and any commas,
// returning the numeric core.
func stripMarkers(s string) string {
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(s, "USD")
	s = strings.TrimSuffix(s, "$")
	s = strings.TrimSuffix(s, "USD")
	return s
}

func parseAmount(numeric string) (float64, bool) {
	clean := strings.ReplaceAll(numeric, ",", "")
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Occurrence is one match of the money grammar, positioned in the token
// stream so context windows can be built around it.
type Occurrence struct {
	Amount      float64
	Context     string
	OffsetChars int
}

// Extract finds every money occurrence in text per the grammar:
//
//	money    := leading | trailing
//	leading  := ('$' | 'USD' ws?) amount
//	trailing := amount ws? ('$' | 'USD')
//	amount   := ( digits(1..3) ( ',' digits(3) )* | digits+ )  ( '.' digits(1..2) )?
//
// Sentence punctuation (. , ; : ! ?) at the end of a token is ignored, so
// an amount that ends a sentence, such as "$100.", still matches.
// Matches are returned in discovery (document) order; no dedup is
// performed — repeated amounts in different contexts are all recorded.
func Extract(text string) []Occurrence {
	toks := tokenize(text)
	var out []Occurrence
	consumed := make([]bool, len(toks))

	for i := 0; i < len(toks); i++ {
		if consumed[i] {
			continue
		}
		t := strings.TrimRight(toks[i].text, ".,;:!?")

		// Attached leading: "$250,000" or "USD250,000"
		if strings.HasPrefix(t, "$") || strings.HasPrefix(t, "USD") {
			core := stripMarkers(t)
			if amountRe.MatchString(core) {
				if amt, ok := parseAmount(core); ok {
					out = append(out, makeOccurrence(toks, i, i, amt))
					consumed[i] = true
					continue
				}
			}
		}

		// Attached trailing: "5000$" or "5000USD"
		if strings.HasSuffix(t, "$") || strings.HasSuffix(t, "USD") {
			core := stripMarkers(t)
			if amountRe.MatchString(core) {
				if amt, ok := parseAmount(core); ok {
					out = append(out, makeOccurrence(toks, i, i, amt))
					consumed[i] = true
					continue
				}
			}
		}

		if !amountRe.MatchString(t) {
			continue
		}
		amt, ok := parseAmount(t)
		if !ok {
			continue
		}

		// Leading with preceding marker token: "$" "250,000"
		if i > 0 && !consumed[i-1] && isMarker(toks[i-1].text) {
			out = append(out, makeOccurrence(toks, i-1, i, amt))
			consumed[i-1] = true
			consumed[i] = true
			continue
		}

		// Trailing with following marker token: "5000" "$"
		if i+1 < len(toks) && isMarker(toks[i+1].text) {
			out = append(out, makeOccurrence(toks, i, i+1, amt))
			consumed[i] = true
			consumed[i+1] = true
			continue
		}
	}

	return out
}

func makeOccurrence(toks []token, startIdx, endIdx int, amount float64) Occurrence {
	lo := startIdx - contextWindow
	if lo < 0 {
		lo = 0
	}
	hi := endIdx + contextWindow
	if hi >= len(toks) {
		hi = len(toks) - 1
	}
	words := make([]string, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		words = append(words, toks[i].text)
	}
	return Occurrence{
		Amount:      amount,
		Context:     strings.Join(words, " "),
		OffsetChars: toks[startIdx].start,
	}
}
