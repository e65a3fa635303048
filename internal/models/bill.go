// Package models holds the pipeline's value types: the bill identifier,
// the documents and status events discovered for it, the money occurrences
// found in its text, and the fiscal notes generated from them.
package models

import "fmt"

// BillID identifies a bill by chamber, number, and year.
type BillID struct {
	Chamber string `json:"chamber"`
	Number  int    `json:"number"`
	Year    int    `json:"year"`
}

// Canonical returns the canonical string form "{chamber}B_{number}_{year}".
func (b BillID) Canonical() string {
	return fmt.Sprintf("%sB_%d_%d", b.Chamber, b.Number, b.Year)
}

func (b BillID) String() string { return b.Canonical() }

// DocumentKind distinguishes the two document formats the portal serves.
type DocumentKind string

const (
	KindHTM DocumentKind = "htm"
	KindPDF DocumentKind = "pdf"
)

// DocumentType is derived from a Document's name, never stored as authority.
type DocumentType string

const (
	TypeIntroduction    DocumentType = "Introduction"
	TypeAmendment       DocumentType = "Amendment"
	TypeCommitteeReport DocumentType = "CommitteeReport"
	TypeTestimony       DocumentType = "Testimony"
	TypeOther           DocumentType = "Other"
)

// Document is one file discovered on a bill's portal page. Name is the
// portal's label and the join key used throughout the pipeline; it is
// unique within a bill.
type Document struct {
	Name      string       `json:"name"`
	URL       string       `json:"url"`
	Kind      DocumentKind `json:"kind"`
	Text      string       `json:"text,omitempty"`
	FetchedAt string       `json:"fetched_at,omitempty"`
}

// StatusEvent is one row of the portal's status table, intrinsically
// ordered by the portal's own DOM order.
type StatusEvent struct {
	Date    string `json:"date"`
	Chamber string `json:"chamber"`
	Text    string `json:"text"`
}

// TimelineEntry decorates a status event with the document names attached
// to it. The ordered list of TimelineEntry is the chronologically
// authoritative view of a bill's documents.
type TimelineEntry struct {
	Date      string   `json:"date"`
	Text      string   `json:"text"`
	Documents []string `json:"documents"`
}

// MoneyOccurrence is a single monetary amount found in a document's text,
// with surrounding context.
type MoneyOccurrence struct {
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Filename    string  `json:"filename"`
	Context     string  `json:"context"`
	OffsetChars int     `json:"offset_chars"`
}

// SectionKeys lists the 12 fixed fiscal-note section keys in their
// canonical order.
var SectionKeys = []string{
	"overview",
	"appropriations",
	"assumptions_and_methodology",
	"agency_impact",
	"economic_impact",
	"policy_impact",
	"revenue_sources",
	"six_year_fiscal_implications",
	"operating_revenue_impact",
	"capital_expenditure_impact",
	"fiscal_implications_after_6_years",
	"updates_from_previous_fiscal_note",
}

// FiscalNote maps each of the 12 section keys to its narrative body.
type FiscalNote map[string]string

// FiscalNoteMetadata accompanies an emitted FiscalNote. Predecessors lists
// only the documents processed since the previous checkpoint; ProcessedNames
// is the full cumulative set of documents processed since the start of the
// bill, which is what money-citation resolution must match against.
type FiscalNoteMetadata struct {
	Bill              string   `json:"bill"`
	CheckpointDoc     string   `json:"checkpoint_document"`
	Predecessors      []string `json:"predecessors"`
	ProcessedNames    []string `json:"processed_names"`
	NumbersUsed       int      `json:"numbers_used"`
	GeneratedAt       string   `json:"generated_at"`
	PrevNoteDigest    string   `json:"prev_note_digest,omitempty"`
	ChronologyDegrade bool     `json:"chronology_degraded,omitempty"`
}

// NumnumEntry is the value type of the numnum citation namespace.
type NumnumEntry struct {
	Amount   float64      `json:"amount"`
	Filename string       `json:"filename"`
	Context  string       `json:"context"`
	DocType  DocumentType `json:"doc_type"`
}

// CitationMap holds the two parallel per-bill citation namespaces, shared
// by all of a bill's notes.
type CitationMap struct {
	Docnum map[int]string         `json:"docnum"`
	Numnum map[int]NumnumEntry    `json:"numnum"`
}

// AttributedChunk is one source passage attributed to a generated sentence.
type AttributedChunk struct {
	Filename  string  `json:"filename"`
	ChunkText string  `json:"chunk_text"`
	Score     float64 `json:"score"`
}

// SentenceAttribution records the best-matching source passage(s) for one
// sentence of a generated note.
type SentenceAttribution struct {
	SentenceText     string            `json:"sentence_text"`
	AttributedChunks []AttributedChunk `json:"attributed_chunks"`
	BestChunkIndex   int               `json:"best_chunk_index"`
}

// JobState is the lifecycle state of a queued pipeline run.
type JobState string

const (
	JobQueued  JobState = "queued"
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
)

// Job is the process-wide record for one bill's pipeline run.
type Job struct {
	ID         string     `json:"id"`
	State      JobState   `json:"state"`
	StartedAt  string     `json:"started_at,omitempty"`
	FinishedAt string     `json:"finished_at,omitempty"`
	ErrorKind  string     `json:"error_kind,omitempty"`
	Error      string     `json:"error,omitempty"`
	CancelReq  bool       `json:"cancel_requested,omitempty"`
}

// SectionChangeKind classifies how one section changed between two
// successive fiscal notes.
type SectionChangeKind string

const (
	ChangeUnchanged SectionChangeKind = "unchanged"
	ChangeAdded     SectionChangeKind = "added"
	ChangeRevised   SectionChangeKind = "revised"
	ChangeRemoved   SectionChangeKind = "removed"
)

// SectionChange is one entry of a bill's change ledger.
type SectionChange struct {
	Section          string            `json:"section"`
	Kind             SectionChangeKind `json:"kind"`
	ChangedSentences []string          `json:"changed_sentences,omitempty"`
}

// ChangeLedgerEntry records the section-by-section diff between two
// successive checkpoints.
type ChangeLedgerEntry struct {
	FromCheckpoint string          `json:"from_checkpoint"`
	ToCheckpoint   string          `json:"to_checkpoint"`
	Sections       []SectionChange `json:"sections"`
}
