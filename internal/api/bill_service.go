package api

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/leginote/fiscalnote/internal/models"
	"github.com/leginote/fiscalnote/internal/store"
)

// BillService reads the bill-index for the HTTP API: BillRecord rows from
// the database plus the notes/citations artifacts from the filesystem
// they were mirrored from.
type BillService struct {
	db        *gorm.DB
	billsRoot string
}

// NewBillService creates a new BillService instance.
func NewBillService(db *gorm.DB, billsRoot string) *BillService {
	return &BillService{db: db, billsRoot: billsRoot}
}

// BillResponse is the API response format for a bill.
type BillResponse struct {
	ID                 uint   `json:"id"`
	CanonicalID        string `json:"canonicalId"`
	Chamber            string `json:"chamber"`
	Number             int    `json:"number"`
	Year               int    `json:"year"`
	Title              string `json:"title"`
	LatestCheckpoint   string `json:"latestCheckpoint"`
	ChronologyDegraded bool   `json:"chronologyDegraded"`
}

// NotesResponse lists the checkpoints a bill has an emitted note for.
type NotesResponse struct {
	BillID      string   `json:"billId"`
	Checkpoints []string `json:"checkpoints"`
}

// CitationsResponse is one checkpoint's docnum/numnum citation map.
type CitationsResponse struct {
	BillID     string              `json:"billId"`
	Checkpoint string              `json:"checkpoint"`
	Citations  models.CitationMap  `json:"citations"`
}

func toResponse(r models.BillRecord) BillResponse {
	return BillResponse{
		ID:                 r.ID,
		CanonicalID:        r.CanonicalID,
		Chamber:            r.Chamber,
		Number:             r.Number,
		Year:               r.Year,
		Title:              r.Title,
		LatestCheckpoint:   r.LatestCheckpoint,
		ChronologyDegraded: r.ChronologyDegraded,
	}
}

// ListBills returns every indexed bill.
func (s *BillService) ListBills(ctx context.Context) ([]BillResponse, error) {
	var records []models.BillRecord
	if err := s.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("api: list bills: %w", err)
	}
	out := make([]BillResponse, len(records))
	for i, r := range records {
		out[i] = toResponse(r)
	}
	return out, nil
}

// GetBill returns a single indexed bill by its canonical id.
func (s *BillService) GetBill(ctx context.Context, canonicalID string) (*BillResponse, error) {
	var r models.BillRecord
	if err := s.db.WithContext(ctx).Where("canonical_id = ?", canonicalID).First(&r).Error; err != nil {
		return nil, fmt.Errorf("api: get bill %s: %w", canonicalID, err)
	}
	resp := toResponse(r)
	return &resp, nil
}

// ListNoteCheckpoints lists the checkpoint names a bill has an emitted note
// for, read directly off the filesystem's notes/ directory.
func (s *BillService) ListNoteCheckpoints(canonicalID string) (*NotesResponse, error) {
	bill, err := store.New(s.billsRoot, canonicalID)
	if err != nil {
		return nil, fmt.Errorf("api: open bill dir %s: %w", canonicalID, err)
	}

	entries, err := store.ListNoteNames(bill)
	if err != nil {
		return nil, fmt.Errorf("api: list notes for %s: %w", canonicalID, err)
	}
	return &NotesResponse{BillID: canonicalID, Checkpoints: entries}, nil
}

// GetNote returns the fiscal note body at the given checkpoint.
func (s *BillService) GetNote(canonicalID, checkpoint string) (models.FiscalNote, error) {
	bill, err := store.New(s.billsRoot, canonicalID)
	if err != nil {
		return nil, fmt.Errorf("api: open bill dir %s: %w", canonicalID, err)
	}
	var note models.FiscalNote
	if err := store.ReadJSON(bill.NotePath(checkpoint), &note); err != nil {
		return nil, fmt.Errorf("api: read note %s/%s: %w", canonicalID, checkpoint, err)
	}
	return note, nil
}

// GetCitations returns the per-bill citation map (docnum/numnum), which is
// shared across all of a bill's checkpoints.
func (s *BillService) GetCitations(canonicalID, checkpoint string) (*CitationsResponse, error) {
	bill, err := store.New(s.billsRoot, canonicalID)
	if err != nil {
		return nil, fmt.Errorf("api: open bill dir %s: %w", canonicalID, err)
	}
	var citations models.CitationMap
	if err := store.ReadJSON(bill.DocumentMappingPath(), &citations); err != nil {
		return nil, fmt.Errorf("api: read citations for %s: %w", canonicalID, err)
	}
	return &CitationsResponse{BillID: canonicalID, Checkpoint: checkpoint, Citations: citations}, nil
}
