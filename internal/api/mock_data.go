package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/leginote/fiscalnote/internal/models"
)

// mockBills is a small fixed fixture set, served when no database is
// configured so the API still has something to return in local/demo runs.
var mockBills = []BillResponse{
	{
		ID: 1, CanonicalID: "HB_1483_2026", Chamber: "H", Number: 1483, Year: 2026,
		Title: "Relating to early childhood education pilot programs.",
		LatestCheckpoint: "HB1483_HD1_HSCR7", ChronologyDegraded: false,
	},
	{
		ID: 2, CanonicalID: "SB_42_2026", Chamber: "S", Number: 42, Year: 2026,
		Title: "Relating to state park maintenance funding.",
		LatestCheckpoint: "SB42", ChronologyDegraded: true,
	},
}

var mockNote = models.FiscalNote{
	"overview":                           "Establishes a three-year early childhood education pilot. [1]",
	"appropriations":                     "Appropriates $250,000 [1] for the pilot's first year.",
	"assumptions_and_methodology":        "Assumes flat enrollment across the pilot sites.",
	"agency_impact":                      "Requires the Department of Education to hire two program coordinators.",
	"economic_impact":                    "Minimal near-term economic effect outside the pilot counties.",
	"policy_impact":                      "Establishes a new early-childhood program category in statute.",
	"revenue_sources":                    "Funded from the general fund.",
	"six_year_fiscal_implications":       "Projected to grow to $900,000 [2] annually if made permanent.",
	"operating_revenue_impact":           "No effect on operating revenue.",
	"capital_expenditure_impact":         "No capital expenditure required.",
	"fiscal_implications_after_6_years":  "Unknown pending a permanence decision.",
	"updates_from_previous_fiscal_note":  "First note for this bill.",
}

var mockCitations = models.CitationMap{
	Docnum: map[int]string{1: "HB1483"},
	Numnum: map[int]models.NumnumEntry{
		1: {Amount: 250000, Filename: "HB1483.txt", Context: "appropriates $250,000 for the pilot"},
		2: {Amount: 900000, Filename: "HB1483_HD1_HSCR7.txt", Context: "grow to $900,000 annually"},
	},
}

// RegisterMockRoutes sets up the bill-index read surface backed by fixed
// fixtures, for local/demo runs with no database configured.
func RegisterMockRoutes(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-bills-mock",
		Method:      http.MethodGet,
		Path:        "/api/v1/bills",
		Summary:     "List indexed bills (mock data)",
		Tags:        []string{"Bills"},
	}, func(ctx context.Context, input *struct{}) (*ListBillsOutput, error) {
		resp := &ListBillsOutput{}
		resp.Body.Bills = mockBills
		resp.Body.Total = len(mockBills)
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-bill-mock",
		Method:      http.MethodGet,
		Path:        "/api/v1/bills/{id}",
		Summary:     "Get a bill by canonical id (mock data)",
		Tags:        []string{"Bills"},
	}, func(ctx context.Context, input *GetBillInput) (*GetBillOutput, error) {
		for _, b := range mockBills {
			if b.CanonicalID == input.ID {
				return &GetBillOutput{Body: b}, nil
			}
		}
		return nil, huma.Error404NotFound("bill not found")
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-bill-note-mock",
		Method:      http.MethodGet,
		Path:        "/api/v1/bills/{id}/notes/{checkpoint}",
		Summary:     "Get the fiscal note emitted at a checkpoint (mock data)",
		Tags:        []string{"Notes"},
	}, func(ctx context.Context, input *GetNoteInput) (*GetNoteOutput, error) {
		return &GetNoteOutput{Body: mockNote}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-bill-note-citations-mock",
		Method:      http.MethodGet,
		Path:        "/api/v1/bills/{id}/notes/{checkpoint}/citations",
		Summary:     "Get the docnum/numnum citation map for a checkpoint (mock data)",
		Tags:        []string{"Notes"},
	}, func(ctx context.Context, input *GetCitationsInput) (*GetCitationsOutput, error) {
		return &GetCitationsOutput{Body: CitationsResponse{BillID: input.ID, Checkpoint: input.Checkpoint, Citations: mockCitations}}, nil
	})
}
