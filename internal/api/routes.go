package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/leginote/fiscalnote/internal/models"
)

// ListBillsOutput is the response for listing bills.
type ListBillsOutput struct {
	Body struct {
		Bills []BillResponse `json:"bills"`
		Total int            `json:"total"`
	}
}

// GetBillInput is the request for getting a single bill.
type GetBillInput struct {
	ID string `path:"id" doc:"Canonical bill id, e.g. HB_1483_2026"`
}

// GetBillOutput is the response for getting a single bill.
type GetBillOutput struct {
	Body BillResponse
}

// GetNotesInput is the request for listing a bill's note checkpoints.
type GetNotesInput struct {
	ID string `path:"id" doc:"Canonical bill id"`
}

// GetNotesOutput is the response for listing a bill's note checkpoints.
type GetNotesOutput struct {
	Body NotesResponse
}

// GetNoteInput is the request for a single checkpoint's fiscal note.
type GetNoteInput struct {
	ID         string `path:"id" doc:"Canonical bill id"`
	Checkpoint string `path:"checkpoint" doc:"Checkpoint document name"`
}

// GetNoteOutput is the response for a single checkpoint's fiscal note.
type GetNoteOutput struct {
	Body models.FiscalNote
}

// GetCitationsInput is the request for a checkpoint's citation map.
type GetCitationsInput struct {
	ID         string `path:"id" doc:"Canonical bill id"`
	Checkpoint string `path:"checkpoint" doc:"Checkpoint document name"`
}

// GetCitationsOutput is the response for a checkpoint's citation map.
type GetCitationsOutput struct {
	Body CitationsResponse
}

// EnqueueInput requests a bill be added to the pipeline's job queue.
type EnqueueInput struct {
	Body struct {
		Chamber string `json:"chamber" doc:"H or S"`
		Number  int    `json:"number"`
		Year    int    `json:"year"`
	}
}

// EnqueueOutput reports the queued job's state.
type EnqueueOutput struct {
	Body struct {
		JobID string          `json:"jobId"`
		State models.JobState `json:"state"`
	}
}

// Enqueuer is the narrow orchestrator dependency the enqueue route needs.
type Enqueuer interface {
	Enqueue(id models.BillID) *models.Job
}

// RouteHandler holds dependencies for route handlers.
type RouteHandler struct {
	billService *BillService
	queue       Enqueuer
}

// NewRouteHandler creates a new RouteHandler with the given dependencies.
func NewRouteHandler(billService *BillService, queue Enqueuer) *RouteHandler {
	return &RouteHandler{billService: billService, queue: queue}
}

// RegisterRoutes sets up the bill-index read surface and the job-queue
// submission route.
func RegisterRoutes(api huma.API, handler *RouteHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-bills",
		Method:      http.MethodGet,
		Path:        "/api/v1/bills",
		Summary:     "List indexed bills",
		Tags:        []string{"Bills"},
	}, func(ctx context.Context, input *struct{}) (*ListBillsOutput, error) {
		bills, err := handler.billService.ListBills(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list bills: " + err.Error())
		}
		resp := &ListBillsOutput{}
		resp.Body.Bills = bills
		resp.Body.Total = len(bills)
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-bill",
		Method:      http.MethodGet,
		Path:        "/api/v1/bills/{id}",
		Summary:     "Get a bill by canonical id",
		Tags:        []string{"Bills"},
	}, func(ctx context.Context, input *GetBillInput) (*GetBillOutput, error) {
		bill, err := handler.billService.GetBill(ctx, input.ID)
		if err != nil {
			return nil, huma.Error404NotFound("bill not found")
		}
		return &GetBillOutput{Body: *bill}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-bill-notes",
		Method:      http.MethodGet,
		Path:        "/api/v1/bills/{id}/notes",
		Summary:     "List a bill's fiscal-note checkpoints",
		Tags:        []string{"Notes"},
	}, func(ctx context.Context, input *GetNotesInput) (*GetNotesOutput, error) {
		notes, err := handler.billService.ListNoteCheckpoints(input.ID)
		if err != nil {
			return nil, huma.Error404NotFound("no notes for bill: " + err.Error())
		}
		return &GetNotesOutput{Body: *notes}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-bill-note",
		Method:      http.MethodGet,
		Path:        "/api/v1/bills/{id}/notes/{checkpoint}",
		Summary:     "Get the fiscal note emitted at a checkpoint",
		Tags:        []string{"Notes"},
	}, func(ctx context.Context, input *GetNoteInput) (*GetNoteOutput, error) {
		note, err := handler.billService.GetNote(input.ID, input.Checkpoint)
		if err != nil {
			return nil, huma.Error404NotFound("note not found: " + err.Error())
		}
		return &GetNoteOutput{Body: note}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-bill-note-citations",
		Method:      http.MethodGet,
		Path:        "/api/v1/bills/{id}/notes/{checkpoint}/citations",
		Summary:     "Get the docnum/numnum citation map for a checkpoint",
		Tags:        []string{"Notes"},
	}, func(ctx context.Context, input *GetCitationsInput) (*GetCitationsOutput, error) {
		citations, err := handler.billService.GetCitations(input.ID, input.Checkpoint)
		if err != nil {
			return nil, huma.Error404NotFound("citations not found: " + err.Error())
		}
		return &GetCitationsOutput{Body: *citations}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "enqueue-bill",
		Method:      http.MethodPost,
		Path:        "/api/v1/bills/enqueue",
		Summary:     "Enqueue a bill for fiscal-note generation",
		Tags:        []string{"Bills"},
	}, func(ctx context.Context, input *EnqueueInput) (*EnqueueOutput, error) {
		if handler.queue == nil {
			return nil, huma.Error503ServiceUnavailable("job queue not available")
		}
		id := models.BillID{Chamber: input.Body.Chamber, Number: input.Body.Number, Year: input.Body.Year}
		job := handler.queue.Enqueue(id)
		resp := &EnqueueOutput{}
		resp.Body.JobID = job.ID
		resp.Body.State = job.State
		return resp, nil
	})
}
