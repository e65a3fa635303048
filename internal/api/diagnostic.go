package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"gorm.io/gorm"
)

// DiagnosticService handles system health endpoints.
type DiagnosticService struct {
	db *gorm.DB
}

// NewDiagnosticService creates a new instance of the service.
func NewDiagnosticService(db *gorm.DB) *DiagnosticService {
	return &DiagnosticService{db: db}
}

// DiagnosticHealthOutput is the response for the diagnostic health check.
type DiagnosticHealthOutput struct {
	Body struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
}

// RegisterDiagnosticRoutes registers the health endpoint with Huma.
func RegisterDiagnosticRoutes(api huma.API, s *DiagnosticService) {
	huma.Register(api, huma.Operation{
		OperationID: "get-health",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health Check",
		Description: "Returns the status of the API and its database connection.",
		Tags:        []string{"Diagnostics"},
	}, func(ctx context.Context, input *struct{}) (*DiagnosticHealthOutput, error) {
		resp := &DiagnosticHealthOutput{}
		resp.Body.Status = "ok"
		resp.Body.Database = "unavailable"

		if s.db != nil {
			if sqlDB, err := s.db.DB(); err == nil && sqlDB.PingContext(ctx) == nil {
				resp.Body.Database = "ok"
			}
		}
		return resp, nil
	})
}
