package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/screenrelay/internal/api/models"
)

func (s *Server) registerDisplayRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-display",
		Method:      http.MethodGet,
		Path:        "/api/display",
		Summary:     "Display",
		Description: "Check whether the captured X display is reachable and report its root window size",
		Tags:        []string{"system"},
	}, func(ctx context.Context, _ *struct{}) (*models.DisplayResponse, error) {
		// Unreachable displays are reported in the body, not as an error.
		info, err := s.options.CheckDisplay(ctx, s.options.Display)
		if err != nil {
			s.logger.Debug("Display check failed", "display", s.options.Display, "error", err)
		}
		return &models.DisplayResponse{Body: info}, nil
	})
}
