package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/screenrelay/internal/api/models"
	"github.com/smazurov/screenrelay/internal/process"
)

// registerSessionRoutes registers viewer session endpoints.
func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-sessions",
		Method:      http.MethodGet,
		Path:        "/api/sessions",
		Summary:     "List Sessions",
		Description: "List active viewer sessions and their encoder state",
		Tags:        []string{"sessions"},
	}, func(_ context.Context, _ *struct{}) (*models.SessionsResponse, error) {
		sessions := []process.JobInfo{}
		if s.options.Sessions != nil {
			sessions = append(sessions, s.options.Sessions.List()...)
		}
		return &models.SessionsResponse{
			Body: models.SessionsData{Sessions: sessions, Count: len(sessions)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "stop-session",
		Method:        http.MethodDelete,
		Path:          "/api/sessions/{id}",
		Summary:       "Stop Session",
		Description:   "Stop a viewer's encoder. The viewer's response ends once the encoder exits.",
		Tags:          []string{"sessions"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{404},
	}, func(_ context.Context, input *models.SessionIDInput) (*struct{}, error) {
		if s.options.Sessions == nil {
			return nil, huma.Error404NotFound("session not found")
		}
		if err := s.options.Sessions.Stop(input.ID); err != nil {
			if errors.Is(err, process.ErrNotFound) {
				return nil, huma.Error404NotFound("session not found", err)
			}
			return nil, huma.Error500InternalServerError("failed to stop session", err)
		}
		s.logger.Info("Session stopped by operator", "session_id", input.ID)
		return nil, nil
	})
}
