package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/screenrelay/internal/api/models"
	"github.com/smazurov/screenrelay/internal/ffmpeg"
)

// registerEncoderRoutes registers the encoder cache endpoints.
func (s *Server) registerEncoderRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-encoder",
		Method:      http.MethodGet,
		Path:        "/api/encoder",
		Summary:     "Get Encoder",
		Description: "Show the cached ffmpeg path, capture capability and probe attempts",
		Tags:        []string{"encoder"},
	}, func(_ context.Context, _ *struct{}) (*models.EncoderResponse, error) {
		var enc *ffmpeg.Encoder
		if s.options.Encoders != nil {
			enc = s.options.Encoders.Current()
		}
		return &models.EncoderResponse{Body: encoderToAPI(enc)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "refresh-encoder",
		Method:      http.MethodPost,
		Path:        "/api/encoder/refresh",
		Summary:     "Refresh Encoder",
		Description: "Resolve and probe ffmpeg again. On failure the previous encoder stays in use.",
		Tags:        []string{"encoder"},
		Errors:      []int{422, 500, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.EncoderResponse, error) {
		if s.options.Encoders == nil {
			return nil, huma.Error503ServiceUnavailable("encoder negotiation is not available")
		}
		enc, err := s.options.Encoders.Negotiate(ctx)
		if err != nil {
			return nil, negotiationErrorToHuma(err)
		}
		return &models.EncoderResponse{Body: encoderToAPI(enc)}, nil
	})
}

func encoderToAPI(enc *ffmpeg.Encoder) models.EncoderData {
	if enc == nil {
		return models.EncoderData{}
	}
	probedAt := enc.ProbedAt
	data := models.EncoderData{
		Ready:      true,
		Path:       enc.Path,
		Capability: string(enc.Capability),
		Source:     string(enc.Source),
		ProbedAt:   &probedAt,
		Attempts:   make([]models.AttemptData, 0, len(enc.Attempts)),
	}
	for _, a := range enc.Attempts {
		attempt := models.AttemptData{
			Format:   string(a.Format),
			Outcome:  string(a.Outcome),
			ExitCode: a.ExitCode,
		}
		if a.Err != nil {
			attempt.Error = a.Err.Error()
		}
		data.Attempts = append(data.Attempts, attempt)
	}
	return data
}

func negotiationErrorToHuma(err error) error {
	switch {
	case errors.Is(err, ffmpeg.ErrResolution):
		return huma.Error422UnprocessableEntity("ffmpeg could not be resolved", err)
	case errors.Is(err, ffmpeg.ErrCapabilityNotFound):
		return huma.Error422UnprocessableEntity("no supported screen capture format", err)
	default:
		return huma.Error500InternalServerError("encoder negotiation failed", err)
	}
}
