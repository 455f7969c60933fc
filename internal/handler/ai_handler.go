package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// maxAdvisorBody caps the JSON body accepted by the AI pass-through routes.
const maxAdvisorBody = 1 << 20

type advisorFunc func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// advisorHandler relays the request body to the AI service and writes its
// answer back unchanged.
func advisorHandler(operation string, call advisorFunc, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/ai/"+operation)
		defer span.End()

		body, err := io.ReadAll(io.LimitReader(r.Body, maxAdvisorBody+1))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(body) > maxAdvisorBody {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}

		resp, err := call(ctx, body)
		if err != nil {
			span.RecordError(err)
			handleServiceError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(resp)
	}
}
