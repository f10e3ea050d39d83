package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/mounthank/go-imagegen/internal/generation"
)

// Generate accepts {prompt, model, parameters}, runs the model and returns
// the provider's raw output plus a diagnostic echo. Provider failures are
// reported as a 500 with the underlying message; they never propagate.
func Generate(w http.ResponseWriter, r *http.Request, svc *generation.Service) {
	var req generation.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "Invalid request body",
		})
		return
	}

	result, err := svc.Generate(r.Context(), req)
	if err != nil {
		var pf *generation.ProviderFailure
		switch {
		case errors.Is(err, generation.ErrPromptRequired):
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": "Prompt is required",
			})
		case errors.Is(err, generation.ErrUnknownModel):
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":   "Unknown model",
				"details": err.Error(),
			})
		case errors.As(err, &pf):
			log.Println("image generation failed:", pf.Err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"error":   "Failed to generate image",
				"details": pf.Err.Error(),
				"debug":   map[string]any{"error": pf.Err.Error()},
			})
		default:
			log.Println("image generation failed:", err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"error":   "Failed to generate image",
				"details": err.Error(),
				"debug":   map[string]any{"error": err.Error()},
			})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"output": result.Output,
		"debug":  result.Debug,
	})
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Println("failed to write response:", err)
	}
}
