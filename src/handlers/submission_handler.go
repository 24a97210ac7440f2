package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/username/kabutax/backend/src/logger"
	"github.com/username/kabutax/backend/src/models"
	"github.com/username/kabutax/backend/src/processors"
	"github.com/username/kabutax/backend/src/security/validation"
	"github.com/username/kabutax/backend/src/services"
	"github.com/username/kabutax/backend/src/utils"
)

type SubmissionHandler struct {
	submissionService services.SubmissionService
}

func NewSubmissionHandler(service services.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{
		submissionService: service,
	}
}

// HandleSubmission runs one filing end to end. When email delivery succeeds
// the response is a small JSON acknowledgement; otherwise the PDF itself is
// streamed back as a download.
func (h *SubmissionHandler) HandleSubmission(w http.ResponseWriter, r *http.Request) {
	var input models.SubmissionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		logger.L.Warn("Failed to decode submission payload", "error", err)
		utils.SendJSONError(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	outcome, err := h.submissionService.ProcessSubmission(input)
	if err != nil {
		switch {
		case errors.Is(err, validation.ErrValidationFailed):
			logger.L.Warn("Submission rejected by validation", "email", input.Email, "error", err)
			utils.SendJSONError(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, processors.ErrHoldingsExceeded):
			logger.L.Warn("Submission rejected: sale exceeds holdings", "email", input.Email, "error", err)
			utils.SendJSONError(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, processors.ErrRateDataUnavailable):
			logger.L.Error("Exchange rate data unavailable for submission", "currency", input.Currency, "error", err)
			utils.SendJSONError(w, fmt.Sprintf("Exchange rate data unavailable for %s", input.Currency), http.StatusServiceUnavailable)
		default:
			logger.L.Error("Internal error processing submission", "email", input.Email, "error", err)
			utils.SendJSONError(w, "An internal error occurred while processing the submission. Please try again later.", http.StatusInternalServerError)
		}
		return
	}

	if outcome.Emailed {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":        true,
			"reference": outcome.Reference,
			"message":   "Report emailed successfully",
		})
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", outcome.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(outcome.PDF); err != nil {
		logger.L.Error("Error streaming PDF response", "error", err)
	}
}
