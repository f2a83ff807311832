package httpadapter

import (
	"net/http"
	"time"

	"github.com/neurowatch/neuromonitor/internal/core/domain"
)

const gateBlockedCode = "NO_MEDICAL_REPORT"

// gateBlockedResponse mirrors the report status payload so clients can reuse
// the same gate handling for both surfaces.
type gateBlockedResponse struct {
	Error                    string    `json:"error"`
	Code                     string    `json:"code"`
	Action                   string    `json:"action"`
	HasMedicalReport         bool      `json:"has_medical_report"`
	CanProceedWithMonitoring bool      `json:"can_proceed_with_monitoring"`
	Timestamp                time.Time `json:"timestamp"`
}

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNoMedicalReport):
		return http.StatusForbidden
	case domain.IsKind(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrSessionComplete), domain.IsKind(err, domain.ErrQuestionPending):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError translates a usecase error into its HTTP shape. A closed
// gate gets the advisory body instead of the bare error string so patients
// see the reviewed wording, not an internal message.
func (rt *Router) writeDomainError(w http.ResponseWriter, err error) {
	if domain.IsKind(err, domain.ErrNoMedicalReport) {
		writeJSON(w, http.StatusForbidden, gateBlockedResponse{
			Error:     rt.advisory.Message,
			Code:      gateBlockedCode,
			Action:    rt.advisory.Action,
			Timestamp: time.Now().UTC(),
		})
		return
	}
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
