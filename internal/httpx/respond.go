package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/tracklet-io/tracklet/internal/apperr"
	"github.com/tracklet-io/tracklet/internal/model"
)

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError classifies err, maps it to a status code, and emits the
// uniform error envelope. idRun may be nil when no run was created
// before the failure.
func WriteError(w http.ResponseWriter, service, routeName string, err error, idRun *int64) {
	WriteErrorEnvelope(w, service, routeName, apperr.StatusCode(err), err.Error(), apperr.DetailsOf(err), idRun)
}

// WriteErrorEnvelope emits the error envelope with an explicit status.
func WriteErrorEnvelope(w http.ResponseWriter, service, routeName string, status int, message, details string, idRun *int64) {
	WriteJSON(w, status, model.ErrorResponse{
		Service:    service,
		RouteName:  routeName,
		Error:      message,
		IDRun:      idRun,
		StatusCode: status,
		Details:    details,
	})
}
