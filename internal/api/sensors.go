package api

import (
	"net/http"

	"github.com/septivank/sensor-telemetry-api/internal/logging"
	"go.uber.org/zap"
)

// handleCurrentReadings returns the newest reading of every sensor.
func (s *Server) handleCurrentReadings(w http.ResponseWriter, r *http.Request) {
	current, err := s.readings.GetCurrentReadings(r.Context())
	if err != nil {
		logging.FromContext(r.Context(), s.logger).Error("failed to load current readings", zap.Error(err))
		writeInternalError(w, "failed to load current readings")
		return
	}
	writeJSON(w, http.StatusOK, current)
}
