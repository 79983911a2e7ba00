package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/planter-core/internal/hardware"
)

// defaultHistoryLimit is used when /sensors/history has no limit.
const defaultHistoryLimit = 10

// handleStatus returns the latest snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Status())
}

// handleConfig returns the effective configuration view.
func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	if s.settings == nil {
		writeNotFound(w, "configuration view not available")
		return
	}
	writeJSON(w, http.StatusOK, s.settings)
}

// handleSensors returns the latest reading and its classification.
func (s *Server) handleSensors(w http.ResponseWriter, _ *http.Request) {
	snap := s.monitor.Status()
	if snap.LastReading == nil {
		writeUnavailable(w, "no sensor reading yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reading":        snap.LastReading,
		"water_tank_pct": snap.WaterTankPct,
		"validation":     snap.Validation,
		"cycle":          snap.Cycle,
	})
}

// handleSensorHistory returns recent readings, oldest first.
// limit defaults to 10; limit=0 returns everything held.
func (s *Server) handleSensorHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	readings := s.monitor.History(limit)
	if readings == nil {
		readings = []hardware.Reading{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"history":        readings,
		"count":          len(readings),
		"total_readings": s.monitor.Status().HistoryCount,
	})
}
