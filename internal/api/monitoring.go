package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/nerrad567/planter-core/internal/monitor"
)

func (s *Server) handleStartMonitoring(w http.ResponseWriter, r *http.Request) {
	s.monitoringCommand(w, r, s.monitor.Start)
}

func (s *Server) handleStopMonitoring(w http.ResponseWriter, r *http.Request) {
	s.monitoringCommand(w, r, s.monitor.Stop)
}

func (s *Server) monitoringCommand(w http.ResponseWriter, r *http.Request, cmd func(context.Context) error) {
	if err := cmd(r.Context()); err != nil {
		if errors.Is(err, monitor.ErrNotRunning) {
			writeUnavailable(w, "monitoring loop not running")
			return
		}
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state": s.monitor.Status().State,
	})
}
