package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/planter-core/internal/monitor"
	"github.com/nerrad567/planter-core/internal/plant"
	"github.com/nerrad567/planter-core/internal/scheduler"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// PlantView is a plant with its derived fields.
type PlantView struct {
	plant.Plant
	PumpID     int  `json:"pump_id"`
	NeedsWater bool `json:"needs_water"`
}

// UpdatePlantRequest is the PATCH /plants/{position} body.
type UpdatePlantRequest struct {
	Active *bool `json:"active"`
}

// CreatePlantRequest is the POST /plants body. Zero watering fields are
// filled from the species catalog, looked up by Species or else by Name.
type CreatePlantRequest struct {
	Name                  string  `json:"name"`
	Species               string  `json:"species,omitempty"`
	Position              *int    `json:"position"`
	WaterAmountML         float64 `json:"water_amount_ml"`
	WateringFrequencyDays int     `json:"watering_frequency_days"`
	Active                *bool   `json:"active"`
}

func newPlantView(p plant.Plant, needing map[int]bool) PlantView {
	return PlantView{Plant: p, PumpID: p.PumpID(), NeedsWater: needing[p.Position]}
}

// needingSet keys the latest snapshot's watering decisions by position.
func (s *Server) needingSet() map[int]bool {
	statuses := s.monitor.Status().Plants
	set := make(map[int]bool, len(statuses))
	for _, ps := range statuses {
		if ps.NeedsWater {
			set[ps.Position] = true
		}
	}
	return set
}

func positionParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	pos, err := strconv.Atoi(chi.URLParam(r, "position"))
	if err != nil || pos < 0 {
		writeBadRequest(w, "position must be a non-negative integer")
		return 0, false
	}
	return pos, true
}

// handleListPlants returns every plant in position order.
func (s *Server) handleListPlants(w http.ResponseWriter, _ *http.Request) {
	needing := s.needingSet()
	plants := s.plants.List()
	views := make([]PlantView, len(plants))
	for i, p := range plants {
		views[i] = newPlantView(p, needing)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"plants": views,
		"count":  len(views),
	})
}

func (s *Server) handleGetPlant(w http.ResponseWriter, r *http.Request) {
	pos, ok := positionParam(w, r)
	if !ok {
		return
	}
	p, err := s.plants.Get(pos)
	if err != nil {
		writeNotFound(w, "plant not found")
		return
	}
	writeJSON(w, http.StatusOK, newPlantView(p, s.needingSet()))
}

// handleCreatePlant registers a plant at a free position.
func (s *Server) handleCreatePlant(w http.ResponseWriter, r *http.Request) {
	var req CreatePlantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Position == nil {
		writeBadRequest(w, "position is required")
		return
	}

	p := plant.Plant{
		Name:                  strings.TrimSpace(req.Name),
		Position:              *req.Position,
		WaterAmountML:         req.WaterAmountML,
		WateringFrequencyDays: req.WateringFrequencyDays,
		Active:                req.Active == nil || *req.Active,
	}
	if req.Species != "" {
		sp, found := plant.LookupSpecies(req.Species)
		if !found {
			writeBadRequest(w, "unknown species: "+req.Species)
			return
		}
		if p.Name == "" {
			p.Name = sp.Name
		}
		sp.Defaults(&p)
	} else if sp, found := plant.LookupSpecies(p.Name); found {
		sp.Defaults(&p)
	}

	if err := s.plants.Add(r.Context(), p); err != nil {
		switch {
		case errors.Is(err, plant.ErrInvalidPlant):
			writeBadRequest(w, err.Error())
		case errors.Is(err, plant.ErrPositionTaken):
			writeError(w, http.StatusConflict, ErrCodeConflict, "position already taken")
		default:
			s.logger.Error("adding plant failed", "position", p.Position, "error", err)
			writeInternalError(w, "failed to add plant")
		}
		return
	}

	created, err := s.plants.Get(p.Position)
	if err != nil {
		writeInternalError(w, "plant added but could not be read back")
		return
	}
	s.logger.Info("plant added", "plant", created.Name, "position", created.Position)
	writeJSON(w, http.StatusCreated, newPlantView(created, s.needingSet()))
}

// handleListSpecies returns the built-in species catalog.
func (s *Server) handleListSpecies(w http.ResponseWriter, _ *http.Request) {
	species := plant.Catalog()
	writeJSON(w, http.StatusOK, map[string]any{
		"species": species,
		"count":   len(species),
	})
}

// handleUpdatePlant toggles automatic watering for a plant.
func (s *Server) handleUpdatePlant(w http.ResponseWriter, r *http.Request) {
	pos, ok := positionParam(w, r)
	if !ok {
		return
	}

	var req UpdatePlantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Active == nil {
		writeBadRequest(w, "active is required")
		return
	}

	p, err := s.plants.SetActive(r.Context(), pos, *req.Active)
	if err != nil {
		if errors.Is(err, plant.ErrPlantNotFound) {
			writeNotFound(w, "plant not found")
			return
		}
		s.logger.Error("updating plant failed", "position", pos, "error", err)
		writeInternalError(w, "failed to update plant")
		return
	}

	s.logger.Info("plant updated", "plant", p.Name, "position", pos, "active", p.Active)
	writeJSON(w, http.StatusOK, newPlantView(p, s.needingSet()))
}

// handleWaterPlant waters one plant now, regardless of schedule.
func (s *Server) handleWaterPlant(w http.ResponseWriter, r *http.Request) {
	pos, ok := positionParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	o, err := s.monitor.WaterNow(ctx, pos)
	if err != nil {
		s.writeCommandError(w, err, o)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"result":  monitor.ResultOf(o),
	})
}

// handleWaterAll waters every plant due by schedule.
func (s *Server) handleWaterAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	outcomes, err := s.monitor.WaterAll(ctx)
	if err != nil {
		s.writeCommandError(w, err, scheduler.Outcome{})
		return
	}

	results := make([]monitor.WateringResult, len(outcomes))
	watered := []string{}
	for i, o := range outcomes {
		results[i] = monitor.ResultOf(o)
		if o.OK() {
			watered = append(watered, o.Plant.Name)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"watered_plants": watered,
		"results":        results,
	})
}

// writeCommandError maps a loop command failure to a response. A pump
// failure still carries the attempt.
func (s *Server) writeCommandError(w http.ResponseWriter, err error, o scheduler.Outcome) {
	switch {
	case errors.Is(err, plant.ErrPlantNotFound):
		writeNotFound(w, "plant not found")
	case errors.Is(err, plant.ErrPlantInactive):
		writeError(w, http.StatusConflict, ErrCodeConflict, "plant is inactive")
	case errors.Is(err, monitor.ErrNotRunning):
		writeUnavailable(w, "monitoring loop not running")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, ErrCodeTimeout, "watering did not finish in time")
	case o.Plant.Name != "":
		s.logger.Warn("manual watering failed", "plant", o.Plant.Name, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"code":    ErrCodePumpFailed,
			"result":  monitor.ResultOf(o),
		})
	default:
		s.logger.Error("watering command failed", "error", err)
		writeInternalError(w, "watering failed")
	}
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	s.writeEvents(w, r, -1)
}

func (s *Server) handlePlantEvents(w http.ResponseWriter, r *http.Request) {
	pos, ok := positionParam(w, r)
	if !ok {
		return
	}
	if _, err := s.plants.Get(pos); err != nil {
		writeNotFound(w, "plant not found")
		return
	}
	s.writeEvents(w, r, pos)
}

func (s *Server) writeEvents(w http.ResponseWriter, r *http.Request, position int) {
	if s.events == nil {
		writeUnavailable(w, "watering log not available")
		return
	}

	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxEventLimit {
			writeBadRequest(w, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	events, err := s.events.List(r.Context(), position, limit)
	if err != nil {
		s.logger.Error("listing watering events failed", "error", err)
		writeInternalError(w, "failed to list watering events")
		return
	}
	if events == nil {
		events = []plant.WateringEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}
