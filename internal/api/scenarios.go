package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xtding233/wishsim/internal/sim"
	"github.com/xtding233/wishsim/internal/store"
)

type ScenarioRequest struct {
	Name      string    `json:"name"`
	Game      string    `json:"game,omitempty"`
	Input     sim.Input `json:"input"`
	UseLedger bool      `json:"useLedger"`
}

func (h *Handler) scenarioRequest(r *http.Request) (ScenarioRequest, error) {
	var req ScenarioRequest
	if err := decode(r, &req); err != nil {
		return req, err
	}
	if req.Name == "" {
		return req, badRequest("name is required")
	}
	if req.Game == "" {
		req.Game = h.game()
	}
	if err := sim.Validate(&req.Input, h.simOptions()); err != nil {
		return req, err
	}
	return req, nil
}

func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	scs, err := h.deps.Store.Scenarios(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scs)
}

func (h *Handler) CreateScenario(w http.ResponseWriter, r *http.Request) {
	req, err := h.scenarioRequest(r)
	if err != nil {
		fail(w, err)
		return
	}
	sc := &store.Scenario{Name: req.Name, Game: req.Game, Input: req.Input, UseLedger: req.UseLedger}
	if err := h.deps.Store.SaveScenario(r.Context(), sc); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

func (h *Handler) GetScenario(w http.ResponseWriter, r *http.Request) {
	sc, err := h.deps.Store.Scenario(r.Context(), chi.URLParam(r, "scenarioID"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (h *Handler) UpdateScenario(w http.ResponseWriter, r *http.Request) {
	sc, err := h.deps.Store.Scenario(r.Context(), chi.URLParam(r, "scenarioID"))
	if err != nil {
		fail(w, err)
		return
	}
	req, err := h.scenarioRequest(r)
	if err != nil {
		fail(w, err)
		return
	}
	sc.Name, sc.Game, sc.Input, sc.UseLedger = req.Name, req.Game, req.Input, req.UseLedger
	if err := h.deps.Store.SaveScenario(r.Context(), sc); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (h *Handler) DeleteScenario(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Store.DeleteScenario(r.Context(), chi.URLParam(r, "scenarioID")); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RunScenario handles POST /scenarios/{scenarioID}/run. The run is persisted
// by the host recorder when it finishes.
func (h *Handler) RunScenario(w http.ResponseWriter, r *http.Request) {
	job, err := h.deps.Projector.Run(r.Context(), chi.URLParam(r, "scenarioID"))
	if err != nil {
		fail(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/simulations/"+job.ID)
	writeJSON(w, http.StatusAccepted, jobResponse(job, false))
}

// ListRuns handles GET /scenarios/{scenarioID}/runs?limit=N, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "scenarioID")
	if _, err := h.deps.Store.Scenario(r.Context(), id); err != nil {
		fail(w, err)
		return
	}
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			fail(w, badRequest("limit must be a positive integer"))
			return
		}
		limit = n
	}
	runs, err := h.deps.Store.Runs(r.Context(), id, limit)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.deps.Store.Run(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}
