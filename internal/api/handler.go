package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xtding233/wishsim/internal/cache"
	"github.com/xtding233/wishsim/internal/gacha"
	"github.com/xtding233/wishsim/internal/host"
	"github.com/xtding233/wishsim/internal/report"
	"github.com/xtding233/wishsim/internal/sim"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	deps             Deps
	progressInterval time.Duration
}

func NewHandler(deps Deps, progressInterval time.Duration) *Handler {
	if progressInterval <= 0 {
		progressInterval = 100 * time.Millisecond
	}
	return &Handler{deps: deps, progressInterval: progressInterval}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok", "game": h.game()}
	if h.deps.Store != nil {
		if v, err := h.deps.Store.Version(); err == nil {
			resp["schemaVersion"] = v
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) game() string {
	if h.deps.Rules == nil {
		return "genshin"
	}
	return h.deps.Rules.Game()
}

func (h *Handler) table() gacha.Table {
	if h.deps.Rules == nil {
		return gacha.DefaultTable()
	}
	return h.deps.Rules.Table()
}

// simOptions carries the table and limits a submitted job will run under.
func (h *Handler) simOptions() sim.Options {
	return sim.Options{
		Table:         h.table(),
		MaxIterations: h.deps.Host.MaxIterations(),
		MaxCells:      h.deps.Host.MaxCells(),
	}
}

// SimulateRequest is the body of POST /simulations.
type SimulateRequest struct {
	// Session groups requests so a new one supersedes the previous; empty
	// means the request ID.
	Session   string     `json:"session,omitempty"`
	TimeoutMs int64      `json:"timeoutMs,omitempty"`
	Input     *sim.Input `json:"input"`
}

// JobResponse describes a job and, once it is terminal, its outcome.
type JobResponse struct {
	ID         string      `json:"id,omitempty"`
	Session    string      `json:"session,omitempty"`
	State      host.State  `json:"state"`
	Progress   float64     `json:"progress"`
	CreatedAt  *time.Time  `json:"createdAt,omitempty"`
	DurationMs int64       `json:"durationMs,omitempty"`
	Cached     bool        `json:"cached,omitempty"`
	Error      string      `json:"error,omitempty"`
	Result     *sim.Result `json:"result,omitempty"`
}

func jobResponse(j *host.Job, withResult bool) JobResponse {
	created := j.Created
	resp := JobResponse{
		ID:        j.ID,
		Session:   j.Session,
		State:     j.State(),
		Progress:  j.Fraction(),
		CreatedAt: &created,
	}
	if !resp.State.Terminal() {
		return resp
	}
	resp.DurationMs = j.Duration().Milliseconds()
	res, err := j.Result()
	if err != nil {
		resp.Error = err.Error()
	}
	if withResult {
		resp.Result = res
	}
	return resp
}

// Submit handles POST /simulations. A seeded input already in the result
// cache is answered at once with 200; anything else starts a job and
// returns 202.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}
	if req.Input == nil {
		fail(w, badRequest("input is required"))
		return
	}
	if req.TimeoutMs < 0 {
		fail(w, badRequest("timeoutMs must be >= 0"))
		return
	}
	if err := sim.Validate(req.Input, h.simOptions()); err != nil {
		fail(w, err)
		return
	}
	if req.Session == "" {
		req.Session = GetRequestID(r.Context())
	}

	key, ok := cache.Key(req.Input, h.table())
	if ok && h.deps.Results != nil {
		res, hit := h.deps.Results.Get(r.Context(), key)
		if h.deps.Metrics != nil {
			h.deps.Metrics.RecordCache(hit)
		}
		if hit {
			writeJSON(w, http.StatusOK, JobResponse{State: host.StateCompleted, Progress: 1, Cached: true, Result: res})
			return
		}
	}

	job, err := h.deps.Host.Submit(r.Context(), req.Session, req.Input, host.Options{
		Timeout: time.Duration(req.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		fail(w, err)
		return
	}
	if ok && h.deps.Results != nil {
		go h.remember(key, job)
	}
	w.Header().Set("Location", "/api/v1/simulations/"+job.ID)
	writeJSON(w, http.StatusAccepted, jobResponse(job, false))
}

// remember caches the job's result once it completes in full.
func (h *Handler) remember(key string, job *host.Job) {
	<-job.Done()
	if job.State() != host.StateCompleted {
		return
	}
	res, err := job.Result()
	if err != nil {
		return
	}
	h.deps.Results.Put(context.Background(), key, res)
}

func (h *Handler) job(r *http.Request) (*host.Job, error) {
	id := chi.URLParam(r, "jobID")
	j, ok := h.deps.Host.Job(id)
	if !ok {
		return nil, fmt.Errorf("%w: simulation %s", errNotFound, id)
	}
	return j, nil
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.job(r)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobResponse(j, false))
}

func (h *Handler) LatestJob(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "session")
	j, ok := h.deps.Host.Latest(session)
	if !ok {
		fail(w, fmt.Errorf("%w: no simulation in session %s", errNotFound, session))
		return
	}
	writeJSON(w, http.StatusOK, jobResponse(j, false))
}

// CancelJob handles DELETE /simulations/{jobID}. Cancelling a finished job
// is a no-op that still reports its state.
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.job(r)
	if err != nil {
		fail(w, err)
		return
	}
	j.Cancel()
	writeJSON(w, http.StatusOK, jobResponse(j, false))
}

// GetResult handles GET /simulations/{jobID}/result: 409 while running, the
// error status for a failed job, and the (possibly partial) result otherwise.
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	j, err := h.job(r)
	if err != nil {
		fail(w, err)
		return
	}
	switch st := j.State(); {
	case !st.Terminal():
		fail(w, host.ErrRunning)
	case st == host.StateFailed:
		_, err := j.Result()
		writeJSON(w, statusFor(err), jobResponse(j, false))
	default:
		writeJSON(w, http.StatusOK, jobResponse(j, true))
	}
}

// Report handles GET /simulations/{jobID}/report with an HTML page of the
// result, plus the analytical distribution of the first target.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	j, err := h.job(r)
	if err != nil {
		fail(w, err)
		return
	}
	if !j.State().Terminal() {
		fail(w, host.ErrRunning)
		return
	}
	res, _ := j.Result()
	if res == nil {
		fail(w, fmt.Errorf("%w: simulation %s has no result", errNotFound, j.ID))
		return
	}

	var points []gacha.Point
	if in := j.Input; in != nil && len(in.Targets) > 0 {
		banner, err := gacha.ParseBannerType(string(in.Targets[0].BannerType))
		if rules, ok := h.table()[banner]; err == nil && ok {
			points = gacha.Distribution(in.StartState()[banner], rules, gacha.MaxSearchPulls)
		}
	}

	cfg := report.DefaultChartConfig()
	if title := r.URL.Query().Get("title"); title != "" {
		cfg.Title = title
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.Render(w, res, points, cfg); err != nil {
		h.deps.Logger.Error("render report", "job_id", j.ID, "err", err)
	}
}
