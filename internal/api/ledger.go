package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/xtding233/wishsim/internal/ledger"
	"github.com/xtding233/wishsim/internal/pricing"
)

func (h *Handler) records(r *http.Request) (ledger.Records, error) {
	return h.deps.Store.Records(r.Context())
}

func (h *Handler) SaveSnapshot(w http.ResponseWriter, r *http.Request) {
	var snap ledger.Snapshot
	if err := decode(r, &snap); err != nil {
		fail(w, err)
		return
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = h.deps.Now()
	}
	if snap.Wallet != snap.Wallet.Clamp() {
		fail(w, badRequest("snapshot balances must be >= 0"))
		return
	}
	if err := h.deps.Store.SaveSnapshot(r.Context(), &snap); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (h *Handler) LatestSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.Store.LatestSnapshot(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) AddPrimogems(w http.ResponseWriter, r *http.Request) {
	var e ledger.PrimogemEntry
	if err := decode(r, &e); err != nil {
		fail(w, err)
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = h.deps.Now()
	}
	if err := h.deps.Store.AddPrimogemEntry(r.Context(), &e); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) ListPrimogems(w http.ResponseWriter, r *http.Request) {
	es, err := h.deps.Store.PrimogemEntries(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	if es == nil {
		es = []ledger.PrimogemEntry{}
	}
	writeJSON(w, http.StatusOK, es)
}

func (h *Handler) AddFates(w http.ResponseWriter, r *http.Request) {
	var e ledger.FateEntry
	if err := decode(r, &e); err != nil {
		fail(w, err)
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = h.deps.Now()
	}
	if err := h.deps.Store.AddFateEntry(r.Context(), &e); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) ListFates(w http.ResponseWriter, r *http.Request) {
	es, err := h.deps.Store.FateEntries(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	if es == nil {
		es = []ledger.FateEntry{}
	}
	writeJSON(w, http.StatusOK, es)
}

// Available handles GET /ledger/available.
func (h *Handler) Available(w http.ResponseWriter, r *http.Request) {
	rec, err := h.records(r)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ledger.AvailablePulls(rec, h.deps.Rates(), h.deps.Now()))
}

// Income handles GET /ledger/income?window=30&purchases=false.
func (h *Handler) Income(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	window, err := intParam(q.Get("window"), h.deps.IncomeWindowDays)
	if err != nil || window < 1 {
		fail(w, badRequest("window must be a positive number of days"))
		return
	}
	purchases, err := boolParam(q.Get("purchases"))
	if err != nil {
		fail(w, err)
		return
	}
	rec, err := h.records(r)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ledger.Income(rec.Primogems, rec.Fates, window, purchases, h.deps.Rates(), h.deps.Now()))
}

// Buckets handles GET /ledger/buckets?interval=week|month&source=&start=&end=&purchases=.
func (h *Handler) Buckets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ledger.BucketFilter{Interval: ledger.Interval(q.Get("interval"))}
	switch f.Interval {
	case "":
		f.Interval = ledger.Week
	case ledger.Week, ledger.Month:
	default:
		fail(w, badRequest("interval must be week or month"))
		return
	}
	if src := ledger.Source(q.Get("source")); src != "" && src != "all" {
		if !src.Valid() {
			fail(w, badRequest("unknown source %q", src))
			return
		}
		f.Source = src
	}
	var err error
	if f.Start, err = timeParam(q.Get("start")); err != nil {
		fail(w, err)
		return
	}
	if f.End, err = timeParam(q.Get("end")); err != nil {
		fail(w, err)
		return
	}
	if f.IncludePurchases, err = boolParam(q.Get("purchases")); err != nil {
		fail(w, err)
		return
	}
	es, err := h.deps.Store.PrimogemEntries(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ledger.Buckets(es, f))
}

// Budget handles GET /ledger/budget: the starting pulls and income a
// ledger-backed scenario would run with.
func (h *Handler) Budget(w http.ResponseWriter, r *http.Request) {
	rec, err := h.records(r)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ledger.Summarize(rec, h.deps.IncomeWindowDays, h.deps.Rates(), h.deps.Now()))
}

// TopUpRequest asks for the cheapest purchase covering a pull deficit.
// With TargetPulls set the deficit and held crystals come from the ledger.
type TopUpRequest struct {
	DeficitPulls int                    `json:"deficitPulls,omitempty"`
	TargetPulls  int                    `json:"targetPulls,omitempty"`
	HeldTokens   int                    `json:"heldTokens,omitempty"`
	BudgetCents  int                    `json:"budgetCents,omitempty"`
	FirstTime    pricing.FirstTimeState `json:"firstTime,omitempty"`
}

// TopUp handles POST /pricing/top-up.
func (h *Handler) TopUp(w http.ResponseWriter, r *http.Request) {
	var req TopUpRequest
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}
	if req.DeficitPulls < 0 || req.TargetPulls < 0 || req.HeldTokens < 0 || req.BudgetCents < 0 {
		fail(w, badRequest("pull and token counts must be >= 0"))
		return
	}
	rate := h.deps.Rates().Primogem
	if req.BudgetCents > 0 {
		plan := pricing.MaxTokensUnderBudget(h.deps.Catalog, req.BudgetCents, req.FirstTime)
		plan.Pulls = rate.DrawsFor(plan.TotalTokens + req.HeldTokens)
		writeJSON(w, http.StatusOK, plan)
		return
	}
	if req.TargetPulls > 0 {
		rec, err := h.records(r)
		if err != nil {
			fail(w, err)
			return
		}
		avail := ledger.AvailablePulls(rec, h.deps.Rates(), h.deps.Now())
		req.DeficitPulls = max(0, req.TargetPulls-avail.Pulls)
		req.HeldTokens = (avail.Resources.Primogems + avail.Resources.GenesisCrystals) % rate.PerDraw
	}
	writeJSON(w, http.StatusOK, pricing.ForPulls(h.deps.Catalog, rate, req.DeficitPulls, req.HeldTokens, req.FirstTime))
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func boolParam(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, badRequest("invalid boolean %q", s)
	}
	return b, nil
}

// timeParam accepts RFC 3339 or a plain date.
func timeParam(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, badRequest("invalid time %q", s)
	}
	return t, nil
}
