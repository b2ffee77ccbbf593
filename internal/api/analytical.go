package api

import (
	"fmt"
	"net/http"

	"github.com/xtding233/wishsim/internal/gacha"
	"github.com/xtding233/wishsim/internal/game"
)

// AnalyticalRequest is shared by the three calculators; each reads the
// fields it needs.
type AnalyticalRequest struct {
	BannerType gacha.BannerType `json:"bannerType,omitempty"`
	State      gacha.State      `json:"state"`
	// Rules overrides individual fields of the loaded banner rules.
	Rules *game.Overrides `json:"rules,omitempty"`

	MaxPulls       int     `json:"maxPulls,omitempty"`
	AvailablePulls int     `json:"availablePulls,omitempty"`
	Targets        int     `json:"targets,omitempty"`
	Probability    float64 `json:"probability,omitempty"`
	Days           float64 `json:"days,omitempty"`
}

func (h *Handler) analyticalInput(r *http.Request) (AnalyticalRequest, gacha.Rules, error) {
	var req AnalyticalRequest
	if err := decode(r, &req); err != nil {
		return req, nil, err
	}
	banner, err := gacha.ParseBannerType(string(req.BannerType))
	if err != nil {
		return req, nil, badRequest("%v", err)
	}
	req.BannerType = banner
	if req.State.Pity < 0 || req.State.RadiantStreak < 0 || req.State.FatePoints < 0 {
		return req, nil, badRequest("state counters must be >= 0")
	}
	rules, err := h.rulesFor(banner, req.Rules)
	return req, rules, err
}

// rulesFor returns the live rules of banner, or the loaded rules with o
// applied when o is set.
func (h *Handler) rulesFor(banner gacha.BannerType, o *game.Overrides) (gacha.Rules, error) {
	if o == nil || h.deps.Resolver == nil {
		if o != nil {
			return nil, badRequest("rule overrides are not available")
		}
		rules, ok := h.table()[banner]
		if !ok {
			return nil, fmt.Errorf("%w: no rules loaded for %s", errNotFound, banner)
		}
		return rules, nil
	}
	_, br, err := h.deps.Resolver.Resolve(h.game(), banner, *o)
	if err != nil {
		return nil, err
	}
	return gacha.Compile(banner, br)
}

// Distribution handles POST /analytical/distribution.
func (h *Handler) Distribution(w http.ResponseWriter, r *http.Request) {
	req, rules, err := h.analyticalInput(r)
	if err != nil {
		fail(w, err)
		return
	}
	maxPulls := req.MaxPulls
	if maxPulls <= 0 || maxPulls > gacha.MaxSearchPulls {
		maxPulls = gacha.MaxSearchPulls
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bannerType":   req.BannerType,
		"distribution": gacha.Distribution(req.State, rules, maxPulls),
	})
}

// SingleTarget handles POST /analytical/single-target.
func (h *Handler) SingleTarget(w http.ResponseWriter, r *http.Request) {
	req, rules, err := h.analyticalInput(r)
	if err != nil {
		fail(w, err)
		return
	}
	if req.AvailablePulls < 0 {
		fail(w, badRequest("availablePulls must be >= 0"))
		return
	}
	writeJSON(w, http.StatusOK, gacha.SingleTarget(req.State, rules, req.AvailablePulls))
}

// RequiredIncome handles POST /analytical/required-income.
func (h *Handler) RequiredIncome(w http.ResponseWriter, r *http.Request) {
	req, rules, err := h.analyticalInput(r)
	if err != nil {
		fail(w, err)
		return
	}
	est, err := gacha.RequiredIncome(req.Targets, req.Probability, req.Days, req.State, rules)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, est)
}

// GetRules handles GET /rules: the flat rules of every banner type.
func (h *Handler) GetRules(w http.ResponseWriter, r *http.Request) {
	out := gacha.DefaultRules()
	if h.deps.Resolver != nil {
		for _, b := range gacha.BannerTypes {
			_, br, err := h.deps.Resolver.Resolve(h.game(), b, game.Overrides{})
			if err != nil {
				fail(w, err)
				return
			}
			out[b] = br
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"game": h.game(), "banners": out})
}

// ReloadRules handles POST /rules/reload. A bad rule file leaves the
// previous table live and answers 400.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	if h.deps.Rules == nil {
		fail(w, fmt.Errorf("%w: no rule source configured", errNotFound))
		return
	}
	err := h.deps.Rules.Reload()
	if h.deps.Metrics != nil {
		h.deps.Metrics.RecordReload()
	}
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded", "game": h.game()})
}
