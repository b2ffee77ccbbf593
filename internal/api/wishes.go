package api

import (
	"net/http"

	"github.com/xtding233/wishsim/internal/gacha"
)

type ImportWishesRequest struct {
	Wishes []gacha.Wish `json:"wishes"`
}

// ReplayRequest replays the given wishes, or the stored history when
// Wishes is omitted.
type ReplayRequest struct {
	Wishes        []gacha.Wish `json:"wishes,omitempty"`
	ChartedWeapon string       `json:"chartedWeapon,omitempty"`
}

type ReplayResponse struct {
	Snapshot gacha.Snapshot            `json:"snapshot"`
	Wishes   map[string]gacha.WishInfo `json:"wishes"`
}

func validateWishes(ws []gacha.Wish) error {
	for i, w := range ws {
		if _, err := gacha.ParseBannerType(string(w.Banner)); err != nil {
			return badRequest("wishes[%d]: %v", i, err)
		}
		if w.Rarity < 3 || w.Rarity > 5 {
			return badRequest("wishes[%d]: rarity must be 3, 4 or 5", i)
		}
		if w.Timestamp.IsZero() {
			return badRequest("wishes[%d]: timestamp is required", i)
		}
	}
	return nil
}

func (h *Handler) ListWishes(w http.ResponseWriter, r *http.Request) {
	ws, err := h.deps.Store.Wishes(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	if ws == nil {
		ws = []gacha.Wish{}
	}
	writeJSON(w, http.StatusOK, ws)
}

// ImportWishes handles POST /wishes. Wishes are upserted by ID, so an
// overlapping export can be imported again.
func (h *Handler) ImportWishes(w http.ResponseWriter, r *http.Request) {
	var req ImportWishesRequest
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}
	if err := validateWishes(req.Wishes); err != nil {
		fail(w, err)
		return
	}
	if err := h.deps.Store.AddWishes(r.Context(), req.Wishes); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"imported": len(req.Wishes)})
}

func (h *Handler) ReplayWishes(w http.ResponseWriter, r *http.Request) {
	var req ReplayRequest
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}
	wishes := req.Wishes
	if wishes == nil {
		var err error
		if wishes, err = h.deps.Store.Wishes(r.Context()); err != nil {
			fail(w, err)
			return
		}
	} else if err := validateWishes(wishes); err != nil {
		fail(w, err)
		return
	}
	snap, info := gacha.Replay(wishes, h.table(), req.ChartedWeapon)
	writeJSON(w, http.StatusOK, ReplayResponse{Snapshot: snap, Wishes: info})
}
