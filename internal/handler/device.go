package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/askelund/dagsplan/internal/auth"
	"github.com/askelund/dagsplan/internal/ledger"
	"github.com/askelund/dagsplan/internal/metrics"
	"github.com/askelund/dagsplan/internal/middleware"
	"github.com/askelund/dagsplan/internal/model"
	"github.com/askelund/dagsplan/internal/pairing"
	"github.com/askelund/dagsplan/internal/store"
	"github.com/askelund/dagsplan/internal/websocket"
)

// DeviceHandler serves the child-facing tablet endpoints. Pairing state
// lives in cookies on the device itself; each request rebuilds the gate
// from them.
type DeviceHandler struct {
	childStore    *store.ChildStore
	activityStore *store.ActivityStore
	rewardStore   *store.RewardStore
	sessionStore  *store.SessionStore
	ledger        *ledger.Service
	hub           *websocket.Hub
	secureCookies bool
	logger        *slog.Logger
	now           func() time.Time
}

func NewDeviceHandler(
	cs *store.ChildStore,
	as *store.ActivityStore,
	rs *store.RewardStore,
	ss *store.SessionStore,
	lg *ledger.Service,
	hub *websocket.Hub,
	secureCookies bool,
	logger *slog.Logger,
) *DeviceHandler {
	return &DeviceHandler{
		childStore:    cs,
		activityStore: as,
		rewardStore:   rs,
		sessionStore:  ss,
		ledger:        lg,
		hub:           hub,
		secureCookies: secureCookies,
		logger:        logger,
		now:           time.Now,
	}
}

func (h *DeviceHandler) broadcast(familyID int64, ev websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(familyID, ev)
	}
}

func (h *DeviceHandler) gate(w http.ResponseWriter, r *http.Request) *pairing.Gate {
	return pairing.NewGate(middleware.CookieKV(w, r), h.childStore)
}

// childSummary is the child as the tablet sees it. The PIN stays out.
type childSummary struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
	TotalPoints int    `json:"total_points"`
}

func summarize(c *model.Child) childSummary {
	return childSummary{
		ID:          c.ID,
		DisplayName: c.DisplayName,
		Avatar:      c.Avatar,
		TotalPoints: c.TotalPoints,
	}
}

// Status reports the device's gate state and, when paired, the bound child.
func (h *DeviceHandler) Status(w http.ResponseWriter, r *http.Request) {
	gate := h.gate(w, r)

	resp := map[string]any{"state": gate.State().String()}
	if id, ok := gate.PairedChildID(); ok {
		child, err := h.childStore.GetByID(id)
		if err != nil {
			h.logger.Error("get paired child", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if child == nil {
			// The profile was deleted; the pairing is dead weight.
			gate.Reset()
			resp["state"] = pairing.Unpaired.String()
		} else {
			resp["child"] = summarize(child)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Pair binds this device to one of the parent's children and logs the
// parent out on the device, handing it over to the child.
func (h *DeviceHandler) Pair(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChildID int64 `json:"child_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	pc, _ := auth.ParentFromContext(r.Context())
	child, err := h.childStore.GetByID(req.ChildID)
	if err != nil {
		h.logger.Error("get child", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to pair device")
		return
	}
	if child == nil || child.ParentID != pc.UserID {
		writeError(w, http.StatusBadRequest, "child not found")
		return
	}

	h.gate(w, r).Pair(child.ID, child.ParentID)

	// The tablet now belongs to the child: drop the parent session.
	if err := h.sessionStore.Delete(pc.SessionID); err != nil {
		h.logger.Error("delete session on pair", "error", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"state": pairing.Paired.String(),
		"child": summarize(child),
	})
}

// EnterPIN attempts the child sign-in. A wrong or malformed PIN answers 401
// so the tablet can clear the input and show its error state.
func (h *DeviceHandler) EnterPIN(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PIN string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	gate := h.gate(w, r)
	marker, err := gate.EnterPIN(req.PIN)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, marker)
	case errors.Is(err, pairing.ErrInvalidPIN), errors.Is(err, pairing.ErrWrongPIN):
		writeError(w, http.StatusUnauthorized, "wrong_pin")
	case errors.Is(err, pairing.ErrNotPaired):
		writeError(w, http.StatusConflict, "device not paired")
	case errors.Is(err, pairing.ErrChildNotFound):
		gate.Reset()
		writeError(w, http.StatusConflict, "device not paired")
	default:
		h.logger.Error("enter pin", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// Logout ends the child session. The pairing survives so the next morning
// only needs the PIN again.
func (h *DeviceHandler) Logout(w http.ResponseWriter, r *http.Request) {
	gate := h.gate(w, r)
	gate.Logout()
	writeJSON(w, http.StatusOK, map[string]string{"state": gate.State().String()})
}

// Reset unbinds the device entirely. The UI confirms before calling this.
func (h *DeviceHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.gate(w, r).Reset()
	writeJSON(w, http.StatusOK, map[string]string{"state": pairing.Unpaired.String()})
}

// Activities lists the signed-in child's schedule for a date, today by
// default.
func (h *DeviceHandler) Activities(w http.ResponseWriter, r *http.Request) {
	cc, _ := auth.ChildFromContext(r.Context())

	date := r.URL.Query().Get("date")
	if date == "" {
		date = h.now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	activities, err := h.activityStore.List(store.ListQuery{ChildID: cc.ChildID, Date: date})
	if err != nil {
		h.logger.Error("list child activities", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list activities")
		return
	}
	if activities == nil {
		activities = []model.Activity{}
	}
	writeJSON(w, http.StatusOK, activities)
}

// Complete marks an activity done and credits bonus points through the
// ledger.
func (h *DeviceHandler) Complete(w http.ResponseWriter, r *http.Request) {
	cc, _ := auth.ChildFromContext(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	result, err := h.ledger.CompleteActivity(id, cc.ChildID)
	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, ledger.ErrNotAssigned):
		writeError(w, http.StatusNotFound, "activity not found")
		return
	case errors.Is(err, ledger.ErrAlreadyCompleted):
		writeError(w, http.StatusConflict, "activity already completed")
		return
	default:
		h.logger.Error("complete activity", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to complete activity")
		return
	}

	metrics.ActivityCompleted()
	h.broadcast(cc.ParentID, websocket.NewEvent("activity", "completed", result.Activity.ID, cc.ChildID))
	writeJSON(w, http.StatusOK, result)
}

// Rewards lists the child's claimable rewards.
func (h *DeviceHandler) Rewards(w http.ResponseWriter, r *http.Request) {
	cc, _ := auth.ChildFromContext(r.Context())

	rewards, err := h.rewardStore.ListClaimable(cc.ChildID)
	if err != nil {
		h.logger.Error("list claimable rewards", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list rewards")
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

// Claim redeems a reward through the ledger.
func (h *DeviceHandler) Claim(w http.ResponseWriter, r *http.Request) {
	cc, _ := auth.ChildFromContext(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	result, err := h.ledger.RedeemReward(id, cc.ChildID)
	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrNotFound):
		writeError(w, http.StatusNotFound, "reward not found")
		return
	case errors.Is(err, ledger.ErrNotClaimable):
		writeError(w, http.StatusConflict, "reward is not claimable")
		return
	case errors.Is(err, ledger.ErrInsufficientPoints):
		writeError(w, http.StatusConflict, "not enough points")
		return
	default:
		h.logger.Error("claim reward", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to claim reward")
		return
	}

	metrics.RewardRedeemed()
	h.broadcast(cc.ParentID, websocket.NewEvent("reward", "claimed", result.Reward.ID, cc.ChildID))
	writeJSON(w, http.StatusOK, result)
}
