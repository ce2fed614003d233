package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/askelund/dagsplan/internal/auth"
	"github.com/askelund/dagsplan/internal/model"
	"github.com/askelund/dagsplan/internal/store"
	"github.com/askelund/dagsplan/internal/websocket"
)

type RewardHandler struct {
	rewardStore *store.RewardStore
	childStore  *store.ChildStore
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewRewardHandler(rs *store.RewardStore, cs *store.ChildStore, hub *websocket.Hub, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{rewardStore: rs, childStore: cs, hub: hub, logger: logger}
}

func (h *RewardHandler) broadcast(familyID int64, ev websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(familyID, ev)
	}
}

type rewardRequest struct {
	ChildID        int64  `json:"child_id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Icon           string `json:"icon"`
	PointsRequired int    `json:"points_required"`
	AudioURL       string `json:"audio_url"`
	ImageURL       string `json:"image_url"`
}

func (req *rewardRequest) validate() string {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return "title is required"
	}
	if req.PointsRequired <= 0 {
		return "points_required must be positive"
	}
	if req.Icon == "" {
		req.Icon = "star"
	}
	return ""
}

func (h *RewardHandler) checkChildOwned(w http.ResponseWriter, r *http.Request, childID int64) bool {
	child, err := h.childStore.GetByID(childID)
	if err != nil {
		h.logger.Error("get child", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check child")
		return false
	}
	if child == nil || child.ParentID != auth.UserID(r.Context()) {
		writeError(w, http.StatusBadRequest, "child not found")
		return false
	}
	return true
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if !h.checkChildOwned(w, r, req.ChildID) {
		return
	}

	reward, err := h.rewardStore.Create(req.ChildID, req.Title, req.Description, req.Icon, req.PointsRequired, req.AudioURL, req.ImageURL)
	if err != nil {
		h.logger.Error("create reward", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create reward")
		return
	}

	h.broadcast(auth.UserID(r.Context()), websocket.NewEvent("reward", "created", reward.ID, reward.ChildID))
	writeJSON(w, http.StatusCreated, reward)
}

// List returns rewards for one child (?child=) or for all of the parent's
// children, claimed ones included so the parent can see what to hand over.
func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	if v := r.URL.Query().Get("child"); v != "" {
		id, err := parseInt64(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid child")
			return
		}
		if !h.checkChildOwned(w, r, id) {
			return
		}
		rewards, err := h.rewardStore.ListByChild(id)
		if err != nil {
			h.logger.Error("list rewards", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list rewards")
			return
		}
		if rewards == nil {
			rewards = []model.Reward{}
		}
		writeJSON(w, http.StatusOK, rewards)
		return
	}

	children, err := h.childStore.ListByParent(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list children", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list rewards")
		return
	}
	all := []model.Reward{}
	for _, c := range children {
		rewards, err := h.rewardStore.ListByChild(c.ID)
		if err != nil {
			h.logger.Error("list rewards", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list rewards")
			return
		}
		all = append(all, rewards...)
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *RewardHandler) getOwned(w http.ResponseWriter, r *http.Request) *model.Reward {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil
	}
	reward, err := h.rewardStore.GetByID(id)
	if err != nil {
		h.logger.Error("get reward", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get reward")
		return nil
	}
	if reward == nil {
		writeError(w, http.StatusNotFound, "reward not found")
		return nil
	}
	child, err := h.childStore.GetByID(reward.ChildID)
	if err != nil {
		h.logger.Error("get child", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get reward")
		return nil
	}
	if child == nil || child.ParentID != auth.UserID(r.Context()) {
		writeError(w, http.StatusNotFound, "reward not found")
		return nil
	}
	return reward
}

func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing := h.getOwned(w, r)
	if existing == nil {
		return
	}

	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	reward, err := h.rewardStore.Update(existing.ID, req.Title, req.Description, req.Icon, req.PointsRequired, req.AudioURL, req.ImageURL)
	if err != nil {
		h.logger.Error("update reward", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update reward")
		return
	}

	h.broadcast(auth.UserID(r.Context()), websocket.NewEvent("reward", "updated", reward.ID, reward.ChildID))
	writeJSON(w, http.StatusOK, reward)
}

// MarkGiven deactivates a reward after the parent has handed out the prize.
func (h *RewardHandler) MarkGiven(w http.ResponseWriter, r *http.Request) {
	existing := h.getOwned(w, r)
	if existing == nil {
		return
	}

	reward, err := h.rewardStore.MarkGiven(existing.ID)
	if err != nil {
		h.logger.Error("mark reward given", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to mark reward given")
		return
	}

	h.broadcast(auth.UserID(r.Context()), websocket.NewEvent("reward", "given", reward.ID, reward.ChildID))
	writeJSON(w, http.StatusOK, reward)
}

func (h *RewardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing := h.getOwned(w, r)
	if existing == nil {
		return
	}

	if err := h.rewardStore.Delete(existing.ID); err != nil {
		h.logger.Error("delete reward", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete reward")
		return
	}

	h.broadcast(auth.UserID(r.Context()), websocket.NewEvent("reward", "deleted", existing.ID, existing.ChildID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
