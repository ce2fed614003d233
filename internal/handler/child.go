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

type ChildHandler struct {
	childStore *store.ChildStore
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewChildHandler(cs *store.ChildStore, hub *websocket.Hub, logger *slog.Logger) *ChildHandler {
	return &ChildHandler{childStore: cs, hub: hub, logger: logger}
}

func (h *ChildHandler) broadcast(familyID int64, ev websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(familyID, ev)
	}
}

type childRequest struct {
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
	PINCode     string `json:"pin_code"`
}

func (req *childRequest) validate() string {
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.DisplayName == "" {
		return "display_name is required"
	}
	if req.Avatar == "" {
		req.Avatar = "bear"
	}
	if !model.ValidAvatar(req.Avatar) {
		return "unknown avatar"
	}
	if len(req.PINCode) != 4 || !isDigits(req.PINCode) {
		return "pin_code must be 4 digits"
	}
	return ""
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func (h *ChildHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req childRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	parentID := auth.UserID(r.Context())
	child, err := h.childStore.Create(parentID, req.DisplayName, req.Avatar, req.PINCode)
	if err != nil {
		h.logger.Error("create child", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create child")
		return
	}

	h.broadcast(parentID, websocket.NewEvent("child", "created", child.ID, child.ID))
	writeJSON(w, http.StatusCreated, child)
}

func (h *ChildHandler) List(w http.ResponseWriter, r *http.Request) {
	children, err := h.childStore.ListByParent(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list children", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list children")
		return
	}
	if children == nil {
		children = []model.Child{}
	}
	writeJSON(w, http.StatusOK, children)
}

// getOwned loads a child and checks it belongs to the requesting parent.
// Foreign children read as not found.
func (h *ChildHandler) getOwned(w http.ResponseWriter, r *http.Request) *model.Child {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil
	}
	child, err := h.childStore.GetByID(id)
	if err != nil {
		h.logger.Error("get child", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get child")
		return nil
	}
	if child == nil || child.ParentID != auth.UserID(r.Context()) {
		writeError(w, http.StatusNotFound, "child not found")
		return nil
	}
	return child
}

func (h *ChildHandler) Get(w http.ResponseWriter, r *http.Request) {
	child := h.getOwned(w, r)
	if child == nil {
		return
	}
	writeJSON(w, http.StatusOK, child)
}

func (h *ChildHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing := h.getOwned(w, r)
	if existing == nil {
		return
	}

	var req childRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	child, err := h.childStore.Update(existing.ID, req.DisplayName, req.Avatar, req.PINCode)
	if err != nil {
		h.logger.Error("update child", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update child")
		return
	}

	h.broadcast(child.ParentID, websocket.NewEvent("child", "updated", child.ID, child.ID))
	writeJSON(w, http.StatusOK, child)
}

func (h *ChildHandler) Delete(w http.ResponseWriter, r *http.Request) {
	child := h.getOwned(w, r)
	if child == nil {
		return
	}

	if err := h.childStore.Delete(child.ID); err != nil {
		h.logger.Error("delete child", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete child")
		return
	}

	h.broadcast(child.ParentID, websocket.NewEvent("child", "deleted", child.ID, child.ID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Reorder applies a new sort order to the parent's children.
func (h *ChildHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids is required")
		return
	}

	parentID := auth.UserID(r.Context())
	if err := h.childStore.UpdateSortOrder(parentID, req.IDs); err != nil {
		h.logger.Error("reorder children", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reorder children")
		return
	}

	h.broadcast(parentID, websocket.NewEvent("child", "reordered", 0, 0))
	writeJSON(w, http.StatusOK, map[string]string{"status": "reordered"})
}
