package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/askelund/dagsplan/internal/auth"
	"github.com/askelund/dagsplan/internal/model"
	"github.com/askelund/dagsplan/internal/recurrence"
	"github.com/askelund/dagsplan/internal/store"
	"github.com/askelund/dagsplan/internal/websocket"
)

// persistWorkers bounds the concurrent inserts for a recurring batch.
const persistWorkers = 4

type ActivityHandler struct {
	activityStore *store.ActivityStore
	childStore    *store.ChildStore
	hub           *websocket.Hub
	logger        *slog.Logger
	now           func() time.Time
}

func NewActivityHandler(as *store.ActivityStore, cs *store.ChildStore, hub *websocket.Hub, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{
		activityStore: as,
		childStore:    cs,
		hub:           hub,
		logger:        logger,
		now:           time.Now,
	}
}

func (h *ActivityHandler) broadcast(familyID int64, ev websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(familyID, ev)
	}
}

type activityRequest struct {
	ChildID         int64  `json:"child_id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Icon            string `json:"icon"`
	Color           string `json:"color"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	Date            string `json:"date"`
	ActivityType    string `json:"activity_type"`
	Points          int    `json:"points"`
	AudioURL        string `json:"audio_url"`
	ImageURL        string `json:"image_url"`

	// Recurrence. When weekdays is non-empty the request creates a series
	// of len(weekdays) * weeks activities instead of a single one.
	Weekdays []int `json:"weekdays"`
	Weeks    int   `json:"weeks"`
}

func (req *activityRequest) validate() string {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return "title is required"
	}
	if req.ChildID == 0 {
		return "child_id is required"
	}
	if req.Icon == "" {
		req.Icon = "sun"
	}
	if !model.ValidIcon(req.Icon) {
		return "unknown icon"
	}
	if req.Color == "" {
		req.Color = "blue"
	}
	if !model.ValidColor(req.Color) {
		return "unknown color"
	}
	if req.ActivityType == "" {
		req.ActivityType = model.ActivityTypeImportant
	}
	if !model.ValidActivityType(req.ActivityType) {
		return "unknown activity_type"
	}
	if _, err := time.Parse("15:04", req.Time); err != nil {
		return "time must be HH:MM"
	}
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = 30
	}
	if req.Points < 0 {
		return "points must not be negative"
	}
	if req.ActivityType != model.ActivityTypeBonus {
		req.Points = 0
	}
	for _, d := range req.Weekdays {
		if d < 0 || d > 6 {
			return "weekdays must be 0-6"
		}
	}
	if len(req.Weekdays) == 0 {
		if _, err := time.Parse("2006-01-02", req.Date); err != nil {
			return "date must be YYYY-MM-DD"
		}
	}
	return ""
}

// checkChildOwned verifies the target child belongs to the requesting
// parent. Writes the error response itself and reports success.
func (h *ActivityHandler) checkChildOwned(w http.ResponseWriter, r *http.Request, childID int64) bool {
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

// Create makes a single activity, or a whole series when weekdays are given.
func (h *ActivityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
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

	parentID := auth.UserID(r.Context())

	if len(req.Weekdays) == 0 {
		activity, err := h.activityStore.Create(model.Activity{
			ChildID:         req.ChildID,
			Title:           req.Title,
			Description:     req.Description,
			Icon:            req.Icon,
			Color:           req.Color,
			Time:            req.Time,
			DurationMinutes: req.DurationMinutes,
			Date:            req.Date,
			ActivityType:    req.ActivityType,
			Points:          req.Points,
			AudioURL:        req.AudioURL,
			ImageURL:        req.ImageURL,
		})
		if err != nil {
			h.logger.Error("create activity", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to create activity")
			return
		}
		h.broadcast(parentID, websocket.NewEvent("activity", "created", activity.ID, activity.ChildID))
		writeJSON(w, http.StatusCreated, []model.Activity{*activity})
		return
	}

	weekdays := make([]time.Weekday, len(req.Weekdays))
	for i, d := range req.Weekdays {
		weekdays[i] = time.Weekday(d)
	}
	if req.Weeks == 0 {
		req.Weeks = 1
	}

	expanded, err := recurrence.Expand(recurrence.Template{
		ChildID:         req.ChildID,
		Title:           req.Title,
		Description:     req.Description,
		Icon:            req.Icon,
		Color:           req.Color,
		Time:            req.Time,
		DurationMinutes: req.DurationMinutes,
		ActivityType:    req.ActivityType,
		Points:          req.Points,
		AudioURL:        req.AudioURL,
		ImageURL:        req.ImageURL,
	}, weekdays, req.Weeks, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The instances are independent rows, so persist them concurrently.
	// Every insert is attempted even if one fails; the first failure is
	// reported alongside whatever did get created.
	var (
		mu      sync.Mutex
		created []model.Activity
		g       errgroup.Group
	)
	g.SetLimit(persistWorkers)
	for _, a := range expanded {
		g.Go(func() error {
			saved, err := h.activityStore.Create(a)
			if err != nil {
				return err
			}
			mu.Lock()
			created = append(created, *saved)
			mu.Unlock()
			return nil
		})
	}
	batchErr := g.Wait()

	sort.Slice(created, func(i, j int) bool {
		if created[i].Date != created[j].Date {
			return created[i].Date < created[j].Date
		}
		return created[i].ID < created[j].ID
	})

	if batchErr != nil {
		h.logger.Error("create series", "error", batchErr, "created", len(created), "requested", len(expanded))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":      "failed to create some activities",
			"activities": created,
		})
		return
	}

	h.broadcast(parentID, websocket.NewEvent("activity", "series_created", 0, req.ChildID))
	writeJSON(w, http.StatusCreated, created)
}

func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	var q store.ListQuery
	if v := r.URL.Query().Get("child"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid child")
			return
		}
		if !h.checkChildOwned(w, r, id) {
			return
		}
		q.ChildID = id
	}
	if v := r.URL.Query().Get("date"); v != "" {
		if _, err := time.Parse("2006-01-02", v); err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		q.Date = v
	}

	if q.ChildID == 0 {
		// No child filter: collect across all of the parent's children.
		children, err := h.childStore.ListByParent(auth.UserID(r.Context()))
		if err != nil {
			h.logger.Error("list children", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list activities")
			return
		}
		all := []model.Activity{}
		for _, c := range children {
			q.ChildID = c.ID
			activities, err := h.activityStore.List(q)
			if err != nil {
				h.logger.Error("list activities", "error", err)
				writeError(w, http.StatusInternalServerError, "failed to list activities")
				return
			}
			all = append(all, activities...)
		}
		sort.Slice(all, func(i, j int) bool {
			if all[i].Date != all[j].Date {
				return all[i].Date < all[j].Date
			}
			return all[i].Time < all[j].Time
		})
		writeJSON(w, http.StatusOK, all)
		return
	}

	activities, err := h.activityStore.List(q)
	if err != nil {
		h.logger.Error("list activities", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list activities")
		return
	}
	if activities == nil {
		activities = []model.Activity{}
	}
	writeJSON(w, http.StatusOK, activities)
}

// getOwned loads an activity and checks its child belongs to the parent.
func (h *ActivityHandler) getOwned(w http.ResponseWriter, r *http.Request) *model.Activity {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil
	}
	activity, err := h.activityStore.GetByID(id)
	if err != nil {
		h.logger.Error("get activity", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get activity")
		return nil
	}
	if activity == nil {
		writeError(w, http.StatusNotFound, "activity not found")
		return nil
	}
	child, err := h.childStore.GetByID(activity.ChildID)
	if err != nil {
		h.logger.Error("get child", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get activity")
		return nil
	}
	if child == nil || child.ParentID != auth.UserID(r.Context()) {
		writeError(w, http.StatusNotFound, "activity not found")
		return nil
	}
	return activity
}

func (h *ActivityHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing := h.getOwned(w, r)
	if existing == nil {
		return
	}

	var req activityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.ChildID = existing.ChildID // editing never moves an activity between children
	req.Weekdays = nil
	if req.Date == "" {
		req.Date = existing.Date
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	activity, err := h.activityStore.Update(existing.ID, model.Activity{
		Title:           req.Title,
		Description:     req.Description,
		Icon:            req.Icon,
		Color:           req.Color,
		Time:            req.Time,
		DurationMinutes: req.DurationMinutes,
		Date:            req.Date,
		ActivityType:    req.ActivityType,
		Points:          req.Points,
		AudioURL:        req.AudioURL,
		ImageURL:        req.ImageURL,
	})
	if err != nil {
		h.logger.Error("update activity", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update activity")
		return
	}

	h.broadcast(auth.UserID(r.Context()), websocket.NewEvent("activity", "updated", activity.ID, activity.ChildID))
	writeJSON(w, http.StatusOK, activity)
}

// Toggle flips completion from the parent dashboard. Unlike the child path
// this does not touch the point balance, so a parent can tidy up the day
// without minting stars.
func (h *ActivityHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	existing := h.getOwned(w, r)
	if existing == nil {
		return
	}

	activity, err := h.activityStore.SetCompleted(existing.ID, !existing.Completed)
	if err != nil {
		h.logger.Error("toggle activity", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to toggle activity")
		return
	}

	h.broadcast(auth.UserID(r.Context()), websocket.NewEvent("activity", "updated", activity.ID, activity.ChildID))
	writeJSON(w, http.StatusOK, activity)
}

func (h *ActivityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing := h.getOwned(w, r)
	if existing == nil {
		return
	}

	if err := h.activityStore.Delete(existing.ID); err != nil {
		h.logger.Error("delete activity", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete activity")
		return
	}

	h.broadcast(auth.UserID(r.Context()), websocket.NewEvent("activity", "deleted", existing.ID, existing.ChildID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// DeleteSeries removes every activity in a series dated on or after the
// from query parameter. Without from, the whole series goes. An unknown
// series is not an error; it reports zero deletions.
func (h *ActivityHandler) DeleteSeries(w http.ResponseWriter, r *http.Request) {
	seriesID := r.PathValue("series_id")
	if seriesID == "" {
		writeError(w, http.StatusBadRequest, "invalid series id")
		return
	}

	fromDate := r.URL.Query().Get("from")
	if fromDate == "" {
		fromDate = "0000-00-00"
	} else if _, err := time.Parse("2006-01-02", fromDate); err != nil {
		writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return
	}

	// Ownership: every record in a series belongs to the same child, so
	// checking any one of them covers the lot.
	activities, err := h.activityStore.ListBySeries(seriesID)
	if err != nil {
		h.logger.Error("list series", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to resolve series")
		return
	}
	if len(activities) == 0 {
		writeJSON(w, http.StatusOK, map[string]int{"deleted": 0})
		return
	}
	child, err := h.childStore.GetByID(activities[0].ChildID)
	if err != nil {
		h.logger.Error("get child", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to resolve series")
		return
	}
	if child == nil || child.ParentID != auth.UserID(r.Context()) {
		writeError(w, http.StatusNotFound, "series not found")
		return
	}

	deleted, err := h.activityStore.DeleteSeriesFrom(seriesID, fromDate)
	if err != nil {
		// Partial failure: some records may be gone, report what happened.
		h.logger.Error("delete series", "error", err, "deleted", deleted)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "failed to delete some activities",
			"deleted": deleted,
		})
		return
	}

	h.broadcast(child.ParentID, websocket.NewEvent("activity", "series_deleted", 0, child.ID))
	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}
