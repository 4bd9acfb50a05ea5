package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/gairiksingha-pixel/intelliextract-runner/internal/common"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/interfaces"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/models"
)

type ScheduleHandler struct {
	scheduler interfaces.SchedulerService
	audit     interfaces.AuditStorage
	logger    arbor.ILogger
}

func NewScheduleHandler(schedulerService interfaces.SchedulerService, auditStorage interfaces.AuditStorage) *ScheduleHandler {
	return &ScheduleHandler{
		scheduler: schedulerService,
		audit:     auditStorage,
		logger:    common.GetLogger(),
	}
}

// CollectionHandler serves GET (list) and POST (create) on /api/schedules
func (h *ScheduleHandler) CollectionHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		schedules, err := h.scheduler.ListSchedules(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"schedules": schedules,
			"count":     len(schedules),
		})

	case http.MethodPost:
		var schedule models.Schedule
		if !DecodeJSONBody(w, r, &schedule) {
			return
		}
		if err := h.scheduler.CreateSchedule(r.Context(), &schedule); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		WriteJSON(w, http.StatusCreated, schedule)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ItemHandler serves GET, PUT and DELETE on /api/schedules/{id}
func (h *ScheduleHandler) ItemHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/schedules/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, http.StatusBadRequest, "Invalid schedule id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		schedule, err := h.scheduler.GetSchedule(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if schedule == nil {
			WriteError(w, http.StatusNotFound, "Schedule not found: "+id)
			return
		}
		WriteJSON(w, http.StatusOK, schedule)

	case http.MethodPut:
		var schedule models.Schedule
		if !DecodeJSONBody(w, r, &schedule) {
			return
		}
		schedule.ID = id
		if err := h.scheduler.UpdateSchedule(r.Context(), &schedule); err != nil {
			if strings.Contains(err.Error(), "not found") {
				WriteError(w, http.StatusNotFound, err.Error())
			} else {
				WriteError(w, http.StatusBadRequest, err.Error())
			}
			return
		}
		WriteJSON(w, http.StatusOK, schedule)

	case http.MethodDelete:
		if err := h.scheduler.DeleteSchedule(r.Context(), id); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteSuccess(w, "Schedule deleted")

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// AuditHandler returns recent scheduler trigger audit entries
func (h *ScheduleHandler) AuditHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	limit := GetLimitParam(r, 50, 500)
	entries, err := h.audit.ListEntries(r.Context(), limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}
