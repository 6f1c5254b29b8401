package api

import (
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/sms-portal/internal/domain"
	"github.com/ignite/sms-portal/internal/service/imports"
	"github.com/ignite/sms-portal/internal/worker"
)

// HandleSubmitImport accepts a contact file and queues it for import.
//
//	POST /api/imports
//	multipart form: file, audience_id
func (h *Handlers) HandleSubmitImport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(100 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	audienceID := r.FormValue("audience_id")
	if audienceID == "" {
		respondError(w, http.StatusBadRequest, "audience_id is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	taskID, err := h.imports.Submit(r.Context(), header.Filename, audienceID, file)
	if err == imports.ErrMissingAudience || err == imports.ErrMissingFile {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		log.Printf("[API] import submission failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to queue import")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"task_id": taskID,
		"status":  string(domain.ImportQueued),
	})
}

// HandleImportStatus returns the current state of one import task,
// merged with the worker's live progress snapshot while processing.
//
//	GET /api/imports/{taskID}
func (h *Handlers) HandleImportStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	task, err := h.imports.Status(r.Context(), taskID)
	if err == imports.ErrTaskNotFound {
		respondError(w, http.StatusNotFound, "import task not found")
		return
	}
	if err != nil {
		log.Printf("[API] import status lookup failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load import task")
		return
	}

	resp := map[string]interface{}{"task": task}
	if task.Status == domain.ImportProcessing && h.redis != nil {
		if progress, err := worker.GetProgress(r.Context(), h.redis, taskID); err == nil {
			resp["progress"] = progress
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// HandleImportLogs lists past import runs, newest first.
//
//	GET /api/imports/logs?page=&per_page=
func (h *Handlers) HandleImportLogs(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	entries, total, err := h.imports.Logs(r.Context(), page, perPage)
	if err != nil {
		log.Printf("[API] import log listing failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list import logs")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  entries,
		"total": total,
	})
}
