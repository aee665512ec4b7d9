package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/polica/internal/batch"
	"github.com/erazemk/polica/internal/model"
	"github.com/erazemk/polica/internal/store"
)

// CopybooksHandler handles physical copy endpoints.
type CopybooksHandler struct {
	DB *sql.DB
	// BatchConcurrency bounds in-flight creations of one batch request.
	BatchConcurrency int
}

type createCopybookRequest struct {
	EditionID  int64  `json:"edition_id"`
	Status     string `json:"status"`
	LocationID *int64 `json:"location_id"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type relocateRequest struct {
	LocationID *int64 `json:"location_id"`
}

// List handles GET /api/copybooks?status=&edition_id=&shelf_id=.
func (h *CopybooksHandler) List(w http.ResponseWriter, r *http.Request) {
	var f store.CopybookFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := model.ParseStatus(raw)
		if err != nil {
			storeError(w, r, err, "list copybooks")
			return
		}
		f.Status = status
	}

	var err error
	if f.EditionID, err = queryID(r, "edition_id"); err != nil {
		storeError(w, r, err, "list copybooks")
		return
	}
	if f.ShelfID, err = queryID(r, "shelf_id"); err != nil {
		storeError(w, r, err, "list copybooks")
		return
	}

	copies, err := store.ListCopybooks(r.Context(), h.DB, f)
	if err != nil {
		storeError(w, r, err, "list copybooks")
		return
	}
	jsonResponse(w, http.StatusOK, orEmpty(copies))
}

// Create handles POST /api/copybooks.
func (h *CopybooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCopybookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status, err := model.ParseStatus(req.Status)
	if err != nil {
		storeError(w, r, err, "create copybook")
		return
	}

	cb, err := store.CreateCopybook(r.Context(), h.DB, req.EditionID, status, req.LocationID)
	if err != nil {
		storeError(w, r, err, "create copybook")
		return
	}

	slog.Info("copybook created", "user", actor(r), "copybook_id", cb.ID, "edition_id", cb.EditionID, "location_id", optID(cb.LocationID))
	jsonResponse(w, http.StatusCreated, cb)
}

// Batch handles POST /api/copybooks/batch. Items fail independently, so
// the response is 200 whenever the batch was attempted.
func (h *CopybooksHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var req batch.CopiesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Status != "" {
		status, err := model.ParseStatus(string(req.Status))
		if err != nil {
			storeError(w, r, err, "create copies")
			return
		}
		req.Status = status
	}

	report, err := batch.CreateCopies(r.Context(), store.CopyStore{DB: h.DB}, req, h.BatchConcurrency)
	if err != nil {
		storeError(w, r, err, "create copies")
		return
	}

	slog.Info("copybook batch created", "user", actor(r), "batch", report.ID, "result", report.String())
	jsonResponse(w, http.StatusOK, report)
}

// Get handles GET /api/copybooks/{id}.
func (h *CopybooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "copybook")
	if !ok {
		return
	}
	cb, err := store.GetCopybook(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, r, err, "get copybook")
		return
	}
	jsonResponse(w, http.StatusOK, cb)
}

// UpdateStatus handles PUT /api/copybooks/{id}/status.
func (h *CopybooksHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "copybook")
	if !ok {
		return
	}

	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" {
		jsonError(w, http.StatusBadRequest, "status required")
		return
	}
	status, err := model.ParseStatus(req.Status)
	if err != nil {
		storeError(w, r, err, "update copybook status")
		return
	}

	cb, err := store.UpdateCopybookStatus(r.Context(), h.DB, id, status)
	if err != nil {
		storeError(w, r, err, "update copybook status")
		return
	}

	slog.Info("copybook status changed", "user", actor(r), "copybook_id", id, "status", cb.Status)
	jsonResponse(w, http.StatusOK, cb)
}

// Relocate handles PUT /api/copybooks/{id}/location. A null location_id
// takes the copy off the shelves.
func (h *CopybooksHandler) Relocate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "copybook")
	if !ok {
		return
	}

	var req relocateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cb, err := store.RelocateCopybook(r.Context(), h.DB, id, req.LocationID)
	if err != nil {
		storeError(w, r, err, "relocate copybook")
		return
	}

	slog.Info("copybook relocated", "user", actor(r), "copybook_id", id, "location_id", optID(cb.LocationID))
	jsonResponse(w, http.StatusOK, cb)
}

// OpenLending handles GET /api/copybooks/{id}/lending.
func (h *CopybooksHandler) OpenLending(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "copybook")
	if !ok {
		return
	}
	if _, err := store.GetCopybook(r.Context(), h.DB, id); err != nil {
		storeError(w, r, err, "get copybook")
		return
	}
	l, err := store.OpenLendingForCopybook(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, r, err, "get open lending")
		return
	}
	jsonResponse(w, http.StatusOK, l)
}

// Delete handles DELETE /api/copybooks/{id}.
func (h *CopybooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "copybook")
	if !ok {
		return
	}
	if err := store.DeleteCopybook(r.Context(), h.DB, id); err != nil {
		storeError(w, r, err, "delete copybook")
		return
	}

	slog.Info("copybook deleted", "user", actor(r), "copybook_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "copybook deleted"})
}
