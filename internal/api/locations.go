package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/polica/internal/store"
)

// LocationsHandler handles the slot registry endpoints.
type LocationsHandler struct {
	DB *sql.DB
}

type createLocationsRequest struct {
	Quantity int `json:"quantity"`
}

type moveLocationRequest struct {
	ShelfID int64 `json:"shelf_id"`
}

type claimRequest struct {
	CopybookID int64 `json:"copybook_id"`
}

// List handles GET /api/locations?shelf_id=&free=true.
func (h *LocationsHandler) List(w http.ResponseWriter, r *http.Request) {
	shelfID, err := queryID(r, "shelf_id")
	if err != nil {
		storeError(w, r, err, "list locations")
		return
	}

	var freeOnly bool
	if raw := r.URL.Query().Get("free"); raw != "" {
		freeOnly, err = strconv.ParseBool(raw)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid free flag")
			return
		}
	}

	locations, err := store.ListLocations(r.Context(), h.DB, store.LocationFilter{
		ShelfID:  shelfID,
		FreeOnly: freeOnly,
	})
	if err != nil {
		storeError(w, r, err, "list locations")
		return
	}
	jsonResponse(w, http.StatusOK, orEmpty(locations))
}

// Get handles GET /api/locations/{id}.
func (h *LocationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "location")
	if !ok {
		return
	}
	l, err := store.GetLocation(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, r, err, "get location")
		return
	}
	jsonResponse(w, http.StatusOK, l)
}

// CreateBulk handles POST /api/shelves/{id}/locations.
func (h *LocationsHandler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	shelfID, ok := pathID(w, r, "shelf")
	if !ok {
		return
	}

	var req createLocationsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	locations, err := store.CreateLocations(r.Context(), h.DB, shelfID, req.Quantity)
	if err != nil {
		storeError(w, r, err, "create locations")
		return
	}

	slog.Info("locations created", "user", actor(r), "shelf_id", shelfID, "quantity", len(locations))
	jsonResponse(w, http.StatusCreated, locations)
}

// Update handles PUT /api/locations/{id}.
func (h *LocationsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "location")
	if !ok {
		return
	}

	var req moveLocationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := store.UpdateLocation(r.Context(), h.DB, id, req.ShelfID); err != nil {
		storeError(w, r, err, "update location")
		return
	}

	l, err := store.GetLocation(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, r, err, "get location")
		return
	}
	slog.Info("location moved", "user", actor(r), "location_id", id, "shelf_id", req.ShelfID)
	jsonResponse(w, http.StatusOK, l)
}

// Delete handles DELETE /api/locations/{id}.
func (h *LocationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "location")
	if !ok {
		return
	}
	if err := store.DeleteLocation(r.Context(), h.DB, id); err != nil {
		storeError(w, r, err, "delete location")
		return
	}

	slog.Info("location deleted", "user", actor(r), "location_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "location deleted"})
}

// Claim handles POST /api/locations/{id}/claim.
func (h *LocationsHandler) Claim(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "location")
	if !ok {
		return
	}

	var req claimRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CopybookID <= 0 {
		jsonError(w, http.StatusBadRequest, "copybook_id required")
		return
	}

	if err := store.ClaimLocation(r.Context(), h.DB, id, req.CopybookID); err != nil {
		storeError(w, r, err, "claim location")
		return
	}

	l, err := store.GetLocation(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, r, err, "get location")
		return
	}
	slog.Info("location claimed", "user", actor(r), "location_id", id, "copybook_id", req.CopybookID)
	jsonResponse(w, http.StatusOK, l)
}

// Release handles POST /api/locations/{id}/release.
func (h *LocationsHandler) Release(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "location")
	if !ok {
		return
	}

	if err := store.ReleaseLocation(r.Context(), h.DB, id); err != nil {
		storeError(w, r, err, "release location")
		return
	}

	l, err := store.GetLocation(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, r, err, "get location")
		return
	}
	slog.Info("location released", "user", actor(r), "location_id", id)
	jsonResponse(w, http.StatusOK, l)
}
