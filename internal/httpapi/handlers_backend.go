package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oraclab/oraccore/internal/grammar"
	"github.com/oraclab/oraccore/internal/mapping"
	"github.com/oraclab/oraccore/internal/orerr"
)

func (rt *Router) handleListBackends(w http.ResponseWriter, r *http.Request) {
	records, err := rt.mappings.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

type createBackendRequest struct {
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	Connection map[string]string `json:"connection"`
}

func (rt *Router) handleCreateBackend(w http.ResponseWriter, r *http.Request) {
	var req createBackendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}
	if req.Name == "" || req.Type == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "name and type are required"})
		return
	}
	rec, err := rt.mappings.CreateBackend(r.Context(), req.Name, req.Type, req.Connection)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (rt *Router) handleGetBackend(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "backendID")
	rec, err := rt.mappings.Get(r.Context(), id)
	if err != nil {
		writeError(w, classify(err, mapping.ErrNotFound, orerr.KindNotFound, "httpapi.get_backend"))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (rt *Router) handleDeleteBackend(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "backendID")
	if err := rt.mappings.Delete(r.Context(), id); err != nil {
		writeError(w, classify(err, mapping.ErrNotFound, orerr.KindNotFound, "httpapi.delete_backend"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type upsertEntityRequest struct {
	Enabled      *bool   `json:"enabled,omitempty"`
	DeviceType   *string `json:"device_type,omitempty"`
	Location     *string `json:"location,omitempty"`
	OriginalName *string `json:"original_name,omitempty"`
	Domain       *string `json:"domain,omitempty"`
}

func (req upsertEntityRequest) toPatch() mapping.EntityPatch {
	return mapping.EntityPatch{
		Enabled:      req.Enabled,
		DeviceType:   req.DeviceType,
		Location:     req.Location,
		OriginalName: req.OriginalName,
		Domain:       req.Domain,
	}
}

func (rt *Router) handleUpsertEntity(w http.ResponseWriter, r *http.Request) {
	backendID := chi.URLParam(r, "backendID")
	entityID := chi.URLParam(r, "entityID")

	var req upsertEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	m, err := rt.mappings.UpsertEntity(r.Context(), backendID, entityID, req.toPatch())
	if err != nil {
		writeError(w, classify(err, mapping.ErrNotFound, orerr.KindNotFound, "httpapi.upsert_entity"))
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type bulkUpsertRequest struct {
	EntityIDs []string            `json:"entity_ids"`
	Patch     upsertEntityRequest `json:"patch"`
}

func (rt *Router) handleBulkUpsertEntity(w http.ResponseWriter, r *http.Request) {
	backendID := chi.URLParam(r, "backendID")

	var req bulkUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}
	if len(req.EntityIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "entity_ids must be non-empty"})
		return
	}

	if err := rt.mappings.BulkUpsert(r.Context(), backendID, req.EntityIDs, req.Patch.toPatch()); err != nil {
		writeError(w, classify(err, mapping.ErrNotFound, orerr.KindNotFound, "httpapi.bulk_upsert_entity"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type labelRequest struct {
	Label string `json:"label"`
}

func (rt *Router) handleAddDeviceType(w http.ResponseWriter, r *http.Request) {
	backendID := chi.URLParam(r, "backendID")
	var req labelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Label == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "label is required"})
		return
	}
	if err := rt.mappings.AddDeviceType(r.Context(), backendID, req.Label); err != nil {
		writeError(w, classify(err, mapping.ErrNotFound, orerr.KindNotFound, "httpapi.add_device_type"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) handleAddLocation(w http.ResponseWriter, r *http.Request) {
	backendID := chi.URLParam(r, "backendID")
	var req labelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Label == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "label is required"})
		return
	}
	if err := rt.mappings.AddLocation(r.Context(), backendID, req.Label); err != nil {
		writeError(w, classify(err, mapping.ErrNotFound, orerr.KindNotFound, "httpapi.add_location"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) handleValidateMappings(w http.ResponseWriter, r *http.Request) {
	backendID := chi.URLParam(r, "backendID")
	conflicts, err := rt.mappings.ValidateMappings(r.Context(), backendID)
	if err != nil {
		writeError(w, classify(err, mapping.ErrNotFound, orerr.KindNotFound, "httpapi.validate_mappings"))
		return
	}
	writeJSON(w, http.StatusOK, conflicts)
}

func (rt *Router) handleGenerateGrammar(w http.ResponseWriter, r *http.Request) {
	backendID := chi.URLParam(r, "backendID")
	rec, err := rt.mappings.Get(r.Context(), backendID)
	if err != nil {
		writeError(w, classify(err, mapping.ErrNotFound, orerr.KindNotFound, "httpapi.generate_grammar"))
		return
	}
	result, err := grammar.GenerateAndSave(rt.dataDir, rec)
	if err != nil {
		writeError(w, orerr.Wrap(orerr.KindConfiguration, "httpapi.generate_grammar", "write grammar file", err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) handleFetchEntities(w http.ResponseWriter, r *http.Request) {
	backendID := chi.URLParam(r, "backendID")
	rec, err := rt.mappings.Get(r.Context(), backendID)
	if err != nil {
		writeError(w, classify(err, mapping.ErrNotFound, orerr.KindNotFound, "httpapi.fetch_entities"))
		return
	}
	adapter, err := rt.backends.New(rec, rt.mappings)
	if err != nil {
		writeError(w, orerr.Wrap(orerr.KindConfiguration, "httpapi.fetch_entities", "construct adapter", err))
		return
	}
	entities, err := adapter.FetchEntities(r.Context())
	if err != nil {
		writeError(w, orerr.Wrap(orerr.KindBackend, "httpapi.fetch_entities", "backend fetch failed", err))
		return
	}
	writeJSON(w, http.StatusOK, entities)
}

func (rt *Router) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	backendID := chi.URLParam(r, "backendID")
	rec, err := rt.mappings.Get(r.Context(), backendID)
	if err != nil {
		writeError(w, classify(err, mapping.ErrNotFound, orerr.KindNotFound, "httpapi.test_connection"))
		return
	}
	adapter, err := rt.backends.New(rec, rt.mappings)
	if err != nil {
		writeError(w, orerr.Wrap(orerr.KindConfiguration, "httpapi.test_connection", "construct adapter", err))
		return
	}
	status, err := adapter.TestConnection(r.Context())
	if err != nil {
		writeError(w, orerr.Wrap(orerr.KindBackend, "httpapi.test_connection", "connection test failed", err))
		return
	}
	writeJSON(w, http.StatusOK, status)
}
