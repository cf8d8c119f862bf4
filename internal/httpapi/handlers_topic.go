package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oraclab/oraccore/internal/orerr"
	"github.com/oraclab/oraccore/internal/topic"
)

func (rt *Router) handleListTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := rt.topics.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, topics)
}

func (rt *Router) handleGetTopic(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "topicID")
	t, err := rt.topics.Get(r.Context(), id)
	if err != nil {
		writeError(w, classify(err, topic.ErrNotFound, orerr.KindNotFound, "httpapi.get_topic"))
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type updateTopicRequest struct {
	Name      string         `json:"name"`
	Enabled   bool           `json:"enabled"`
	Model     string         `json:"model"`
	BackendID string         `json:"backend_id"`
	Settings  topic.Settings `json:"settings"`
	Grammar   topic.Grammar  `json:"grammar"`
}

func (rt *Router) handleUpdateTopic(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "topicID")
	var req updateTopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	t, err := rt.topics.Update(r.Context(), id, topic.Patch{
		Name: req.Name, Enabled: req.Enabled, Model: req.Model,
		BackendID: req.BackendID, Settings: req.Settings, Grammar: req.Grammar,
	})
	if err != nil {
		writeError(w, classify(err, topic.ErrNotFound, orerr.KindNotFound, "httpapi.update_topic"))
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (rt *Router) handleDeleteTopic(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "topicID")
	err := rt.topics.Delete(r.Context(), id)
	if err != nil {
		if errors.Is(err, topic.ErrGeneralUndeletable) {
			writeError(w, orerr.Wrap(orerr.KindValidation, "httpapi.delete_topic", "general topic cannot be deleted", err))
			return
		}
		writeError(w, classify(err, topic.ErrNotFound, orerr.KindNotFound, "httpapi.delete_topic"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type linkBackendRequest struct {
	BackendID string `json:"backend_id"`
}

func (rt *Router) handleLinkBackend(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "topicID")
	var req linkBackendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BackendID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "backend_id is required"})
		return
	}
	t, err := rt.topics.LinkBackend(r.Context(), id, req.BackendID)
	if err != nil {
		writeError(w, classify(err, topic.ErrNotFound, orerr.KindNotFound, "httpapi.link_backend"))
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (rt *Router) handleUnlinkBackend(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "topicID")
	t, err := rt.topics.LinkBackend(r.Context(), id, "")
	if err != nil {
		writeError(w, classify(err, topic.ErrNotFound, orerr.KindNotFound, "httpapi.unlink_backend"))
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type heartbeatTopic struct {
	Name         string `json:"name"`
	Status       string `json:"status,omitempty"`
	LastTrigger  *time.Time `json:"last_triggered,omitempty"`
	TriggerCount int    `json:"trigger_count"`
	WakeWord     string `json:"wake_word,omitempty"`
}

type heartbeatRequest struct {
	InstanceID string           `json:"instance_id"`
	Source     string           `json:"source"`
	Topics     []heartbeatTopic `json:"topics"`
	Timestamp  *time.Time       `json:"timestamp,omitempty"`
}

func (rt *Router) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	now := time.Now()
	if req.Timestamp != nil {
		now = *req.Timestamp
	}

	updated := make([]topic.Topic, 0, len(req.Topics))
	for _, ht := range req.Topics {
		t, err := rt.topics.UpdateHeartbeat(r.Context(), ht.Name, topic.HeartbeatFields{
			WakeWord:     ht.WakeWord,
			TriggerCount: ht.TriggerCount,
			Now:          now,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		updated = append(updated, t)
	}
	writeJSON(w, http.StatusOK, updated)
}
