package httpapi

import (
	"net/http"
	"strconv"

	"github.com/oraclab/oraccore/internal/timing"
)

func (rt *Router) handleLastCommand(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.times.Current())
}

type performanceLogResponse struct {
	Entries []timing.Command `json:"entries"`
	Trend   timing.Trend     `json:"trend"`
}

func (rt *Router) handlePerformanceLogRead(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	writeJSON(w, http.StatusOK, performanceLogResponse{
		Entries: rt.times.RecentCompleted(limit),
		Trend:   rt.times.Trend(),
	})
}

func (rt *Router) handlePerformanceLogClear(w http.ResponseWriter, r *http.Request) {
	n := rt.times.Clear()
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (rt *Router) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	entries, err := rt.caches.List(r.Context(), 0)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"entry_count": len(entries)})
}

func (rt *Router) handleCacheList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	entries, err := rt.caches.List(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (rt *Router) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	n, err := rt.caches.Clear(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (rt *Router) handleCacheRemoveEntry(w http.ResponseWriter, r *http.Request) {
	withinSeconds := 10
	if raw := r.URL.Query().Get("within_seconds"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			withinSeconds = n
		}
	}
	removed, err := rt.caches.RemoveLast(r.Context(), withinSeconds)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (rt *Router) handleTriggerErrorCorrection(w http.ResponseWriter, r *http.Request) {
	withinSeconds := 10
	if raw := r.URL.Query().Get("within_seconds"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			withinSeconds = n
		}
	}
	removed, err := rt.caches.RemoveLast(r.Context(), withinSeconds)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"acknowledged": true, "removed": removed})
}
