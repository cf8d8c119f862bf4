package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/oraclab/oraccore/internal/pipeline"
)

type generateRequest struct {
	TopicID         string  `json:"topic_id"`
	Prompt          string  `json:"prompt"`
	Model           string  `json:"model,omitempty"`
	GrammarFile     *string `json:"grammar_file,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"top_p,omitempty"`
	TopK            *int     `json:"top_k,omitempty"`
	MaxTokens       *int     `json:"max_tokens,omitempty"`
	WakeWordTime    *time.Time `json:"wake_word_time,omitempty"`
	RecordingEndTime *time.Time `json:"recording_end_time,omitempty"`
	STTStartTime    *time.Time `json:"stt_start_time,omitempty"`
	STTEndTime      *time.Time `json:"stt_end_time,omitempty"`
}

type generateResponse struct {
	Status       string `json:"status"`
	ResponseText string `json:"response_text"`
	Model        string `json:"model"`
	ElapsedMs    int64  `json:"elapsed_ms"`
	EndToEndMs   int64  `json:"end_to_end_ms,omitempty"`
	CacheHit     bool   `json:"cache_hit"`
}

func (rt *Router) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}
	if req.TopicID == "" || req.Prompt == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "topic_id and prompt are required"})
		return
	}

	pr := pipeline.Request{
		TopicID: req.TopicID,
		Prompt:  req.Prompt,
		Overrides: pipeline.Overrides{
			Model:       req.Model,
			Temperature: req.Temperature,
			TopP:        req.TopP,
			TopK:        req.TopK,
			MaxTokens:   req.MaxTokens,
		},
	}
	if req.GrammarFile != nil {
		pr.Overrides.GrammarFilePathSet = true
		pr.Overrides.GrammarFilePath = *req.GrammarFile
	}
	if req.WakeWordTime != nil {
		pr.Upstream.WakeWordTime = *req.WakeWordTime
	}
	if req.RecordingEndTime != nil {
		pr.Upstream.RecordingEndTime = *req.RecordingEndTime
	}
	if req.STTStartTime != nil {
		pr.Upstream.STTStartTime = *req.STTStartTime
	}
	if req.STTEndTime != nil {
		pr.Upstream.STTEndTime = *req.STTEndTime
	}

	resp, err := rt.pipeline.Generate(r.Context(), pr)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{
		Status:       resp.Status,
		ResponseText: resp.ResponseText,
		Model:        resp.Model,
		ElapsedMs:    resp.ElapsedMs,
		EndToEndMs:   resp.EndToEndMs,
		CacheHit:     resp.CacheHit,
	})
}
