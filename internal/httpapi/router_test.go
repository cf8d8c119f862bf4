package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/oraclab/oraccore/internal/backend"
	"github.com/oraclab/oraccore/internal/cache"
	"github.com/oraclab/oraccore/internal/mapping"
	"github.com/oraclab/oraccore/internal/pipeline"
	"github.com/oraclab/oraccore/internal/supervisor"
	"github.com/oraclab/oraccore/internal/timing"
	"github.com/oraclab/oraccore/internal/topic"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	dataDir := t.TempDir()

	topics, err := topic.NewFileStore(dataDir+"/topics.json", 35*time.Second, 70*time.Second)
	if err != nil {
		t.Fatalf("topic.NewFileStore: %v", err)
	}
	mappings, err := mapping.NewFileStore(dataDir)
	if err != nil {
		t.Fatalf("mapping.NewFileStore: %v", err)
	}
	caches, err := cache.NewLRUCache(100, dataDir+"/cache.json")
	if err != nil {
		t.Fatalf("cache.NewLRUCache: %v", err)
	}
	registry := backend.NewRegistry()
	sv := supervisor.New(supervisor.Config{}, nil)
	times := timing.New(50)

	p := pipeline.New(pipeline.Config{
		WakeWords:              []string{"computer"},
		ErrorCorrectionPhrases: []string{"computer error"},
		ErrorCorrectionWindow:  10 * time.Second,
		InferenceTimeout:       time.Second,
		DispatchTimeout:        time.Second,
		DataDir:                dataDir,
	}, "", topics, caches, mappings, registry, sv, times)

	return New(p, topics, mappings, registry, caches, times, dataDir)
}

func doJSON(t *testing.T, srv *httptest.Server, method, path string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	return resp
}

func TestHealthz_AlwaysOK(t *testing.T) {
	rt := newTestRouter(t)
	srv := httptest.NewServer(rt.Handler())
	defer srv.Close()

	resp := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestGetTopic_GeneralAlwaysExists(t *testing.T) {
	rt := newTestRouter(t)
	srv := httptest.NewServer(rt.Handler())
	defer srv.Close()

	resp := doJSON(t, srv, http.MethodGet, "/topics/general", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var got topic.Topic
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "general" {
		t.Errorf("ID = %q, want general", got.ID)
	}
}

func TestGetTopic_UnknownReturns404(t *testing.T) {
	rt := newTestRouter(t)
	srv := httptest.NewServer(rt.Handler())
	defer srv.Close()

	resp := doJSON(t, srv, http.MethodGet, "/topics/does-not-exist", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCreateBackend_ThenGet(t *testing.T) {
	rt := newTestRouter(t)
	srv := httptest.NewServer(rt.Handler())
	defer srv.Close()

	resp := doJSON(t, srv, http.MethodPost, "/backends/", createBackendRequest{
		Name: "home", Type: "homeassistant", Connection: map[string]string{"base_url": "http://ha.local"},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var rec mapping.Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatalf("decode: %v", err)
	}

	getResp := doJSON(t, srv, http.MethodGet, "/backends/"+rec.ID, nil)
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", getResp.StatusCode)
	}
}

func TestGenerate_DisabledTopicReturns400(t *testing.T) {
	rt := newTestRouter(t)
	srv := httptest.NewServer(rt.Handler())
	defer srv.Close()

	updateResp := doJSON(t, srv, http.MethodPut, "/topics/general", updateTopicRequest{Name: "general", Enabled: false})
	updateResp.Body.Close()

	resp := doJSON(t, srv, http.MethodPost, "/generate", generateRequest{TopicID: "general", Prompt: "turn on the lights"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHeartbeat_AutoDiscoversTopic(t *testing.T) {
	rt := newTestRouter(t)
	srv := httptest.NewServer(rt.Handler())
	defer srv.Close()

	resp := doJSON(t, srv, http.MethodPost, "/heartbeat", heartbeatRequest{
		InstanceID: "stt-1",
		Source:     "kitchen",
		Topics:     []heartbeatTopic{{Name: "kitchen", TriggerCount: 3, WakeWord: "computer"}},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	getResp := doJSON(t, srv, http.MethodGet, "/topics/kitchen", nil)
	defer getResp.Body.Close()
	var got topic.Topic
	json.NewDecoder(getResp.Body).Decode(&got)
	if got.Heartbeat.TriggerCount != 3 {
		t.Errorf("TriggerCount = %d, want 3", got.Heartbeat.TriggerCount)
	}
}

func TestCacheStats_EmptyByDefault(t *testing.T) {
	rt := newTestRouter(t)
	srv := httptest.NewServer(rt.Handler())
	defer srv.Close()

	resp := doJSON(t, srv, http.MethodGet, "/cache/stats", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var got map[string]int
	json.NewDecoder(resp.Body).Decode(&got)
	if got["entry_count"] != 0 {
		t.Errorf("entry_count = %d, want 0", got["entry_count"])
	}
}

func TestLastCommand_IdleBeforeAnyRequest(t *testing.T) {
	rt := newTestRouter(t)
	srv := httptest.NewServer(rt.Handler())
	defer srv.Close()

	resp := doJSON(t, srv, http.MethodGet, "/last-command", nil)
	defer resp.Body.Close()
	var got timing.Command
	json.NewDecoder(resp.Body).Decode(&got)
	if got.Status != timing.StatusIdle {
		t.Errorf("Status = %v, want idle", got.Status)
	}
}
