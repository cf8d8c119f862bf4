package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oraclab/oraccore/internal/grammar"
	"github.com/oraclab/oraccore/internal/mapping"
	"github.com/oraclab/oraccore/internal/orerr"
)

// domainByDeviceType maps a configured device_type label to the Home
// Assistant domain that owns its services.
var domainByDeviceType = map[string]string{
	"lights":       "light",
	"heating":      "climate",
	"media_player": "media_player",
	"blinds":       "cover",
	"switches":     "switch",
}

// serviceByAction maps a simple (non-parameterised) action to the Home
// Assistant service called within a command's resolved domain.
var serviceByAction = map[string]string{
	"on":     "turn_on",
	"off":    "turn_off",
	"toggle": "toggle",
	"open":   "open_cover",
	"close":  "close_cover",
	"up":     "open_cover",
	"down":   "close_cover",
	"high":   "turn_on",
	"medium": "turn_on",
	"low":    "turn_on",
	"warm":   "set_temperature",
	"cold":   "set_temperature",
	"hot":    "set_temperature",
	"loud":   "volume_set",
	"quiet":  "volume_set",
}

var (
	percentActionRe = regexp.MustCompile(`^set (\d{1,3})%$`)
	tempActionRe    = regexp.MustCompile(`^set (\d{1,2})C$`)
)

// HomeAssistant is the C3 Backend Adapter variant talking to a Home
// Assistant instance's REST API.
type HomeAssistant struct {
	rec   mapping.Record
	store mapping.Store

	baseURL string
	token   string
	client  *http.Client

	mu            sync.RWMutex
	entitiesCache []EntityDescriptor
	cacheValid    bool
	lastError     string
	connected     bool
}

// NewHomeAssistant constructs a [HomeAssistant] adapter from rec. It reads
// "base_url" and "token" out of rec.Connection.
func NewHomeAssistant(rec mapping.Record, store mapping.Store) (Adapter, error) {
	baseURL := strings.TrimRight(rec.Connection["base_url"], "/")
	if baseURL == "" {
		return nil, orerr.New(orerr.KindConfiguration, "backend.new_homeassistant", "connection.base_url is required")
	}
	return &HomeAssistant{
		rec:     rec,
		store:   store,
		baseURL: baseURL,
		token:   rec.Connection["token"],
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// FetchEntities implements [Adapter.FetchEntities].
func (h *HomeAssistant) FetchEntities(ctx context.Context) ([]EntityDescriptor, error) {
	h.mu.RLock()
	if h.cacheValid {
		cached := append([]EntityDescriptor(nil), h.entitiesCache...)
		h.mu.RUnlock()
		return cached, nil
	}
	h.mu.RUnlock()

	var states []haState
	if err := h.get(ctx, "/api/states", &states); err != nil {
		h.recordError(err)
		return nil, nil
	}

	entities := make([]EntityDescriptor, 0, len(states))
	for _, s := range states {
		domain, _, found := strings.Cut(s.EntityID, ".")
		if !found {
			continue
		}
		name, _ := s.Attributes["friendly_name"].(string)
		entities = append(entities, EntityDescriptor{
			EntityID:     s.EntityID,
			OriginalName: name,
			Domain:       domain,
		})
	}

	h.mu.Lock()
	h.entitiesCache = entities
	h.cacheValid = true
	h.connected = true
	h.lastError = ""
	h.mu.Unlock()

	return entities, nil
}

// GenerateGrammar implements [Adapter.GenerateGrammar].
func (h *HomeAssistant) GenerateGrammar(ctx context.Context, dataDir string) (GrammarResult, error) {
	rec, err := h.store.Get(ctx, h.rec.ID)
	if err != nil {
		return grammar.Result{}, orerr.Wrap(orerr.KindNotFound, "backend.generate_grammar", "backend not found", err)
	}
	return grammar.GenerateAndSave(dataDir, rec)
}

// DispatchCommand implements [Adapter.DispatchCommand].
func (h *HomeAssistant) DispatchCommand(ctx context.Context, cmd Command) (DispatchResult, error) {
	if cmd.Device == "" || cmd.Action == "" {
		return DispatchResult{}, orerr.New(orerr.KindValidation, "backend.dispatch_command", "command missing device or action")
	}
	if cmd.Device == "UNKNOWN" || cmd.Action == "UNKNOWN" {
		return DispatchResult{Success: false, Error: "command targets an UNKNOWN device or action"}, nil
	}

	rec, err := h.store.Get(ctx, h.rec.ID)
	if err != nil {
		return DispatchResult{}, orerr.Wrap(orerr.KindNotFound, "backend.dispatch_command", "backend not found", err)
	}

	entityID, m, ok := resolveEntity(rec, cmd.Device, cmd.Location)
	if !ok {
		return DispatchResult{}, orerr.New(orerr.KindValidation, "backend.dispatch_command",
			fmt.Sprintf("(device=%s, location=%s) is not configured", cmd.Device, cmd.Location))
	}

	domain, service, data, err := resolveAction(cmd.Device, cmd.Action)
	if err != nil {
		return DispatchResult{Success: false, Error: err.Error(), EntityID: entityID}, nil
	}
	_ = m // mapping currently contributes only the resolved entity id

	data["entity_id"] = entityID
	var haResp map[string]any
	path := fmt.Sprintf("/api/services/%s/%s", domain, service)
	if err := h.post(ctx, path, data, &haResp); err != nil {
		h.recordError(err)
		return DispatchResult{Success: false, Error: err.Error(), EntityID: entityID}, nil
	}

	return DispatchResult{
		Success:  true,
		Message:  fmt.Sprintf("called %s.%s on %s", domain, service, entityID),
		Data:     haResp,
		EntityID: entityID,
	}, nil
}

// TestConnection implements [Adapter.TestConnection].
func (h *HomeAssistant) TestConnection(ctx context.Context) (ConnectionStatus, error) {
	var cfg map[string]any
	if err := h.get(ctx, "/api/config", &cfg); err != nil {
		h.recordError(err)
		return ConnectionStatus{Connected: false, Details: map[string]any{"url": h.baseURL, "error": err.Error()}}, nil
	}

	h.mu.Lock()
	h.connected = true
	h.lastError = ""
	h.mu.Unlock()

	version, _ := cfg["version"].(string)
	return ConnectionStatus{
		Connected: true,
		Version:   version,
		Details: map[string]any{
			"url":            h.baseURL,
			"location_name":  cfg["location_name"],
			"time_zone":      cfg["time_zone"],
		},
	}, nil
}

// GetStatistics implements [Adapter.GetStatistics].
func (h *HomeAssistant) GetStatistics(ctx context.Context) Statistics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := Statistics{
		Connected:   h.connected,
		LastError:   h.lastError,
		EntityCount: len(h.entitiesCache),
	}

	rec, err := h.store.Get(ctx, h.rec.ID)
	if err == nil {
		stats.DeviceCount = len(rec.DeviceMappings)
		types := make(map[string]int)
		for _, m := range rec.DeviceMappings {
			if m.Enabled {
				types[m.DeviceType]++
			}
		}
		stats.DeviceTypes = types
	}
	return stats
}

func (h *HomeAssistant) recordError(err error) {
	h.mu.Lock()
	h.connected = false
	h.lastError = err.Error()
	h.mu.Unlock()
}

// resolveEntity finds the enabled, complete mapping in rec matching
// (deviceType, location), returning its entity id.
func resolveEntity(rec mapping.Record, deviceType, location string) (string, mapping.DeviceMapping, bool) {
	for entityID, m := range rec.DeviceMappings {
		if m.Enabled && m.Complete() && m.DeviceType == deviceType && m.Location == location {
			return entityID, m, true
		}
	}
	return "", mapping.DeviceMapping{}, false
}

// resolveAction translates (deviceType, action) into a Home Assistant
// domain/service call plus any service-data parameters, per the
// parameterised set-percentage and set-temperature extraction rules.
func resolveAction(deviceType, action string) (domain, service string, data map[string]any, err error) {
	domain, ok := domainByDeviceType[deviceType]
	if !ok {
		return "", "", nil, fmt.Errorf("no Home Assistant domain configured for device type %q", deviceType)
	}

	if m := percentActionRe.FindStringSubmatch(action); m != nil {
		pct, _ := strconv.Atoi(m[1])
		brightness := pct * 255 / 100
		return domain, "turn_on", map[string]any{"brightness": brightness}, nil
	}
	if m := tempActionRe.FindStringSubmatch(action); m != nil {
		temp, _ := strconv.Atoi(m[1])
		return domain, "set_temperature", map[string]any{"temperature": temp}, nil
	}

	service, ok = serviceByAction[action]
	if !ok {
		return "", "", nil, fmt.Errorf("no Home Assistant service configured for action %q", action)
	}
	return domain, service, map[string]any{}, nil
}

type haState struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

func (h *HomeAssistant) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+path, nil)
	if err != nil {
		return err
	}
	h.setHeaders(req)
	return h.do(req, out)
}

func (h *HomeAssistant) post(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, strings.NewReader(string(encoded)))
	if err != nil {
		return err
	}
	h.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	return h.do(req, out)
}

func (h *HomeAssistant) setHeaders(req *http.Request) {
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
}

func (h *HomeAssistant) do(req *http.Request, out any) error {
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("home assistant request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("home assistant returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode home assistant response: %w", err)
	}
	return nil
}
