package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	BackendsChanged bool
	BackendChanges  []BackendDiff

	LogLevelChanged bool
	NewLogLevel     LogLevel

	HeartbeatChanged bool
	CacheChanged     bool
}

// BackendDiff describes what changed for a single seeded backend between
// two configs.
type BackendDiff struct {
	Name           string
	BaseURLChanged bool
	TokenChanged   bool
	Added          bool
	Removed        bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without a process restart —
// model catalogue and supervisor concurrency settings require one, so they
// are intentionally left untracked here.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Heartbeat != new.Heartbeat {
		d.HeartbeatChanged = true
	}
	if old.Cache != new.Cache {
		d.CacheChanged = true
	}

	oldBackends := make(map[string]*BackendSeed, len(old.Backends))
	for i := range old.Backends {
		oldBackends[old.Backends[i].Name] = &old.Backends[i]
	}
	newBackends := make(map[string]*BackendSeed, len(new.Backends))
	for i := range new.Backends {
		newBackends[new.Backends[i].Name] = &new.Backends[i]
	}

	for name, oldB := range oldBackends {
		newB, exists := newBackends[name]
		if !exists {
			d.BackendChanges = append(d.BackendChanges, BackendDiff{Name: name, Removed: true})
			d.BackendsChanged = true
			continue
		}
		bd := diffBackend(name, oldB, newB)
		if bd.BaseURLChanged || bd.TokenChanged {
			d.BackendChanges = append(d.BackendChanges, bd)
			d.BackendsChanged = true
		}
	}

	for name := range newBackends {
		if _, exists := oldBackends[name]; !exists {
			d.BackendChanges = append(d.BackendChanges, BackendDiff{Name: name, Added: true})
			d.BackendsChanged = true
		}
	}

	return d
}

// diffBackend compares two backend seeds with the same name.
func diffBackend(name string, old, new *BackendSeed) BackendDiff {
	bd := BackendDiff{Name: name}
	if old.BaseURL != new.BaseURL {
		bd.BaseURLChanged = true
	}
	if old.Token != new.Token {
		bd.TokenChanged = true
	}
	return bd
}
