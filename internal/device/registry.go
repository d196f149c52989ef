package device

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the cached, write-through view of the inventory.
//
// The cache is populated on startup via RefreshCache() and updated by
// Observe and Prune. All public methods are thread-safe.
type Registry struct {
	repo    Repository
	history StateHistoryRepository // optional

	cache   map[string]*Device
	cacheMu sync.RWMutex

	logger Logger
}

// NewRegistry creates a registry over repo. history may be nil to skip
// recording field snapshots.
func NewRegistry(repo Repository, history StateHistoryRepository) *Registry {
	return &Registry{
		repo:    repo,
		history: history,
		cache:   make(map[string]*Device),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx, "")
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	cache := make(map[string]*Device, len(devices))
	for i := range devices {
		cache[devices[i].Key()] = devices[i].DeepCopy()
	}

	r.cacheMu.Lock()
	r.cache = cache
	r.cacheMu.Unlock()

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// Observe records that d appeared in a listing at time at.
//
// The row is upserted, FirstSeen is carried over from the cached entry,
// and a non-empty State is appended to the history.
func (r *Registry) Observe(ctx context.Context, d Device, at time.Time) error {
	if err := d.Validate(); err != nil {
		return err
	}

	d.LastSeen = at.UTC()
	r.cacheMu.RLock()
	cached, known := r.cache[d.Key()]
	if known {
		d.FirstSeen = cached.FirstSeen
	}
	r.cacheMu.RUnlock()

	if err := r.repo.Upsert(ctx, &d); err != nil {
		return err
	}
	if !known {
		// The row may predate the cache; take FirstSeen from the store.
		if stored, err := r.repo.Get(ctx, d.Source, d.SerialNumber); err == nil {
			d.FirstSeen = stored.FirstSeen
		}
	}

	r.cacheMu.Lock()
	r.cache[d.Key()] = d.DeepCopy()
	r.cacheMu.Unlock()

	if r.history != nil && len(d.State) > 0 {
		if err := r.history.RecordState(ctx, d.Source, d.SerialNumber, d.State, at); err != nil {
			// The inventory row is already written; history is best effort.
			r.logger.Warn("recording device state history failed",
				"source", d.Source, "device_sn", d.SerialNumber, "error", err)
		}
	}
	return nil
}

// Get returns a device by key. The result is a copy.
func (r *Registry) Get(ctx context.Context, source, serial string) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[key(source, serial)]
	r.cacheMu.RUnlock()
	if ok {
		return cached.DeepCopy(), nil
	}

	d, err := r.repo.Get(ctx, source, serial)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[d.Key()] = d.DeepCopy()
	r.cacheMu.Unlock()
	return d, nil
}

// List returns cached devices of source (all sources when empty), sorted
// by source then serial number.
func (r *Registry) List(source string) []Device {
	r.cacheMu.RLock()
	devices := make([]Device, 0, len(r.cache))
	for _, d := range r.cache {
		if source == "" || d.Source == source {
			devices = append(devices, *d.DeepCopy())
		}
	}
	r.cacheMu.RUnlock()

	slices.SortFunc(devices, func(a, b Device) int {
		return cmp.Or(cmp.Compare(a.Source, b.Source), cmp.Compare(a.SerialNumber, b.SerialNumber))
	})
	return devices
}

// CoverPath returns the last known thumbnail URL for a device, or "".
func (r *Registry) CoverPath(source, serial string) string {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	if d, ok := r.cache[key(source, serial)]; ok {
		return d.CoverPath
	}
	return ""
}

// History returns the newest field snapshots for a device.
func (r *Registry) History(ctx context.Context, source, serial string, limit int) ([]StateHistoryEntry, error) {
	if r.history == nil {
		return []StateHistoryEntry{}, nil
	}
	return r.history.GetHistory(ctx, source, serial, limit)
}

// Prune drops devices of source not seen since before, from both the
// store and the cache.
func (r *Registry) Prune(ctx context.Context, source string, before time.Time) (int64, error) {
	n, err := r.repo.DeleteStale(ctx, source, before)
	if err != nil {
		return 0, err
	}

	r.cacheMu.Lock()
	for k, d := range r.cache {
		if d.Source == source && d.LastSeen.Before(before) {
			delete(r.cache, k)
		}
	}
	r.cacheMu.Unlock()

	if n > 0 {
		r.logger.Info("pruned stale devices", "source", source, "count", n)
	}
	return n, nil
}

// Count returns the number of cached devices.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}
