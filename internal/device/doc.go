// Package device provides the inventory of devices the fetcher has seen.
//
// Every successful device listing is recorded here: serial number,
// display name, model, owning station, cover image path and the last
// mapped metric fields. A bounded per-device history of those fields is
// kept alongside.
//
// # Architecture
//
//	Collector ──▶ Registry (in-memory cache) ──▶ Repository (SQLite devices)
//	                    │
//	                    └──▶ StateHistoryRepository (SQLite state_history)
//
// The Registry is the only writer. The ops API reads through it.
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//	registry := device.NewRegistry(repo, device.NewSQLiteStateHistoryRepository(db.DB))
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	err := registry.Observe(ctx, devices, time.Now())
package device
