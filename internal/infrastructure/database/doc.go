// Package database provides the fetcher's SQLite state store.
//
// This package manages:
//   - Connection setup with WAL mode and a busy timeout
//   - Forward and rollback schema migrations from an fs.FS
//   - Health checks and lifecycle management
//
// The store holds the device inventory and the cycle audit log. Metrics
// themselves go to InfluxDB.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql.
package database
