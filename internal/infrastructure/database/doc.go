// Package database provides SQLite connectivity for Planter Core.
//
// It holds the plant registry and the watering event log. The reading
// history is never written here; it lives only in the monitor's ring buffer.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive. Each VERSION_name.up.sql should ship with a
// VERSION_name.down.sql for local rollback.
package database
