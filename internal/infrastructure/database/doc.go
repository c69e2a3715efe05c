// Package database provides SQLite connectivity for the local event archive.
//
// This package manages:
//   - Opening the SQLite database with WAL mode and busy timeout
//   - Embedded schema migrations with per-migration transactions
//   - Connection health checks
//
// The archive keeps a local copy of device access events so history survives
// the device's own (small, circular) log buffer. SQLite is used in
// single-writer mode which matches the daemon's one recorder goroutine.
//
// # Usage
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
