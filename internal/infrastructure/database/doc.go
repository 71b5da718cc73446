// Package database manages the SQLite store backing the registry snapshot.
//
// The gateway's authorization registry lives in memory; this database is
// only the snapshot it is rehydrated from at startup. Runtime add/remove
// events are mirrored here so the next boot observes the latest set.
//
// # Usage
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
