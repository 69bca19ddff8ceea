// Package database opens the SQLite file behind the notification journal
// and the audit trail, and keeps its schema current.
//
// Schema changes live in the migrations package as embedded
// YYYYMMDD_HHMMSS_name.up.sql files (with optional .down.sql partners) and
// are applied by DB.Migrate at startup:
//
//	db, err := database.Open(database.Config{Path: cfg.Journal.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	err = db.Migrate(ctx, migrations.FS)
//
// Tables are STRICT and all queries are parameterised. On-disk files are
// created with mode 0600.
package database
