// Package database provides SQLite connectivity for RBAC Core.
//
// This package manages:
//   - Database connection with WAL mode and enforced foreign keys
//   - Immediate-mode transactions (single writer, lock taken at BEGIN)
//   - Embedded schema migrations tracked in schema_migrations
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//   - Passwords are stored as Argon2id hashes, never in clear
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
