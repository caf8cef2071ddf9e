// Package migration applies the embedded SQL schema migrations to a SQLite
// database.
//
// Migration files live under sql/ and follow the NNN_description.sql naming
// convention. Each file runs inside its own transaction and is recorded in the
// schema_migrations table, so re-running the migrator only applies files whose
// version has not been recorded yet.
package migration
