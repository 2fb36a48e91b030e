// Package sqlite provides SQLite-backed implementations of the
// metadata store interfaces. A single database file holds documents,
// chunks, and sessions; schema changes ship as embedded migrations.
package sqlite
