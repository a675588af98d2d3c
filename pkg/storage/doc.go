// Package storage owns the PostgreSQL connection and schema migrations.
package storage
