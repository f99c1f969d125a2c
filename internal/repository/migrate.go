package repository

import (
	"context"
	_ "embed"
	"strings"
)

//go:embed schema.sql
var schemaSQL string

// Migrate creates any missing tables and indexes. Every statement is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	db.logger.Info("applying schema")
	for _, stmt := range schemaStatements() {
		if err := db.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			db.logger.Error("schema statement failed", "statement", firstLine(stmt), "error", err)
			return dbFailure("migrate", err)
		}
	}
	db.logger.Info("schema applied")
	return nil
}

func schemaStatements() []string {
	var out []string
	for _, s := range strings.Split(schemaSQL, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
