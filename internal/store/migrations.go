package store

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// migration adds a column to an existing table. Base tables are created
// without columns that arrived after the first deployment; migrations
// bring old databases up to date.
type migration struct {
	Table  string
	Column string
	Def    string
}

var pendingMigrations = []migration{
	// Crowd-sourced difficulty level, added with the recalculation job.
	{"words", "global_difficulty", "INTEGER"},
}

// runMigrations applies column migrations for existing databases.
// Missing tables are skipped quietly; a failed ALTER is logged and
// skipped since the column may already exist in another form.
func runMigrations(db *sql.DB, log *zap.Logger) error {
	applied := 0
	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) {
			continue
		}
		if columnExists(db, m.Table, m.Column) {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := db.Exec(stmt); err != nil {
			log.Warn("migration failed, skipping",
				zap.String("table", m.Table),
				zap.String("column", m.Column),
				zap.Error(err))
			continue
		}
		applied++
	}
	if applied > 0 {
		log.Info("schema migrations applied", zap.Int("count", applied))
	}
	return nil
}

func tableExists(db *sql.DB, table string) bool {
	var name string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
	).Scan(&name)
	return err == nil
}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}
