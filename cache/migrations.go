package cache

import (
	"fmt"

	"chat-client/utils"
)

// Migration rappresenta una singola migration della cache
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Tutte le migration disponibili in ordine di versione
var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `-- Schema già creato da initTables(), inserita qui solo per
		-- il tracking delle versioni
		SELECT 1`,
	},
	{
		Version:     2,
		Description: "Index messages by chat and time",
		SQL: `
		CREATE INDEX IF NOT EXISTS idx_messages_chat_created
		ON messages(chat_id, created_at)`,
	},
}

// applyMigrations applica tutte le migration necessarie
func (m *Manager) applyMigrations() error {
	if err := m.createMigrationsTable(); err != nil {
		return fmt.Errorf("errore nella creazione della tabella migrations: %v", err)
	}

	currentVersion, err := m.getCurrentVersion()
	if err != nil {
		return fmt.Errorf("errore nel recupero della versione attuale: %v", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}
		utils.Logger.Infof("Applicando migration %d: %s", migration.Version, migration.Description)
		if err := m.applyMigration(migration); err != nil {
			return fmt.Errorf("errore nella migration %d: %v", migration.Version, err)
		}
	}
	return nil
}

func (m *Manager) createMigrationsTable() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func (m *Manager) getCurrentVersion() (int, error) {
	var version int
	err := m.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&version)
	return version, err
}

func (m *Manager) applyMigration(migration Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(migration.SQL); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Exec(
		"INSERT INTO migrations (version, description) VALUES (?, ?)",
		migration.Version, migration.Description,
	); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
