package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"chat-client/models"
	"chat-client/utils"
)

// Manager mantiene la cache locale di chat e messaggi su sqlite, così la
// lista si presenta popolata prima che la rete risponda e le anteprime
// sopravvivono ai riavvii. È un supporto best effort: ogni errore viene
// registrato dal chiamante, mai mostrato all'utente.
type Manager struct {
	db *sql.DB
}

// NewManager apre (o crea) il file di cache
func NewManager(path string) (*Manager, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// Verifica la connessione
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	m := &Manager{db: db}
	if err := m.initTables(); err != nil {
		db.Close()
		return nil, err
	}
	if err := m.applyMigrations(); err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

// Inizializza le tabelle necessarie
func (m *Manager) initTables() error {
	// Tabella per le chat
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS chats (
			id TEXT PRIMARY KEY,
			members TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("errore nella creazione della tabella chats: %v", err)
	}

	// Tabella per i messaggi
	_, err = m.db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			sender_name TEXT NOT NULL,
			type TEXT NOT NULL,
			content TEXT NOT NULL,
			audio_duration INTEGER DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			FOREIGN KEY (chat_id) REFERENCES chats(id)
		)
	`)
	if err != nil {
		return fmt.Errorf("errore nella creazione della tabella messages: %v", err)
	}

	return nil
}

// SaveChat salva (o aggiorna) una chat nella cache
func (m *Manager) SaveChat(chat *models.Chat) error {
	members, err := json.Marshal(chat.Members)
	if err != nil {
		return err
	}
	_, err = m.db.Exec(
		"INSERT INTO chats (id, members) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET members = ?",
		chat.ID, string(members), string(members),
	)
	return err
}

// LoadChats carica tutte le chat dalla cache, con l'ultimo messaggio
// noto come anteprima
func (m *Manager) LoadChats() ([]models.Chat, error) {
	rows, err := m.db.Query("SELECT id, members FROM chats")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		var chat models.Chat
		var members string
		if err := rows.Scan(&chat.ID, &members); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(members), &chat.Members); err != nil {
			// Voce corrotta, saltala
			continue
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Anteprima: il messaggio più recente di ogni chat
	for i := range chats {
		last, err := m.lastMessage(chats[i].ID)
		if err != nil {
			utils.Logger.Debugf("Anteprima della chat %s non leggibile: %v", chats[i].ID, err)
			continue
		}
		if last != nil {
			chats[i].LastMessage = *last
		}
	}
	return chats, nil
}

// SaveMessage salva un messaggio confermato nella cache. I provvisori
// non vengono mai salvati.
func (m *Manager) SaveMessage(msg *models.Message) error {
	if msg.IsProvisional() {
		return nil
	}
	_, err := m.db.Exec(`
		INSERT OR REPLACE INTO messages
		(id, chat_id, sender_id, sender_name, type, content, audio_duration, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ChatID, msg.SenderID, msg.SenderName,
		msg.Type, msg.Content, msg.AudioDuration, msg.CreatedAt,
	)
	return err
}

// LoadChatMessages carica i messaggi di una chat in ordine cronologico
func (m *Manager) LoadChatMessages(chatID string) ([]models.Message, error) {
	rows, err := m.db.Query(`
		SELECT id, chat_id, sender_id, sender_name, type, content, audio_duration, created_at
		FROM messages WHERE chat_id = ? ORDER BY created_at`,
		chatID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.SenderName,
			&msg.Type, &msg.Content, &msg.AudioDuration, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (m *Manager) lastMessage(chatID string) (*models.Message, error) {
	row := m.db.QueryRow(`
		SELECT id, chat_id, sender_id, sender_name, type, content, audio_duration, created_at
		FROM messages WHERE chat_id = ? ORDER BY created_at DESC LIMIT 1`,
		chatID,
	)

	var msg models.Message
	err := row.Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.SenderName,
		&msg.Type, &msg.Content, &msg.AudioDuration, &msg.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Clear svuota completamente la cache (logout)
func (m *Manager) Clear() error {
	if _, err := m.db.Exec("DELETE FROM messages"); err != nil {
		return err
	}
	_, err := m.db.Exec("DELETE FROM chats")
	return err
}

func (m *Manager) Close() error {
	return m.db.Close()
}
