package models

import (
	"strings"
	"time"
)

// Tipi di messaggio supportati
const (
	TypeText  = "text"
	TypeImage = "image"
	TypeAudio = "audio"
)

// Prefisso degli ID provvisori generati localmente, prima della conferma
// del backend
const TempIDPrefix = "temp-"

// Message represents a chat message
type Message struct {
	ID            string    `json:"id"`
	ChatID        string    `json:"chatId"`
	SenderID      string    `json:"senderId"`
	SenderName    string    `json:"senderName"`
	Type          string    `json:"type"`
	Content       string    `json:"content"`
	AudioDuration int       `json:"audioDuration,omitempty"`
	LocalID       string    `json:"localId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	Pending       bool      `json:"pending,omitempty"`
}

// IsProvisional segnala se il messaggio è ancora in attesa di conferma
func (m *Message) IsProvisional() bool {
	return strings.HasPrefix(m.ID, TempIDPrefix)
}

// Preview restituisce la riga di anteprima per la lista delle chat
func (m *Message) Preview() string {
	switch m.Type {
	case TypeImage:
		return "📷 Foto"
	case TypeAudio:
		return "🎤 Messaggio vocale"
	default:
		return m.Content
	}
}

// OutgoingMessage è il payload dell'evento send-message
type OutgoingMessage struct {
	ChatID        string `json:"chatId"`
	SenderID      string `json:"senderId"`
	Type          string `json:"type"`
	Content       string `json:"content"`
	AudioDuration int    `json:"audioDuration,omitempty"`
	LocalID       string `json:"localId,omitempty"`
}

// MessageError è il payload dell'evento message-error
type MessageError struct {
	ChatID  string `json:"chatId,omitempty"`
	Content string `json:"content"`
	Reason  string `json:"reason"`
	LocalID string `json:"localId,omitempty"`
}
