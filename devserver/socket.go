package devserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chat-client/models"
	"chat-client/utils"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Consenti tutte le origini in sviluppo
	},
}

// handleWebSocket gestisce le connessioni al canale di trasporto
func (s *Server) handleWebSocket(c *gin.Context) {
	userID, err := s.userIDFromToken(bearerToken(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "non autenticato"})
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	s.wsMu.Lock()
	s.conns[conn] = userID
	s.wsMu.Unlock()

	// Cleanup quando la connessione viene chiusa
	defer func() {
		s.wsMu.Lock()
		delete(s.conns, conn)
		for _, room := range s.rooms {
			delete(room, conn)
		}
		s.wsMu.Unlock()
		conn.Close()
	}()

	// Loop di lettura degli eventi
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var event models.WSEvent
		if err := json.Unmarshal(data, &event); err != nil {
			utils.Logger.Warnf("Evento non valido da %s: %v", userID, err)
			continue
		}

		switch event.Type {
		case "join-chat":
			var chatID string
			if err := json.Unmarshal(event.Payload, &chatID); err == nil {
				s.joinRoom(chatID, conn)
			}

		case "leave-chat":
			var chatID string
			if err := json.Unmarshal(event.Payload, &chatID); err == nil {
				s.leaveRoom(chatID, conn)
			}

		case "send-message":
			var outgoing models.OutgoingMessage
			if err := json.Unmarshal(event.Payload, &outgoing); err != nil {
				continue
			}
			s.handleSendMessage(conn, userID, &outgoing)
		}
	}
}

func (s *Server) joinRoom(chatID string, conn *websocket.Conn) {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	if s.rooms[chatID] == nil {
		s.rooms[chatID] = make(map[*websocket.Conn]bool)
	}
	s.rooms[chatID][conn] = true
}

func (s *Server) leaveRoom(chatID string, conn *websocket.Conn) {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	delete(s.rooms[chatID], conn)
}

// handleSendMessage conferma un invio: assegna l'id definitivo, salva il
// messaggio e lo ridistribuisce a tutti i membri della stanza, mittente
// compreso. Su errore risponde con message-error al solo mittente.
func (s *Server) handleSendMessage(conn *websocket.Conn, userID string, outgoing *models.OutgoingMessage) {
	s.mu.Lock()
	chat, ok := s.chats[outgoing.ChatID]
	if !ok || !isMember(chat, userID) {
		s.mu.Unlock()
		s.writeTo(conn, "message-error", models.MessageError{
			ChatID:  outgoing.ChatID,
			Content: outgoing.Content,
			Reason:  "chat non trovata",
			LocalID: outgoing.LocalID,
		})
		return
	}

	sender := s.users[userID]
	message := models.Message{
		ID:            uuid.New().String(),
		ChatID:        outgoing.ChatID,
		SenderID:      userID,
		SenderName:    sender.Username,
		Type:          outgoing.Type,
		Content:       outgoing.Content,
		AudioDuration: outgoing.AudioDuration,
		LocalID:       outgoing.LocalID,
		CreatedAt:     time.Now(),
	}
	s.messages[outgoing.ChatID] = append(s.messages[outgoing.ChatID], message)
	chat.LastMessage = message
	s.mu.Unlock()

	s.broadcast(outgoing.ChatID, "new-message", message)
}

// broadcast invia un evento a tutti i client nella stanza
func (s *Server) broadcast(chatID, eventType string, payload interface{}) {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()

	for conn := range s.rooms[chatID] {
		message := models.WSMessage{Type: eventType, Payload: payload}
		if err := conn.WriteJSON(message); err != nil {
			conn.Close()
			delete(s.rooms[chatID], conn)
			delete(s.conns, conn)
		}
	}
}

func (s *Server) writeTo(conn *websocket.Conn, eventType string, payload interface{}) {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	conn.WriteJSON(models.WSMessage{Type: eventType, Payload: payload})
}
