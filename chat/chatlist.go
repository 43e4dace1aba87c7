package chat

import (
	"fmt"
	"sort"
	"sync"

	"chat-client/models"
	"chat-client/utils"
)

// ChatLister astrae il caricamento della lista delle conversazioni
type ChatLister interface {
	GetChats() ([]models.Chat, error)
}

// ChatList mantiene l'elenco delle conversazioni dell'utente, aggiorna
// l'anteprima dell'ultimo messaggio a ogni nuovo traffico e tiene lo
// stato non letto per ogni conversazione non aperta. Resta in ascolto
// globale, indipendentemente da quale conversazione sia aperta.
type ChatList struct {
	selfID string
	loader ChatLister

	mu         sync.RWMutex
	chats      map[string]*models.Chat
	unread     map[string]bool
	openChatID string
}

// NewChatList crea il sincronizzatore della lista delle chat
func NewChatList(selfID string, loader ChatLister) *ChatList {
	return &ChatList{
		selfID: selfID,
		loader: loader,
		chats:  make(map[string]*models.Chat),
		unread: make(map[string]bool),
	}
}

// Load scarica la lista completa delle conversazioni. In caso di errore
// la lista resta vuota; si riprova solo con un ricaricamento completo.
func (l *ChatList) Load() error {
	chats, err := l.loader.GetChats()
	if err != nil {
		utils.Logger.Warnf("Errore nel caricamento delle chat: %v", err)
		return fmt.Errorf("errore nel caricamento delle chat: %v", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.chats = make(map[string]*models.Chat, len(chats))
	for i := range chats {
		chat := chats[i]
		l.chats[chat.ID] = &chat
	}
	return nil
}

// OnMessage aggiorna l'anteprima della conversazione interessata e la
// marca come non letta se non è quella aperta e il mittente non siamo
// noi. Da registrare sulla sottoscrizione globale a new-message.
func (l *ChatList) OnMessage(msg models.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	chat, ok := l.chats[msg.ChatID]
	if !ok {
		// Conversazione mai vista: viene scoperta solo dalla fetch
		// iniziale o dalla creazione esplicita
		utils.Logger.Debugf("Messaggio per una chat sconosciuta: %s", msg.ChatID)
		return
	}

	// Un evento arrivato in ritardo non deve sovrascrivere un'anteprima
	// più recente
	if chat.LastMessage.CreatedAt.IsZero() || !msg.CreatedAt.Before(chat.LastMessage.CreatedAt) {
		chat.LastMessage = msg
	}

	if msg.ChatID != l.openChatID && msg.SenderID != l.selfID {
		l.unread[msg.ChatID] = true
	}
}

// OnChatOpened registra la conversazione aperta e ne azzera il
// contrassegno non letto
func (l *ChatList) OnChatOpened(chatID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.openChatID = chatID
	delete(l.unread, chatID)
}

// OnChatClosed segnala che nessuna conversazione è aperta
func (l *ChatList) OnChatClosed() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.openChatID = ""
}

// AddChat inserisce una conversazione appena creata (o restituita dal
// backend come già esistente)
func (l *ChatList) AddChat(chat models.Chat) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.chats[chat.ID]; ok {
		return
	}
	l.chats[chat.ID] = &chat
}

// Unread segnala se la conversazione ha messaggi non letti
func (l *ChatList) Unread(chatID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.unread[chatID]
}

// Get restituisce la conversazione indicata, se presente
func (l *ChatList) Get(chatID string) (models.Chat, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	chat, ok := l.chats[chatID]
	if !ok {
		return models.Chat{}, false
	}
	return *chat, true
}

// Chats restituisce le conversazioni ordinate per ultimo messaggio più
// recente; quelle senza messaggi vanno in fondo
func (l *ChatList) Chats() []models.Chat {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.Chat, 0, len(l.chats))
	for _, chat := range l.chats {
		out = append(out, *chat)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastMessage.CreatedAt.IsZero() {
			return false
		}
		if out[j].LastMessage.CreatedAt.IsZero() {
			return true
		}
		return out[i].LastMessage.CreatedAt.After(out[j].LastMessage.CreatedAt)
	})
	return out
}
