package chat

import (
	"errors"
	"testing"
	"time"

	"chat-client/models"
)

type fakeChatLister struct {
	chats []models.Chat
	err   error
}

func (f *fakeChatLister) GetChats() ([]models.Chat, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Chat, len(f.chats))
	copy(out, f.chats)
	return out, nil
}

func testChats() []models.Chat {
	return []models.Chat{
		{ID: "3", Members: []models.Member{{ID: "1", Username: "alice"}, {ID: "44", Username: "bruno"}}},
		{ID: "7", Members: []models.Member{{ID: "1", Username: "alice"}, {ID: "55", Username: "carla"}}},
		{ID: "9", Members: []models.Member{{ID: "1", Username: "alice"}, {ID: "55", Username: "carla"}, {ID: "66", Username: "dario"}}},
	}
}

func newTestChatList(t *testing.T) *ChatList {
	t.Helper()
	list := NewChatList("1", &fakeChatLister{chats: testChats()})
	if err := list.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return list
}

func inbound(chatID, senderID, content string, at time.Time) models.Message {
	return models.Message{
		ID:        "m-" + chatID + "-" + senderID,
		ChatID:    chatID,
		SenderID:  senderID,
		Type:      models.TypeText,
		Content:   content,
		CreatedAt: at,
	}
}

func TestLoadFailureLeavesListEmpty(t *testing.T) {
	list := NewChatList("1", &fakeChatLister{err: errors.New("rete assente")})
	if err := list.Load(); err == nil {
		t.Fatalf("atteso errore di caricamento")
	}
	if len(list.Chats()) != 0 {
		t.Fatalf("attesa lista vuota")
	}
}

func TestPreviewUpdateTouchesOnlyMatchingChat(t *testing.T) {
	list := newTestChatList(t)

	msg := inbound("7", "55", "novità", time.Now())
	list.OnMessage(msg)

	chat7, _ := list.Get("7")
	if chat7.LastMessage.Content != "novità" {
		t.Fatalf("anteprima della chat 7 non aggiornata: %+v", chat7.LastMessage)
	}
	for _, id := range []string{"3", "9"} {
		other, _ := list.Get(id)
		if other.LastMessage.Content != "" {
			t.Fatalf("anteprima della chat %s toccata per errore", id)
		}
	}
}

func TestStalePreviewNotOverwritten(t *testing.T) {
	list := newTestChatList(t)

	now := time.Now()
	list.OnMessage(inbound("7", "55", "recente", now))
	// Evento più vecchio arrivato in ritardo
	list.OnMessage(inbound("7", "55", "vecchio", now.Add(-time.Minute)))

	chat7, _ := list.Get("7")
	if chat7.LastMessage.Content != "recente" {
		t.Fatalf("l'evento in ritardo non deve sovrascrivere l'anteprima: %q", chat7.LastMessage.Content)
	}
}

func TestUnreadLifecycle(t *testing.T) {
	list := newTestChatList(t)
	list.OnChatOpened("3")

	if list.Unread("9") {
		t.Fatalf("la chat 9 parte come letta")
	}

	// Messaggio di un altro utente in una chat non aperta
	list.OnMessage(inbound("9", "55", "ehi", time.Now()))
	if !list.Unread("9") {
		t.Fatalf("la chat 9 deve diventare non letta")
	}

	// Un secondo messaggio non cambia nulla (idempotente)
	list.OnMessage(inbound("9", "66", "ci sei?", time.Now()))
	if !list.Unread("9") {
		t.Fatalf("la chat 9 deve restare non letta")
	}

	list.OnChatOpened("9")
	if list.Unread("9") {
		t.Fatalf("l'apertura deve azzerare il contrassegno")
	}
}

func TestOwnMessagesNeverMarkUnread(t *testing.T) {
	list := newTestChatList(t)
	list.OnChatOpened("3")

	// Un nostro invio in una chat chiusa non la marca non letta
	list.OnMessage(inbound("9", "1", "mando io", time.Now()))
	if list.Unread("9") {
		t.Fatalf("i propri messaggi non marcano mai la chat come non letta")
	}
}

func TestOpenChatNeverMarkedUnread(t *testing.T) {
	list := newTestChatList(t)
	list.OnChatOpened("7")

	list.OnMessage(inbound("7", "55", "sono qui", time.Now()))
	if list.Unread("7") {
		t.Fatalf("la chat aperta non va mai marcata non letta")
	}

	// Chiusa la chat, i nuovi messaggi tornano a contare
	list.OnChatClosed()
	list.OnMessage(inbound("7", "55", "ancora", time.Now()))
	if !list.Unread("7") {
		t.Fatalf("a chat chiusa il messaggio deve marcare non letto")
	}
}

func TestUnknownChatIgnored(t *testing.T) {
	list := newTestChatList(t)

	list.OnMessage(inbound("999", "55", "fantasma", time.Now()))
	if list.Unread("999") {
		t.Fatalf("le chat sconosciute non vanno marcate")
	}
	if _, ok := list.Get("999"); ok {
		t.Fatalf("le chat sconosciute non vanno create")
	}
}

func TestChatsSortedByMostRecent(t *testing.T) {
	list := newTestChatList(t)

	now := time.Now()
	list.OnMessage(inbound("3", "44", "prima", now.Add(-time.Hour)))
	list.OnMessage(inbound("9", "66", "ultima", now))

	chats := list.Chats()
	if chats[0].ID != "9" {
		t.Fatalf("la chat con l'ultimo messaggio va in testa, ottenuta %s", chats[0].ID)
	}
	// La chat senza messaggi resta in fondo
	if chats[len(chats)-1].ID != "7" {
		t.Fatalf("la chat senza messaggi va in fondo, ottenuta %s", chats[len(chats)-1].ID)
	}
}

func TestAddChatDedup(t *testing.T) {
	list := newTestChatList(t)

	list.OnMessage(inbound("3", "44", "già vista", time.Now()))
	// AddChat con un id esistente non deve azzerare l'anteprima
	list.AddChat(models.Chat{ID: "3"})

	chat3, _ := list.Get("3")
	if chat3.LastMessage.Content != "già vista" {
		t.Fatalf("AddChat non deve sovrascrivere una chat esistente")
	}

	list.AddChat(models.Chat{ID: "nuova", Members: []models.Member{{ID: "1"}, {ID: "77"}}})
	if _, ok := list.Get("nuova"); !ok {
		t.Fatalf("la chat nuova deve essere inserita")
	}
}
