package chat

import (
	"errors"
	"sync"
	"testing"
	"time"

	"chat-client/models"
)

type fakeLoader struct {
	mu       sync.Mutex
	messages []models.Message
	err      error
	calls    int
}

func (f *fakeLoader) GetMessages(chatID string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Message, len(f.messages))
	copy(out, f.messages)
	return out, nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []models.OutgoingMessage
	err  error
}

func (f *fakeSender) SendMessage(msg *models.OutgoingMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, *msg)
	return nil
}

var self = models.Member{ID: "1", Username: "alice"}

func newTestConversation(t *testing.T, history []models.Message) (*Conversation, *fakeSender) {
	t.Helper()
	loader := &fakeLoader{messages: history}
	sender := &fakeSender{}
	conv := NewConversation("42", self, loader, sender)
	if err := conv.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return conv, sender
}

func confirmed(id, chatID, senderID, content string) models.Message {
	return models.Message{
		ID:         id,
		ChatID:     chatID,
		SenderID:   senderID,
		SenderName: "alice",
		Type:       models.TypeText,
		Content:    content,
		CreatedAt:  time.Now(),
	}
}

func TestLoadFailureLeavesEmptyHistory(t *testing.T) {
	loader := &fakeLoader{err: errors.New("rete assente")}
	conv := NewConversation("42", self, loader, &fakeSender{})

	err := conv.Load()
	if !errors.Is(err, ErrHistoryLoad) {
		t.Fatalf("atteso ErrHistoryLoad, ottenuto %v", err)
	}
	if len(conv.Messages()) != 0 {
		t.Fatalf("attesa cronologia vuota, ottenuti %d messaggi", len(conv.Messages()))
	}

	// La conversazione resta utilizzabile
	conv.Merge(confirmed("10", "42", "2", "ciao"))
	if len(conv.Messages()) != 1 {
		t.Fatalf("atteso 1 messaggio dopo il merge, ottenuti %d", len(conv.Messages()))
	}
}

func TestLateHistoryDiscardedAfterClose(t *testing.T) {
	loader := &fakeLoader{messages: []models.Message{confirmed("100", "42", "2", "hi")}}
	conv := NewConversation("42", self, loader, &fakeSender{})

	// La chiusura arriva prima della risposta della fetch
	conv.Close()
	if err := conv.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(conv.Messages()) != 0 {
		t.Fatalf("la risposta in ritardo non deve essere applicata, ottenuti %d messaggi", len(conv.Messages()))
	}
}

func TestAppendOptimistic(t *testing.T) {
	conv, sender := newTestConversation(t, nil)

	draft := &models.Draft{ChatID: "42", Type: models.TypeText, Content: "yo"}
	msg, err := conv.AppendOptimistic(draft)
	if err != nil {
		t.Fatalf("AppendOptimistic: %v", err)
	}

	if !msg.Pending {
		t.Fatalf("il messaggio ottimistico deve essere pending")
	}
	if !msg.IsProvisional() {
		t.Fatalf("id provvisorio atteso, ottenuto %s", msg.ID)
	}
	if msg.SenderID != "1" || msg.SenderName != "alice" {
		t.Fatalf("mittente sbagliato: %s/%s", msg.SenderID, msg.SenderName)
	}

	seq := conv.Messages()
	if len(seq) != 1 || seq[0].ID != msg.ID {
		t.Fatalf("il provvisorio deve comparire subito nella sequenza")
	}

	if len(sender.sent) != 1 {
		t.Fatalf("atteso 1 invio sul canale, ottenuti %d", len(sender.sent))
	}
	if sender.sent[0].LocalID != msg.LocalID || sender.sent[0].Content != "yo" {
		t.Fatalf("payload di invio sbagliato: %+v", sender.sent[0])
	}
}

func TestAppendOptimisticSendErrorRollsBack(t *testing.T) {
	loader := &fakeLoader{}
	sender := &fakeSender{err: errors.New("socket non connesso")}
	conv := NewConversation("42", self, loader, sender)

	if _, err := conv.AppendOptimistic(&models.Draft{ChatID: "42", Type: models.TypeText, Content: "x"}); err == nil {
		t.Fatalf("atteso errore quando l'invio non parte")
	}
	if len(conv.Messages()) != 0 {
		t.Fatalf("il provvisorio deve essere rimosso se l'invio non parte")
	}
}

func TestMergeIdempotent(t *testing.T) {
	conv, _ := newTestConversation(t, []models.Message{confirmed("100", "42", "2", "hi")})

	incoming := confirmed("205", "42", "2", "come va?")
	conv.Merge(incoming)
	conv.Merge(incoming)

	seq := conv.Messages()
	count := 0
	for _, m := range seq {
		if m.ID == "205" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("atteso esattamente 1 messaggio con id 205, ottenuti %d", count)
	}
	if len(seq) != 2 {
		t.Fatalf("attesa sequenza di 2 messaggi, ottenuti %d", len(seq))
	}
}

func TestMergeReplacesProvisionalByContent(t *testing.T) {
	conv, _ := newTestConversation(t, nil)

	if _, err := conv.AppendOptimistic(&models.Draft{ChatID: "42", Type: models.TypeText, Content: "hello"}); err != nil {
		t.Fatalf("AppendOptimistic: %v", err)
	}
	before := len(conv.Messages())

	// Il backend non riporta il localId: conta solo il contenuto
	incoming := confirmed("205", "42", "1", "hello")
	conv.Merge(incoming)

	seq := conv.Messages()
	if len(seq) != before {
		t.Fatalf("la sostituzione non deve cambiare la lunghezza: %d != %d", len(seq), before)
	}
	if seq[0].ID != "205" {
		t.Fatalf("atteso id confermato 205, ottenuto %s", seq[0].ID)
	}
	if seq[0].Pending {
		t.Fatalf("il messaggio confermato non deve essere pending")
	}
}

func TestMergeReplacesProvisionalByLocalID(t *testing.T) {
	conv, sender := newTestConversation(t, nil)

	// Due provvisori con lo stesso contenuto: il localId deve
	// disambiguare
	if _, err := conv.AppendOptimistic(&models.Draft{ChatID: "42", Type: models.TypeText, Content: "ok"}); err != nil {
		t.Fatalf("AppendOptimistic: %v", err)
	}
	if _, err := conv.AppendOptimistic(&models.Draft{ChatID: "42", Type: models.TypeText, Content: "ok"}); err != nil {
		t.Fatalf("AppendOptimistic: %v", err)
	}

	second := sender.sent[1]
	incoming := confirmed("300", "42", "1", "ok")
	incoming.LocalID = second.LocalID
	conv.Merge(incoming)

	seq := conv.Messages()
	if len(seq) != 2 {
		t.Fatalf("attesa sequenza di 2 messaggi, ottenuti %d", len(seq))
	}
	if !seq[0].Pending {
		t.Fatalf("il primo provvisorio non doveva essere toccato")
	}
	if seq[1].ID != "300" || seq[1].Pending {
		t.Fatalf("il secondo provvisorio doveva essere confermato: %+v", seq[1])
	}
}

func TestMergeIgnoresOtherChats(t *testing.T) {
	conv, _ := newTestConversation(t, nil)

	conv.Merge(confirmed("500", "77", "2", "altra chat"))
	if len(conv.Messages()) != 0 {
		t.Fatalf("i messaggi di altre chat non vanno fusi")
	}
}

func TestMergeDoesNotMatchOtherSendersContent(t *testing.T) {
	conv, _ := newTestConversation(t, nil)

	if _, err := conv.AppendOptimistic(&models.Draft{ChatID: "42", Type: models.TypeText, Content: "ciao"}); err != nil {
		t.Fatalf("AppendOptimistic: %v", err)
	}

	// Stesso contenuto ma mittente diverso: non è la conferma del
	// nostro invio
	conv.Merge(confirmed("600", "42", "2", "ciao"))

	seq := conv.Messages()
	if len(seq) != 2 {
		t.Fatalf("atteso append, non sostituzione: %d messaggi", len(seq))
	}
	if !seq[0].Pending {
		t.Fatalf("il provvisorio deve restare pending")
	}
}

func TestReconcileSendFailure(t *testing.T) {
	conv, _ := newTestConversation(t, []models.Message{confirmed("100", "42", "2", "hi")})

	if _, err := conv.AppendOptimistic(&models.Draft{ChatID: "42", Type: models.TypeText, Content: "x"}); err != nil {
		t.Fatalf("AppendOptimistic: %v", err)
	}
	if len(conv.Messages()) != 2 {
		t.Fatalf("atteso provvisorio in coda")
	}

	removed := conv.ReconcileSendFailure(models.MessageError{Content: "x", Reason: "chat non trovata"})
	if !removed {
		t.Fatalf("il provvisorio doveva essere rimosso")
	}

	seq := conv.Messages()
	if len(seq) != 1 || seq[0].ID != "100" {
		t.Fatalf("la sequenza deve tornare com'era prima dell'invio: %+v", seq)
	}

	// Un secondo message-error identico non deve toccare nulla
	if conv.ReconcileSendFailure(models.MessageError{Content: "x", Reason: "chat non trovata"}) {
		t.Fatalf("niente da rimuovere al secondo errore")
	}
}

func TestSendAndConfirmScenario(t *testing.T) {
	history := []models.Message{confirmed("100", "42", "2", "hi")}
	conv, _ := newTestConversation(t, history)

	if _, err := conv.AppendOptimistic(&models.Draft{ChatID: "42", Type: models.TypeText, Content: "yo"}); err != nil {
		t.Fatalf("AppendOptimistic: %v", err)
	}

	seq := conv.Messages()
	if len(seq) != 2 || !seq[1].Pending || seq[1].Content != "yo" {
		t.Fatalf("sequenza inattesa dopo l'invio: %+v", seq)
	}

	// Il canale rimanda la versione confermata
	conv.Merge(confirmed("205", "42", "1", "yo"))

	seq = conv.Messages()
	if len(seq) != 2 {
		t.Fatalf("attesa lunghezza 2, ottenuta %d", len(seq))
	}
	if seq[0].ID != "100" {
		t.Fatalf("la cronologia deve restare in testa")
	}
	if seq[1].ID != "205" || seq[1].Pending || seq[1].Content != "yo" {
		t.Fatalf("conferma non applicata: %+v", seq[1])
	}
}

func TestMergeAfterCloseIgnored(t *testing.T) {
	conv, _ := newTestConversation(t, nil)
	conv.Close()

	conv.Merge(confirmed("900", "42", "2", "tardi"))
	if len(conv.Messages()) != 0 {
		t.Fatalf("nessun merge dopo la chiusura")
	}
}
