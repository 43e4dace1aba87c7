package chat

import (
	"encoding/json"

	"chat-client/models"
	"chat-client/socket"
	"chat-client/utils"
)

// OpenConversation apre una conversazione: entra nella stanza, registra
// gli handler sul canale, carica la cronologia e tiene la sequenza
// aggiornata finché la conversazione non viene chiusa con Close, che
// rimuove gli handler. Le fetch in volo non vengono annullate: le
// risposte in ritardo vengono scartate all'applicazione.
//
// L'errore restituito è ErrHistoryLoad quando la cronologia non è
// arrivata: la conversazione è comunque aperta, vuota, e l'errore va
// mostrato all'utente.
func OpenConversation(chatID string, self models.Member, loader HistoryLoader, channel *socket.Client, list *ChatList) (*Conversation, error) {
	conv := NewConversation(chatID, self, loader, channel)

	if list != nil {
		list.OnChatOpened(chatID)
	}

	if err := channel.JoinChat(chatID); err != nil {
		// Non fatale: si rientra nella stanza alla riconnessione
		utils.Logger.Warnf("Ingresso nella stanza %s non riuscito: %v", chatID, err)
	}

	offMessage := channel.On(socket.EventNewMessage, func(payload json.RawMessage) {
		var msg models.Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			utils.Logger.Warnf("Messaggio non valido sul canale: %v", err)
			return
		}
		conv.Merge(msg)
	})

	offError := channel.On(socket.EventMessageError, func(payload json.RawMessage) {
		var failure models.MessageError
		if err := json.Unmarshal(payload, &failure); err != nil {
			return
		}
		if failure.ChatID != "" && failure.ChatID != chatID {
			return
		}
		if conv.ReconcileSendFailure(failure) {
			utils.Logger.Warnf("Invio non riuscito nella chat %s: %s", chatID, failure.Reason)
		}
	})

	// Dopo una riconnessione bisogna rientrare nella stanza
	offConnect := channel.On(socket.EventConnect, func(json.RawMessage) {
		if err := channel.JoinChat(chatID); err != nil {
			utils.Logger.Warnf("Rientro nella stanza %s non riuscito: %v", chatID, err)
		}
	})

	conv.mu.Lock()
	conv.cleanup = func() {
		offMessage()
		offError()
		offConnect()
		if err := channel.LeaveChat(chatID); err != nil {
			utils.Logger.Debugf("Uscita dalla stanza %s non riuscita: %v", chatID, err)
		}
		if list != nil {
			list.OnChatClosed()
		}
	}
	conv.mu.Unlock()

	return conv, conv.Load()
}
