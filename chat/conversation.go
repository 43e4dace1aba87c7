package chat

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"chat-client/models"
	"chat-client/utils"
)

// ErrHistoryLoad segnala che la cronologia non è stata caricata; la
// conversazione si apre comunque, vuota, e l'errore viene mostrato
// all'utente (non fatale)
var ErrHistoryLoad = errors.New("impossibile caricare la cronologia")

// HistoryLoader astrae il caricamento della cronologia (il client REST)
type HistoryLoader interface {
	GetMessages(chatID string) ([]models.Message, error)
}

// Sender astrae il canale di trasporto usato per l'invio
type Sender interface {
	SendMessage(msg *models.OutgoingMessage) error
}

// Conversation mantiene la sequenza ordinata e deduplicata dei messaggi
// della conversazione aperta: la cronologia iniziale più tutti gli
// eventi fusi in tempo reale. Viene creata all'apertura della
// conversazione e scartata quando l'utente la chiude.
//
// La sequenza viene solo estesa in coda o sostituita sul posto, mai
// riordinata: l'ordine mostrato è l'ordine di arrivo.
type Conversation struct {
	chatID string
	self   models.Member
	loader HistoryLoader
	sender Sender

	mu       sync.RWMutex
	messages []models.Message
	open     bool
	// Guardia contro risposte di cronologia applicate dopo la chiusura
	epoch   int
	cleanup func()
}

// NewConversation prepara la conversazione appena aperta
func NewConversation(chatID string, self models.Member, loader HistoryLoader, sender Sender) *Conversation {
	return &Conversation{
		chatID: chatID,
		self:   self,
		loader: loader,
		sender: sender,
		open:   true,
	}
}

// ChatID restituisce l'identificatore della conversazione
func (c *Conversation) ChatID() string {
	return c.chatID
}

// Messages restituisce una copia della sequenza corrente
func (c *Conversation) Messages() []models.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Load carica la cronologia completa della conversazione. Il backend la
// restituisce già in ordine cronologico; viene usata così com'è come
// base della sequenza.
func (c *Conversation) Load() error {
	c.mu.RLock()
	epoch := c.epoch
	c.mu.RUnlock()

	history, err := c.loader.GetMessages(c.chatID)
	if err != nil {
		utils.Logger.Warnf("Errore nel caricamento dei messaggi della chat %s: %v", c.chatID, err)
		return fmt.Errorf("%w: %v", ErrHistoryLoad, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// La fetch non viene annullata alla chiusura: è la risposta arrivata
	// in ritardo a dover essere scartata qui
	if !c.open || c.epoch != epoch {
		return nil
	}
	c.messages = history
	return nil
}

// Close scarta la conversazione: rimuove gli eventuali handler
// registrati e le risposte ancora in volo non verranno applicate
func (c *Conversation) Close() {
	c.mu.Lock()
	c.open = false
	c.epoch++
	cleanup := c.cleanup
	c.cleanup = nil
	c.mu.Unlock()

	if cleanup != nil {
		cleanup()
	}
}

// AppendOptimistic inserisce subito in coda un messaggio provvisorio
// costruito dalla bozza del composer e lo inoltra al canale di
// trasporto. L'interfaccia lo mostra prima della conferma del backend.
// Se l'invio non parte nemmeno, il provvisorio viene rimosso e l'errore
// è recuperabile.
func (c *Conversation) AppendOptimistic(draft *models.Draft) (*models.Message, error) {
	localID := uuid.New().String()

	msg := models.Message{
		ID:            models.TempIDPrefix + localID,
		ChatID:        c.chatID,
		SenderID:      c.self.ID,
		SenderName:    c.self.Username,
		Type:          draft.Type,
		Content:       draft.Content,
		AudioDuration: draft.AudioDuration,
		LocalID:       localID,
		CreatedAt:     time.Now(),
		Pending:       true,
	}

	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()

	out := &models.OutgoingMessage{
		ChatID:        c.chatID,
		SenderID:      c.self.ID,
		Type:          draft.Type,
		Content:       draft.Content,
		AudioDuration: draft.AudioDuration,
		LocalID:       localID,
	}
	if err := c.sender.SendMessage(out); err != nil {
		c.removeProvisional(msg.ID)
		return nil, fmt.Errorf("errore nell'invio del messaggio: %v", err)
	}

	return &msg, nil
}

// Merge integra un messaggio arrivato dal canale mentre la conversazione
// è aperta. La consegna può essere duplicata, quindi la fusione deve
// essere idempotente.
func (c *Conversation) Merge(incoming models.Message) {
	if incoming.ChatID != c.chatID {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return
	}

	// Stesso id già presente: consegna duplicata, scarta
	for _, m := range c.messages {
		if m.ID == incoming.ID {
			return
		}
	}

	// Conferma di un nostro invio: sostituisci il provvisorio sul posto,
	// preferendo il localId se il backend lo riporta
	idx := -1
	if incoming.LocalID != "" {
		for i, m := range c.messages {
			if m.Pending && m.LocalID == incoming.LocalID {
				idx = i
				break
			}
		}
	}
	if idx == -1 {
		// Il backend non riporta il localId: si ripiega sul confronto
		// del contenuto. Due provvisori identici ravvicinati possono
		// riconciliarsi su quello sbagliato; limite noto.
		for i, m := range c.messages {
			if m.Pending && m.SenderID == incoming.SenderID && m.Content == incoming.Content {
				idx = i
				break
			}
		}
	}
	if idx >= 0 {
		incoming.Pending = false
		c.messages[idx] = incoming
		return
	}

	// Messaggio nuovo: in coda
	incoming.Pending = false
	c.messages = append(c.messages, incoming)
}

// ReconcileSendFailure rimuove il provvisorio corrispondente a un invio
// fallito segnalato dal backend con message-error. Il messaggio non è
// stato consegnato e va reinviato a mano. Restituisce true se un
// provvisorio è stato effettivamente rimosso.
func (c *Conversation) ReconcileSendFailure(failure models.MessageError) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, m := range c.messages {
		if !m.Pending || !m.IsProvisional() {
			continue
		}
		if failure.LocalID != "" && m.LocalID != failure.LocalID {
			continue
		}
		if failure.LocalID == "" && m.Content != failure.Content {
			continue
		}
		c.messages = append(c.messages[:i], c.messages[i+1:]...)
		return true
	}
	return false
}

func (c *Conversation) removeProvisional(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, m := range c.messages {
		if m.ID == id {
			c.messages = append(c.messages[:i], c.messages[i+1:]...)
			return
		}
	}
}
